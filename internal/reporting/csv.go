package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders tip rows as CSV string.
func RenderCSV(rows []TipRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("tip_id,symbol,name,direction,multiple,open_pos_scale,volume,")
	sb.WriteString("close_price,bar_time,need_trade,count_7d\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%.4f,%d,%.2f,%s,%t,%d\n",
			r.TipID,
			r.Symbol,
			r.Name,
			r.Direction,
			r.Multiple,
			r.OpenPosScale,
			r.Volume,
			r.ClosePrice,
			r.BarTime.Format("2006-01-02"),
			r.NeedTrade,
			r.Count7d,
		))
	}

	return sb.String()
}
