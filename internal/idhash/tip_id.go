package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeTipID computes a deterministic pre-trade tip id using SHA256.
// Formula: SHA256(custom_symbol|symbol|YYYY-MM-DD of the daily bar)
// Returns hex-encoded hash (64 characters).
func ComputeTipID(customSymbol, symbol string, dailyBar time.Time) string {
	data := fmt.Sprintf("%s|%s|%s",
		customSymbol,
		symbol,
		dailyBar.Format("2006-01-02"),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
