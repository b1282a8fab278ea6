package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputePositionID computes a deterministic open position id.
// Formula: SHA256(custom_symbol|symbol|order_id)
func ComputePositionID(customSymbol, symbol, orderID string) string {
	return hashFields(customSymbol, symbol, orderID)
}

// ComputeCloseID computes a deterministic close volume id.
// Formula: SHA256(position_id|order_id)
func ComputeCloseID(positionID, orderID string) string {
	return hashFields(positionID, orderID)
}

// ComputeSwitchRecordID computes the id of a rollover record.
// Formula: SHA256(custom_symbol|next_symbol), so one transition has one record.
func ComputeSwitchRecordID(customSymbol, nextSymbol string) string {
	return hashFields(customSymbol, nextSymbol)
}

func hashFields(fields ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(hash[:])
}
