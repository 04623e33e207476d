// Package idhash derives deterministic identifiers for persisted records.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_name|entry_time_ms)
// A run holds at most one open position, so the entry minute is unique per run.
// Runs that reuse a name share trade ids; stores key trades by (run_id, trade_id).
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runName string, entryTimeMs int64) string {
	data := fmt.Sprintf("%s|%d", runName, entryTimeMs)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
