package store

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// ChainEntry is the hashed view of a single check-in. Each client's
// check-ins form a chain: entry N carries the hash of entry N-1.
type ChainEntry struct {
	CheckInID       string    `json:"checkin_id"`
	ClientID        int64     `json:"client_id"`
	Seq             int       `json:"seq"`
	Location        string    `json:"location"`
	CheckInTime     time.Time `json:"checkin_time"`
	BiometricDigest string    `json:"biometric_digest,omitempty"`
	PrevHash        string    `json:"prev_hash"`
	Hash            string    `json:"hash"`
}

type ChainReport struct {
	Valid    bool   `json:"valid"`
	Count    int    `json:"count"`
	BrokenAt int    `json:"broken_at,omitempty"`
	HeadHash string `json:"head_hash,omitempty"`
}

// TimestampPrecision is the resolution PostgreSQL keeps for TIMESTAMPTZ.
// Times are truncated to it before they are hashed or stored so a chain read
// back from the database verifies.
const TimestampPrecision = time.Microsecond

func ComputeCheckInHash(prevHash, checkInID string, clientID int64, location string, checkInTime time.Time, biometricDigest string, seq int) string {
	raw := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%d", prevHash, checkInID, clientID, location, checkInTime.UTC().Truncate(TimestampPrecision).Format(time.RFC3339Nano), biometricDigest, seq)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// VerifyChain walks entries ordered by Seq and reports the first entry whose
// link or hash does not match.
func VerifyChain(entries []ChainEntry) ChainReport {
	report := ChainReport{Valid: true, Count: len(entries)}
	prev := ""
	for i, entry := range entries {
		if entry.Seq != i+1 || entry.PrevHash != prev {
			report.Valid = false
			report.BrokenAt = entry.Seq
			return report
		}
		want := ComputeCheckInHash(entry.PrevHash, entry.CheckInID, entry.ClientID, entry.Location, entry.CheckInTime, entry.BiometricDigest, entry.Seq)
		if want != entry.Hash {
			report.Valid = false
			report.BrokenAt = entry.Seq
			return report
		}
		prev = entry.Hash
	}
	report.HeadHash = prev
	return report
}
