package store

import (
	"testing"
	"time"
)

func buildChain(n int) []ChainEntry {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entries := make([]ChainEntry, 0, n)
	prev := ""
	for i := 1; i <= n; i++ {
		entry := ChainEntry{
			CheckInID:   "checkin-" + string(rune('a'+i)),
			ClientID:    42,
			Seq:         i,
			Location:    "40.712775,-74.005973",
			CheckInTime: base.Add(time.Duration(i) * 24 * time.Hour),
			PrevHash:    prev,
		}
		if i == 1 {
			entry.BiometricDigest = "abc123"
		}
		entry.Hash = ComputeCheckInHash(entry.PrevHash, entry.CheckInID, entry.ClientID, entry.Location, entry.CheckInTime, entry.BiometricDigest, entry.Seq)
		prev = entry.Hash
		entries = append(entries, entry)
	}
	return entries
}

func TestVerifyChain(t *testing.T) {
	entries := buildChain(3)
	report := VerifyChain(entries)
	if !report.Valid || report.Count != 3 {
		t.Fatalf("expected valid chain of 3, got %+v", report)
	}
	if report.HeadHash != entries[2].Hash {
		t.Fatalf("expected head hash %s, got %s", entries[2].Hash, report.HeadHash)
	}
}

func TestVerifyChainEmpty(t *testing.T) {
	report := VerifyChain(nil)
	if !report.Valid || report.Count != 0 {
		t.Fatalf("expected empty chain to be valid, got %+v", report)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	entries := buildChain(3)
	entries[1].Location = "0.000000,0.000000"
	report := VerifyChain(entries)
	if report.Valid {
		t.Fatalf("expected tampered chain to be invalid")
	}
	if report.BrokenAt != 2 {
		t.Fatalf("expected break at seq 2, got %d", report.BrokenAt)
	}
}

func TestVerifyChainDetectsGap(t *testing.T) {
	entries := buildChain(3)
	entries = append(entries[:1], entries[2:]...)
	report := VerifyChain(entries)
	if report.Valid || report.BrokenAt != 3 {
		t.Fatalf("expected gap detected at seq 3, got %+v", report)
	}
}

func TestVerifyChainAfterDatabaseRoundTrip(t *testing.T) {
	checkInTime := time.Date(2026, 3, 2, 9, 30, 5, 123456789, time.UTC)
	entry := ChainEntry{
		CheckInID:   "checkin-a",
		ClientID:    42,
		Seq:         1,
		Location:    "40.712775,-74.005973",
		CheckInTime: checkInTime,
	}
	entry.Hash = ComputeCheckInHash("", entry.CheckInID, entry.ClientID, entry.Location, checkInTime, "", 1)

	// TIMESTAMPTZ keeps microseconds, so the stored time loses its nanoseconds.
	entry.CheckInTime = checkInTime.Truncate(time.Microsecond)
	report := VerifyChain([]ChainEntry{entry})
	if !report.Valid || report.HeadHash != entry.Hash {
		t.Fatalf("expected chain to verify after round trip, got %+v", report)
	}
}
