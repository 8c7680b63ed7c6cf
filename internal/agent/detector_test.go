package agent

import (
	"os"
	"testing"
	"time"
)

func TestDetectorAlive(t *testing.T) {
	d := NewDetector(5 * time.Second)

	if !d.Alive(os.Getpid()) {
		t.Error("Alive(self) = false, want true")
	}
	if d.Alive(-1) {
		t.Error("Alive(-1) = true, want false")
	}
	if d.Alive(0) {
		t.Error("Alive(0) = true, want false")
	}
}

// TestDetectorScanCache verifies the TTL cache short-circuits rescans.
func TestDetectorScanCache(t *testing.T) {
	d := NewDetector(time.Hour)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	d.now = func() time.Time { return current }

	if _, err := d.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	firstScan := d.lastScan

	// Within the TTL: no rescan.
	current = base.Add(time.Minute)
	if _, err := d.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !d.lastScan.Equal(firstScan) {
		t.Error("cache was refreshed within the TTL")
	}

	// Past the TTL: rescan.
	current = base.Add(2 * time.Hour)
	if _, err := d.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if d.lastScan.Equal(firstScan) {
		t.Error("cache was not refreshed after the TTL expired")
	}
}
