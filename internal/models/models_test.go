package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSavedSet(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	s := NewSavedSet(a)

	if !s.Has(a) || s.Has(b) {
		t.Fatalf("membership wrong: %v", s)
	}

	s.Add(b)
	s.Add(b) // idempotent
	if s.Count() != 2 {
		t.Fatalf("count = %d, want 2", s.Count())
	}

	s.Remove(a)
	if s.Has(a) || s.Count() != 1 {
		t.Fatalf("remove failed: %v", s)
	}
	s.Remove(a) // removing absent id is a no-op
	if s.Count() != 1 {
		t.Fatalf("count changed on absent remove: %d", s.Count())
	}

	s.Clear()
	if s.Count() != 0 {
		t.Fatalf("clear left %d entries", s.Count())
	}
}

func TestScanFrequencyInterval(t *testing.T) {
	cases := []struct {
		freq ScanFrequency
		want time.Duration
	}{
		{ScanRealtime, time.Minute},
		{ScanFrequent, 15 * time.Minute},
		{ScanHourly, time.Hour},
		{ScanDaily, 24 * time.Hour},
		{ScanFrequency("bogus"), time.Hour}, // stale stored value
	}
	for _, c := range cases {
		if got := c.freq.Interval(); got != c.want {
			t.Fatalf("Interval(%q) = %v, want %v", c.freq, got, c.want)
		}
	}
}

func TestDefaultAlertSettings(t *testing.T) {
	s := DefaultAlertSettings()
	if s.MaxAmount != 50000 || !s.PushNotifications || s.ScanFrequency != ScanHourly {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if len(s.Categories) != 0 || len(s.Urgencies) != 0 {
		t.Fatalf("defaults must not restrict categories or urgencies: %+v", s)
	}
}
