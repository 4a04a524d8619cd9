package service_test

import (
	"testing"

	"github.com/iliyamo/karaoke-booking/internal/service"
)

func TestCapFromSetting(t *testing.T) {
	tests := []struct {
		setting   int
		unlimited bool
		limit     int
	}{
		{setting: 999, unlimited: true},
		{setting: 1500, unlimited: true},
		{setting: 0, unlimited: true},
		{setting: 1, limit: 1},
		{setting: 3, limit: 3},
		{setting: 998, limit: 998},
	}
	for _, tt := range tests {
		c := service.CapFromSetting(tt.setting)
		if c.IsUnlimited() != tt.unlimited {
			t.Errorf("CapFromSetting(%d).IsUnlimited() = %v, want %v", tt.setting, c.IsUnlimited(), tt.unlimited)
			continue
		}
		if n, ok := c.Limit(); ok && n != tt.limit {
			t.Errorf("CapFromSetting(%d).Limit() = %d, want %d", tt.setting, n, tt.limit)
		}
	}
	if got := service.Unlimited().Setting(); got != service.UnlimitedSetting {
		t.Errorf("Unlimited().Setting() = %d", got)
	}
	if got := service.Capped(5).Setting(); got != 5 {
		t.Errorf("Capped(5).Setting() = %d", got)
	}
}

func TestAllowBoundary(t *testing.T) {
	c := service.Capped(3)
	for count, want := range map[int]bool{0: true, 1: true, 2: true, 3: false, 4: false} {
		if got := service.Allow(count, c); got != want {
			t.Errorf("Allow(%d, Capped(3)) = %v, want %v", count, got, want)
		}
	}
	if !service.Allow(100000, service.Unlimited()) {
		t.Error("unlimited cap refused a booking")
	}
}

func TestRemaining(t *testing.T) {
	c := service.Capped(3)
	if n, ok := c.Remaining(1).Count(); !ok || n != 2 {
		t.Errorf("Remaining(1) = %d,%v want 2,true", n, ok)
	}
	if n, _ := c.Remaining(7).Count(); n != 0 {
		t.Errorf("Remaining(7) = %d, want 0", n)
	}
	if !service.Unlimited().Remaining(50).IsUnlimited() {
		t.Error("unlimited cap reported a finite remainder")
	}
}
