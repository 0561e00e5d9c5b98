package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rknoche6/manifold/internal/domain"
)

func TestEffectiveLimit_Disabled(t *testing.T) {
	assert.Equal(t, 1.0, EffectiveLimit(0.5, domain.SideYes, false, 0))
	assert.Equal(t, 0.0, EffectiveLimit(0.5, domain.SideNo, false, 0))
}

func TestEffectiveLimit_ShiftsTowardTakerSide(t *testing.T) {
	assert.InDelta(t, 0.60, EffectiveLimit(0.5, domain.SideYes, true, 0), 1e-12)
	assert.InDelta(t, 0.40, EffectiveLimit(0.5, domain.SideNo, true, 0), 1e-12)

	// Custom move fraction.
	assert.InDelta(t, 0.55, EffectiveLimit(0.5, domain.SideYes, true, 0.05), 1e-12)
}

func TestEffectiveLimit_ClampedInsideUnitInterval(t *testing.T) {
	high := EffectiveLimit(0.97, domain.SideYes, true, 0)
	assert.Less(t, high, 1.0)
	assert.Greater(t, high, 0.97)

	low := EffectiveLimit(0.03, domain.SideNo, true, 0)
	assert.Greater(t, low, 0.0)
	assert.Less(t, low, 0.03)
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-100 * time.Millisecond)
	future := now.Add(time.Second)

	tests := []struct {
		name    string
		order   domain.LimitOrder
		expired bool
	}{
		{"no expiry", domain.LimitOrder{Amount: 10}, false},
		{"before expiry", domain.LimitOrder{Amount: 10, ExpiresAt: &future}, false},
		{"past expiry, unfilled", domain.LimitOrder{Amount: 10, ExpiresAt: &past}, true},
		{"past expiry, partially filled", domain.LimitOrder{Amount: 10, Filled: 6, ExpiresAt: &past}, true},
		{"past expiry, fully filled", domain.LimitOrder{Amount: 10, Filled: 10, ExpiresAt: &past}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, IsExpired(tt.order, now))
		})
	}
}
