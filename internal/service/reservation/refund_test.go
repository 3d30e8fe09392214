package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vkurasov/ridepool/config"
	"github.com/vkurasov/ridepool/internal/domain"
)

func TestRefundPolicy_PassengerCancellation(t *testing.T) {
	policy := DefaultRefundPolicy()
	pickup := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		cancelledAt time.Time
		want        float64
	}{
		{"30h before pickup", pickup.Add(-30 * time.Hour), 1.0},
		{"exactly 24h before", pickup.Add(-24 * time.Hour), 1.0},
		{"10h before pickup", pickup.Add(-10 * time.Hour), 0.5},
		{"exactly 2h before", pickup.Add(-2 * time.Hour), 0.5},
		{"1h before pickup", pickup.Add(-1 * time.Hour), 0},
		{"after pickup", pickup.Add(30 * time.Minute), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := policy.Calculate(pickup, tc.cancelledAt, domain.ActorPassenger)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRefundPolicy_DriverCancellationIsAlwaysFull(t *testing.T) {
	policy := DefaultRefundPolicy()
	pickup := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	// 30 minutes before pickup would give a passenger nothing.
	got := policy.Calculate(pickup, pickup.Add(-30*time.Minute), domain.ActorDriver)
	assert.Equal(t, 1.0, got)
}

func TestRefundPolicy_SystemCancellationIsFull(t *testing.T) {
	policy := DefaultRefundPolicy()
	pickup := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	got := policy.Calculate(pickup, pickup.Add(-5*time.Minute), domain.ActorSystem)
	assert.Equal(t, 1.0, got)
}

func TestRefundPolicy_Deterministic(t *testing.T) {
	policy := DefaultRefundPolicy()
	pickup := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	cancelled := pickup.Add(-10 * time.Hour)

	first := policy.Calculate(pickup, cancelled, domain.ActorPassenger)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, policy.Calculate(pickup, cancelled, domain.ActorPassenger))
	}
}

func TestRefundPolicyFromConfig(t *testing.T) {
	policy := RefundPolicyFromConfig(config.RefundConfig{
		FullBeforeHours:    48,
		PartialBeforeHours: 6,
		FullPct:            0.9,
		PartialPct:         0.25,
	})
	pickup := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.9, policy.Calculate(pickup, pickup.Add(-49*time.Hour), domain.ActorPassenger))
	assert.Equal(t, 0.25, policy.Calculate(pickup, pickup.Add(-12*time.Hour), domain.ActorPassenger))
	assert.Equal(t, 0.0, policy.Calculate(pickup, pickup.Add(-1*time.Hour), domain.ActorPassenger))
}

func TestRefundPolicyFromConfig_EmptyUsesDefaults(t *testing.T) {
	policy := RefundPolicyFromConfig(config.RefundConfig{})
	assert.Equal(t, DefaultRefundPolicy(), policy)
}
