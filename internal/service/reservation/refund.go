package reservation

import (
	"time"

	"github.com/vkurasov/ridepool/config"
	"github.com/vkurasov/ridepool/internal/domain"
)

// RefundPolicy decides what fraction of the reservation amount is returned
// when an approved reservation is cancelled. Thresholds and fractions are
// configuration, not law.
type RefundPolicy struct {
	FullBefore    time.Duration
	PartialBefore time.Duration
	FullPct       float64
	PartialPct    float64
}

func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{
		FullBefore:    24 * time.Hour,
		PartialBefore: 2 * time.Hour,
		FullPct:       1.0,
		PartialPct:    0.5,
	}
}

func RefundPolicyFromConfig(cfg config.RefundConfig) RefundPolicy {
	p := DefaultRefundPolicy()
	if cfg.FullBeforeHours > 0 {
		p.FullBefore = time.Duration(cfg.FullBeforeHours * float64(time.Hour))
	}
	if cfg.PartialBeforeHours > 0 {
		p.PartialBefore = time.Duration(cfg.PartialBeforeHours * float64(time.Hour))
	}
	if cfg.FullPct > 0 {
		p.FullPct = cfg.FullPct
	}
	if cfg.PartialPct > 0 {
		p.PartialPct = cfg.PartialPct
	}
	return p
}

// Calculate is pure: identical inputs always produce identical output.
// A cancellation not initiated by the passenger refunds in full no matter
// how close to pickup it happens.
func (p RefundPolicy) Calculate(pickupAt, cancelledAt time.Time, cancelledBy domain.ActorRole) float64 {
	if cancelledBy != domain.ActorPassenger {
		return p.FullPct
	}

	lead := pickupAt.Sub(cancelledAt)
	switch {
	case lead >= p.FullBefore:
		return p.FullPct
	case lead >= p.PartialBefore:
		return p.PartialPct
	default:
		return 0
	}
}
