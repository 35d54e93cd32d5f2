package ingest

import (
	"github.com/tkamdem/livrazone/delivery/domain"
	"github.com/tkamdem/livrazone/pkg/money"
)

// Fees are the fixed tariffs for the statuses that carry one.
type Fees struct {
	Pickup int64
	Zone1  int64
	Zone2  int64
}

func DefaultFees() Fees {
	return Fees{Pickup: 1000, Zone1: 500, Zone2: 1000}
}

// ApplyTransition derives the target row state for a status change. The
// result depends only on the current row and the transition inputs, so
// re-applying the same change is a no-op.
//
// manualFee wins over an existing non-zero fee, which wins over the
// agency tariff. explicitPaid pins amount_paid instead of recomputing it.
func ApplyTransition(d *domain.Delivery, next domain.Status, manualFee, explicitPaid, tariff *int64, fees Fees) {
	prev := d.Status

	// A zone fee never survives leaving its status.
	if (prev == domain.StatusNoAnswerZone1 || prev == domain.StatusNoAnswerZone2) && next != prev {
		d.DeliveryFee = 0
	}

	switch next {
	case domain.StatusDelivered:
		fee := resolveFee(d, manualFee, tariff)
		d.DeliveryFee = fee
		switch {
		case explicitPaid != nil:
			d.AmountPaid = money.Max0(*explicitPaid)
		case prev == domain.StatusDelivered:
			// Already settled; recomputing would double-charge the fee.
		case d.AmountPaid == 0 && d.AmountDue > 0:
			d.AmountPaid = money.Max0(d.AmountDue - fee)
		case d.AmountPaid > 0:
			d.AmountPaid = money.Max0(d.AmountPaid - fee)
		}

	case domain.StatusClientAbsent:
		d.DeliveryFee = resolveFee(d, manualFee, tariff)
		d.AmountPaid = 0

	case domain.StatusPickup:
		d.DeliveryFee = fees.Pickup
		d.AmountPaid = money.Max0(d.AmountDue - fees.Pickup)

	case domain.StatusNoAnswerZone1:
		d.DeliveryFee = fees.Zone1
		d.AmountPaid = 0

	case domain.StatusNoAnswerZone2:
		d.DeliveryFee = fees.Zone2
		d.AmountPaid = 0

	case domain.StatusFailed:
		settled := prev == domain.StatusDelivered && d.DeliveryFee > 0
		d.DeliveryFee = 0
		if settled || d.AmountPaid > 0 {
			d.AmountPaid = 0
		}

	default:
		// pending and any future neutral status: leaving delivered
		// reverts the settlement.
		if prev == domain.StatusDelivered {
			d.DeliveryFee = 0
			d.AmountPaid = 0
		}
	}

	d.Status = next
}

func resolveFee(d *domain.Delivery, manualFee, tariff *int64) int64 {
	switch {
	case manualFee != nil && *manualFee >= 0:
		return *manualFee
	case d.DeliveryFee != 0:
		return d.DeliveryFee
	case tariff != nil:
		return *tariff
	}
	return 0
}
