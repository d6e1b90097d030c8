package reservation

import (
	"time"

	"covach/internal/domain/listing"
	"covach/internal/domain/shared/daterange"
	"covach/internal/domain/shared/money"
)

// CancellationFee computes the fee charged when a stay totalling total over
// dr is canceled at canceledAt. Pure function of the policy tier, the whole
// calendar days left until check-in, and the total price:
//
//	flexible  free >= 1 day out, otherwise 50%
//	moderate  free >= 5 days out, otherwise 50%
//	strict    free >= 7 days out, otherwise 100%
func CancellationFee(policy listing.CancellationPolicy, total money.Money, dr daterange.DateRange, canceledAt time.Time) money.Money {
	daysBefore := dr.DaysUntilCheckIn(canceledAt)

	var pct int
	switch policy {
	case listing.PolicyFlexible:
		if daysBefore < 1 {
			pct = 50
		}
	case listing.PolicyModerate:
		if daysBefore < 5 {
			pct = 50
		}
	default:
		if daysBefore < 7 {
			pct = 100
		}
	}
	return total.Percent(pct)
}
