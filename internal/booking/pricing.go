package booking

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/venue-reservation/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Quote is the price of a reservation at booking time.
type Quote struct {
	Total   decimal.Decimal
	Deposit decimal.Decimal
}

// CalculatePrice computes the total price and the deposit.  The deposit is
// total * rate% * (100 - discount)% rounded half-up to whole currency
// units.  All arithmetic is decimal, so the result is exact.
func CalculatePrice(price decimal.Decimal, partySize int, depositRatePercent, gradeDiscountPercent decimal.Decimal) Quote {
	total := price.Mul(decimal.NewFromInt(int64(partySize)))
	deposit := total.
		Mul(depositRatePercent).
		Mul(hundred.Sub(gradeDiscountPercent)).
		Shift(-4).
		Round(0)
	return Quote{Total: total, Deposit: deposit}
}

// ResolveDepositRate returns the service's own rate when set, else the
// venue default.
func ResolveDepositRate(serviceRate *decimal.Decimal, venueDefault decimal.Decimal) decimal.Decimal {
	if serviceRate != nil {
		return *serviceRate
	}
	return venueDefault
}

// AppliedGrade is the grade frozen onto a reservation.
type AppliedGrade struct {
	GradeID         *uint64
	DiscountPercent decimal.Decimal
}

// ResolveGrade picks the grade to record.  A customer's own grade gives
// its discount.  Without one the discount is zero and the system default
// grade, if any, is recorded.
func ResolveGrade(current, systemDefault *model.UserGrade) AppliedGrade {
	if current != nil {
		id := current.ID
		return AppliedGrade{GradeID: &id, DiscountPercent: current.DepositDiscountPercent}
	}
	applied := AppliedGrade{DiscountPercent: decimal.Zero}
	if systemDefault != nil {
		id := systemDefault.ID
		applied.GradeID = &id
	}
	return applied
}
