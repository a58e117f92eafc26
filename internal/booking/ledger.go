package booking

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// RefundableDeposit picks the deposit a cancellation refunds: the
// captured DEPOSIT no REFUND points at, latest paid first.  Deposits
// without a paid time sort last and ties go to the newer row.  It
// returns nil when every deposit is already refunded.
func RefundableDeposit(payments []model.Payment) *model.Payment {
	refunded := make(map[uint64]bool)
	for _, p := range payments {
		if p.Type == model.PaymentRefund && p.RelatedPaymentID != nil {
			refunded[*p.RelatedPaymentID] = true
		}
	}
	var best *model.Payment
	for i := range payments {
		p := &payments[i]
		if p.Type != model.PaymentDeposit || p.Status != model.PaymentCaptured || refunded[p.ID] {
			continue
		}
		if best == nil || paidLater(p, best) {
			best = p
		}
	}
	return best
}

func paidLater(a, b *model.Payment) bool {
	switch {
	case a.PaidAt == nil && b.PaidAt == nil:
		return a.ID > b.ID
	case a.PaidAt == nil:
		return false
	case b.PaidAt == nil:
		return true
	case a.PaidAt.Equal(*b.PaidAt):
		return a.ID > b.ID
	}
	return a.PaidAt.After(*b.PaidAt)
}

// NetCaptured returns captured deposits minus captured refunds.
func NetCaptured(payments []model.Payment) decimal.Decimal {
	net := decimal.Zero
	for _, p := range payments {
		if p.Status != model.PaymentCaptured {
			continue
		}
		switch p.Type {
		case model.PaymentDeposit:
			net = net.Add(p.Amount)
		case model.PaymentRefund:
			net = net.Sub(p.Amount)
		}
	}
	return net
}
