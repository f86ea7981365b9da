package billing

import (
	"fmt"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Ledger arithmetic: pure functions over line items and payment sums.
// All document amounts are kept at 2 decimal places (currency minor unit).

// ComputeSubTotal sums the line totals and applies banker's rounding once
// on the sum, never per line.
func ComputeSubTotal(items LineItems) decimal.Decimal {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.LineTotal())
	}
	return sum.RoundBank(2)
}

// ComputeTotal returns subTotal + tax - discount.
// A negative result is a caller error, not something to clamp.
func ComputeTotal(subTotal, tax, discount decimal.Decimal) (decimal.Decimal, error) {
	total := subTotal.Add(tax).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidAmount,
			fmt.Sprintf("Document total cannot be negative: subtotal %s + tax %s - discount %s",
				subTotal.StringFixed(2), tax.StringFixed(2), discount.StringFixed(2)))
	}
	return total, nil
}

// ComputeBalance returns max(total - paid, 0). Paid exceeding total is a
// defect caught by payment application before it is ever persisted; the
// clamp here is a display safety net only.
func ComputeBalance(total, paid decimal.Decimal) decimal.Decimal {
	balance := total.Sub(paid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}
