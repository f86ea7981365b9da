package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem represents a single priced line on a quote or invoice.
// Line items are immutable once the owning document leaves Draft.
type LineItem struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Order           int             `json:"order"`
}

// NewLineItem creates a validated line item
func NewLineItem(productID uuid.UUID, description string, quantity, unitPrice, discountPercent decimal.Decimal, order int) (*LineItem, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Product ID cannot be empty")
	}
	if description == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Line item description cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unit price cannot be negative")
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Discount percent must be between 0 and 100")
	}

	return &LineItem{
		ID:              uuid.New(),
		ProductID:       productID,
		Description:     description,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		DiscountPercent: discountPercent,
		Order:           order,
	}, nil
}

// LineTotal returns quantity * unitPrice * (1 - discountPercent/100), unrounded.
// Rounding happens once on the document subtotal, not per line.
func (li LineItem) LineTotal() decimal.Decimal {
	gross := li.Quantity.Mul(li.UnitPrice)
	if li.DiscountPercent.IsZero() {
		return gross
	}
	factor := decimal.NewFromInt(1).Sub(li.DiscountPercent.Div(decimal.NewFromInt(100)))
	return gross.Mul(factor)
}

// Clone returns a copy of the line item with a fresh identity,
// preserving product, pricing, and ordering. Used when a quote's
// lines are carried over onto a new invoice.
func (li LineItem) Clone() LineItem {
	return LineItem{
		ID:              uuid.New(),
		ProductID:       li.ProductID,
		Description:     li.Description,
		Quantity:        li.Quantity,
		UnitPrice:       li.UnitPrice,
		DiscountPercent: li.DiscountPercent,
		Order:           li.Order,
	}
}

// LineItems is a slice of LineItem that implements GORM Scanner/Valuer for JSONB storage
type LineItems []LineItem

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// CloneAll returns fresh copies of all line items, preserving order
func (l LineItems) CloneAll() LineItems {
	out := make(LineItems, len(l))
	for i, li := range l {
		out[i] = li.Clone()
	}
	return out
}
