package models

import (
	"time"

	"github.com/crm/backend/internal/domain/billing"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuoteModel is the persistence model for the Quote aggregate root.
type QuoteModel struct {
	TenantAggregateModel
	QuoteNumber          string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_quote_tenant_number,priority:2"`
	Title                string               `gorm:"type:varchar(200)"`
	Description          string               `gorm:"type:text"`
	CustomerID           uuid.UUID            `gorm:"type:uuid;not null;index"`
	OpportunityID        *uuid.UUID           `gorm:"type:uuid;index"`
	LineItems            billing.LineItems    `gorm:"type:jsonb;default:'[]'"`
	SubTotal             decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	TaxAmount            decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	DiscountAmount       decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	TotalAmount          decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency             valueobject.Currency `gorm:"type:varchar(3);not null"`
	Status               billing.QuoteStatus  `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	ValidUntil           *time.Time           `gorm:"index"`
	SentAt               *time.Time
	AcceptedAt           *time.Time
	RejectedAt           *time.Time
	ConvertedToInvoiceID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (QuoteModel) TableName() string {
	return "quotes"
}

// ToDomain converts the persistence model to a domain Quote entity.
func (m *QuoteModel) ToDomain() *billing.Quote {
	q := &billing.Quote{
		QuoteNumber:          m.QuoteNumber,
		Title:                m.Title,
		Description:          m.Description,
		CustomerID:           m.CustomerID,
		OpportunityID:        m.OpportunityID,
		LineItems:            m.LineItems,
		SubTotal:             m.SubTotal,
		TaxAmount:            m.TaxAmount,
		DiscountAmount:       m.DiscountAmount,
		TotalAmount:          m.TotalAmount,
		Currency:             m.Currency,
		Status:               m.Status,
		ValidUntil:           m.ValidUntil,
		SentAt:               m.SentAt,
		AcceptedAt:           m.AcceptedAt,
		RejectedAt:           m.RejectedAt,
		ConvertedToInvoiceID: m.ConvertedToInvoiceID,
	}
	m.PopulateTenantAggregateRoot(&q.TenantAggregateRoot)
	return q
}

// FromDomain populates the persistence model from a domain Quote entity.
func (m *QuoteModel) FromDomain(q *billing.Quote) {
	m.FromDomainTenantAggregateRoot(q.TenantAggregateRoot)
	m.QuoteNumber = q.QuoteNumber
	m.Title = q.Title
	m.Description = q.Description
	m.CustomerID = q.CustomerID
	m.OpportunityID = q.OpportunityID
	m.LineItems = q.LineItems
	m.SubTotal = q.SubTotal
	m.TaxAmount = q.TaxAmount
	m.DiscountAmount = q.DiscountAmount
	m.TotalAmount = q.TotalAmount
	m.Currency = q.Currency
	m.Status = q.Status
	m.ValidUntil = q.ValidUntil
	m.SentAt = q.SentAt
	m.AcceptedAt = q.AcceptedAt
	m.RejectedAt = q.RejectedAt
	m.ConvertedToInvoiceID = q.ConvertedToInvoiceID
}

// QuoteModelFromDomain creates a new persistence model from a domain Quote.
func QuoteModelFromDomain(q *billing.Quote) *QuoteModel {
	m := &QuoteModel{}
	m.FromDomain(q)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber  string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	Title          string               `gorm:"type:varchar(200)"`
	Description    string               `gorm:"type:text"`
	CustomerID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	QuoteID        *uuid.UUID           `gorm:"type:uuid;index"`
	OpportunityID  *uuid.UUID           `gorm:"type:uuid;index"`
	LineItems      billing.LineItems    `gorm:"type:jsonb;default:'[]'"`
	SubTotal       decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	TaxAmount      decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	DiscountAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	TotalAmount    decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	PaidAmount     decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	BalanceAmount  decimal.Decimal      `gorm:"type:decimal(18,4);not null;index"`
	Currency       valueobject.Currency `gorm:"type:varchar(3);not null"`
	Status         billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	InvoiceDate    time.Time            `gorm:"not null"`
	DueDate        time.Time            `gorm:"not null;index"`
	SentAt         *time.Time
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CancelReason   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber:  m.InvoiceNumber,
		Title:          m.Title,
		Description:    m.Description,
		CustomerID:     m.CustomerID,
		QuoteID:        m.QuoteID,
		OpportunityID:  m.OpportunityID,
		LineItems:      m.LineItems,
		SubTotal:       m.SubTotal,
		TaxAmount:      m.TaxAmount,
		DiscountAmount: m.DiscountAmount,
		TotalAmount:    m.TotalAmount,
		PaidAmount:     m.PaidAmount,
		BalanceAmount:  m.BalanceAmount,
		Currency:       m.Currency,
		Status:         m.Status,
		InvoiceDate:    m.InvoiceDate,
		DueDate:        m.DueDate,
		SentAt:         m.SentAt,
		PaidAt:         m.PaidAt,
		CancelledAt:    m.CancelledAt,
		CancelReason:   m.CancelReason,
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.Title = inv.Title
	m.Description = inv.Description
	m.CustomerID = inv.CustomerID
	m.QuoteID = inv.QuoteID
	m.OpportunityID = inv.OpportunityID
	m.LineItems = inv.LineItems
	m.SubTotal = inv.SubTotal
	m.TaxAmount = inv.TaxAmount
	m.DiscountAmount = inv.DiscountAmount
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.BalanceAmount = inv.BalanceAmount
	m.Currency = inv.Currency
	m.Status = inv.Status
	m.InvoiceDate = inv.InvoiceDate
	m.DueDate = inv.DueDate
	m.SentAt = inv.SentAt
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
// Payments are soft deleted so the audit trail survives removal.
type PaymentModel struct {
	TenantAggregateModel
	PaymentNumber   string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_payment_tenant_number,priority:2"`
	InvoiceID       uuid.UUID             `gorm:"type:uuid;not null;index"`
	CustomerID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Currency        valueobject.Currency  `gorm:"type:varchar(3);not null"`
	Method          billing.PaymentMethod `gorm:"type:varchar(20);not null"`
	TransactionID   string                `gorm:"type:varchar(100)"`
	ReferenceNumber string                `gorm:"type:varchar(100)"`
	Notes           string                `gorm:"type:text"`
	PaymentDate     time.Time             `gorm:"not null;index"`
	ReceivedBy      *uuid.UUID            `gorm:"type:uuid"`
	DeletedAt       gorm.DeletedAt        `gorm:"index"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *billing.Payment {
	p := &billing.Payment{
		PaymentNumber:   m.PaymentNumber,
		InvoiceID:       m.InvoiceID,
		CustomerID:      m.CustomerID,
		Amount:          m.Amount,
		Currency:        m.Currency,
		Method:          m.Method,
		TransactionID:   m.TransactionID,
		ReferenceNumber: m.ReferenceNumber,
		Notes:           m.Notes,
		PaymentDate:     m.PaymentDate,
		ReceivedBy:      m.ReceivedBy,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.PaymentNumber = p.PaymentNumber
	m.InvoiceID = p.InvoiceID
	m.CustomerID = p.CustomerID
	m.Amount = p.Amount
	m.Currency = p.Currency
	m.Method = p.Method
	m.TransactionID = p.TransactionID
	m.ReferenceNumber = p.ReferenceNumber
	m.Notes = p.Notes
	m.PaymentDate = p.PaymentDate
	m.ReceivedBy = p.ReceivedBy
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
