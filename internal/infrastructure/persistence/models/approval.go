package models

import (
	"time"

	"github.com/crm/backend/internal/domain/approval"
	"github.com/google/uuid"
)

// ApprovalProcessModel is the persistence model for ApprovalProcess.
type ApprovalProcessModel struct {
	TenantAggregateModel
	Name         string                `gorm:"type:varchar(200);not null"`
	Description  string                `gorm:"type:text"`
	EntityKind   string                `gorm:"type:varchar(50);not null;index:idx_process_tenant_kind,priority:2"`
	ApprovalType approval.ApprovalType `gorm:"type:varchar(20);not null"`
	Steps        approval.ApprovalSteps `gorm:"type:jsonb;default:'[]'"`
	IsActive     bool                  `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (ApprovalProcessModel) TableName() string {
	return "approval_processes"
}

// ToDomain converts the persistence model to a domain ApprovalProcess.
func (m *ApprovalProcessModel) ToDomain() *approval.ApprovalProcess {
	p := &approval.ApprovalProcess{
		Name:         m.Name,
		Description:  m.Description,
		EntityKind:   m.EntityKind,
		ApprovalType: m.ApprovalType,
		Steps:        m.Steps,
		IsActive:     m.IsActive,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain ApprovalProcess.
func (m *ApprovalProcessModel) FromDomain(p *approval.ApprovalProcess) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.Name = p.Name
	m.Description = p.Description
	m.EntityKind = p.EntityKind
	m.ApprovalType = p.ApprovalType
	m.Steps = p.Steps
	m.IsActive = p.IsActive
}

// ApprovalProcessModelFromDomain creates a new persistence model from a domain ApprovalProcess.
func ApprovalProcessModelFromDomain(p *approval.ApprovalProcess) *ApprovalProcessModel {
	m := &ApprovalProcessModel{}
	m.FromDomain(p)
	return m
}

// ApprovalRequestModel is the persistence model for ApprovalRequest.
// Steps, responses and delegations travel with the request as JSONB so
// the snapshot survives process edits.
type ApprovalRequestModel struct {
	TenantAggregateModel
	ProcessID        uuid.UUID               `gorm:"type:uuid;not null;index"`
	ApprovalType     approval.ApprovalType   `gorm:"type:varchar(20);not null"`
	EntityKind       string                  `gorm:"type:varchar(50);not null;index:idx_request_entity,priority:1"`
	EntityID         uuid.UUID               `gorm:"type:uuid;not null;index:idx_request_entity,priority:2"`
	RequesterID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	Status           approval.ApprovalStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	CurrentStepOrder int                     `gorm:"not null;default:1"`
	Steps            approval.ApprovalSteps  `gorm:"type:jsonb;default:'[]'"`
	Responses        approval.ApprovalResponses `gorm:"type:jsonb;default:'[]'"`
	Delegations      approval.Delegations    `gorm:"type:jsonb;default:'[]'"`
	SubmittedAt      time.Time               `gorm:"not null"`
	CompletedAt      *time.Time
}

// TableName returns the table name for GORM
func (ApprovalRequestModel) TableName() string {
	return "approval_requests"
}

// ToDomain converts the persistence model to a domain ApprovalRequest.
func (m *ApprovalRequestModel) ToDomain() *approval.ApprovalRequest {
	r := &approval.ApprovalRequest{
		ProcessID:        m.ProcessID,
		ApprovalType:     m.ApprovalType,
		Entity:           approval.EntityRef{Kind: m.EntityKind, ID: m.EntityID},
		RequesterID:      m.RequesterID,
		Status:           m.Status,
		CurrentStepOrder: m.CurrentStepOrder,
		Steps:            m.Steps,
		Responses:        m.Responses,
		Delegations:      m.Delegations,
		SubmittedAt:      m.SubmittedAt,
		CompletedAt:      m.CompletedAt,
	}
	m.PopulateTenantAggregateRoot(&r.TenantAggregateRoot)
	return r
}

// FromDomain populates the persistence model from a domain ApprovalRequest.
func (m *ApprovalRequestModel) FromDomain(r *approval.ApprovalRequest) {
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	m.ProcessID = r.ProcessID
	m.ApprovalType = r.ApprovalType
	m.EntityKind = r.Entity.Kind
	m.EntityID = r.Entity.ID
	m.RequesterID = r.RequesterID
	m.Status = r.Status
	m.CurrentStepOrder = r.CurrentStepOrder
	m.Steps = r.Steps
	m.Responses = r.Responses
	m.Delegations = r.Delegations
	m.SubmittedAt = r.SubmittedAt
	m.CompletedAt = r.CompletedAt
}

// ApprovalRequestModelFromDomain creates a new persistence model from a domain ApprovalRequest.
func ApprovalRequestModelFromDomain(r *approval.ApprovalRequest) *ApprovalRequestModel {
	m := &ApprovalRequestModel{}
	m.FromDomain(r)
	return m
}
