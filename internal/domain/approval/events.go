package approval

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type names for the approval request aggregate
const (
	EventTypeApprovalRequestSubmitted = "ApprovalRequestSubmitted"
	EventTypeApprovalResponseRecorded = "ApprovalResponseRecorded"
	EventTypeApprovalRequestCompleted = "ApprovalRequestCompleted"
)

// ApprovalRequestSubmittedEvent is raised when a document enters approval
type ApprovalRequestSubmittedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID `json:"request_id"`
	ProcessID   uuid.UUID `json:"process_id"`
	EntityKind  string    `json:"entity_kind"`
	EntityID    uuid.UUID `json:"entity_id"`
	RequesterID uuid.UUID `json:"requester_id"`
}

// EventType returns the event type name
func (e *ApprovalRequestSubmittedEvent) EventType() string {
	return EventTypeApprovalRequestSubmitted
}

// NewApprovalRequestSubmittedEvent creates a new ApprovalRequestSubmittedEvent
func NewApprovalRequestSubmittedEvent(r *ApprovalRequest) *ApprovalRequestSubmittedEvent {
	return &ApprovalRequestSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeApprovalRequestSubmitted, "ApprovalRequest", r.ID, r.TenantID),
		RequestID:       r.ID,
		ProcessID:       r.ProcessID,
		EntityKind:      r.Entity.Kind,
		EntityID:        r.Entity.ID,
		RequesterID:     r.RequesterID,
	}
}

// ApprovalResponseRecordedEvent is raised for every recorded verdict
type ApprovalResponseRecordedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID        `json:"request_id"`
	StepOrder   int              `json:"step_order"`
	ResponderID uuid.UUID        `json:"responder_id"`
	Decision    ApprovalDecision `json:"decision"`
}

// EventType returns the event type name
func (e *ApprovalResponseRecordedEvent) EventType() string {
	return EventTypeApprovalResponseRecorded
}

// NewApprovalResponseRecordedEvent creates a new ApprovalResponseRecordedEvent
func NewApprovalResponseRecordedEvent(r *ApprovalRequest, resp ApprovalResponse) *ApprovalResponseRecordedEvent {
	return &ApprovalResponseRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeApprovalResponseRecorded, "ApprovalRequest", r.ID, r.TenantID),
		RequestID:       r.ID,
		StepOrder:       resp.StepOrder,
		ResponderID:     resp.ResponderID,
		Decision:        resp.Decision,
	}
}

// ApprovalRequestCompletedEvent is raised when a request reaches a
// terminal status
type ApprovalRequestCompletedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID      `json:"request_id"`
	EntityKind  string         `json:"entity_kind"`
	EntityID    uuid.UUID      `json:"entity_id"`
	FinalStatus ApprovalStatus `json:"final_status"`
	CompletedAt time.Time      `json:"completed_at"`
}

// EventType returns the event type name
func (e *ApprovalRequestCompletedEvent) EventType() string {
	return EventTypeApprovalRequestCompleted
}

// NewApprovalRequestCompletedEvent creates a new ApprovalRequestCompletedEvent
func NewApprovalRequestCompletedEvent(r *ApprovalRequest) *ApprovalRequestCompletedEvent {
	completedAt := time.Now()
	if r.CompletedAt != nil {
		completedAt = *r.CompletedAt
	}
	return &ApprovalRequestCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeApprovalRequestCompleted, "ApprovalRequest", r.ID, r.TenantID),
		RequestID:       r.ID,
		EntityKind:      r.Entity.Kind,
		EntityID:        r.Entity.ID,
		FinalStatus:     r.Status,
		CompletedAt:     completedAt,
	}
}
