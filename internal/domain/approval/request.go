package approval

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ApprovalStatus represents the lifecycle of an approval request
type ApprovalStatus string

const (
	ApprovalStatusPending    ApprovalStatus = "PENDING"
	ApprovalStatusInProgress ApprovalStatus = "IN_PROGRESS"
	ApprovalStatusApproved   ApprovalStatus = "APPROVED"
	ApprovalStatusRejected   ApprovalStatus = "REJECTED"
	ApprovalStatusCancelled  ApprovalStatus = "CANCELLED"
)

// IsValid checks if the status is a valid ApprovalStatus
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusInProgress, ApprovalStatusApproved,
		ApprovalStatusRejected, ApprovalStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of ApprovalStatus
func (s ApprovalStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the request can no longer change
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected || s == ApprovalStatusCancelled
}

// ApprovalDecision is the verdict recorded on a single step
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "APPROVED"
	DecisionRejected ApprovalDecision = "REJECTED"
	DecisionSkipped  ApprovalDecision = "SKIPPED"
)

// IsValid checks if the decision is valid for a responder.
// Skips are recorded by the engine, not by responders.
func (d ApprovalDecision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// EntityRef identifies the document under approval
type EntityRef struct {
	Kind string    `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// ApprovalResponse is one recorded verdict. The response log is
// append-only; nothing is ever rewritten or removed from it.
type ApprovalResponse struct {
	ID          uuid.UUID        `json:"id"`
	StepOrder   int              `json:"step_order"`
	ResponderID uuid.UUID        `json:"responder_id"`
	Decision    ApprovalDecision `json:"decision"`
	Comment     string           `json:"comment,omitempty"`
	OnBehalfOf  *uuid.UUID       `json:"on_behalf_of,omitempty"`
	RespondedAt time.Time        `json:"responded_at"`
}

// ApprovalResponses is stored as JSONB on the request
type ApprovalResponses []ApprovalResponse

// Value implements driver.Valuer for JSONB storage
func (r ApprovalResponses) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB storage
func (r *ApprovalResponses) Scan(value interface{}) error {
	if value == nil {
		*r = ApprovalResponses{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan ApprovalResponses: unsupported type")
	}

	if len(bytes) == 0 {
		*r = ApprovalResponses{}
		return nil
	}

	return json.Unmarshal(bytes, r)
}

// Delegation grants one user's approval authority on one step to
// another user. Grants never cross step boundaries.
type Delegation struct {
	StepOrder  int       `json:"step_order"`
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	GrantedAt  time.Time `json:"granted_at"`
}

// Delegations is stored as JSONB on the request
type Delegations []Delegation

// Value implements driver.Valuer for JSONB storage
func (d Delegations) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB storage
func (d *Delegations) Scan(value interface{}) error {
	if value == nil {
		*d = Delegations{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Delegations: unsupported type")
	}

	if len(bytes) == 0 {
		*d = Delegations{}
		return nil
	}

	return json.Unmarshal(bytes, d)
}

// grantFor returns the delegator behind a grant to userID on stepOrder, or nil
func (d Delegations) grantFor(stepOrder int, userID uuid.UUID) *Delegation {
	for i := range d {
		if d[i].StepOrder == stepOrder && d[i].ToUserID == userID {
			return &d[i]
		}
	}
	return nil
}

// ApprovalRequest is a single run of an approval process against one
// document. It carries a snapshot of the process steps taken at
// submission time.
type ApprovalRequest struct {
	shared.TenantAggregateRoot
	ProcessID        uuid.UUID
	ApprovalType     ApprovalType
	Entity           EntityRef
	RequesterID      uuid.UUID
	Status           ApprovalStatus
	CurrentStepOrder int
	Steps            ApprovalSteps
	Responses        ApprovalResponses
	Delegations      Delegations
	SubmittedAt      time.Time
	CompletedAt      *time.Time
}

// NewApprovalRequest submits a document against a process. The process
// must be active; its steps are snapshotted onto the request.
func NewApprovalRequest(
	tenantID uuid.UUID,
	process *ApprovalProcess,
	entity EntityRef,
	requesterID uuid.UUID,
) (*ApprovalRequest, error) {
	if process == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Approval process is required")
	}
	if !process.IsActive {
		return nil, shared.NewDomainError(shared.CodePreconditionFailed,
			fmt.Sprintf("Approval process %s is not active", process.Name))
	}
	if entity.Kind == "" || entity.ID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Entity reference is required")
	}
	if entity.Kind != process.EntityKind {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Process %s approves %s entities, not %s", process.Name, process.EntityKind, entity.Kind))
	}
	if requesterID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Requester ID is required")
	}

	steps := make(ApprovalSteps, len(process.Steps))
	copy(steps, process.Steps)

	r := &ApprovalRequest{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, requesterID),
		ProcessID:           process.ID,
		ApprovalType:        process.ApprovalType,
		Entity:              entity,
		RequesterID:         requesterID,
		Status:              ApprovalStatusPending,
		CurrentStepOrder:    1,
		Steps:               steps,
		Responses:           ApprovalResponses{},
		Delegations:         Delegations{},
		SubmittedAt:         time.Now(),
	}

	r.AddDomainEvent(NewApprovalRequestSubmittedEvent(r))

	return r, nil
}

// Activate moves a pending request to InProgress. Called once the
// caller has established that an approver can actually act on it,
// either because a step resolved to a non-empty set or because a
// delegation grant landed.
func (r *ApprovalRequest) Activate() {
	if r.Status == ApprovalStatusPending {
		r.Status = ApprovalStatusInProgress
	}
}

// Respond records a verdict on a step. The caller resolves the step's
// approver set; delegation grants held on the request widen it. The
// response log only grows, and a responder gets exactly one verdict
// per step.
func (r *ApprovalRequest) Respond(
	stepOrder int,
	responderID uuid.UUID,
	resolvedApprovers []uuid.UUID,
	decision ApprovalDecision,
	comment string,
) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Approval request is %s and accepts no further responses", r.Status))
	}
	if !decision.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Invalid decision %q", decision))
	}

	step := r.Steps.ByOrder(stepOrder)
	if step == nil {
		return shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Approval step %d does not exist", stepOrder))
	}
	if r.ApprovalType == ApprovalTypeSequential && stepOrder != r.CurrentStepOrder {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Step %d is not active, the request is waiting on step %d", stepOrder, r.CurrentStepOrder))
	}
	if r.stepResolved(*step) {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Step %d has already been decided", stepOrder))
	}

	var onBehalfOf *uuid.UUID
	if !containsUser(resolvedApprovers, responderID) {
		grant := r.Delegations.grantFor(stepOrder, responderID)
		if grant == nil {
			return shared.NewDomainError(shared.CodeUnauthorizedResponder,
				fmt.Sprintf("User is not an approver for step %d", stepOrder))
		}
		onBehalfOf = &grant.FromUserID
	}

	for _, resp := range r.Responses {
		if resp.StepOrder == stepOrder && resp.ResponderID == responderID {
			return shared.NewDomainError(shared.CodeInvalidTransition,
				fmt.Sprintf("User has already responded to step %d", stepOrder))
		}
	}

	now := time.Now()
	response := ApprovalResponse{
		ID:          uuid.New(),
		StepOrder:   stepOrder,
		ResponderID: responderID,
		Decision:    decision,
		Comment:     comment,
		OnBehalfOf:  onBehalfOf,
		RespondedAt: now,
	}
	r.Responses = append(r.Responses, response)

	r.Activate()

	r.AddDomainEvent(NewApprovalResponseRecordedEvent(r, response))

	if decision == DecisionRejected && step.IsRequired {
		r.complete(ApprovalStatusRejected, now)
	} else {
		r.evaluate(now)
	}

	r.UpdatedAt = now
	r.IncrementVersion()

	return nil
}

// SkipStep records an engine-driven pass on a skippable step, used when
// no approver can be resolved for it.
func (r *ApprovalRequest) SkipStep(stepOrder int) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Approval request is %s and accepts no further responses", r.Status))
	}
	step := r.Steps.ByOrder(stepOrder)
	if step == nil {
		return shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Approval step %d does not exist", stepOrder))
	}
	if !step.CanSkip {
		return shared.NewDomainError(shared.CodePreconditionFailed,
			fmt.Sprintf("Step %d cannot be skipped", stepOrder))
	}
	if r.stepResolved(*step) {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Step %d has already been decided", stepOrder))
	}

	now := time.Now()
	r.Responses = append(r.Responses, ApprovalResponse{
		ID:          uuid.New(),
		StepOrder:   stepOrder,
		ResponderID: uuid.Nil,
		Decision:    DecisionSkipped,
		Comment:     "No approver could be resolved for this step",
		RespondedAt: now,
	})

	r.Activate()

	r.evaluate(now)

	r.UpdatedAt = now
	r.IncrementVersion()

	return nil
}

// Delegate grants fromUserID's approval authority on a step to
// toUserID. The grantor must be one of the step's resolved approvers
// and the step must allow delegation.
func (r *ApprovalRequest) Delegate(
	stepOrder int,
	fromUserID, toUserID uuid.UUID,
	resolvedApprovers []uuid.UUID,
) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Approval request is %s and cannot be delegated", r.Status))
	}
	step := r.Steps.ByOrder(stepOrder)
	if step == nil {
		return shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Approval step %d does not exist", stepOrder))
	}
	if !step.CanDelegate {
		return shared.NewDomainError(shared.CodePreconditionFailed,
			fmt.Sprintf("Step %d does not allow delegation", stepOrder))
	}
	if toUserID == uuid.Nil || fromUserID == toUserID {
		return shared.NewDomainError(shared.CodeInvalidInput, "Invalid delegation target")
	}
	if !containsUser(resolvedApprovers, fromUserID) {
		return shared.NewDomainError(shared.CodeUnauthorizedResponder,
			fmt.Sprintf("User is not an approver for step %d and cannot delegate it", stepOrder))
	}
	if r.stepResolved(*step) {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Step %d has already been decided", stepOrder))
	}

	r.Delegations = append(r.Delegations, Delegation{
		StepOrder:  stepOrder,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		GrantedAt:  time.Now(),
	})
	r.Activate()
	r.IncrementVersion()

	return nil
}

// Cancel withdraws an in-flight request. Only the requester may cancel.
func (r *ApprovalRequest) Cancel(actorID uuid.UUID) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Approval request is already %s", r.Status))
	}
	if actorID != r.RequesterID {
		return shared.NewDomainError(shared.CodeUnauthorizedResponder,
			"Only the requester can cancel an approval request")
	}

	r.complete(ApprovalStatusCancelled, time.Now())
	r.UpdatedAt = time.Now()
	r.IncrementVersion()

	return nil
}

// stepResolved reports whether the step already carries a gating verdict:
// an approval, a skip, or any rejection on a required step.
func (r *ApprovalRequest) stepResolved(step ApprovalStep) bool {
	for _, resp := range r.Responses {
		if resp.StepOrder != step.StepOrder {
			continue
		}
		switch resp.Decision {
		case DecisionApproved, DecisionSkipped:
			return true
		case DecisionRejected:
			if step.IsRequired {
				return true
			}
		}
	}
	return false
}

// stepPassed reports whether the step no longer gates completion:
// approved, skipped, or optional with any verdict at all.
func (r *ApprovalRequest) stepPassed(step ApprovalStep) bool {
	for _, resp := range r.Responses {
		if resp.StepOrder != step.StepOrder {
			continue
		}
		if resp.Decision == DecisionApproved || resp.Decision == DecisionSkipped {
			return true
		}
		if !step.IsRequired {
			return true
		}
	}
	return false
}

// evaluate advances sequential requests and completes either kind once
// every required step has passed.
func (r *ApprovalRequest) evaluate(now time.Time) {
	switch r.ApprovalType {
	case ApprovalTypeSequential:
		for r.CurrentStepOrder <= r.Steps.MaxOrder() {
			step := r.Steps.ByOrder(r.CurrentStepOrder)
			if step == nil || !r.stepPassed(*step) {
				return
			}
			r.CurrentStepOrder++
		}
		r.complete(ApprovalStatusApproved, now)
	case ApprovalTypeParallel:
		for _, step := range r.Steps {
			if step.IsRequired && !r.stepPassed(step) {
				return
			}
		}
		r.complete(ApprovalStatusApproved, now)
	}
}

func (r *ApprovalRequest) complete(status ApprovalStatus, now time.Time) {
	if r.Status.IsTerminal() {
		return
	}
	r.Status = status
	r.CompletedAt = &now
	r.AddDomainEvent(NewApprovalRequestCompletedEvent(r))
}

func containsUser(users []uuid.UUID, id uuid.UUID) bool {
	for _, u := range users {
		if u == id {
			return true
		}
	}
	return false
}
