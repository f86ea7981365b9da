package approval

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ApprovalType determines how a request walks its steps
type ApprovalType string

const (
	ApprovalTypeSequential ApprovalType = "SEQUENTIAL"
	ApprovalTypeParallel   ApprovalType = "PARALLEL"
)

// IsValid checks if the approval type is valid
func (t ApprovalType) IsValid() bool {
	return t == ApprovalTypeSequential || t == ApprovalTypeParallel
}

// ApproverType determines how a step's approvers are resolved
type ApproverType string

const (
	ApproverTypeRole    ApproverType = "ROLE"
	ApproverTypeUser    ApproverType = "USER"
	ApproverTypeTeam    ApproverType = "TEAM"
	ApproverTypeManager ApproverType = "MANAGER"
)

// IsValid checks if the approver type is valid
func (t ApproverType) IsValid() bool {
	switch t {
	case ApproverTypeRole, ApproverTypeUser, ApproverTypeTeam, ApproverTypeManager:
		return true
	}
	return false
}

// ApprovalStep is one stage of an approval process. Steps are value
// objects owned by the process; a request snapshots them at submission
// so later process edits never touch requests already in flight.
type ApprovalStep struct {
	StepOrder      int          `json:"step_order"`
	Name           string       `json:"name"`
	ApproverType   ApproverType `json:"approver_type"`
	ApproverRole   string       `json:"approver_role,omitempty"`
	ApproverUserID *uuid.UUID   `json:"approver_user_id,omitempty"`
	ApproverTeamID *uuid.UUID   `json:"approver_team_id,omitempty"`
	IsRequired     bool         `json:"is_required"`
	CanDelegate    bool         `json:"can_delegate"`
	CanSkip        bool         `json:"can_skip"`
}

// Validate checks the step's approver binding matches its type
func (s ApprovalStep) Validate() error {
	if s.Name == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Approval step name cannot be empty")
	}
	if !s.ApproverType.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Invalid approver type %q on step %d", s.ApproverType, s.StepOrder))
	}
	switch s.ApproverType {
	case ApproverTypeRole:
		if s.ApproverRole == "" {
			return shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Step %d requires an approver role", s.StepOrder))
		}
	case ApproverTypeUser:
		if s.ApproverUserID == nil || *s.ApproverUserID == uuid.Nil {
			return shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Step %d requires an approver user", s.StepOrder))
		}
	case ApproverTypeTeam:
		if s.ApproverTeamID == nil || *s.ApproverTeamID == uuid.Nil {
			return shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Step %d requires an approver team", s.StepOrder))
		}
	case ApproverTypeManager:
		// Resolved against the requester's reporting line at response time.
	}
	return nil
}

// ApprovalSteps is a slice of ApprovalStep stored as JSONB
type ApprovalSteps []ApprovalStep

// Value implements driver.Valuer for JSONB storage
func (s ApprovalSteps) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB storage
func (s *ApprovalSteps) Scan(value interface{}) error {
	if value == nil {
		*s = ApprovalSteps{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan ApprovalSteps: unsupported type")
	}

	if len(bytes) == 0 {
		*s = ApprovalSteps{}
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// ByOrder returns the step with the given order, or nil
func (s ApprovalSteps) ByOrder(order int) *ApprovalStep {
	for i := range s {
		if s[i].StepOrder == order {
			return &s[i]
		}
	}
	return nil
}

// MaxOrder returns the highest step order, or 0 for an empty set
func (s ApprovalSteps) MaxOrder() int {
	max := 0
	for _, step := range s {
		if step.StepOrder > max {
			max = step.StepOrder
		}
	}
	return max
}

// ApprovalProcess is a reusable approval definition: an ordered set of
// steps applied to documents of one entity kind within a tenant.
type ApprovalProcess struct {
	shared.TenantAggregateRoot
	Name         string
	Description  string
	EntityKind   string
	ApprovalType ApprovalType
	Steps        ApprovalSteps
	IsActive     bool
}

// NewApprovalProcess creates a validated approval process
func NewApprovalProcess(
	tenantID uuid.UUID,
	name, description, entityKind string,
	approvalType ApprovalType,
	steps ApprovalSteps,
	createdBy uuid.UUID,
) (*ApprovalProcess, error) {
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Process name cannot be empty")
	}
	if entityKind == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Entity kind cannot be empty")
	}
	if !approvalType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Invalid approval type %q", approvalType))
	}
	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	p := &ApprovalProcess{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		Name:                name,
		Description:         description,
		EntityKind:          entityKind,
		ApprovalType:        approvalType,
		Steps:               steps,
		IsActive:            true,
	}

	return p, nil
}

// validateSteps requires at least one step with contiguous orders from 1
func validateSteps(steps ApprovalSteps) error {
	if len(steps) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Process must have at least one step")
	}
	seen := make(map[int]bool, len(steps))
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.StepOrder] {
			return shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Duplicate step order %d", s.StepOrder))
		}
		seen[s.StepOrder] = true
	}
	for i := 1; i <= len(steps); i++ {
		if !seen[i] {
			return shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Step orders must be contiguous from 1, missing %d", i))
		}
	}
	return nil
}

// ReplaceSteps swaps the step definitions. In-flight requests keep
// their snapshot and are unaffected.
func (p *ApprovalProcess) ReplaceSteps(steps ApprovalSteps) error {
	if err := validateSteps(steps); err != nil {
		return err
	}
	p.Steps = steps
	p.IncrementVersion()
	return nil
}

// Activate enables the process for new submissions
func (p *ApprovalProcess) Activate() {
	p.IsActive = true
	p.IncrementVersion()
}

// Deactivate stops new submissions; in-flight requests continue
func (p *ApprovalProcess) Deactivate() {
	p.IsActive = false
	p.IncrementVersion()
}
