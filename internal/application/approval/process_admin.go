package approval

import (
	"context"
	"fmt"

	"github.com/crm/backend/internal/domain/approval"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateProcessCommand carries a new process definition
type CreateProcessCommand struct {
	TenantID     uuid.UUID
	ActorID      uuid.UUID
	Name         string
	Description  string
	EntityKind   string
	ApprovalType approval.ApprovalType
	Steps        approval.ApprovalSteps
}

// CreateProcess defines a new approval process for the tenant
func (s *ApprovalService) CreateProcess(ctx context.Context, cmd CreateProcessCommand) (*approval.ApprovalProcess, error) {
	process, err := approval.NewApprovalProcess(cmd.TenantID, cmd.Name, cmd.Description,
		cmd.EntityKind, cmd.ApprovalType, cmd.Steps, cmd.ActorID)
	if err != nil {
		return nil, err
	}

	if err := s.processRepo.Save(ctx, process); err != nil {
		return nil, fmt.Errorf("failed to save approval process: %w", err)
	}

	s.logger.Info("approval process created",
		zap.String("process_id", process.ID.String()),
		zap.String("name", process.Name),
		zap.String("entity_kind", process.EntityKind))

	return process, nil
}

// ReplaceProcessSteps redefines a process's steps. Requests already in
// flight keep the snapshot they were submitted with.
func (s *ApprovalService) ReplaceProcessSteps(ctx context.Context, tenantID, processID uuid.UUID, steps approval.ApprovalSteps) (*approval.ApprovalProcess, error) {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return nil, err
	}

	if err := process.ReplaceSteps(steps); err != nil {
		return nil, err
	}
	if err := s.processRepo.Save(ctx, process); err != nil {
		return nil, fmt.Errorf("failed to save approval process: %w", err)
	}

	return process, nil
}

// SetProcessActive toggles whether a process accepts new submissions
func (s *ApprovalService) SetProcessActive(ctx context.Context, tenantID, processID uuid.UUID, active bool) (*approval.ApprovalProcess, error) {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return nil, err
	}

	if active {
		process.Activate()
	} else {
		process.Deactivate()
	}
	if err := s.processRepo.Save(ctx, process); err != nil {
		return nil, fmt.Errorf("failed to save approval process: %w", err)
	}

	return process, nil
}
