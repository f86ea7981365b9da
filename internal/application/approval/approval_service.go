package approval

import (
	"context"
	"fmt"

	appbilling "github.com/crm/backend/internal/application/billing"
	"github.com/crm/backend/internal/domain/approval"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApproverResolver resolves a step's approver set against the tenant's
// directory. Role steps expand to every user holding the role, team
// steps to the team's members, user steps to the named user, and
// manager steps to the requester's manager.
type ApproverResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, step approval.ApprovalStep, requesterID uuid.UUID) ([]uuid.UUID, error)
}

// RespondCommand carries one approver's verdict
type RespondCommand struct {
	TenantID    uuid.UUID
	RequestID   uuid.UUID
	StepOrder   int
	ResponderID uuid.UUID
	Decision    approval.ApprovalDecision
	Comment     string
}

// ApprovalService runs approval processes against documents
type ApprovalService struct {
	processRepo approval.ProcessRepository
	requestRepo approval.RequestRepository
	resolver    ApproverResolver
	activity    appbilling.ActivityLogger
	eventBus    shared.EventPublisher
	logger      *zap.Logger
}

// NewApprovalService creates a new approval service
func NewApprovalService(
	processRepo approval.ProcessRepository,
	requestRepo approval.RequestRepository,
	resolver ApproverResolver,
	activity appbilling.ActivityLogger,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *ApprovalService {
	return &ApprovalService{
		processRepo: processRepo,
		requestRepo: requestRepo,
		resolver:    resolver,
		activity:    activity,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// Submit raises an approval request for a document against a process.
// Steps that allow skipping and resolve to no approvers are passed
// through immediately, so a request can complete at submission. A
// request whose first actionable step resolves to a non-empty approver
// set starts InProgress; it stays Pending only when nobody can act on
// it yet.
func (s *ApprovalService) Submit(
	ctx context.Context,
	tenantID, processID uuid.UUID,
	entity approval.EntityRef,
	requesterID uuid.UUID,
) (*approval.ApprovalRequest, error) {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return nil, err
	}

	request, err := approval.NewApprovalRequest(tenantID, process, entity, requesterID)
	if err != nil {
		return nil, err
	}

	if err := s.skipUnresolvableSteps(ctx, request); err != nil {
		return nil, err
	}
	if err := s.activateIfStaffed(ctx, request); err != nil {
		return nil, err
	}

	if err := s.requestRepo.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to save approval request: %w", err)
	}

	s.publishEvents(ctx, request)
	s.logActivity(ctx, appbilling.Activity{
		TenantID:    tenantID,
		ActorID:     requesterID,
		EntityKind:  entity.Kind,
		EntityID:    entity.ID,
		Kind:        appbilling.ActivityKindNote,
		Description: fmt.Sprintf("Submitted for approval via process %s", process.Name),
	})

	s.logger.Info("approval request submitted",
		zap.String("request_id", request.ID.String()),
		zap.String("process_id", processID.String()),
		zap.String("entity_kind", entity.Kind))

	return request, nil
}

// Respond records an approver's verdict. The responder must be in the
// step's resolved approver set or hold a delegation grant for it.
func (s *ApprovalService) Respond(ctx context.Context, cmd RespondCommand) (*approval.ApprovalRequest, error) {
	request, err := s.requestRepo.FindByIDForTenant(ctx, cmd.TenantID, cmd.RequestID)
	if err != nil {
		return nil, err
	}

	step := request.Steps.ByOrder(cmd.StepOrder)
	if step == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Approval step %d does not exist", cmd.StepOrder))
	}

	approvers, err := s.resolver.Resolve(ctx, cmd.TenantID, *step, request.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve approvers: %w", err)
	}

	if err := request.Respond(cmd.StepOrder, cmd.ResponderID, approvers, cmd.Decision, cmd.Comment); err != nil {
		return nil, err
	}

	// A verdict may expose the next step; skip through any the
	// directory cannot staff.
	if err := s.skipUnresolvableSteps(ctx, request); err != nil {
		return nil, err
	}

	if err := s.requestRepo.SaveWithLock(ctx, request); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, request)
	s.logActivity(ctx, appbilling.Activity{
		TenantID:    cmd.TenantID,
		ActorID:     cmd.ResponderID,
		EntityKind:  request.Entity.Kind,
		EntityID:    request.Entity.ID,
		Kind:        appbilling.ActivityKindStatusChange,
		Description: fmt.Sprintf("Approval step %d (%s): %s", cmd.StepOrder, step.Name, cmd.Decision),
	})

	s.logger.Info("approval response recorded",
		zap.String("request_id", request.ID.String()),
		zap.Int("step", cmd.StepOrder),
		zap.String("decision", string(cmd.Decision)),
		zap.String("status", request.Status.String()))

	return request, nil
}

// Delegate grants a step's approval authority to another user for this
// request only.
func (s *ApprovalService) Delegate(
	ctx context.Context,
	tenantID, requestID uuid.UUID,
	stepOrder int,
	fromUserID, toUserID uuid.UUID,
) (*approval.ApprovalRequest, error) {
	request, err := s.requestRepo.FindByIDForTenant(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}

	step := request.Steps.ByOrder(stepOrder)
	if step == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Approval step %d does not exist", stepOrder))
	}

	approvers, err := s.resolver.Resolve(ctx, tenantID, *step, request.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve approvers: %w", err)
	}

	if err := request.Delegate(stepOrder, fromUserID, toUserID, approvers); err != nil {
		return nil, err
	}

	if err := s.requestRepo.SaveWithLock(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info("approval step delegated",
		zap.String("request_id", request.ID.String()),
		zap.Int("step", stepOrder),
		zap.String("from", fromUserID.String()),
		zap.String("to", toUserID.String()))

	return request, nil
}

// Cancel withdraws an in-flight request on behalf of its requester
func (s *ApprovalService) Cancel(ctx context.Context, tenantID, requestID, actorID uuid.UUID) (*approval.ApprovalRequest, error) {
	request, err := s.requestRepo.FindByIDForTenant(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}

	if err := request.Cancel(actorID); err != nil {
		return nil, err
	}

	if err := s.requestRepo.SaveWithLock(ctx, request); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, request)
	return request, nil
}

// GetRequest fetches an approval request by ID within the tenant
func (s *ApprovalService) GetRequest(ctx context.Context, tenantID, requestID uuid.UUID) (*approval.ApprovalRequest, error) {
	return s.requestRepo.FindByIDForTenant(ctx, tenantID, requestID)
}

// PendingFor lists steps currently awaiting the given user across the
// tenant's in-flight requests.
func (s *ApprovalService) PendingFor(ctx context.Context, tenantID, userID uuid.UUID) ([]approval.ApprovalRequest, error) {
	inProgress := approval.ApprovalStatusInProgress
	requests, err := s.requestRepo.FindAllForTenant(ctx, tenantID, approval.RequestFilter{Status: &inProgress})
	if err != nil {
		return nil, err
	}
	pending := approval.ApprovalStatusPending
	fresh, err := s.requestRepo.FindAllForTenant(ctx, tenantID, approval.RequestFilter{Status: &pending})
	if err != nil {
		return nil, err
	}
	requests = append(requests, fresh...)

	var mine []approval.ApprovalRequest
	for i := range requests {
		r := &requests[i]
		for _, step := range r.Steps {
			if r.ApprovalType == approval.ApprovalTypeSequential && step.StepOrder != r.CurrentStepOrder {
				continue
			}
			approvers, err := s.resolver.Resolve(ctx, tenantID, step, r.RequesterID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve approvers: %w", err)
			}
			if containsUser(approvers, userID) {
				mine = append(mine, *r)
				break
			}
		}
	}
	return mine, nil
}

// skipUnresolvableSteps auto-passes skippable steps with an empty
// approver set until one resolves or the request completes. A step that
// cannot be skipped and cannot be staffed is left pending for an
// administrator to fix via delegation or a process edit.
func (s *ApprovalService) skipUnresolvableSteps(ctx context.Context, request *approval.ApprovalRequest) error {
	if request.ApprovalType != approval.ApprovalTypeSequential {
		return nil
	}
	for !request.Status.IsTerminal() {
		step := request.Steps.ByOrder(request.CurrentStepOrder)
		if step == nil || !step.CanSkip {
			return nil
		}
		approvers, err := s.resolver.Resolve(ctx, request.TenantID, *step, request.RequesterID)
		if err != nil {
			return fmt.Errorf("failed to resolve approvers: %w", err)
		}
		if len(approvers) > 0 {
			return nil
		}
		if err := request.SkipStep(step.StepOrder); err != nil {
			return err
		}
		s.logger.Info("approval step skipped, no approver resolved",
			zap.String("request_id", request.ID.String()),
			zap.Int("step", step.StepOrder))
	}
	return nil
}

// activateIfStaffed flips a pending request to InProgress once an
// actionable step resolves to a non-empty approver set. Sequential
// requests only look at the current step; parallel requests at any
// step still awaiting a verdict.
func (s *ApprovalService) activateIfStaffed(ctx context.Context, request *approval.ApprovalRequest) error {
	if request.Status != approval.ApprovalStatusPending {
		return nil
	}
	for _, step := range request.Steps {
		if request.ApprovalType == approval.ApprovalTypeSequential && step.StepOrder != request.CurrentStepOrder {
			continue
		}
		approvers, err := s.resolver.Resolve(ctx, request.TenantID, step, request.RequesterID)
		if err != nil {
			return fmt.Errorf("failed to resolve approvers: %w", err)
		}
		if len(approvers) > 0 {
			request.Activate()
			return nil
		}
	}
	return nil
}

func (s *ApprovalService) publishEvents(ctx context.Context, agg shared.AggregateRoot) {
	for _, event := range agg.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	agg.ClearDomainEvents()
}

func (s *ApprovalService) logActivity(ctx context.Context, activity appbilling.Activity) {
	if err := s.activity.LogActivity(ctx, activity); err != nil {
		s.logger.Error("failed to log activity",
			zap.String("entity_kind", activity.EntityKind),
			zap.Error(err))
	}
}

func containsUser(users []uuid.UUID, id uuid.UUID) bool {
	for _, u := range users {
		if u == id {
			return true
		}
	}
	return false
}
