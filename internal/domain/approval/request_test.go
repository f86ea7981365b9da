package approval

import (
	"testing"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcess(t *testing.T, approvalType ApprovalType, steps ApprovalSteps) *ApprovalProcess {
	t.Helper()
	p, err := NewApprovalProcess(uuid.New(), "Quote approval", "", "Quote",
		approvalType, steps, uuid.New())
	require.NoError(t, err)
	return p
}

func newTestRequest(t *testing.T, p *ApprovalProcess) *ApprovalRequest {
	t.Helper()
	r, err := NewApprovalRequest(p.TenantID, p,
		EntityRef{Kind: "Quote", ID: uuid.New()}, uuid.New())
	require.NoError(t, err)
	return r
}

func TestNewApprovalRequest(t *testing.T) {
	t.Run("snapshots process steps", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{
			roleStep(1, "Manager", "sales_manager", true),
		})
		r := newTestRequest(t, p)

		assert.Equal(t, ApprovalStatusPending, r.Status)
		assert.Equal(t, 1, r.CurrentStepOrder)
		assert.Len(t, r.Steps, 1)

		// In-flight requests keep their snapshot across process edits
		require.NoError(t, p.ReplaceSteps(ApprovalSteps{
			roleStep(1, "Manager", "sales_manager", true),
			roleStep(2, "Finance", "finance", true),
		}))
		assert.Len(t, r.Steps, 1)

		events := r.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeApprovalRequestSubmitted, events[0].EventType())
	})

	t.Run("inactive process rejected", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{
			roleStep(1, "Manager", "sales_manager", true),
		})
		p.Deactivate()

		_, err := NewApprovalRequest(p.TenantID, p,
			EntityRef{Kind: "Quote", ID: uuid.New()}, uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodePreconditionFailed))
	})

	t.Run("entity kind mismatch rejected", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{
			roleStep(1, "Manager", "sales_manager", true),
		})

		_, err := NewApprovalRequest(p.TenantID, p,
			EntityRef{Kind: "Invoice", ID: uuid.New()}, uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidInput))
	})
}

func TestSequentialApproval(t *testing.T) {
	steps := ApprovalSteps{
		roleStep(1, "Manager", "sales_manager", true),
		roleStep(2, "Finance", "finance", true),
		roleStep(3, "Director", "director", true),
	}

	t.Run("walks steps in order to approved", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, steps)
		r := newTestRequest(t, p)
		approvers := []uuid.UUID{uuid.New()}

		require.NoError(t, r.Respond(1, approvers[0], approvers, DecisionApproved, "ok"))
		assert.Equal(t, ApprovalStatusInProgress, r.Status)
		assert.Equal(t, 2, r.CurrentStepOrder)

		require.NoError(t, r.Respond(2, approvers[0], approvers, DecisionApproved, ""))
		assert.Equal(t, 3, r.CurrentStepOrder)

		require.NoError(t, r.Respond(3, approvers[0], approvers, DecisionApproved, ""))
		assert.Equal(t, ApprovalStatusApproved, r.Status)
		require.NotNil(t, r.CompletedAt)
	})

	t.Run("rejection at step 2 of 3 terminates the request", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, steps)
		r := newTestRequest(t, p)
		approvers := []uuid.UUID{uuid.New()}

		require.NoError(t, r.Respond(1, approvers[0], approvers, DecisionApproved, ""))
		require.NoError(t, r.Respond(2, approvers[0], approvers, DecisionRejected, "over budget"))

		assert.Equal(t, ApprovalStatusRejected, r.Status)
		require.NotNil(t, r.CompletedAt)

		// Step 3 is unreachable
		err := r.Respond(3, approvers[0], approvers, DecisionApproved, "")
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
	})

	t.Run("cannot respond to a future step", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, steps)
		r := newTestRequest(t, p)
		approver := uuid.New()

		err := r.Respond(2, approver, []uuid.UUID{approver}, DecisionApproved, "")
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
	})

	t.Run("optional step rejection does not terminate", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{
			roleStep(1, "Manager", "sales_manager", true),
			roleStep(2, "Legal", "legal", false),
			roleStep(3, "Director", "director", true),
		})
		r := newTestRequest(t, p)
		approvers := []uuid.UUID{uuid.New()}

		require.NoError(t, r.Respond(1, approvers[0], approvers, DecisionApproved, ""))
		require.NoError(t, r.Respond(2, approvers[0], approvers, DecisionRejected, "noted"))
		assert.Equal(t, ApprovalStatusInProgress, r.Status)
		assert.Equal(t, 3, r.CurrentStepOrder)

		require.NoError(t, r.Respond(3, approvers[0], approvers, DecisionApproved, ""))
		assert.Equal(t, ApprovalStatusApproved, r.Status)
	})
}

func TestParallelApproval(t *testing.T) {
	steps := ApprovalSteps{
		roleStep(1, "Manager", "sales_manager", true),
		roleStep(2, "Finance", "finance", true),
		roleStep(3, "Legal", "legal", true),
	}

	t.Run("needs every required step approved", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeParallel, steps)
		r := newTestRequest(t, p)
		approvers := []uuid.UUID{uuid.New()}

		// Any order is fine for parallel
		require.NoError(t, r.Respond(3, approvers[0], approvers, DecisionApproved, ""))
		assert.Equal(t, ApprovalStatusInProgress, r.Status)

		require.NoError(t, r.Respond(1, approvers[0], approvers, DecisionApproved, ""))
		assert.Equal(t, ApprovalStatusInProgress, r.Status)

		require.NoError(t, r.Respond(2, approvers[0], approvers, DecisionApproved, ""))
		assert.Equal(t, ApprovalStatusApproved, r.Status)
	})

	t.Run("any required rejection terminates", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeParallel, steps)
		r := newTestRequest(t, p)
		approvers := []uuid.UUID{uuid.New()}

		require.NoError(t, r.Respond(2, approvers[0], approvers, DecisionRejected, "no"))
		assert.Equal(t, ApprovalStatusRejected, r.Status)
	})

	t.Run("optional steps do not gate approval", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeParallel, ApprovalSteps{
			roleStep(1, "Manager", "sales_manager", true),
			roleStep(2, "Legal", "legal", false),
		})
		r := newTestRequest(t, p)
		approvers := []uuid.UUID{uuid.New()}

		require.NoError(t, r.Respond(1, approvers[0], approvers, DecisionApproved, ""))
		assert.Equal(t, ApprovalStatusApproved, r.Status)
	})
}

func TestRespondAuthorization(t *testing.T) {
	steps := ApprovalSteps{roleStep(1, "Manager", "sales_manager", true)}

	t.Run("unauthorized responder rejected", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, steps)
		r := newTestRequest(t, p)

		err := r.Respond(1, uuid.New(), []uuid.UUID{uuid.New()}, DecisionApproved, "")
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeUnauthorizedResponder))
		assert.Empty(t, r.Responses)
	})

	t.Run("responder cannot answer the same step twice", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeParallel, ApprovalSteps{
			roleStep(1, "Board", "board", true),
			roleStep(2, "Finance", "finance", true),
		})
		r := newTestRequest(t, p)
		approver := uuid.New()
		approvers := []uuid.UUID{approver, uuid.New()}

		require.NoError(t, r.Respond(1, approver, approvers, DecisionApproved, ""))

		err := r.Respond(1, approver, approvers, DecisionApproved, "again")
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
		assert.Len(t, r.Responses, 1)
	})
}

func TestDelegation(t *testing.T) {
	delegatableStep := ApprovalStep{
		StepOrder:    1,
		Name:         "Manager",
		ApproverType: ApproverTypeRole,
		ApproverRole: "sales_manager",
		IsRequired:   true,
		CanDelegate:  true,
	}

	t.Run("delegate responds on behalf of grantor", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{delegatableStep})
		r := newTestRequest(t, p)
		grantor := uuid.New()
		delegate := uuid.New()

		require.NoError(t, r.Delegate(1, grantor, delegate, []uuid.UUID{grantor}))
		require.NoError(t, r.Respond(1, delegate, []uuid.UUID{grantor}, DecisionApproved, ""))

		assert.Equal(t, ApprovalStatusApproved, r.Status)
		require.Len(t, r.Responses, 1)
		require.NotNil(t, r.Responses[0].OnBehalfOf)
		assert.Equal(t, grantor, *r.Responses[0].OnBehalfOf)
	})

	t.Run("grant moves a pending request to in progress", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{delegatableStep})
		r := newTestRequest(t, p)
		grantor := uuid.New()
		require.Equal(t, ApprovalStatusPending, r.Status)

		require.NoError(t, r.Delegate(1, grantor, uuid.New(), []uuid.UUID{grantor}))

		assert.Equal(t, ApprovalStatusInProgress, r.Status)
	})

	t.Run("grant is scoped to its step", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeParallel, ApprovalSteps{
			delegatableStep,
			roleStep(2, "Finance", "finance", true),
		})
		r := newTestRequest(t, p)
		grantor := uuid.New()
		delegate := uuid.New()

		require.NoError(t, r.Delegate(1, grantor, delegate, []uuid.UUID{grantor}))

		err := r.Respond(2, delegate, []uuid.UUID{grantor}, DecisionApproved, "")
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeUnauthorizedResponder))
	})

	t.Run("step must allow delegation", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{
			roleStep(1, "Manager", "sales_manager", true),
		})
		r := newTestRequest(t, p)
		grantor := uuid.New()

		err := r.Delegate(1, grantor, uuid.New(), []uuid.UUID{grantor})
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodePreconditionFailed))
	})

	t.Run("non-approver cannot delegate", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{delegatableStep})
		r := newTestRequest(t, p)

		err := r.Delegate(1, uuid.New(), uuid.New(), []uuid.UUID{uuid.New()})
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeUnauthorizedResponder))
	})
}

func TestSkipStep(t *testing.T) {
	t.Run("skippable step passes without approvers", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{
			{StepOrder: 1, Name: "Optional sign-off", ApproverType: ApproverTypeManager, IsRequired: true, CanSkip: true},
			roleStep(2, "Finance", "finance", true),
		})
		r := newTestRequest(t, p)

		require.NoError(t, r.SkipStep(1))
		assert.Equal(t, 2, r.CurrentStepOrder)
		require.Len(t, r.Responses, 1)
		assert.Equal(t, DecisionSkipped, r.Responses[0].Decision)

		approver := uuid.New()
		require.NoError(t, r.Respond(2, approver, []uuid.UUID{approver}, DecisionApproved, ""))
		assert.Equal(t, ApprovalStatusApproved, r.Status)
	})

	t.Run("non-skippable step refuses", func(t *testing.T) {
		p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{
			roleStep(1, "Manager", "sales_manager", true),
		})
		r := newTestRequest(t, p)

		err := r.SkipStep(1)
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodePreconditionFailed))
	})
}

func TestCancelRequest(t *testing.T) {
	p := newTestProcess(t, ApprovalTypeSequential, ApprovalSteps{
		roleStep(1, "Manager", "sales_manager", true),
	})

	t.Run("requester can cancel", func(t *testing.T) {
		r := newTestRequest(t, p)

		require.NoError(t, r.Cancel(r.RequesterID))
		assert.Equal(t, ApprovalStatusCancelled, r.Status)
		require.NotNil(t, r.CompletedAt)
	})

	t.Run("others cannot cancel", func(t *testing.T) {
		r := newTestRequest(t, p)

		err := r.Cancel(uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeUnauthorizedResponder))
	})

	t.Run("terminal request cannot be cancelled again", func(t *testing.T) {
		r := newTestRequest(t, p)
		require.NoError(t, r.Cancel(r.RequesterID))

		err := r.Cancel(r.RequesterID)
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
	})
}
