package approval

import (
	"testing"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleStep(order int, name, role string, required bool) ApprovalStep {
	return ApprovalStep{
		StepOrder:    order,
		Name:         name,
		ApproverType: ApproverTypeRole,
		ApproverRole: role,
		IsRequired:   required,
	}
}

func TestNewApprovalProcess(t *testing.T) {
	tenantID := uuid.New()

	t.Run("valid process", func(t *testing.T) {
		p, err := NewApprovalProcess(tenantID, "Quote approval", "", "Quote",
			ApprovalTypeSequential,
			ApprovalSteps{
				roleStep(1, "Manager review", "sales_manager", true),
				roleStep(2, "Finance review", "finance", true),
			},
			uuid.New())
		require.NoError(t, err)
		assert.True(t, p.IsActive)
		assert.Len(t, p.Steps, 2)
	})

	t.Run("no steps rejected", func(t *testing.T) {
		_, err := NewApprovalProcess(tenantID, "Empty", "", "Quote",
			ApprovalTypeSequential, ApprovalSteps{}, uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidInput))
	})

	t.Run("non-contiguous step orders rejected", func(t *testing.T) {
		_, err := NewApprovalProcess(tenantID, "Gapped", "", "Quote",
			ApprovalTypeSequential,
			ApprovalSteps{
				roleStep(1, "First", "a", true),
				roleStep(3, "Third", "b", true),
			},
			uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidInput))
	})

	t.Run("duplicate step orders rejected", func(t *testing.T) {
		_, err := NewApprovalProcess(tenantID, "Duped", "", "Quote",
			ApprovalTypeSequential,
			ApprovalSteps{
				roleStep(1, "First", "a", true),
				roleStep(1, "Also first", "b", true),
			},
			uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidInput))
	})

	t.Run("role step without role rejected", func(t *testing.T) {
		_, err := NewApprovalProcess(tenantID, "Bad binding", "", "Quote",
			ApprovalTypeSequential,
			ApprovalSteps{{StepOrder: 1, Name: "Review", ApproverType: ApproverTypeRole, IsRequired: true}},
			uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidInput))
	})

	t.Run("user step without user rejected", func(t *testing.T) {
		_, err := NewApprovalProcess(tenantID, "Bad binding", "", "Quote",
			ApprovalTypeSequential,
			ApprovalSteps{{StepOrder: 1, Name: "Review", ApproverType: ApproverTypeUser, IsRequired: true}},
			uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidInput))
	})

	t.Run("manager step needs no binding", func(t *testing.T) {
		_, err := NewApprovalProcess(tenantID, "Manager chain", "", "Quote",
			ApprovalTypeSequential,
			ApprovalSteps{{StepOrder: 1, Name: "Manager", ApproverType: ApproverTypeManager, IsRequired: true}},
			uuid.New())
		require.NoError(t, err)
	})

	t.Run("unknown approval type rejected", func(t *testing.T) {
		_, err := NewApprovalProcess(tenantID, "Bad type", "", "Quote",
			ApprovalType("ROUND_ROBIN"),
			ApprovalSteps{roleStep(1, "Review", "a", true)},
			uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidInput))
	})
}

func TestApprovalProcessReplaceSteps(t *testing.T) {
	p, err := NewApprovalProcess(uuid.New(), "Quote approval", "", "Quote",
		ApprovalTypeSequential,
		ApprovalSteps{roleStep(1, "Review", "sales_manager", true)},
		uuid.New())
	require.NoError(t, err)

	err = p.ReplaceSteps(ApprovalSteps{
		roleStep(1, "Review", "sales_manager", true),
		roleStep(2, "Finance", "finance", true),
	})
	require.NoError(t, err)
	assert.Len(t, p.Steps, 2)

	err = p.ReplaceSteps(ApprovalSteps{})
	require.Error(t, err)
	assert.Len(t, p.Steps, 2)
}
