package changelog

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	hire := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return Snapshot{
		EmployeeNumber: "E1",
		Name:           "Ana",
		Email:          "a@x",
		Position:       lo.ToPtr("dev"),
		DepartmentName: "Platform",
		HireDate:       &hire,
		Status:         "ACTIVE",
	}
}

func TestComputeDiffs_Create(t *testing.T) {
	t.Parallel()

	after := sampleSnapshot()
	diffs := ComputeDiffs(nil, &after)

	require.Len(t, diffs, 7)
	assert.Equal(t, []string{
		PropertyEmployeeNumber, PropertyName, PropertyEmail, PropertyPosition,
		PropertyDepartmentName, PropertyHireDate, PropertyStatus,
	}, lo.Map(diffs, func(d Diff, _ int) string { return d.PropertyName }))
	for _, d := range diffs {
		assert.Nil(t, d.Before, d.PropertyName)
		assert.NotNil(t, d.After, d.PropertyName)
	}
	assert.Equal(t, "2024-01-02", *diffs[5].After)
}

func TestComputeDiffs_Update(t *testing.T) {
	t.Parallel()

	before := sampleSnapshot()
	after := sampleSnapshot()
	after.Position = lo.ToPtr("lead")

	diffs := ComputeDiffs(&before, &after)

	require.Len(t, diffs, 1)
	assert.Equal(t, PropertyPosition, diffs[0].PropertyName)
	assert.Equal(t, "dev", *diffs[0].Before)
	assert.Equal(t, "lead", *diffs[0].After)
}

func TestComputeDiffs_UpdateNullSafe(t *testing.T) {
	t.Parallel()

	before := sampleSnapshot()
	after := sampleSnapshot()
	after.Position = nil
	after.HireDate = lo.ToPtr(time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC))
	after.EmployeeNumber = "E2"

	diffs := ComputeDiffs(&before, &after)

	require.Len(t, diffs, 1, "same calendar day and employee number are not diffed on update")
	assert.Equal(t, PropertyPosition, diffs[0].PropertyName)
	assert.Equal(t, "dev", *diffs[0].Before)
	assert.Nil(t, diffs[0].After)

	assert.Empty(t, ComputeDiffs(&before, &before))
}

func TestComputeDiffs_Delete(t *testing.T) {
	t.Parallel()

	before := sampleSnapshot()
	before.Position = nil

	diffs := ComputeDiffs(&before, nil)

	require.Len(t, diffs, 6)
	for _, d := range diffs {
		assert.NotNil(t, d.Before)
		assert.Nil(t, d.After)
	}
}
