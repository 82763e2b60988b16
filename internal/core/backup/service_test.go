package backup

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogurasousui/hrbank-api/internal/core/employee"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
	"github.com/ogurasousui/hrbank-api/internal/platform/apperr"
)

type fixture struct {
	svc       *Service
	repo      *fakeRepo
	employees *fakeEmployees
	artifacts *fakeArtifacts
	clock     *stubClock
}

func newFixture(batchSize int) *fixture {
	hire := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	f := &fixture{
		repo: &fakeRepo{},
		employees: &fakeEmployees{employees: []*employee.Employee{
			{ID: 1, EmployeeNumber: "E1", Name: "Ana", Email: "a@x", Position: lo.ToPtr("dev"), DepartmentName: "Platform", HireDate: &hire, Status: employee.StatusActive},
			{ID: 2, EmployeeNumber: "E2", Name: "Doe, \"JD\"", Email: "j@x", DepartmentName: "Sales", Status: employee.StatusOnLeave},
		}},
		artifacts: newFakeArtifacts(),
		clock:     &stubClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.svc = NewService(f.repo, f.employees, f.artifacts, f.clock, nil, Options{BatchSize: batchSize})
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock.now = f.clock.now.Add(d)
}

func TestService_Create_CompletesWithArtifact(t *testing.T) {
	t.Parallel()

	f := newFixture(10)

	run, err := f.svc.Create(context.Background(), "10.0.0.5")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, "10.0.0.5", run.Worker)
	require.NotNil(t, run.EndedAt)
	require.NotNil(t, run.ArtifactBlobID)

	meta := f.artifacts.registered[*run.ArtifactBlobID]
	require.NotNil(t, meta)
	assert.Equal(t, "backups/employee_backup_1.csv", meta.StorageKey)
	assert.Equal(t, "text/csv", meta.ContentType)
	assert.Equal(t,
		"id,employeeNumber,name,email,position,departmentName,hireDate,status\r\n"+
			"1,E1,Ana,a@x,dev,Platform,2024-01-02,ACTIVE\r\n"+
			"2,E2,\"Doe, \"\"JD\"\"\",j@x,,Sales,,ON_LEAVE\r\n",
		f.artifacts.contents[meta.StorageKey])
}

func TestService_Create_SkipsWithoutChanges(t *testing.T) {
	t.Parallel()

	f := newFixture(10)
	ctx := context.Background()
	f.repo.changedAt = lo.ToPtr(f.clock.now.Add(-time.Hour))

	first, err := f.svc.Create(ctx, "10.0.0.5")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, first.Status)

	f.advance(time.Minute)
	skipped, err := f.svc.Create(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, skipped.Status)
	assert.Nil(t, skipped.ArtifactBlobID)
	require.NotNil(t, skipped.EndedAt)
	assert.Equal(t, skipped.StartedAt, *skipped.EndedAt)

	f.advance(time.Minute)
	f.repo.changedAt = lo.ToPtr(f.clock.now)
	f.advance(time.Minute)
	again, err := f.svc.Create(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, again.Status)
	assert.Len(t, f.artifacts.registered, 2)
}

func TestService_Create_ReturnsExistingInProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(10)
	running := f.repo.insert(Backup{Worker: "10.0.0.1", Status: StatusInProgress, StartedAt: f.clock.now})

	got, err := f.svc.Create(context.Background(), "10.0.0.9")
	require.NoError(t, err)

	assert.Equal(t, running.ID, got.ID)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, "10.0.0.1", got.Worker)
	assert.Empty(t, f.artifacts.contents)
	assert.Len(t, f.repo.backups, 1)
}

func TestService_Create_StoreFailureMarksFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(1)
	ctx := context.Background()
	f.artifacts.putErr = errStore

	failed, err := f.svc.Create(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.NotNil(t, failed.EndedAt)
	assert.Nil(t, failed.ArtifactBlobID)

	inProgress, err := f.svc.HasInProgress(ctx)
	require.NoError(t, err)
	assert.False(t, inProgress)

	f.artifacts.putErr = nil
	f.advance(time.Minute)
	next, err := f.svc.Create(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, next.Status)
	assert.NotEqual(t, failed.ID, next.ID)
}

func TestService_Create_SourceFailureMarksFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(10)
	f.employees.err = errStore

	failed, err := f.svc.Create(context.Background(), "system")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Empty(t, f.artifacts.contents)
}

func TestService_Create_RegisterFailureDiscardsArtifact(t *testing.T) {
	t.Parallel()

	f := newFixture(10)
	f.artifacts.registerErr = errStore

	failed, err := f.svc.Create(context.Background(), "system")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, []string{"backups/employee_backup_1.csv"}, f.artifacts.discarded)
}

func TestService_Create_InvalidWorker(t *testing.T) {
	t.Parallel()

	f := newFixture(10)

	_, err := f.svc.Create(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidWorker)

	_, err = f.svc.Create(context.Background(), strings.Repeat("w", maxWorkerLength+1))
	require.ErrorIs(t, err, ErrInvalidWorker)
	assert.Empty(t, f.repo.backups)
}

func TestService_Create_ReadsInBatches(t *testing.T) {
	t.Parallel()

	f := newFixture(2)
	for i := int64(3); i <= 5; i++ {
		f.employees.employees = append(f.employees.employees, &employee.Employee{ID: i, EmployeeNumber: "E", Name: "n", Email: "e@x", Status: employee.StatusActive})
	}

	run, err := f.svc.Create(context.Background(), "system")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, []int{2, 2, 1}, f.employees.calls)
}

func TestService_Create_ReadsAllBatchesFromOneSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(1)
	tx := &snapshotTx{}
	f.svc = NewService(f.repo, f.employees, f.artifacts, f.clock, tx, Options{BatchSize: 1})

	run, err := f.svc.Create(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, run.Status)

	require.Len(t, f.employees.snapshots, 3)
	assert.Equal(t, []any{1, 1, 1}, f.employees.snapshots)
	assert.Equal(t, 1, tx.snapshots)
}

func TestService_GetLatest(t *testing.T) {
	t.Parallel()

	f := newFixture(10)
	ctx := context.Background()

	_, err := f.svc.GetLatest(ctx, nil)
	require.ErrorIs(t, err, ErrBackupNotFound)
	assert.Same(t, apperr.ErrNotFound, apperr.KindOf(err))

	base := f.clock.now
	f.repo.insert(Backup{Worker: "a", Status: StatusCompleted, StartedAt: base})
	f.repo.insert(Backup{Worker: "b", Status: StatusFailed, StartedAt: base.Add(time.Hour)})

	latest, err := f.svc.GetLatest(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.Worker)

	completed, err := f.svc.GetLatest(ctx, lo.ToPtr(StatusCompleted))
	require.NoError(t, err)
	assert.Equal(t, "a", completed.Worker)

	_, err = f.svc.GetLatest(ctx, lo.ToPtr(Status("DONE")))
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestService_FindAll(t *testing.T) {
	t.Parallel()

	f := newFixture(10)
	ctx := context.Background()
	base := f.clock.now
	for i, w := range []string{"10.0.0.1", "system", "10.0.0.2", "10.0.0.3"} {
		status := StatusCompleted
		if i == 1 {
			status = StatusSkipped
		}
		f.repo.insert(Backup{Worker: w, Status: status, StartedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	size := 2
	req := pagination.Request{Size: &size}
	filter := SearchFilter{Worker: "10.0.0", Status: lo.ToPtr(StatusCompleted)}

	first, err := f.svc.FindAll(ctx, SearchInput{Filter: filter, Page: req})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3}, lo.Map(first.Content, func(b *Backup, _ int) int64 { return b.ID }))
	assert.True(t, first.HasNext)
	assert.Equal(t, int64(3), first.TotalElements)

	req.Cursor = first.NextCursor
	second, err := f.svc.FindAll(ctx, SearchInput{Filter: filter, Page: req})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, lo.Map(second.Content, func(b *Backup, _ int) int64 { return b.ID }))
	assert.False(t, second.HasNext)
	assert.Empty(t, second.NextCursor)

	_, err = f.svc.FindAll(ctx, SearchInput{Filter: SearchFilter{StartedAtFrom: lo.ToPtr(base), StartedAtTo: lo.ToPtr(base.Add(-time.Second))}})
	require.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = f.svc.FindAll(ctx, SearchInput{Page: pagination.Request{SortField: "worker"}})
	require.ErrorIs(t, err, pagination.ErrInvalidSort)
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	got, err := ParseStatus(" in_progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got)
	assert.False(t, got.Terminal())
	assert.True(t, StatusSkipped.Terminal())

	_, err = ParseStatus("RUNNING")
	require.ErrorIs(t, err, ErrInvalidStatus)
}
