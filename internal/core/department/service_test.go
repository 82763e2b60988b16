package department

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
	"github.com/ogurasousui/hrbank-api/internal/platform/apperr"
	"github.com/ogurasousui/hrbank-api/internal/platform/optional"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeDepartmentRepo struct {
	departments map[int64]*Department
	members     map[int64]int64
	sequence    int64
}

func newFakeDepartmentRepo() *fakeDepartmentRepo {
	return &fakeDepartmentRepo{departments: map[int64]*Department{}, members: map[int64]int64{}}
}

func clone(d *Department) *Department {
	c := *d
	return &c
}

func (r *fakeDepartmentRepo) Create(_ context.Context, d *Department) (*Department, error) {
	r.sequence++
	c := clone(d)
	c.ID = r.sequence
	r.departments[c.ID] = c
	return clone(c), nil
}

func (r *fakeDepartmentRepo) Update(_ context.Context, d *Department) (*Department, error) {
	if _, ok := r.departments[d.ID]; !ok {
		return nil, ErrDepartmentNotFound
	}
	r.departments[d.ID] = clone(d)
	return clone(d), nil
}

func (r *fakeDepartmentRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.departments[id]; !ok {
		return ErrDepartmentNotFound
	}
	delete(r.departments, id)
	return nil
}

func (r *fakeDepartmentRepo) FindByID(_ context.Context, id int64) (*Department, error) {
	d, ok := r.departments[id]
	if !ok {
		return nil, ErrDepartmentNotFound
	}
	c := clone(d)
	c.EmployeeCount = r.members[id]
	return c, nil
}

func (r *fakeDepartmentRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	for _, d := range r.departments {
		if d.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeDepartmentRepo) HasEmployees(_ context.Context, id int64) (bool, error) {
	return r.members[id] > 0, nil
}

func (r *fakeDepartmentRepo) matching(filter SearchFilter) []*Department {
	var out []*Department
	needle := strings.ToLower(filter.NameOrDescription)
	for _, d := range r.departments {
		if needle != "" && !strings.Contains(strings.ToLower(d.Name), needle) && !strings.Contains(strings.ToLower(d.Description), needle) {
			continue
		}
		out = append(out, clone(d))
	}
	return out
}

func (r *fakeDepartmentRepo) Page(_ context.Context, filter SearchFilter, q pagination.Query) ([]*Department, error) {
	var out []*Department
	for _, d := range r.matching(filter) {
		if q.Follows(Position(d, q.Key)) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return q.Less(Position(out[i], q.Key), Position(out[j], q.Key)) })
	if len(out) > q.Size+1 {
		out = out[:q.Size+1]
	}
	return out, nil
}

func (r *fakeDepartmentRepo) Count(_ context.Context, filter SearchFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newTestService() (*Service, *fakeDepartmentRepo) {
	repo := newFakeDepartmentRepo()
	clock := &stubClock{now: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	return NewService(repo, clock, nil), repo
}

func TestService_CreateDepartment(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	got, err := svc.CreateDepartment(ctx, CreateDepartmentInput{
		Name:            "  Engineering ",
		Description:     "Builds things",
		EstablishedDate: date(2010, 4, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Engineering", got.Name)
	assert.Equal(t, *date(2010, 4, 1), got.EstablishedDate)

	_, err = svc.CreateDepartment(ctx, CreateDepartmentInput{Name: "Engineering", Description: "dup", EstablishedDate: date(2011, 1, 1)})
	require.ErrorIs(t, err, ErrNameAlreadyExists)
	assert.Same(t, apperr.ErrConflict, apperr.KindOf(err))
}

func TestService_CreateDepartment_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      CreateDepartmentInput
		wantErr error
	}{
		{name: "missing name", in: CreateDepartmentInput{Description: "d", EstablishedDate: date(2020, 1, 1)}, wantErr: ErrInvalidName},
		{name: "missing description", in: CreateDepartmentInput{Name: "n", EstablishedDate: date(2020, 1, 1)}, wantErr: ErrInvalidDescription},
		{name: "missing date", in: CreateDepartmentInput{Name: "n", Description: "d"}, wantErr: ErrInvalidEstablishedDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := newTestService()
			_, err := svc.CreateDepartment(context.Background(), tt.in)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Same(t, apperr.ErrValidation, apperr.KindOf(err))
		})
	}
}

func TestService_UpdateDepartment(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	sales, err := svc.CreateDepartment(ctx, CreateDepartmentInput{Name: "Sales", Description: "Sells", EstablishedDate: date(2001, 1, 1)})
	require.NoError(t, err)
	_, err = svc.CreateDepartment(ctx, CreateDepartmentInput{Name: "Support", Description: "Helps", EstablishedDate: date(2002, 1, 1)})
	require.NoError(t, err)

	updated, err := svc.UpdateDepartment(ctx, UpdateDepartmentInput{ID: sales.ID, Name: optional.Of("Sales"), Description: optional.Of("Sells more")})
	require.NoError(t, err)
	assert.Equal(t, "Sells more", updated.Description)
	assert.Equal(t, sales.EstablishedDate, updated.EstablishedDate)

	_, err = svc.UpdateDepartment(ctx, UpdateDepartmentInput{ID: sales.ID, Name: optional.Of("Support")})
	require.ErrorIs(t, err, ErrNameAlreadyExists)

	_, err = svc.UpdateDepartment(ctx, UpdateDepartmentInput{ID: sales.ID, Description: optional.Null[string]()})
	require.ErrorIs(t, err, ErrInvalidDescription)

	_, err = svc.UpdateDepartment(ctx, UpdateDepartmentInput{ID: 404, Name: optional.Of("x")})
	require.ErrorIs(t, err, ErrDepartmentNotFound)
}

func TestService_DeleteDepartment(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService()
	ctx := context.Background()

	d, err := svc.CreateDepartment(ctx, CreateDepartmentInput{Name: "Ops", Description: "Runs", EstablishedDate: date(2015, 6, 1)})
	require.NoError(t, err)

	repo.members[d.ID] = 2
	err = svc.DeleteDepartment(ctx, d.ID)
	require.ErrorIs(t, err, ErrDepartmentInUse)
	assert.Same(t, apperr.ErrConflict, apperr.KindOf(err))

	repo.members[d.ID] = 0
	require.NoError(t, svc.DeleteDepartment(ctx, d.ID))
	require.ErrorIs(t, svc.DeleteDepartment(ctx, d.ID), ErrDepartmentNotFound)
}

func TestService_SearchDepartments(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	for i, name := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		_, err := svc.CreateDepartment(ctx, CreateDepartmentInput{
			Name:            name,
			Description:     "team " + name,
			EstablishedDate: date(2000+i%2, 1, 1),
		})
		require.NoError(t, err)
	}

	size := 3
	first, err := svc.SearchDepartments(ctx, SearchDepartmentsInput{Page: pagination.Request{Size: &size}})
	require.NoError(t, err)
	require.Len(t, first.Content, 3)
	assert.True(t, first.HasNext)
	assert.Equal(t, int64(4), first.TotalElements)
	assert.Equal(t, []string{"Alpha", "Gamma", "Beta"}, names(first.Content))

	second, err := svc.SearchDepartments(ctx, SearchDepartmentsInput{Page: pagination.Request{Size: &size, Cursor: first.NextCursor}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Delta"}, names(second.Content))
	assert.False(t, second.HasNext)

	filtered, err := svc.SearchDepartments(ctx, SearchDepartmentsInput{Filter: SearchFilter{NameOrDescription: "TEAM g"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Gamma"}, names(filtered.Content))

	_, err = svc.SearchDepartments(ctx, SearchDepartmentsInput{Page: pagination.Request{SortField: "budget"}})
	require.ErrorIs(t, err, pagination.ErrInvalidSort)
}

func names(ds []*Department) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}
