package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ogurasousui/hrbank-api/internal/core/backup"
	"github.com/ogurasousui/hrbank-api/internal/core/blob"
	"github.com/ogurasousui/hrbank-api/internal/core/changelog"
	"github.com/ogurasousui/hrbank-api/internal/core/department"
	"github.com/ogurasousui/hrbank-api/internal/core/employee"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
)

type stubEmployees struct {
	createInput  employee.CreateEmployeeInput
	profileBytes string
	updateInput  employee.UpdateEmployeeInput
	deleteInput  employee.DeleteEmployeeInput
	searchInput  employee.SearchEmployeesInput
	countFilter  employee.CountFilter

	out   *employee.Employee
	page  pagination.Page[*employee.Employee]
	count int64
	err   error
}

func (s *stubEmployees) CreateEmployee(_ context.Context, in employee.CreateEmployeeInput) (*employee.Employee, error) {
	s.createInput = in
	if in.Profile != nil {
		b, _ := io.ReadAll(in.Profile.Body)
		s.profileBytes = string(b)
	}
	return s.out, s.err
}

func (s *stubEmployees) GetEmployee(context.Context, int64) (*employee.Employee, error) {
	return s.out, s.err
}

func (s *stubEmployees) SearchEmployees(_ context.Context, in employee.SearchEmployeesInput) (pagination.Page[*employee.Employee], error) {
	s.searchInput = in
	return s.page, s.err
}

func (s *stubEmployees) CountEmployees(_ context.Context, f employee.CountFilter) (int64, error) {
	s.countFilter = f
	return s.count, s.err
}

func (s *stubEmployees) UpdateEmployee(_ context.Context, in employee.UpdateEmployeeInput) (*employee.Employee, error) {
	s.updateInput = in
	return s.out, s.err
}

func (s *stubEmployees) DeleteEmployee(_ context.Context, in employee.DeleteEmployeeInput) error {
	s.deleteInput = in
	return s.err
}

type stubDepartments struct {
	createInput department.CreateDepartmentInput
	updateInput department.UpdateDepartmentInput
	out         *department.Department
	err         error
}

func (s *stubDepartments) CreateDepartment(_ context.Context, in department.CreateDepartmentInput) (*department.Department, error) {
	s.createInput = in
	return s.out, s.err
}

func (s *stubDepartments) GetDepartment(context.Context, int64) (*department.Department, error) {
	return s.out, s.err
}

func (s *stubDepartments) SearchDepartments(context.Context, department.SearchDepartmentsInput) (pagination.Page[*department.Department], error) {
	return pagination.Page[*department.Department]{}, s.err
}

func (s *stubDepartments) UpdateDepartment(_ context.Context, in department.UpdateDepartmentInput) (*department.Department, error) {
	s.updateInput = in
	return s.out, s.err
}

func (s *stubDepartments) DeleteDepartment(context.Context, int64) error {
	return s.err
}

type stubChangeLogs struct {
	registerInput changelog.RegisterInput
	searchInput   changelog.SearchInput
	id            int64
	out           *changelog.ChangeLog
	diffs         []changelog.Diff
	err           error
}

func (s *stubChangeLogs) RegisterChangeLog(_ context.Context, in changelog.RegisterInput) (int64, error) {
	s.registerInput = in
	return s.id, s.err
}

func (s *stubChangeLogs) LogEmployeeCreate(context.Context, changelog.Snapshot, changelog.Source) (int64, error) {
	return 0, nil
}

func (s *stubChangeLogs) LogEmployeeUpdate(context.Context, changelog.Snapshot, changelog.Snapshot, changelog.Source) (int64, error) {
	return 0, nil
}

func (s *stubChangeLogs) LogEmployeeDelete(context.Context, changelog.Snapshot, changelog.Source) (int64, error) {
	return 0, nil
}

func (s *stubChangeLogs) SearchChangeLogs(_ context.Context, in changelog.SearchInput) (pagination.Page[*changelog.ChangeLog], error) {
	s.searchInput = in
	return pagination.Page[*changelog.ChangeLog]{Content: []*changelog.ChangeLog{}}, s.err
}

func (s *stubChangeLogs) GetChangeLog(context.Context, int64) (*changelog.ChangeLog, error) {
	return s.out, s.err
}

func (s *stubChangeLogs) GetDiffs(context.Context, int64) ([]changelog.Diff, error) {
	return s.diffs, s.err
}

type stubBackups struct {
	worker       string
	latestStatus *backup.Status
	searchInput  backup.SearchInput
	out          *backup.Backup
	err          error
}

func (s *stubBackups) Create(_ context.Context, worker string) (*backup.Backup, error) {
	s.worker = worker
	return s.out, s.err
}

func (s *stubBackups) GetLatest(_ context.Context, status *backup.Status) (*backup.Backup, error) {
	s.latestStatus = status
	return s.out, s.err
}

func (s *stubBackups) FindAll(_ context.Context, in backup.SearchInput) (pagination.Page[*backup.Backup], error) {
	s.searchInput = in
	return pagination.Page[*backup.Backup]{}, s.err
}

func (s *stubBackups) HasInProgress(context.Context) (bool, error) {
	return false, nil
}

type stubFiles struct {
	meta *blob.Metadata
	body string
	err  error
}

func (s *stubFiles) Put(context.Context, string, blob.Upload) (*blob.Metadata, error) { return nil, nil }

func (s *stubFiles) Register(context.Context, *blob.Metadata) (*blob.Metadata, error) { return nil, nil }

func (s *stubFiles) Release(context.Context, int64, string) error { return nil }

func (s *stubFiles) Discard(context.Context, string, string) error { return nil }

func (s *stubFiles) Open(context.Context, int64) (*blob.Metadata, io.ReadCloser, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.meta, io.NopCloser(strings.NewReader(s.body)), nil
}

type fixture struct {
	employees   *stubEmployees
	departments *stubDepartments
	changeLogs  *stubChangeLogs
	backups     *stubBackups
	files       *stubFiles
	e           *echo.Echo
}

func newFixture() *fixture {
	f := &fixture{
		employees:   &stubEmployees{},
		departments: &stubDepartments{},
		changeLogs:  &stubChangeLogs{},
		backups:     &stubBackups{},
		files:       &stubFiles{},
		e:           echo.New(),
	}
	f.e.HTTPErrorHandler = ErrorHandler
	Register(f.e, Handlers{
		Employees:   NewEmployeeHandler(f.employees),
		Departments: NewDepartmentHandler(f.departments),
		ChangeLogs:  NewChangeLogHandler(f.changeLogs),
		Backups:     NewBackupHandler(f.backups),
		Files:       NewFileHandler(f.files),
	})
	return f
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
