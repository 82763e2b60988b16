package employee

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ogurasousui/hrbank-api/internal/core/blob"
	"github.com/ogurasousui/hrbank-api/internal/core/changelog"
	"github.com/ogurasousui/hrbank-api/internal/core/department"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
	"github.com/ogurasousui/hrbank-api/internal/platform/logger"
	"github.com/ogurasousui/hrbank-api/internal/platform/optional"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// DepartmentReader は所属部署の存在確認に使用します。
type DepartmentReader interface {
	FindByID(ctx context.Context, id int64) (*department.Department, error)
}

// AuditLogger は社員の変更を変更履歴に記録します。呼び出し元のトランザクションに参加します。
type AuditLogger interface {
	LogEmployeeCreate(ctx context.Context, after changelog.Snapshot, src changelog.Source) (int64, error)
	LogEmployeeUpdate(ctx context.Context, before, after changelog.Snapshot, src changelog.Source) (int64, error)
	LogEmployeeDelete(ctx context.Context, before changelog.Snapshot, src changelog.Source) (int64, error)
}

// ProfileStore はプロフィール画像の保存と解放を行います。
type ProfileStore interface {
	Put(ctx context.Context, kind string, in blob.Upload) (*blob.Metadata, error)
	Register(ctx context.Context, meta *blob.Metadata) (*blob.Metadata, error)
	Release(ctx context.Context, id int64, reason string) error
	Discard(ctx context.Context, storageKey, reason string) error
}

// BackupGuard は実行中のバックアップの有無を返します。
type BackupGuard interface {
	HasInProgress(ctx context.Context) (bool, error)
}

const (
	maxNameLength           = 100
	maxPositionLength       = 100
	maxEmployeeNumberLength = 50
)

var (
	employeeNumberPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	validate              = validator.New(validator.WithRequiredStructEnabled())
)

// SortKeys は社員一覧で指定可能なソートです。既定は名前の昇順です。
var SortKeys = pagination.NewSortKeys(pagination.Asc,
	pagination.SortKey{Field: "name", Column: "e.name", Kind: pagination.KindText},
	pagination.SortKey{Field: "employeeNumber", Column: "e.employee_number", Kind: pagination.KindText},
	pagination.SortKey{Field: "hireDate", Column: "e.hire_date", Kind: pagination.KindDate, Nullable: true},
)

// Service は社員に関するユースケースをまとめます。
// 変更系の操作は変更履歴の記録と同じトランザクションで実行されます。
type Service struct {
	repo        Repository
	departments DepartmentReader
	audit       AuditLogger
	profiles    ProfileStore
	backups     BackupGuard
	clock       Clock
	tx          TransactionManager
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, id int64) (*Employee, error)
	SearchEmployees(ctx context.Context, in SearchEmployeesInput) (pagination.Page[*Employee], error)
	CountEmployees(ctx context.Context, filter CountFilter) (int64, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error
}

// NewService は Service を生成します。
func NewService(repo Repository, departments DepartmentReader, audit AuditLogger, profiles ProfileStore, backups BackupGuard, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{
		repo:        repo,
		departments: departments,
		audit:       audit,
		profiles:    profiles,
		backups:     backups,
		clock:       clock,
		tx:          tx,
	}
}

// CreateEmployeeInput は社員作成時の入力です。EmployeeNumber が空なら採番します。
type CreateEmployeeInput struct {
	EmployeeNumber string
	Name           string
	Email          string
	Position       *string
	DepartmentID   int64
	HireDate       *time.Time
	Status         *Status
	Profile        *blob.Upload
	Source         changelog.Source
}

// UpdateEmployeeInput は社員更新時の入力です。null を許容するのは Position と HireDate のみです。
type UpdateEmployeeInput struct {
	ID             int64
	EmployeeNumber optional.Value[string]
	Name           optional.Value[string]
	Email          optional.Value[string]
	Position       optional.Value[string]
	DepartmentID   optional.Value[int64]
	HireDate       optional.Value[time.Time]
	Status         optional.Value[Status]
	Profile        *blob.Upload
	Source         changelog.Source
}

// DeleteEmployeeInput は社員削除時の入力です。
type DeleteEmployeeInput struct {
	ID     int64
	Source changelog.Source
}

// SearchEmployeesInput は一覧取得時の入力です。
type SearchEmployeesInput struct {
	Filter SearchFilter
	Page   pagination.Request
}

// CreateEmployee は新しい社員を作成し、CREATED の変更履歴を記録します。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	position, err := normalizePosition(in.Position)
	if err != nil {
		return nil, err
	}
	if in.DepartmentID <= 0 {
		return nil, ErrInvalidDepartmentID
	}
	number := strings.TrimSpace(in.EmployeeNumber)
	if number != "" {
		if number, err = normalizeEmployeeNumber(number); err != nil {
			return nil, err
		}
	}
	status := StatusActive
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		status = *in.Status
	}

	profile, err := s.putProfile(ctx, in.Profile)
	if err != nil {
		return nil, err
	}

	var created *Employee
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		dept, err := s.findDepartment(txCtx, in.DepartmentID)
		if err != nil {
			return err
		}
		if err := s.ensureEmailNotExists(txCtx, email, 0); err != nil {
			return err
		}

		now := s.clock.Now()
		if number == "" {
			if number, err = s.repo.NextEmployeeNumber(txCtx, now); err != nil {
				return err
			}
		} else if err := s.ensureEmployeeNumberNotExists(txCtx, number); err != nil {
			return err
		}

		emp := &Employee{
			EmployeeNumber: number,
			Name:           name,
			Email:          email,
			Position:       position,
			HireDate:       normalizeDate(in.HireDate),
			Status:         status,
			DepartmentID:   dept.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if profile != nil {
			registered, err := s.profiles.Register(txCtx, profile)
			if err != nil {
				return err
			}
			emp.ProfileBlobID = &registered.ID
		}

		result, err := s.repo.Create(txCtx, emp)
		if err != nil {
			return err
		}
		result.DepartmentName = dept.Name

		if _, err := s.audit.LogEmployeeCreate(txCtx, result.Snapshot(), in.Source); err != nil {
			return err
		}

		created = result
		return nil
	})
	if err != nil {
		s.discardProfile(ctx, profile)
		return nil, err
	}

	return created, nil
}

// UpdateEmployee は社員情報を部分更新し、UPDATED の変更履歴を記録します。
// 一意性と参照整合性は変更されるフィールドについてのみ確認します。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error) {
	if in.ID <= 0 {
		return nil, ErrInvalidID
	}
	in, err := normalizePatch(in)
	if err != nil {
		return nil, err
	}

	profile, err := s.putProfile(ctx, in.Profile)
	if err != nil {
		return nil, err
	}

	var updated *Employee
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}
		before := existing.Snapshot()
		next := *existing

		if in.EmployeeNumber.Present() && in.EmployeeNumber.Val != existing.EmployeeNumber {
			if err := s.ensureEmployeeNumberNotExists(txCtx, in.EmployeeNumber.Val); err != nil {
				return err
			}
			next.EmployeeNumber = in.EmployeeNumber.Val
		}

		if in.Name.Present() {
			next.Name = in.Name.Val
		}

		if in.Email.Present() {
			if !strings.EqualFold(in.Email.Val, existing.Email) {
				if err := s.ensureEmailNotExists(txCtx, in.Email.Val, existing.ID); err != nil {
					return err
				}
			}
			next.Email = in.Email.Val
		}

		if in.Position.Set {
			next.Position = in.Position.Ptr()
		}

		if in.DepartmentID.Present() && in.DepartmentID.Val != existing.DepartmentID {
			dept, err := s.findDepartment(txCtx, in.DepartmentID.Val)
			if err != nil {
				return err
			}
			next.DepartmentID = dept.ID
			next.DepartmentName = dept.Name
		}

		if in.HireDate.Set {
			next.HireDate = in.HireDate.Ptr()
		}

		if in.Status.Present() {
			next.Status = in.Status.Val
		}

		oldProfileID := existing.ProfileBlobID
		if profile != nil {
			registered, err := s.profiles.Register(txCtx, profile)
			if err != nil {
				return err
			}
			next.ProfileBlobID = &registered.ID
		}

		next.UpdatedAt = s.clock.Now()

		result, err := s.repo.Update(txCtx, &next)
		if err != nil {
			return err
		}
		result.DepartmentName = next.DepartmentName

		if profile != nil && oldProfileID != nil {
			if err := s.profiles.Release(txCtx, *oldProfileID, blob.ReasonProfileReplaced); err != nil {
				return err
			}
		}

		if _, err := s.audit.LogEmployeeUpdate(txCtx, before, result.Snapshot(), in.Source); err != nil {
			return err
		}

		updated = result
		return nil
	})
	if err != nil {
		s.discardProfile(ctx, profile)
		return nil, err
	}

	return updated, nil
}

// DeleteEmployee は社員を物理削除し、DELETED の変更履歴を記録します。
// バックアップ実行中は削除できません。プロフィール画像の実体はコミット後に削除されます。
func (s *Service) DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error {
	if in.ID <= 0 {
		return ErrInvalidID
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}

		if s.backups != nil {
			running, err := s.backups.HasInProgress(txCtx)
			if err != nil {
				return err
			}
			if running {
				return ErrBackupInProgress
			}
		}

		if err := s.repo.Delete(txCtx, existing.ID); err != nil {
			return err
		}

		if existing.ProfileBlobID != nil {
			if err := s.profiles.Release(txCtx, *existing.ProfileBlobID, blob.ReasonEmployeeDeleted); err != nil {
				return err
			}
		}

		_, err = s.audit.LogEmployeeDelete(txCtx, existing.Snapshot(), in.Source)
		return err
	})
}

// GetEmployee は社員を取得します。
func (s *Service) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// SearchEmployees は社員をカーソルページングで取得します。
func (s *Service) SearchEmployees(ctx context.Context, in SearchEmployeesInput) (pagination.Page[*Employee], error) {
	q, err := pagination.Normalize(in.Page, SortKeys)
	if err != nil {
		return pagination.Page[*Employee]{}, err
	}

	filter := in.Filter
	filter.NameOrEmail = strings.TrimSpace(filter.NameOrEmail)
	filter.DepartmentName = strings.TrimSpace(filter.DepartmentName)
	filter.Position = strings.TrimSpace(filter.Position)
	filter.EmployeeNumber = strings.TrimSpace(filter.EmployeeNumber)
	if filter.Status != nil && !filter.Status.Valid() {
		return pagination.Page[*Employee]{}, ErrInvalidStatus
	}
	filter.HireDateFrom = normalizeDate(filter.HireDateFrom)
	filter.HireDateTo = normalizeDate(filter.HireDateTo)
	if filter.HireDateFrom != nil && filter.HireDateTo != nil && filter.HireDateTo.Before(*filter.HireDateFrom) {
		return pagination.Page[*Employee]{}, ErrInvalidDateRange
	}

	var page pagination.Page[*Employee]
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		if err := q.ResolveAnchor(txCtx, s.anchor); err != nil {
			return err
		}
		rows, err := s.repo.Page(txCtx, filter, q)
		if err != nil {
			return err
		}
		total, err := s.repo.Count(txCtx, filter)
		if err != nil {
			return err
		}
		page, err = pagination.BuildPage(rows, q, total, func(e *Employee) pagination.Position {
			return Position(e, q.Key)
		})
		return err
	}); err != nil {
		return pagination.Page[*Employee]{}, err
	}

	return page, nil
}

// CountEmployees は状態と入社日の範囲 (FromDate 以上 ToDate 未満) で社員数を数えます。
func (s *Service) CountEmployees(ctx context.Context, filter CountFilter) (int64, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return 0, ErrInvalidStatus
	}
	filter.FromDate = normalizeDate(filter.FromDate)
	filter.ToDate = normalizeDate(filter.ToDate)
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		return 0, ErrInvalidDateRange
	}

	var count int64
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		n, err := s.repo.CountBy(txCtx, filter)
		if err != nil {
			return err
		}
		count = n
		return nil
	}); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Service) anchor(ctx context.Context, key pagination.SortKey, id int64) (any, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return nil, pagination.ErrAnchorNotFound
		}
		return nil, err
	}
	return Position(e, key).Value, nil
}

// Position は key における e のソート位置です。
func Position(e *Employee, key pagination.SortKey) pagination.Position {
	var v any
	switch key.Field {
	case "employeeNumber":
		v = e.EmployeeNumber
	case "hireDate":
		if e.HireDate != nil {
			v = *e.HireDate
		}
	default:
		v = e.Name
	}
	return pagination.Position{Value: v, ID: e.ID}
}

func (s *Service) findDepartment(ctx context.Context, id int64) (*department.Department, error) {
	dept, err := s.departments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, department.ErrDepartmentNotFound) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}
	return dept, nil
}

func (s *Service) ensureEmailNotExists(ctx context.Context, email string, excludeID int64) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailAlreadyExists
	}
	return nil
}

func (s *Service) ensureEmployeeNumberNotExists(ctx context.Context, number string) error {
	exists, err := s.repo.ExistsByEmployeeNumber(ctx, number)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmployeeNumberAlreadyExists
	}
	return nil
}

func (s *Service) putProfile(ctx context.Context, upload *blob.Upload) (*blob.Metadata, error) {
	if upload == nil {
		return nil, nil
	}
	return s.profiles.Put(ctx, blob.KindProfile, *upload)
}

// discardProfile はトランザクションが失敗した場合に書き込み済みの実体を削除対象にします。
func (s *Service) discardProfile(ctx context.Context, profile *blob.Metadata) {
	if profile == nil {
		return
	}
	if err := s.profiles.Discard(ctx, profile.StorageKey, blob.ReasonAbandonedUpload); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("storage_key", profile.StorageKey).Msg("employee: failed to discard profile upload")
	}
}

// normalizePatch は指定された項目を正規化した入力を返します。
// 形式の誤りはプロフィールの保存やトランザクションの開始より前にここで返します。
func normalizePatch(in UpdateEmployeeInput) (UpdateEmployeeInput, error) {
	switch {
	case in.EmployeeNumber.Null:
		return in, ErrInvalidEmployeeNumber
	case in.Name.Null:
		return in, ErrInvalidName
	case in.Email.Null:
		return in, ErrInvalidEmail
	case in.DepartmentID.Null:
		return in, ErrInvalidDepartmentID
	case in.Status.Null:
		return in, ErrInvalidStatus
	}
	if in.DepartmentID.Present() && in.DepartmentID.Val <= 0 {
		return in, ErrInvalidDepartmentID
	}
	if in.Status.Present() && !in.Status.Val.Valid() {
		return in, ErrInvalidStatus
	}

	if in.EmployeeNumber.Present() {
		number, err := normalizeEmployeeNumber(in.EmployeeNumber.Val)
		if err != nil {
			return in, err
		}
		in.EmployeeNumber = optional.Of(number)
	}
	if in.Name.Present() {
		name, err := normalizeName(in.Name.Val)
		if err != nil {
			return in, err
		}
		in.Name = optional.Of(name)
	}
	if in.Email.Present() {
		email, err := normalizeEmail(in.Email.Val)
		if err != nil {
			return in, err
		}
		in.Email = optional.Of(email)
	}
	if in.Position.Set {
		position, err := normalizePosition(in.Position.Ptr())
		if err != nil {
			return in, err
		}
		in.Position = optional.FromPtr(position)
	}
	if in.HireDate.Set {
		in.HireDate = optional.FromPtr(normalizeDate(in.HireDate.Ptr()))
	}
	return in, nil
}

func normalizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxNameLength {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if err := validate.Var(trimmed, "required,max=255,contains=@"); err != nil {
		return "", ErrInvalidEmail
	}
	// ドットのないドメインも受け付けます。
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", ErrInvalidEmail
	}
	return trimmed, nil
}

func normalizePosition(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxPositionLength {
		return nil, ErrInvalidPosition
	}
	return &trimmed, nil
}

func normalizeEmployeeNumber(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxEmployeeNumberLength || !employeeNumberPattern.MatchString(trimmed) {
		return "", ErrInvalidEmployeeNumber
	}
	return trimmed, nil
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	normalized := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &normalized
}
