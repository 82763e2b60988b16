package department

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
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

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
)

// SortKeys は部署一覧で指定可能なソートです。既定は設立日の昇順です。
var SortKeys = pagination.NewSortKeys(pagination.Asc,
	pagination.SortKey{Field: "establishedDate", Column: "d.established_date", Kind: pagination.KindDate},
	pagination.SortKey{Field: "name", Column: "d.name", Kind: pagination.KindText},
)

// Service は部署に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は部署ユースケースの公開インターフェースです。
type UseCase interface {
	CreateDepartment(ctx context.Context, in CreateDepartmentInput) (*Department, error)
	GetDepartment(ctx context.Context, id int64) (*Department, error)
	SearchDepartments(ctx context.Context, in SearchDepartmentsInput) (pagination.Page[*Department], error)
	UpdateDepartment(ctx context.Context, in UpdateDepartmentInput) (*Department, error)
	DeleteDepartment(ctx context.Context, id int64) error
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// CreateDepartmentInput は部署作成時の入力です。
type CreateDepartmentInput struct {
	Name            string
	Description     string
	EstablishedDate *time.Time
}

// UpdateDepartmentInput は部署更新時の入力です。
type UpdateDepartmentInput struct {
	ID              int64
	Name            optional.Value[string]
	Description     optional.Value[string]
	EstablishedDate optional.Value[time.Time]
}

// SearchDepartmentsInput は一覧取得時の入力です。
type SearchDepartmentsInput struct {
	Filter SearchFilter
	Page   pagination.Request
}

// CreateDepartment は新しい部署を作成します。
func (s *Service) CreateDepartment(ctx context.Context, in CreateDepartmentInput) (*Department, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	description, err := normalizeDescription(in.Description)
	if err != nil {
		return nil, err
	}
	if in.EstablishedDate == nil || in.EstablishedDate.IsZero() {
		return nil, ErrInvalidEstablishedDate
	}

	var created *Department
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureNameNotExists(txCtx, name); err != nil {
			return err
		}

		now := s.clock.Now()
		result, err := s.repo.Create(txCtx, &Department{
			Name:            name,
			Description:     description,
			EstablishedDate: truncateDate(*in.EstablishedDate),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateDepartment は部署情報を部分更新します。名前の重複は変更時のみ確認します。
func (s *Service) UpdateDepartment(ctx context.Context, in UpdateDepartmentInput) (*Department, error) {
	if in.ID <= 0 {
		return nil, ErrInvalidID
	}
	switch {
	case in.Name.Null:
		return nil, ErrInvalidName
	case in.Description.Null:
		return nil, ErrInvalidDescription
	case in.EstablishedDate.Null:
		return nil, ErrInvalidEstablishedDate
	}

	var updated *Department
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}

		if in.Name.Present() {
			name, err := normalizeName(in.Name.Val)
			if err != nil {
				return err
			}
			if name != existing.Name {
				if err := s.ensureNameNotExists(txCtx, name); err != nil {
					return err
				}
				existing.Name = name
			}
		}

		if in.Description.Present() {
			description, err := normalizeDescription(in.Description.Val)
			if err != nil {
				return err
			}
			existing.Description = description
		}

		if in.EstablishedDate.Present() {
			if in.EstablishedDate.Val.IsZero() {
				return ErrInvalidEstablishedDate
			}
			existing.EstablishedDate = truncateDate(in.EstablishedDate.Val)
		}

		existing.UpdatedAt = s.clock.Now()

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteDepartment は所属社員がいない部署を削除します。
func (s *Service) DeleteDepartment(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindByID(txCtx, id); err != nil {
			return err
		}
		inUse, err := s.repo.HasEmployees(txCtx, id)
		if err != nil {
			return err
		}
		if inUse {
			return ErrDepartmentInUse
		}
		return s.repo.Delete(txCtx, id)
	})
}

// GetDepartment は ID で部署を取得します。
func (s *Service) GetDepartment(ctx context.Context, id int64) (*Department, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	var department *Department
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		department = result
		return nil
	}); err != nil {
		return nil, err
	}

	return department, nil
}

// SearchDepartments は部署をカーソルページングで取得します。
func (s *Service) SearchDepartments(ctx context.Context, in SearchDepartmentsInput) (pagination.Page[*Department], error) {
	q, err := pagination.Normalize(in.Page, SortKeys)
	if err != nil {
		return pagination.Page[*Department]{}, err
	}
	filter := SearchFilter{NameOrDescription: strings.TrimSpace(in.Filter.NameOrDescription)}

	var page pagination.Page[*Department]
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
		page, err = pagination.BuildPage(rows, q, total, func(d *Department) pagination.Position {
			return Position(d, q.Key)
		})
		return err
	}); err != nil {
		return pagination.Page[*Department]{}, err
	}

	return page, nil
}

func (s *Service) anchor(ctx context.Context, key pagination.SortKey, id int64) (any, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDepartmentNotFound) {
			return nil, pagination.ErrAnchorNotFound
		}
		return nil, err
	}
	return Position(d, key).Value, nil
}

// Position は key における d のソート位置です。
func Position(d *Department, key pagination.SortKey) pagination.Position {
	var v any
	switch key.Field {
	case "name":
		v = d.Name
	default:
		v = d.EstablishedDate
	}
	return pagination.Position{Value: v, ID: d.ID}
}

func (s *Service) ensureNameNotExists(ctx context.Context, name string) error {
	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return ErrNameAlreadyExists
	}
	return nil
}

func normalizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxNameLength {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

func normalizeDescription(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxDescriptionLength {
		return "", ErrInvalidDescription
	}
	return trimmed, nil
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
