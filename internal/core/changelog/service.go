package changelog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
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
	maxMemoLength           = 500
	maxEmployeeNumberLength = 50
	maxIPAddressLength      = 64
	maxPropertyNameLength   = 50
)

// SortKeys は変更履歴一覧で指定可能なソートです。クライアントの "at" は updatedAt に対応します。
var SortKeys = pagination.NewSortKeys(pagination.Desc,
	pagination.SortKey{Field: "updatedAt", Aliases: []string{"at"}, Column: "c.updated_at", Kind: pagination.KindTimestamp},
	pagination.SortKey{Field: "ipAddress", Column: "c.ip_address", Kind: pagination.KindText},
)

// Service は変更履歴の登録と参照をまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は変更履歴ユースケースの公開インターフェースです。
type UseCase interface {
	RegisterChangeLog(ctx context.Context, in RegisterInput) (int64, error)
	LogEmployeeCreate(ctx context.Context, after Snapshot, src Source) (int64, error)
	LogEmployeeUpdate(ctx context.Context, before, after Snapshot, src Source) (int64, error)
	LogEmployeeDelete(ctx context.Context, before Snapshot, src Source) (int64, error)
	SearchChangeLogs(ctx context.Context, in SearchInput) (pagination.Page[*ChangeLog], error)
	GetChangeLog(ctx context.Context, id int64) (*ChangeLog, error)
	GetDiffs(ctx context.Context, id int64) ([]Diff, error)
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

// RegisterInput は変更履歴の登録内容です。Diffs は与えられた順序のまま保存します。
type RegisterInput struct {
	Type           string
	EmployeeNumber string
	Memo           string
	IPAddress      string
	Diffs          []Diff
}

// SearchInput は一覧取得時の入力です。
type SearchInput struct {
	Filter SearchFilter
	Page   pagination.Request
}

// RegisterChangeLog はヘッダと差分を 1 つの単位として登録し、ヘッダの ID を返します。
func (s *Service) RegisterChangeLog(ctx context.Context, in RegisterInput) (int64, error) {
	typ, err := ParseType(in.Type)
	if err != nil {
		return 0, err
	}

	number := strings.TrimSpace(in.EmployeeNumber)
	if number == "" || utf8.RuneCountInString(number) > maxEmployeeNumberLength {
		return 0, ErrInvalidEmployeeNumber
	}

	ip := strings.TrimSpace(in.IPAddress)
	if ip == "" || len(ip) > maxIPAddressLength {
		return 0, ErrInvalidIPAddress
	}

	memo := strings.TrimSpace(in.Memo)
	if utf8.RuneCountInString(memo) > maxMemoLength {
		return 0, ErrInvalidMemo
	}

	diffs := make([]Diff, 0, len(in.Diffs))
	for i, d := range in.Diffs {
		name := strings.TrimSpace(d.PropertyName)
		if name == "" || len(name) > maxPropertyNameLength {
			return 0, fmt.Errorf("%w: diffs[%d].propertyName", ErrInvalidDiff, i)
		}
		diffs = append(diffs, Diff{PropertyName: name, Before: d.Before, After: d.After})
	}

	var id int64
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		created, err := s.repo.Create(txCtx, &ChangeLog{
			Type:           typ,
			EmployeeNumber: number,
			Memo:           memo,
			IPAddress:      ip,
			UpdatedAt:      s.clock.Now(),
		}, diffs)
		if err != nil {
			return err
		}
		id = created.ID
		return nil
	}); err != nil {
		return 0, err
	}

	return id, nil
}

// LogEmployeeCreate は作成後の全フィールドを null からの変更として記録します。
func (s *Service) LogEmployeeCreate(ctx context.Context, after Snapshot, src Source) (int64, error) {
	return s.RegisterChangeLog(ctx, RegisterInput{
		Type:           string(TypeCreated),
		EmployeeNumber: after.EmployeeNumber,
		Memo:           src.Memo,
		IPAddress:      src.IPAddress,
		Diffs:          ComputeDiffs(nil, &after),
	})
}

// LogEmployeeUpdate は before と after の差分を記録します。差分が空でもヘッダは記録します。
func (s *Service) LogEmployeeUpdate(ctx context.Context, before, after Snapshot, src Source) (int64, error) {
	return s.RegisterChangeLog(ctx, RegisterInput{
		Type:           string(TypeUpdated),
		EmployeeNumber: after.EmployeeNumber,
		Memo:           src.Memo,
		IPAddress:      src.IPAddress,
		Diffs:          ComputeDiffs(&before, &after),
	})
}

// LogEmployeeDelete は削除前の全フィールドを null への変更として記録します。
func (s *Service) LogEmployeeDelete(ctx context.Context, before Snapshot, src Source) (int64, error) {
	return s.RegisterChangeLog(ctx, RegisterInput{
		Type:           string(TypeDeleted),
		EmployeeNumber: before.EmployeeNumber,
		Memo:           src.Memo,
		IPAddress:      src.IPAddress,
		Diffs:          ComputeDiffs(&before, nil),
	})
}

// SearchChangeLogs は変更履歴をカーソルページングで取得します。
func (s *Service) SearchChangeLogs(ctx context.Context, in SearchInput) (pagination.Page[*ChangeLog], error) {
	q, err := pagination.Normalize(in.Page, SortKeys)
	if err != nil {
		return pagination.Page[*ChangeLog]{}, err
	}

	filter := in.Filter
	filter.EmployeeNumber = strings.TrimSpace(filter.EmployeeNumber)
	filter.Memo = strings.TrimSpace(filter.Memo)
	filter.IPAddress = strings.TrimSpace(filter.IPAddress)
	if filter.AtFrom != nil && filter.AtTo != nil && filter.AtTo.Before(*filter.AtFrom) {
		return pagination.Page[*ChangeLog]{}, ErrInvalidDateRange
	}

	var page pagination.Page[*ChangeLog]
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
		page, err = pagination.BuildPage(rows, q, total, func(c *ChangeLog) pagination.Position {
			return Position(c, q.Key)
		})
		return err
	}); err != nil {
		return pagination.Page[*ChangeLog]{}, err
	}

	return page, nil
}

// GetChangeLog はヘッダを取得します。
func (s *Service) GetChangeLog(ctx context.Context, id int64) (*ChangeLog, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	var log *ChangeLog
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		log = found
		return nil
	}); err != nil {
		return nil, err
	}
	return log, nil
}

// GetDiffs は差分を登録順で返します。ヘッダが存在しなければ ErrChangeLogNotFound です。
func (s *Service) GetDiffs(ctx context.Context, id int64) ([]Diff, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	var diffs []Diff
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindByID(txCtx, id); err != nil {
			return err
		}
		found, err := s.repo.ListDiffs(txCtx, id)
		if err != nil {
			return err
		}
		diffs = found
		return nil
	}); err != nil {
		return nil, err
	}

	return lo.Ternary(diffs == nil, []Diff{}, diffs), nil
}

func (s *Service) anchor(ctx context.Context, key pagination.SortKey, id int64) (any, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrChangeLogNotFound) {
			return nil, pagination.ErrAnchorNotFound
		}
		return nil, err
	}
	return Position(c, key).Value, nil
}

// Position は key における c のソート位置です。
func Position(c *ChangeLog, key pagination.SortKey) pagination.Position {
	var v any
	switch key.Field {
	case "ipAddress":
		v = c.IPAddress
	default:
		v = c.UpdatedAt
	}
	return pagination.Position{Value: v, ID: c.ID}
}
