package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/hrbank-api/internal/core/blob"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
	"github.com/ogurasousui/hrbank-api/internal/platform/logger"
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

// ArtifactStore はバックアップファイルの保存先です。
type ArtifactStore interface {
	Put(ctx context.Context, kind string, in blob.Upload) (*blob.Metadata, error)
	Register(ctx context.Context, meta *blob.Metadata) (*blob.Metadata, error)
	Discard(ctx context.Context, storageKey, reason string) error
}

const (
	maxWorkerLength     = 64
	defaultBatchSize    = 500
	artifactContentType = "text/csv"
)

// SortKeys はバックアップ一覧で指定可能なソートです。既定は開始日時の降順です。
var SortKeys = pagination.NewSortKeys(pagination.Desc,
	pagination.SortKey{Field: "startedAt", Column: "b.started_at", Kind: pagination.KindTimestamp},
	pagination.SortKey{Field: "endedAt", Column: "b.ended_at", Kind: pagination.KindTimestamp, Nullable: true},
	pagination.SortKey{Field: "status", Column: "b.status", Kind: pagination.KindText},
)

// Options は Service の動作設定です。
type Options struct {
	// BatchSize は社員を読み出す 1 回あたりの件数です。
	BatchSize int
}

// Service はバックアップの受付、実行、参照をまとめます。
type Service struct {
	repo      Repository
	employees EmployeeSource
	artifacts ArtifactStore
	clock     Clock
	tx        TransactionManager
	batchSize int
	m         *metrics
}

// UseCase はバックアップユースケースの公開インターフェースです。
type UseCase interface {
	Create(ctx context.Context, worker string) (*Backup, error)
	GetLatest(ctx context.Context, status *Status) (*Backup, error)
	FindAll(ctx context.Context, in SearchInput) (pagination.Page[*Backup], error)
	HasInProgress(ctx context.Context) (bool, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, employees EmployeeSource, artifacts ArtifactStore, clock Clock, tx TransactionManager, opts Options) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Service{
		repo:      repo,
		employees: employees,
		artifacts: artifacts,
		clock:     clock,
		tx:        tx,
		batchSize: opts.BatchSize,
		m:         metricsSingleton(),
	}
}

// SearchInput は一覧取得時の入力です。
type SearchInput struct {
	Filter SearchFilter
	Page   pagination.Request
}

// Create はバックアップを受け付けて実行します。
//
// 最後に完了したバックアップ以降に変更がなければ SKIPPED 行を返します。
// 実行中の行があればそれをそのまま返します。シリアライズに失敗した場合は
// FAILED に遷移させた行を返します。
func (s *Service) Create(ctx context.Context, worker string) (*Backup, error) {
	worker = strings.TrimSpace(worker)
	if worker == "" || len(worker) > maxWorkerLength {
		return nil, ErrInvalidWorker
	}
	log := logger.FromContext(ctx).With().Str("worker", worker).Logger()

	var (
		run     *Backup
		created bool
	)
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		needed, err := s.needed(txCtx)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if !needed {
			run, err = s.repo.InsertSkipped(txCtx, worker, now)
			return err
		}
		run, created, err = s.repo.InsertInProgress(txCtx, worker, now)
		return err
	}); err != nil {
		return nil, err
	}

	switch {
	case run.Status == StatusSkipped:
		s.m.runsTotal.WithLabelValues(string(StatusSkipped)).Inc()
		log.Info().Int64("backup_id", run.ID).Msg("backup skipped: no changes since last completed run")
		return run, nil
	case !created:
		log.Info().Int64("backup_id", run.ID).Msg("backup already in progress")
		return run, nil
	}

	log.Info().Int64("backup_id", run.ID).Msg("backup admitted")
	return s.execute(ctx, run, log)
}

// needed は最後に完了したバックアップの開始以降に社員の変更があったかを返します。
func (s *Service) needed(ctx context.Context) (bool, error) {
	completed := StatusCompleted
	last, err := s.repo.FindLatest(ctx, &completed)
	if err != nil {
		if errors.Is(err, ErrBackupNotFound) {
			return true, nil
		}
		return false, err
	}
	changedAt, err := s.repo.LatestChangeAt(ctx)
	if err != nil {
		return false, err
	}
	return changedAt != nil && changedAt.After(last.StartedAt), nil
}

func (s *Service) execute(ctx context.Context, run *Backup, log zerolog.Logger) (*Backup, error) {
	start := time.Now()
	meta, rows, err := s.writeArtifact(ctx, run.ID)
	s.m.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		return s.fail(ctx, run, err, log)
	}

	var completed *Backup
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		registered, err := s.artifacts.Register(txCtx, meta)
		if err != nil {
			return err
		}
		completed, err = s.repo.Complete(txCtx, run.ID, s.clock.Now(), registered.ID)
		return err
	})
	if err != nil {
		_ = s.artifacts.Discard(ctx, meta.StorageKey, blob.ReasonBackupFailed)
		return s.fail(ctx, run, err, log)
	}

	s.m.runsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	log.Info().Int64("backup_id", run.ID).Int("employees", rows).Int64("artifact_blob_id", *completed.ArtifactBlobID).
		Msg("backup completed")
	return completed, nil
}

// writeArtifact は CSV の生成と保存をパイプでつなぎ、全体をメモリに載せずに書き込みます。
func (s *Service) writeArtifact(ctx context.Context, id int64) (*blob.Metadata, int, error) {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	var rows int
	g.Go(func() error {
		// 全バッチを 1 つの読み取り専用スナップショットから読み出します。
		err := s.tx.WithinReadOnly(gctx, func(txCtx context.Context) error {
			n, err := writeCSV(txCtx, pw, s.employees, s.batchSize)
			rows = n
			return err
		})
		pw.CloseWithError(err)
		return err
	})

	var meta *blob.Metadata
	g.Go(func() error {
		m, err := s.artifacts.Put(gctx, blob.KindBackup, blob.Upload{
			FileName:    fmt.Sprintf("employee_backup_%d.csv", id),
			ContentType: artifactContentType,
			Body:        pr,
		})
		pr.CloseWithError(err)
		meta = m
		return err
	})

	if err := g.Wait(); err != nil {
		if meta != nil {
			_ = s.artifacts.Discard(ctx, meta.StorageKey, blob.ReasonBackupFailed)
		}
		return nil, 0, err
	}
	return meta, rows, nil
}

// fail は実行中の行を FAILED に遷移させます。呼び出し元のキャンセルに関わらず記録します。
func (s *Service) fail(ctx context.Context, run *Backup, cause error, log zerolog.Logger) (*Backup, error) {
	ctx = context.WithoutCancel(ctx)

	var failed *Backup
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		var err error
		failed, err = s.repo.Fail(txCtx, run.ID, s.clock.Now())
		return err
	}); err != nil {
		log.Error().Err(err).AnErr("cause", cause).Int64("backup_id", run.ID).Msg("backup: failed to record failure")
		return nil, fmt.Errorf("backup: mark %d failed: %w", run.ID, err)
	}

	s.m.runsTotal.WithLabelValues(string(StatusFailed)).Inc()
	log.Error().Err(cause).Int64("backup_id", run.ID).Msg("backup failed")
	return failed, nil
}

// GetLatest は最新のバックアップを返します。status が nil なら状態を問いません。
func (s *Service) GetLatest(ctx context.Context, status *Status) (*Backup, error) {
	if status != nil && !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var latest *Backup
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindLatest(txCtx, status)
		if err != nil {
			return err
		}
		latest = found
		return nil
	}); err != nil {
		return nil, err
	}
	return latest, nil
}

// FindAll はバックアップをカーソルページングで取得します。
func (s *Service) FindAll(ctx context.Context, in SearchInput) (pagination.Page[*Backup], error) {
	q, err := pagination.Normalize(in.Page, SortKeys)
	if err != nil {
		return pagination.Page[*Backup]{}, err
	}

	filter := in.Filter
	filter.Worker = strings.TrimSpace(filter.Worker)
	if filter.Status != nil && !filter.Status.Valid() {
		return pagination.Page[*Backup]{}, ErrInvalidStatus
	}
	if filter.StartedAtFrom != nil && filter.StartedAtTo != nil && filter.StartedAtTo.Before(*filter.StartedAtFrom) {
		return pagination.Page[*Backup]{}, ErrInvalidDateRange
	}

	var page pagination.Page[*Backup]
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
		page, err = pagination.BuildPage(rows, q, total, func(b *Backup) pagination.Position {
			return Position(b, q.Key)
		})
		return err
	}); err != nil {
		return pagination.Page[*Backup]{}, err
	}

	return page, nil
}

// HasInProgress は実行中のバックアップがあるかを返します。呼び出し元のトランザクションに参加します。
func (s *Service) HasInProgress(ctx context.Context) (bool, error) {
	return s.repo.HasInProgress(ctx)
}

func (s *Service) anchor(ctx context.Context, key pagination.SortKey, id int64) (any, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBackupNotFound) {
			return nil, pagination.ErrAnchorNotFound
		}
		return nil, err
	}
	return Position(b, key).Value, nil
}

// Position は key における b のソート位置です。
func Position(b *Backup, key pagination.SortKey) pagination.Position {
	var v any
	switch key.Field {
	case "endedAt":
		if b.EndedAt != nil {
			v = *b.EndedAt
		}
	case "status":
		v = string(b.Status)
	default:
		v = b.StartedAt
	}
	return pagination.Position{Value: v, ID: b.ID}
}
