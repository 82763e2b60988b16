package backup

import (
	"context"
	"errors"
	"time"

	"github.com/ogurasousui/hrbank-api/internal/platform/logger"
)

// Creator はバックアップを起動します。
type Creator interface {
	Create(ctx context.Context, worker string) (*Backup, error)
}

// Scheduler は一定間隔で WorkerSystem としてバックアップを起動します。
type Scheduler struct {
	creator  Creator
	interval time.Duration
}

// NewScheduler は Scheduler を生成します。
func NewScheduler(creator Creator, interval time.Duration) *Scheduler {
	return &Scheduler{creator: creator, interval: interval}
}

// Run は ctx が終了するまでバックアップを定期実行します。interval が 0 以下なら何もしません。
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log := logger.FromContext(ctx)
	log.Info().Dur("interval", s.interval).Msg("backup scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := s.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Warn().Err(err).Msg("backup scheduler: run failed")
		}
	}
}

// RunOnce はバックアップを 1 回起動します。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	run, err := s.creator.Create(ctx, WorkerSystem)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug().Int64("backup_id", run.ID).Str("status", string(run.Status)).Msg("backup scheduler: run finished")
	return nil
}
