package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ogurasousui/hrbank-api/internal/platform/logger"
)

const lastErrorMaxLen = 1024

// SweeperOptions は Sweeper の動作設定です。
type SweeperOptions struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	MaxBackoff  time.Duration
	// LockTTL を過ぎたロックは別のワーカーが奪えます。
	LockTTL time.Duration
}

func (o *SweeperOptions) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = time.Hour
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 5 * time.Minute
	}
}

// Sweeper は outbox に積まれた実体削除を Store に反映するワーカーです。
type Sweeper struct {
	deletions DeletionRepository
	store     Store
	clock     Clock
	tx        TransactionManager
	opts      SweeperOptions
	m         *metrics
}

// NewSweeper は Sweeper を生成します。
func NewSweeper(deletions DeletionRepository, store Store, clock Clock, tx TransactionManager, opts SweeperOptions) *Sweeper {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	opts.setDefaults()
	return &Sweeper{deletions: deletions, store: store, clock: clock, tx: tx, opts: opts, m: metricsSingleton()}
}

// Run は ctx が終了するまで一定間隔で SweepOnce を実行します。
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	log := logger.FromContext(ctx)
	log.Info().Dur("interval", s.opts.Interval).Msg("blob sweeper started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := s.SweepOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Warn().Err(err).Msg("blob sweeper: tick failed")
		}
	}
}

// SweepOnce は処理可能な行を 1 バッチ分処理し、削除に成功した件数を返します。
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()

	var claimed []*Deletion
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		rows, err := s.deletions.Claim(txCtx, now, now.Add(-s.opts.LockTTL), s.opts.MaxAttempts, s.opts.BatchSize)
		if err != nil {
			return err
		}
		claimed = rows
		return nil
	}); err != nil {
		return 0, fmt.Errorf("blob sweeper: claim: %w", err)
	}

	log := logger.FromContext(ctx)
	deleted := 0
	for _, d := range claimed {
		err := s.store.Delete(ctx, d.StorageKey)
		if err == nil {
			s.m.deletedTotal.WithLabelValues("success").Inc()
			if ackErr := s.deletions.Ack(ctx, d.ID, s.clock.Now()); ackErr != nil {
				log.Warn().Err(ackErr).Int64("deletion_id", d.ID).Msg("blob sweeper: ack failed")
			}
			deleted++
			continue
		}

		s.m.deletedTotal.WithLabelValues("failure").Inc()
		lastErr := truncate(err.Error(), lastErrorMaxLen)
		next := s.clock.Now().Add(RetryDelay(d.Attempts, s.opts.MaxBackoff))
		if d.Attempts >= s.opts.MaxAttempts {
			s.m.deadTotal.Inc()
			log.Error().Err(err).Int64("deletion_id", d.ID).Str("storage_key", d.StorageKey).Int("attempts", d.Attempts).
				Msg("blob sweeper: giving up on stored object")
		}
		if nackErr := s.deletions.Nack(ctx, d.ID, lastErr, next); nackErr != nil {
			log.Warn().Err(nackErr).Int64("deletion_id", d.ID).Msg("blob sweeper: nack failed")
		}
	}

	if pending, err := s.deletions.CountPending(ctx); err == nil {
		s.m.pending.Set(float64(pending))
	}

	return deleted, nil
}

// RetryDelay は attempts 回目の失敗後に次の試行まで待つ時間です。1 秒から倍々に増え max で頭打ちになります。
func RetryDelay(attempts int, maxDelay time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

// truncate は s を先頭 n 文字までに切り詰めます。文字の途中では切りません。
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
