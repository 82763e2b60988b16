package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryer は pgx.Tx と pgxpool.Pool の共通部分です。リポジトリはこれだけに依存します。
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type txStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type txKey struct{}

var (
	readOnlyOptions  = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	readWriteOptions = pgx.TxOptions{AccessMode: pgx.ReadWrite}
)

// TransactionManager はユースケース単位の作業単位を ctx に載せて受け渡します。
//
// 最も外側の呼び出しだけがトランザクションを開始・確定し、内側の呼び出しは
// ctx 上の pgx.Tx にそのまま参加します。社員の変更と変更履歴の書き込みは
// これによって 1 つのコミットにまとまります。nil の TransactionManager は
// トランザクションを張らずに fn を実行します。
type TransactionManager struct {
	pool txStarter
}

// NewTransactionManager は pool からトランザクションを開始する TransactionManager を返します。
func NewTransactionManager(pool txStarter) *TransactionManager {
	if pool == nil {
		return nil
	}
	return &TransactionManager{pool: pool}
}

// WithinReadOnly は repeatable read の読み取り専用スナップショットで fn を実行します。
// 件数とページ、バックアップの全件読み出しは同じ時点のデータを見ます。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return m.run(ctx, readOnlyOptions, fn)
}

// WithinReadWrite は既定の分離レベルの読み書きトランザクションで fn を実行します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return m.run(ctx, readWriteOptions, fn)
}

func (m *TransactionManager) run(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("postgres: transaction function is required")
	}
	if m == nil {
		return fn(ctx)
	}
	if _, joined := txFromContext(ctx); joined {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := rollback(ctx, tx, "rollback"); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		commitErr := fmt.Errorf("postgres: commit: %w", err)
		if errors.Is(err, pgx.ErrTxClosed) {
			return commitErr
		}
		if rbErr := rollback(ctx, tx, "rollback after commit failure"); rbErr != nil {
			return errors.Join(commitErr, rbErr)
		}
		return commitErr
	}
	return nil
}

// rollback は既に閉じたトランザクションを無視して巻き戻します。
func rollback(ctx context.Context, tx pgx.Tx, what string) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: %s: %w", what, err)
	}
	return nil
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// QueryerFromContext は ctx に参加中のトランザクションがあればそれを、なければ fallback を返します。
func QueryerFromContext(ctx context.Context, fallback Queryer) Queryer {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return fallback
}
