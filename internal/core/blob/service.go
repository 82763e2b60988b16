package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/ogurasousui/hrbank-api/internal/platform/apperr"
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

const (
	defaultContentType = "application/octet-stream"
	sniffLength        = 3072
	maxFileNameLength  = 255
)

// Service はバイナリの保存と解放をまとめます。
//
// 実体の書き込みはトランザクション外で行い、管理情報の登録と解放は呼び出し元の
// トランザクション内で行います。実体の削除は outbox を経由して Sweeper が行います。
type Service struct {
	repo      Repository
	deletions DeletionRepository
	store     Store
	clock     Clock
	tx        TransactionManager
}

// UseCase はバイナリ管理の公開インターフェースです。
type UseCase interface {
	Put(ctx context.Context, kind string, in Upload) (*Metadata, error)
	Register(ctx context.Context, meta *Metadata) (*Metadata, error)
	Release(ctx context.Context, id int64, reason string) error
	Discard(ctx context.Context, storageKey, reason string) error
	Open(ctx context.Context, id int64) (*Metadata, io.ReadCloser, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, deletions DeletionRepository, store Store, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, deletions: deletions, store: store, clock: clock, tx: tx}
}

// Put は実体を Store に書き込み、未登録の管理情報を返します。
// ContentType が未指定の場合は先頭バイトから判定します。
func (s *Service) Put(ctx context.Context, kind string, in Upload) (*Metadata, error) {
	if in.Body == nil {
		return nil, ErrEmptyUpload
	}

	body := in.Body
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" || contentType == defaultContentType {
		head := make([]byte, sniffLength)
		n, err := io.ReadFull(in.Body, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("blob: read upload: %w", err)
		}
		if n == 0 {
			return nil, ErrEmptyUpload
		}
		head = head[:n]
		contentType = mimetype.Detect(head).String()
		body = io.MultiReader(bytes.NewReader(head), in.Body)
	}

	key := path.Join(kind, uuid.NewString())
	size, err := s.store.Put(ctx, key, body, contentType)
	if err != nil {
		return nil, apperr.WrapAs(err, ErrStoreFailure, "blob: put "+key)
	}
	if size == 0 {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			logger.FromContext(ctx).Warn().Err(delErr).Str("storage_key", key).Msg("blob: failed to remove empty object")
		}
		return nil, ErrEmptyUpload
	}

	return &Metadata{
		FileName:    normalizeFileName(in.FileName, key),
		ContentType: contentType,
		Size:        size,
		StorageKey:  key,
		CreatedAt:   s.clock.Now(),
	}, nil
}

// Register は Put 済みの管理情報を登録します。呼び出し元のトランザクションに参加します。
func (s *Service) Register(ctx context.Context, meta *Metadata) (*Metadata, error) {
	if meta == nil || meta.StorageKey == "" {
		return nil, ErrInvalidKey
	}
	return s.repo.Create(ctx, meta)
}

// Release は管理情報を削除し、実体の削除を outbox に積みます。
// 呼び出し元のトランザクションに参加するため、ロールバック時は実体が残ります。
func (s *Service) Release(ctx context.Context, id int64, reason string) error {
	if id <= 0 {
		return ErrInvalidID
	}
	meta, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil
		}
		return err
	}
	return s.deletions.Enqueue(ctx, meta.StorageKey, reason, s.clock.Now())
}

// Discard は登録に至らなかった実体の削除を独立したトランザクションで outbox に積みます。
func (s *Service) Discard(ctx context.Context, storageKey, reason string) error {
	if storageKey == "" {
		return ErrInvalidKey
	}
	ctx = context.WithoutCancel(ctx)
	err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.deletions.Enqueue(txCtx, storageKey, reason, s.clock.Now())
	})
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("storage_key", storageKey).Msg("blob: failed to enqueue discarded object")
	}
	return err
}

// Open は管理情報と実体のリーダーを返します。リーダーは呼び出し元が閉じます。
func (s *Service) Open(ctx context.Context, id int64) (*Metadata, io.ReadCloser, error) {
	if id <= 0 {
		return nil, nil, ErrInvalidID
	}

	var meta *Metadata
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		meta = found
		return nil
	}); err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Open(ctx, meta.StorageKey)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil, err
		}
		return nil, nil, apperr.WrapAs(err, ErrStoreFailure, "blob: open "+meta.StorageKey)
	}
	return meta, rc, nil
}

// normalizeFileName はパスを除いた表示用のファイル名を返します。
// 不正な UTF-8 は置き換え、列の上限である maxFileNameLength 文字に収めます。
func normalizeFileName(raw, key string) string {
	name := strings.ToValidUTF8(raw, "\uFFFD")
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = path.Base(key)
	}
	return truncate(name, maxFileNameLength)
}
