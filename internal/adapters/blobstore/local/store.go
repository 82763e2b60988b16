// Package local はローカルファイルシステムを保存先とする blob.Store の実装です。
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ogurasousui/hrbank-api/internal/core/blob"
)

// Store は root 配下にキーと同じ相対パスでファイルを保存します。
type Store struct {
	root string
}

// NewStore は Store を生成し、root ディレクトリを作成します。
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("local store: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local store: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("local store: create root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Put は一時ファイルに書き込んでから rename し、途中で失敗したファイルを残しません。
func (s *Store) Put(ctx context.Context, key string, body io.Reader, _ string) (int64, error) {
	target, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, fmt.Errorf("local store: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("local store: create temp: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, contextReader{ctx: ctx, r: body})
	if err != nil {
		return 0, fmt.Errorf("local store: write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("local store: sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("local store: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("local store: rename %s: %w", key, err)
	}
	return size, nil
}

// Open はファイルを開きます。存在しない場合は blob.ErrObjectNotFound を返します。
func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, blob.ErrObjectNotFound
		}
		return nil, fmt.Errorf("local store: open %s: %w", key, err)
	}
	return f, nil
}

// Delete はファイルを削除します。存在しない場合も成功扱いです。
func (s *Store) Delete(_ context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local store: delete %s: %w", key, err)
	}
	return nil
}

// path はキーを root 配下の絶対パスに変換します。root の外を指すキーは拒否します。
func (s *Store) path(key string) (string, error) {
	if key == "" || strings.Contains(key, `\`) || filepath.IsAbs(key) {
		return "", blob.ErrInvalidKey
	}
	target := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", blob.ErrInvalidKey
	}
	return target, nil
}

// contextReader は ctx のキャンセルで読み込みを打ち切ります。
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
