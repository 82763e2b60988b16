// Package logger は zerolog ベースの構造化ロガーを提供します。
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu     sync.RWMutex
	global = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Options はロガーの初期化オプションです。
type Options struct {
	Level string
	File  string
}

// Init はグローバルロガーを構成します。File が指定されていれば標準出力と併せて追記します。
// 返却される io.Closer はファイルを閉じるために使用します。
func Init(opts Options) (io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logger: parse level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	writers := []io.Writer{os.Stdout}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
		if err != nil {
			return nil, fmt.Errorf("logger: open %s: %w", opts.File, err)
		}
		writers = append(writers, file)
		closer = file
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()

	mu.Lock()
	global = l
	mu.Unlock()
	log.Logger = l

	return closer, nil
}

// L はグローバルロガーを返します。
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := global
	return &l
}

// WithFields はフィールドを付与したロガーを ctx に格納します。
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	l := FromContext(ctx).With().Fields(fields).Logger()
	return l.WithContext(ctx)
}

// FromContext は ctx のロガーを返し、存在しなければグローバルロガーを返します。
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		l := zerolog.Ctx(ctx)
		if l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return L()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
