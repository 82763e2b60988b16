// Package s3 は S3 互換オブジェクトストレージを保存先とする blob.Store の実装です。
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"

	"github.com/ogurasousui/hrbank-api/internal/core/blob"
)

// ObjectAPI は Store が利用する S3 クライアントの操作です。
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options は接続先の設定です。
type Options struct {
	Bucket       string
	Region       string
	Prefix       string
	Endpoint     string
	UsePathStyle bool
}

// Store はキーに Prefix を付けたオブジェクトとして保存します。
type Store struct {
	client ObjectAPI
	bucket string
	prefix string
}

// New は既定の認証情報チェーンからクライアントを構成して Store を生成します。
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, errors.Wrap(err, "s3 store: load aws config")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return NewStore(client, opts.Bucket, opts.Prefix), nil
}

// NewStore は任意のクライアントで Store を生成します。
func NewStore(client ObjectAPI, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Put は本文を一時ファイルに退避してから PutObject します。
// 署名と Content-Length のためにシーク可能な本文が必要です。
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (int64, error) {
	if key == "" {
		return 0, blob.ErrInvalidKey
	}

	spool, err := os.CreateTemp("", "hrbank-s3-*")
	if err != nil {
		return 0, errors.Wrap(err, "s3 store: create spool")
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	size, err := io.Copy(spool, body)
	if err != nil {
		return 0, errors.Wrapf(err, "s3 store: spool %s", key)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "s3 store: rewind spool")
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          spool,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return 0, errors.Wrapf(err, "s3 store: put bucket:%s, key:%s", s.bucket, s.objectKey(key))
	}
	return size, nil
}

// Open はオブジェクトの本文を返します。存在しない場合は blob.ErrObjectNotFound を返します。
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blob.ErrObjectNotFound
		}
		return nil, errors.Wrapf(err, "s3 store: get bucket:%s, key:%s", s.bucket, s.objectKey(key))
	}
	return out.Body, nil
}

// Delete はオブジェクトを削除します。存在しない場合も成功扱いです。
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return errors.Wrapf(err, "s3 store: delete bucket:%s, key:%s", s.bucket, s.objectKey(key))
	}
	return nil
}

func (s *Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
