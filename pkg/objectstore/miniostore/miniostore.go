// Package miniostore はminio-goを使ったS3互換ストレージ向けのobjectstore.ObjectStore実装を提供する。
//
// 認証情報は環境変数（AWS_*、MINIO_*）とIAMロールのチェーンから解決し、
// アプリケーションからは明示的に渡さない。
package miniostore

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nao1215/s3logmanager/pkg/objectstore"
)

// Options はminioクライアントの生成オプション。
type Options struct {
	// Endpoint は接続先のホスト名とポート（例: "localhost:9000"）。
	Endpoint string
	// Bucket は操作対象のバケット名。
	Bucket string
	// Region はリージョン。空でない場合はバケット位置の問い合わせを省略する。
	Region string
	// UseSSL はTLSで接続するかどうか。
	UseSSL bool
}

// Store はS3互換バケットを操作するObjectStore。
type Store struct {
	client *minio.Client
	bucket string
}

// New は環境由来のクレデンシャルチェーンでminioクライアントを生成する。
func New(opts Options) (*Store, error) {
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
		&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
	})

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minioクライアントの生成に失敗: %w", err)
	}
	return &Store{client: client, bucket: opts.Bucket}, nil
}

// Bucket は操作対象のバケット名を返す。
func (s *Store) Bucket() string {
	return s.bucket
}

// Put はrの内容をkeyとしてアップロードする。
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := objectstore.ValidateKey("put", s.bucket, key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return s.convertError("put", key, err)
	}
	return nil
}

// Get はkeyの内容をwに書き込む。
// minioのGetObjectは遅延評価のため、存在しないキーのエラーは読み出し時に判明する。
func (s *Store) Get(ctx context.Context, key string, w io.Writer) (int64, error) {
	if err := objectstore.ValidateKey("get", s.bucket, key); err != nil {
		return 0, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return 0, s.convertError("get", key, err)
	}
	defer obj.Close()

	n, err := io.Copy(w, obj)
	if err != nil {
		return n, s.convertError("get", key, err)
	}
	return n, nil
}

// List はバケット内の全キーを返す。ディレクトリ相当のプレフィックスは除外する。
func (s *Store) List(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make([]string, 0)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, s.convertError("list", "", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Delete はkeyを削除する。
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := objectstore.ValidateKey("delete", s.bucket, key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.convertError("delete", key, err)
	}
	return nil
}

// convertError はminioのエラーをobjectstore.Errorに変換する。
func (s *Store) convertError(op, key string, err error) error {
	return objectstore.NewError(op, s.bucket, key, classify(err), err)
}

// classify はminioのエラーレスポンスのコードから種別を判定する。
func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return objectstore.ErrNotFound
	case "InvalidArgument", "InvalidObjectName", "KeyTooLongError", "InvalidBucketName", "XMinioInvalidObjectName":
		return objectstore.ErrInvalidInput
	}
	if resp.StatusCode == http.StatusNotFound {
		return objectstore.ErrNotFound
	}
	return objectstore.ErrBackendUnavailable
}

var _ objectstore.ObjectStore = (*Store)(nil)
