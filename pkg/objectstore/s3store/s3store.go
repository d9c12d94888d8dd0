// Package s3store はAWS SDK for Go v2を使ったobjectstore.ObjectStoreの実装を提供する。
//
// 認証情報はSDKのデフォルトクレデンシャルチェーン（環境変数、共有設定ファイル、
// インスタンスメタデータのIAMロール）から暗黙的に解決する。
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/nao1215/s3logmanager/pkg/objectstore"
)

// defaultRegion はSDKのチェーンでリージョンが決まらない場合に使うリージョン。
const defaultRegion = "us-east-1"

// listPageSize はListObjectsV2の1ページあたりの最大件数（S3の上限）。
const listPageSize = 1000

// API はこのパッケージが使用するS3操作のインターフェース。
// テスト時にモックへ差し替えるために定義する。
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ API = (*s3.Client)(nil)

// Options はS3クライアントの生成オプション。
type Options struct {
	// Bucket は操作対象のバケット名。
	Bucket string
	// Region はAWSリージョン。空の場合はSDKのチェーンに従う。
	Region string
	// Endpoint はS3互換サービス向けのカスタムエンドポイント。
	Endpoint string
	// ForcePathStyle はパススタイルURLを強制するかどうか。
	ForcePathStyle bool
}

// Store はS3バケットを操作するObjectStore。
type Store struct {
	// client はS3 APIクライアント。
	client API
	// bucket は操作対象のバケット名。
	bucket string
}

// New はデフォルトクレデンシャルチェーンからS3クライアントを生成する。
func New(ctx context.Context, opts Options) (*Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	return NewWithClient(client, opts.Bucket), nil
}

// NewWithClient は任意のAPI実装からStoreを生成する。主にテストで使用する。
func NewWithClient(client API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
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

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return s.convertError("put", key, err)
	}
	return nil
}

// Get はkeyの内容をwに書き込む。
func (s *Store) Get(ctx context.Context, key string, w io.Writer) (int64, error) {
	if err := objectstore.ValidateKey("get", s.bucket, key); err != nil {
		return 0, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, s.convertError("get", key, err)
	}
	defer out.Body.Close()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return n, objectstore.NewError("get", s.bucket, key, objectstore.ErrBackendUnavailable, err)
	}
	return n, nil
}

// List はバケット内の全キーを返す。
// ListObjectsV2のページをすべて辿り、S3が返した順序のまま連結する。
func (s *Store) List(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(listPageSize),
	})

	keys := make([]string, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.convertError("list", "", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Delete はkeyを削除する。S3は存在しないキーの削除も成功として扱う。
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := objectstore.ValidateKey("delete", s.bucket, key); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.convertError("delete", key, err)
	}
	return nil
}

// convertError はAWS SDKのエラーをobjectstore.Errorに変換する。
func (s *Store) convertError(op, key string, err error) error {
	return objectstore.NewError(op, s.bucket, key, classify(err), err)
}

// classify はAWS SDKのエラーから種別を判定する。
func classify(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return objectstore.ErrNotFound
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return objectstore.ErrNotFound
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return objectstore.ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return objectstore.ErrNotFound
		case "InvalidArgument", "InvalidObjectName", "KeyTooLongError", "InvalidBucketName":
			return objectstore.ErrInvalidInput
		}
	}
	return objectstore.ErrBackendUnavailable
}

var _ objectstore.ObjectStore = (*Store)(nil)
