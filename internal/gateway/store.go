package gateway

import (
	"context"
	"fmt"

	"github.com/nao1215/s3logmanager/pkg/objectstore"
	"github.com/nao1215/s3logmanager/pkg/objectstore/miniostore"
	"github.com/nao1215/s3logmanager/pkg/objectstore/s3store"
)

// OpenStore は設定に従ってObjectStoreを生成する。
// 認証情報はいずれのバックエンドも実行環境から暗黙的に解決する。
func OpenStore(ctx context.Context, cfg Config) (objectstore.ObjectStore, error) {
	switch cfg.StorageBackend {
	case BackendS3:
		store, err := s3store.New(ctx, s3store.Options{
			Bucket:         cfg.Bucket,
			Region:         cfg.Region,
			Endpoint:       cfg.S3Endpoint,
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("S3クライアントの生成に失敗: %w", err)
		}
		return store, nil
	case BackendMinio:
		store, err := miniostore.New(miniostore.Options{
			Endpoint: cfg.MinioEndpoint,
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			UseSSL:   cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minioクライアントの生成に失敗: %w", err)
		}
		return store, nil
	case BackendMemory:
		return objectstore.NewMemoryStore(cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("未対応のストレージバックエンドです: %q", cfg.StorageBackend)
	}
}
