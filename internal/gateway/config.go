package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ストレージバックエンドの種類。
const (
	// BackendS3 はAWS SDKを使用するS3バックエンド。
	BackendS3 = "s3"
	// BackendMinio はminio-goを使用するS3互換バックエンド。
	BackendMinio = "minio"
	// BackendMemory はプロセス内のみのバックエンド。開発・テスト用。
	BackendMemory = "memory"
)

// Config はゲートウェイの設定。LoadConfigで一度だけ構築し、以後変更しない。
type Config struct {
	// Port はリッスンポート。
	Port string
	// Bucket は操作対象のバケット名。
	Bucket string
	// StagingDir はステージングファイルを置くディレクトリ。
	StagingDir string
	// StorageBackend はバックエンドの種類（s3, minio, memory）。
	StorageBackend string
	// Region はバケットのリージョン。空の場合はSDKのチェーンに従う。
	Region string
	// S3Endpoint はS3互換サービス向けのカスタムエンドポイント。
	S3Endpoint string
	// S3ForcePathStyle はパススタイルURLを強制するかどうか。
	S3ForcePathStyle bool
	// MinioEndpoint はminioバックエンドの接続先（host:port）。
	MinioEndpoint string
	// MinioUseSSL はminioバックエンドへTLSで接続するかどうか。
	MinioUseSSL bool
	// MaxUploadMemory はマルチパートフォームをメモリに保持する最大バイト数。
	// 超過分は一時ファイルに退避される。
	MaxUploadMemory int64
	// CORSAllowedOrigins はCORSで許可するオリジン。
	CORSAllowedOrigins []string
	// JournalDB は操作ジャーナルのSQLiteファイルパス。空の場合は無効。
	JournalDB string
	// OTLPEndpoint はトレースの送信先。空の場合はエクスポートしない。
	OTLPEndpoint string
	// ServiceName はトレースのサービス名。
	ServiceName string
}

// LoadConfig は環境変数から設定を読み込む。
// getenvには通常os.Getenvを渡す。
func LoadConfig(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:           getEnvOr(getenv, "PORT", "5000"),
		Bucket:         getEnvOr(getenv, "S3_BUCKET", "your-s3-bucket-name"),
		StagingDir:     getEnvOr(getenv, "STAGING_DIR", "/tmp/uploads"),
		StorageBackend: strings.ToLower(getEnvOr(getenv, "STORAGE_BACKEND", BackendS3)),
		Region:         getenv("AWS_REGION"),
		S3Endpoint:     getenv("S3_ENDPOINT"),
		MinioEndpoint:  getEnvOr(getenv, "MINIO_ENDPOINT", "localhost:9000"),
		JournalDB:      getenv("JOURNAL_DB"),
		OTLPEndpoint:   strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		ServiceName:    getEnvOr(getenv, "OTEL_SERVICE_NAME", "s3logmanager"),
	}

	switch cfg.StorageBackend {
	case BackendS3, BackendMinio, BackendMemory:
	default:
		return Config{}, fmt.Errorf("不正なSTORAGE_BACKENDです: %q", cfg.StorageBackend)
	}

	var err error
	if cfg.S3ForcePathStyle, err = parseBool(getenv, "S3_FORCE_PATH_STYLE"); err != nil {
		return Config{}, err
	}
	if cfg.MinioUseSSL, err = parseBool(getenv, "MINIO_USE_SSL"); err != nil {
		return Config{}, err
	}

	maxMemory, err := humanize.ParseBytes(getEnvOr(getenv, "MAX_UPLOAD_MEMORY", "32MiB"))
	if err != nil {
		return Config{}, fmt.Errorf("MAX_UPLOAD_MEMORYの解析に失敗: %w", err)
	}
	cfg.MaxUploadMemory = int64(maxMemory)

	for _, o := range strings.Split(getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}
	return cfg, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(getenv func(string) string, key, defaultValue string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func parseBool(getenv func(string) string, key string) (bool, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%sの解析に失敗: %w", key, err)
	}
	return b, nil
}
