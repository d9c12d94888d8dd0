package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nao1215/s3logmanager/pkg/event"
	"github.com/nao1215/s3logmanager/pkg/middleware"
	"github.com/nao1215/s3logmanager/pkg/objectstore"
)

const (
	// defaultEventsLimit は/eventsでlimit未指定時に返す件数。
	defaultEventsLimit = 50
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 10 * time.Second
	// kindStagingFailed はステージング領域の入出力失敗を示すkind。
	kindStagingFailed = "staging_failed"
)

// errStaging はゲートウェイ自身のステージング領域での失敗を表す。
// バックエンドの障害とは区別し、OperationFailedとしては記録しない。
var errStaging = errors.New("staging failure")

// Recorder は操作イベントを記録するジャーナル。
// 記録専用であり、一覧やダウンロードの応答には使用しない。
type Recorder interface {
	// Append はイベントを1件追記する。
	Append(ctx context.Context, e *event.Event) error
	// Recent は新しい順に最大limit件のイベントを返す。
	Recent(ctx context.Context, limit int) ([]event.Event, error)
}

// Server はS3ログマネージャーゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は計測ラッパー付きのObjectStore。
	store objectstore.ObjectStore
	// staging はステージング領域。
	staging *stagingArea
	// recorder は操作ジャーナル。nilの場合は記録しない。
	recorder Recorder
	// registry はこのサーバーのメトリクスレジストリ。
	registry *prometheus.Registry
}

// NewServer は新しいゲートウェイサーバーを生成する。
// ステージングディレクトリの作成も行う。recorderはnilでもよい。
func NewServer(cfg Config, store objectstore.ObjectStore, recorder Recorder) (*Server, error) {
	staging, err := newStagingArea(cfg.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("ステージング領域の初期化に失敗: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	router.Use(middleware.Metrics(middleware.NewHTTPMetrics(registry)))
	router.Use(middleware.Tracing(nil))

	// マルチパートフォームの最大メモリを設定する。超過分は一時ファイルに退避される。
	if cfg.MaxUploadMemory > 0 {
		router.MaxMultipartMemory = cfg.MaxUploadMemory
	}

	s := &Server{
		router:   router,
		port:     cfg.Port,
		store:    objectstore.Instrument(store, objectstore.NewMetrics(registry)),
		staging:  staging,
		recorder: recorder,
		registry: registry,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はルーティング済みのHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHealth())
	s.router.POST("/upload", s.handleUpload())
	s.router.GET("/list", s.handleList())
	s.router.GET("/download/:filename", s.handleDownload())
	s.router.DELETE("/delete/:filename", s.handleDelete())

	s.router.GET("/metrics", middleware.MetricsHandler(s.registry))
	s.router.GET("/events", s.handleEvents())
}

// handleHealth はヘルスチェックを返すハンドラを返す。バックエンドには触れない。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "S3 Log Manager is running",
			"bucket":  s.store.Bucket(),
		})
	}
}

// handleUpload はファイルのアップロードを処理するハンドラを返す。
// マルチパートフォームのfileフィールドをステージングファイルに保存し、
// 安全化したファイル名をキーとしてバケットに格納する。
func (s *Server) handleUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			// ファイル名が空のパートはファイルではなく値として解析される。
			if form := c.Request.MultipartForm; form != nil {
				if _, ok := form.Value["file"]; ok {
					c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
					return
				}
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
			return
		}
		if header.Filename == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
			return
		}

		key := SecureFilename(header.Filename)
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filename", "kind": "invalid_input"})
			return
		}

		src, err := header.Open()
		if err != nil {
			log.Printf("アップロードファイルのオープンに失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "アップロードファイルの読み込みに失敗しました"})
			return
		}
		defer src.Close()

		stagedPath := s.staging.path(key)
		defer s.staging.remove(stagedPath)

		size, err := stageFile(stagedPath, src)
		if err != nil {
			log.Printf("[upload] ステージングに失敗: request_id=%s key=%q: %v",
				middleware.GetRequestID(c), key, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ファイルの保存に失敗しました"})
			return
		}

		contentType := "application/octet-stream"
		if mt, err := mimetype.DetectFile(stagedPath); err == nil {
			contentType = mt.String()
		}

		staged, err := os.Open(stagedPath)
		if err != nil {
			log.Printf("ステージングファイルのオープンに失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ファイルの読み込みに失敗しました"})
			return
		}
		defer staged.Close()

		if err := s.store.Put(c.Request.Context(), key, staged, size, contentType); err != nil {
			s.failBackend(c, "upload", key, err)
			c.JSON(backendStatus(err), gin.H{"error": err.Error()})
			return
		}

		log.Printf("アップロード完了: %s (%s, %s)", key, humanize.IBytes(uint64(size)), contentType)
		s.record(c, key, event.TypeObjectUploaded, event.ObjectUploadedData{
			OriginalFilename: header.Filename,
			ContentType:      contentType,
			Size:             size,
		})
		c.JSON(http.StatusOK, gin.H{
			"message":  fmt.Sprintf("File %s uploaded successfully", key),
			"bucket":   s.store.Bucket(),
			"filename": key,
		})
	}
}

// handleList はバケット内の全キーを返すハンドラを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := s.store.List(c.Request.Context())
		if err != nil {
			s.failBackend(c, "list", "", err)
			c.JSON(backendStatus(err), gin.H{"error": err.Error()})
			return
		}
		if keys == nil {
			keys = []string{}
		}

		s.record(c, "", event.TypeObjectsListed, event.ObjectsListedData{Count: len(keys)})
		c.JSON(http.StatusOK, gin.H{
			"files":       keys,
			"total_files": len(keys),
		})
	}
}

// handleDownload はオブジェクトを添付ファイルとして返すハンドラを返す。
// キーはパスの値をそのまま使用し、ファイルシステム上のパスには使わない。
// 失敗時はエラー種別にかかわらず404を返し、種別をkindで示す。
// ステージングファイルは直接ストリームし、Rangeや条件付きGETは扱わない。
func (s *Server) handleDownload() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("filename")

		stagedPath := s.staging.path(SecureFilename(key))
		defer s.staging.remove(stagedPath)

		size, err := s.fetch(c.Request.Context(), key, stagedPath)
		if err != nil {
			s.failDownload(c, key, err)
			return
		}

		staged, err := os.Open(stagedPath)
		if err != nil {
			s.failDownload(c, key, fmt.Errorf("%w: ステージングファイルのオープンに失敗: %w", errStaging, err))
			return
		}
		defer staged.Close()

		contentType := "application/octet-stream"
		if mt, err := mimetype.DetectFile(stagedPath); err == nil {
			contentType = mt.String()
		}

		c.Header("Content-Disposition", attachmentDisposition(key))
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", strconv.FormatInt(size, 10))
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, staged); err != nil {
			log.Printf("[download] 応答の書き込みに失敗: request_id=%s key=%q: %v",
				middleware.GetRequestID(c), key, err)
			return
		}

		s.record(c, key, event.TypeObjectDownloaded, event.ObjectDownloadedData{Size: size})
	}
}

// failDownload はダウンロードの失敗を404で返す。
// ステージングの失敗はログのみに出力し、バックエンドの失敗として記録しない。
func (s *Server) failDownload(c *gin.Context, key string, err error) {
	kind := objectstore.KindName(err)
	if errors.Is(err, errStaging) {
		kind = kindStagingFailed
		log.Printf("[download] ステージングに失敗: request_id=%s key=%q: %v",
			middleware.GetRequestID(c), key, err)
	} else {
		s.failBackend(c, "download", key, err)
	}
	c.JSON(http.StatusNotFound, gin.H{
		"error": err.Error(),
		"kind":  kind,
	})
}

// handleDelete はオブジェクトを削除するハンドラを返す。存在確認は行わない。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("filename")

		if err := s.store.Delete(c.Request.Context(), key); err != nil {
			s.failBackend(c, "delete", key, err)
			c.JSON(backendStatus(err), gin.H{"error": err.Error()})
			return
		}

		s.record(c, key, event.TypeObjectDeleted, event.ObjectDeletedData{})
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("File %s deleted successfully", key),
			"bucket":  s.store.Bucket(),
		})
	}
}

// handleEvents は操作ジャーナルの新しいイベントを返すハンドラを返す。
func (s *Server) handleEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.recorder == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Operation journal is disabled"})
			return
		}

		limit := defaultEventsLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		events, err := s.recorder.Recent(c.Request.Context(), limit)
		if err != nil {
			log.Printf("ジャーナルの取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ジャーナルの取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

// fetch はkeyのオブジェクトをステージングファイルへ書き出し、バイト数を返す。
func (s *Server) fetch(ctx context.Context, key, stagedPath string) (int64, error) {
	f, err := os.Create(stagedPath)
	if err != nil {
		return 0, fmt.Errorf("%w: ステージングファイルの作成に失敗: %w", errStaging, err)
	}

	n, err := s.store.Get(ctx, key, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: ステージングファイルのクローズに失敗: %w", errStaging, cerr)
	}
	return n, err
}

// attachmentDisposition はnameを添付ファイル名とするContent-Dispositionを返す。
// 印字可能なASCIIのみの名前は引用符で囲み、それ以外はRFC 5987形式で符号化する。
func attachmentDisposition(name string) string {
	if isPrintableASCII(name) {
		return `attachment; filename="` + quoteEscaper.Replace(name) + `"`
	}
	return `attachment; filename*=UTF-8''` + url.QueryEscape(name)
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// stageFile はsrcの内容をpathに書き出し、書き込んだバイト数を返す。
func stageFile(path string, src io.Reader) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// backendStatus はバックエンドエラーをHTTPステータスに変換する。
// 入力不正は400、それ以外は500とする。
func backendStatus(err error) int {
	if objectstore.IsInvalidInput(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// failBackend はバックエンド操作の失敗をログに出力し、ジャーナルに記録する。
func (s *Server) failBackend(c *gin.Context, op, key string, err error) {
	kind := objectstore.KindName(err)
	if kind != "invalid_input" {
		log.Printf("[%s] バックエンド操作に失敗: request_id=%s key=%q kind=%s: %v",
			op, middleware.GetRequestID(c), key, kind, err)
	}
	s.record(c, key, event.TypeOperationFailed, event.OperationFailedData{
		Operation: op,
		Kind:      kind,
		Reason:    err.Error(),
	})
}

// record はイベントをジャーナルに追記する。
// 記録の失敗はログに出力するのみで、リクエストの結果には影響させない。
func (s *Server) record(c *gin.Context, key string, eventType event.Type, data any) {
	if s.recorder == nil {
		return
	}
	ev, err := event.New(middleware.GetRequestID(c), s.store.Bucket(), key, eventType, data)
	if err != nil {
		log.Printf("イベント生成に失敗: %v", err)
		return
	}
	if err := s.recorder.Append(context.WithoutCancel(c.Request.Context()), ev); err != nil {
		log.Printf("ジャーナルへの記録に失敗: %s %q: %v", eventType, key, err)
	}
}
