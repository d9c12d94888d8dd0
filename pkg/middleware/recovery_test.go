package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestRecovery はRecoveryミドルウェアを検証する。
func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("ダウンロード処理中のパニックで500が返ること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(RequestID(), Recovery())
		router.GET("/download/:filename", func(_ *gin.Context) {
			panic("テスト用パニック")
		})

		req := httptest.NewRequest(http.MethodGet, "/download/app.log", nil)
		req.Header.Set(HeaderRequestID, "req-panic")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["error"] != "ゲートウェイ内部でエラーが発生しました" {
			t.Errorf("error = %q, want %q", body["error"], "ゲートウェイ内部でエラーが発生しました")
		}
		if body["request_id"] != "req-panic" {
			t.Errorf("request_id = %q, want %q", body["request_id"], "req-panic")
		}
		if got := w.Header().Get(HeaderRequestID); got != "req-panic" {
			t.Errorf("%s = %q, want %q", HeaderRequestID, got, "req-panic")
		}
	})

	t.Run("パニックが発生しない場合は正常にレスポンスが返ること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("error型のパニック値でも500が返ること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.DELETE("/delete/:filename", func(_ *gin.Context) {
			panic(errors.New("テスト用エラー"))
		})

		req := httptest.NewRequest(http.MethodDelete, "/delete/app.log", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})

	t.Run("応答の書き込み開始後はJSONを追記せず中断すること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/download/:filename", func(c *gin.Context) {
			c.Status(http.StatusOK)
			_, _ = c.Writer.WriteString("partial")
			panic("ストリーム中のパニック")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/app.log", nil))

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Body.String(); got != "partial" {
			t.Errorf("本文 = %q, want %q", got, "partial")
		}
	})

	t.Run("ErrAbortHandlerは回復せずに再送出すること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/download/:filename", func(_ *gin.Context) {
			panic(http.ErrAbortHandler)
		})

		defer func() {
			if r := recover(); r != http.ErrAbortHandler {
				t.Errorf("recover() = %v, want %v", r, http.ErrAbortHandler)
			}
		}()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/download/app.log", nil))
		t.Error("パニックが再送出されなかった")
	})

	t.Run("パニック後もサーバーが次のリクエストを処理できること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.POST("/upload", func(_ *gin.Context) {
			panic(42)
		})
		router.GET("/list", func(c *gin.Context) {
			c.JSON(http.StatusOK, []string{})
		})

		w1 := httptest.NewRecorder()
		router.ServeHTTP(w1, httptest.NewRequest(http.MethodPost, "/upload", nil))
		if w1.Code != http.StatusInternalServerError {
			t.Errorf("1回目のステータスコード = %d, want %d", w1.Code, http.StatusInternalServerError)
		}

		w2 := httptest.NewRecorder()
		router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/list", nil))
		if w2.Code != http.StatusOK {
			t.Errorf("2回目のステータスコード = %d, want %d", w2.Code, http.StatusOK)
		}
	})
}
