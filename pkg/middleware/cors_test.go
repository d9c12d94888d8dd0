package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// newCORSRouter はCORSミドルウェアを適用したテスト用ルーターを生成する。
func newCORSRouter(origins []string, called *bool) *gin.Engine {
	router := gin.New()
	router.Use(CORS(origins))
	handler := func(c *gin.Context) {
		if called != nil {
			*called = true
		}
		c.JSON(http.StatusOK, []string{"app.log"})
	}
	router.GET("/list", handler)
	router.OPTIONS("/list", handler)
	return router
}

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	t.Run("許可されたオリジンからのリクエストにCORSヘッダーが設定されること", func(t *testing.T) {
		t.Parallel()

		router := newCORSRouter([]string{"http://localhost:3000", "https://example.com"}, nil)
		req := httptest.NewRequest(http.MethodGet, "/list", nil)
		req.Header.Set("Origin", "https://example.com")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		want := map[string]string{
			"Access-Control-Allow-Origin":   "https://example.com",
			"Access-Control-Allow-Methods":  "GET, POST, DELETE, OPTIONS",
			"Access-Control-Allow-Headers":  "Content-Type, X-Request-ID",
			"Access-Control-Expose-Headers": "Content-Disposition, X-Request-ID",
			"Access-Control-Max-Age":        "86400",
		}
		for k, v := range want {
			if got := w.Header().Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
	})

	t.Run("ワイルドカード指定で任意のオリジンを許可すること", func(t *testing.T) {
		t.Parallel()

		router := newCORSRouter([]string{"*"}, nil)
		req := httptest.NewRequest(http.MethodGet, "/list", nil)
		req.Header.Set("Origin", "https://logs.example.org")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://logs.example.org" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://logs.example.org")
		}
	})

	t.Run("許可されていないオリジンにはCORSヘッダーが設定されないこと", func(t *testing.T) {
		t.Parallel()

		router := newCORSRouter([]string{"http://localhost:3000"}, nil)
		req := httptest.NewRequest(http.MethodGet, "/list", nil)
		req.Header.Set("Origin", "https://evil.com")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty string", got)
		}
	})

	t.Run("空のオリジンリストでCORSヘッダーが設定されないこと", func(t *testing.T) {
		t.Parallel()

		router := newCORSRouter(nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/list", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty string", got)
		}
	})

	t.Run("OPTIONSリクエストで204が返りハンドラーが呼ばれないこと", func(t *testing.T) {
		t.Parallel()

		called := false
		router := newCORSRouter([]string{"http://localhost:3000"}, &called)
		req := httptest.NewRequest(http.MethodOptions, "/list", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if called {
			t.Error("OPTIONSリクエストでハンドラーが呼ばれるべきではない")
		}
	})

	t.Run("GETリクエストではハンドラーが実行されること", func(t *testing.T) {
		t.Parallel()

		called := false
		router := newCORSRouter([]string{"http://localhost:3000"}, &called)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/list", nil))

		if !called {
			t.Error("GETリクエストでハンドラーが呼ばれるべき")
		}
	})
}
