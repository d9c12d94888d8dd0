package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestRequestID はRequestIDミドルウェアを検証する。
func TestRequestID(t *testing.T) {
	t.Parallel()

	newRouter := func(got *string) *gin.Engine {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/", func(c *gin.Context) {
			*got = GetRequestID(c)
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("ヘッダーが無い場合はUUIDを生成すること", func(t *testing.T) {
		t.Parallel()

		var got string
		w := httptest.NewRecorder()
		newRouter(&got).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("リクエストID %q がUUIDではない: %v", got, err)
		}
		if w.Header().Get(HeaderRequestID) != got {
			t.Errorf("レスポンスヘッダー = %q, want %q", w.Header().Get(HeaderRequestID), got)
		}
	})

	t.Run("クライアント指定のIDを引き継ぐこと", func(t *testing.T) {
		t.Parallel()

		var got string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "upstream-123")
		w := httptest.NewRecorder()
		newRouter(&got).ServeHTTP(w, req)

		if got != "upstream-123" {
			t.Errorf("リクエストID = %q, want %q", got, "upstream-123")
		}
	})

	t.Run("長すぎるIDは破棄して再生成すること", func(t *testing.T) {
		t.Parallel()

		var got string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLength+1))
		w := httptest.NewRecorder()
		newRouter(&got).ServeHTTP(w, req)

		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("リクエストID %q がUUIDではない: %v", got, err)
		}
	})

	t.Run("ミドルウェア未適用なら空文字列を返すこと", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if got := GetRequestID(c); got != "" {
			t.Errorf("GetRequestID() = %q, want empty string", got)
		}
	})
}
