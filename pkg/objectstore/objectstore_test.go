package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestError はErrorの種別判定とメッセージを検証する。
func TestError(t *testing.T) {
	t.Parallel()

	cause := errors.New("AccessDenied: access denied")

	tests := []struct {
		name     string
		kind     error
		wantKind string
		wantIs   error
	}{
		{name: "NotFound種別", kind: ErrNotFound, wantKind: "not_found", wantIs: ErrNotFound},
		{name: "InvalidInput種別", kind: ErrInvalidInput, wantKind: "invalid_input", wantIs: ErrInvalidInput},
		{name: "BackendUnavailable種別", kind: ErrBackendUnavailable, wantKind: "backend_unavailable", wantIs: ErrBackendUnavailable},
		{name: "種別未指定はBackendUnavailable", kind: nil, wantKind: "backend_unavailable", wantIs: ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewError("get", "logs", "app.log", tt.kind, cause)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, tt.wantKind, KindName(err))
			assert.Equal(t, "get logs/app.log: AccessDenied: access denied", err.Error())
		})
	}

	t.Run("キーが無い場合はバケットのみ表示する", func(t *testing.T) {
		t.Parallel()

		err := NewError("list", "logs", "", ErrBackendUnavailable, cause)
		assert.Equal(t, "list logs: AccessDenied: access denied", err.Error())
	})

	t.Run("fmt.Errorfでラップしても種別を判定できる", func(t *testing.T) {
		t.Parallel()

		err := fmt.Errorf("wrapped: %w", NewError("get", "logs", "a", ErrNotFound, nil))
		assert.True(t, IsNotFound(err))
		assert.False(t, IsInvalidInput(err))
	})

	t.Run("nilエラーの種別は空文字列", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, KindName(nil))
	})
}

// TestMemoryStore はMemoryStoreの基本操作を検証する。
func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("保存したバイト列をそのまま取得できる", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore("logs")
		require.NoError(t, store.Put(ctx, "app.log", strings.NewReader("hello"), 5, "text/plain"))

		var buf bytes.Buffer
		n, err := store.Get(ctx, "app.log", &buf)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
		assert.Equal(t, "hello", buf.String())
	})

	t.Run("存在しないキーはNotFound", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore("logs")
		_, err := store.Get(ctx, "missing.log", &bytes.Buffer{})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("空キーはInvalidInput", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore("logs")
		assert.True(t, IsInvalidInput(store.Put(ctx, "", strings.NewReader("x"), 1, "")))
		assert.True(t, IsInvalidInput(store.Delete(ctx, "")))
		_, err := store.Get(ctx, "", &bytes.Buffer{})
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("空バケットは空のスライスを返す", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore("logs")
		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, keys)
		assert.Empty(t, keys)
	})

	t.Run("一覧はキーの辞書順", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore("logs")
		for _, k := range []string{"c.log", "a.log", "b.log"} {
			require.NoError(t, store.Put(ctx, k, strings.NewReader(k), -1, ""))
		}
		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.log", "b.log", "c.log"}, keys)
	})

	t.Run("存在しないキーの削除は成功する", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore("logs")
		assert.NoError(t, store.Delete(ctx, "never-existed.log"))
	})

	t.Run("キャンセル済みコンテキストはBackendUnavailable", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore("logs")
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.List(cctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("並行アクセスで競合しない", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore("logs")
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = store.Put(ctx, "shared.log", strings.NewReader("data"), 4, "")
				_, _ = store.Get(ctx, "shared.log", &bytes.Buffer{})
				_, _ = store.List(ctx)
			}()
		}
		wg.Wait()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"shared.log"}, keys)
	})

	t.Run("Bucketは生成時の名前を返す", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "logs", NewMemoryStore("logs").Bucket())
	})
}
