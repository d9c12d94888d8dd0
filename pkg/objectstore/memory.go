package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
)

// MemoryStore はプロセス内のマップにオブジェクトを保持するObjectStore。
// ローカル開発とテストで使用する。
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string][]byte),
	}
}

// Bucket は操作対象のバケット名を返す。
func (m *MemoryStore) Bucket() string {
	return m.bucket
}

// Put はrの内容を読み切ってkeyとして保存する。
func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	if err := ValidateKey("put", m.bucket, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return NewError("put", m.bucket, key, ErrBackendUnavailable, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return NewError("put", m.bucket, key, ErrBackendUnavailable, err)
	}

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

// Get はkeyの内容をwに書き込む。
func (m *MemoryStore) Get(ctx context.Context, key string, w io.Writer) (int64, error) {
	if err := ValidateKey("get", m.bucket, key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, NewError("get", m.bucket, key, ErrBackendUnavailable, err)
	}

	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return 0, NewError("get", m.bucket, key, ErrNotFound, errors.New("NoSuchKey: the specified key does not exist"))
	}

	n, err := io.Copy(w, bytes.NewReader(data))
	if err != nil {
		return n, NewError("get", m.bucket, key, ErrBackendUnavailable, err)
	}
	return n, nil
}

// List は全キーを辞書順で返す。S3のListObjectsV2と同じ順序になる。
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("list", m.bucket, "", ErrBackendUnavailable, err)
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// Delete はkeyを削除する。存在しないキーでもエラーにしない。
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey("delete", m.bucket, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return NewError("delete", m.bucket, key, ErrBackendUnavailable, err)
	}

	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

var _ ObjectStore = (*MemoryStore)(nil)
