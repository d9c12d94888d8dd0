package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// maxStagedExtLength はステージングファイル名に残す拡張子の最大長。
const maxStagedExtLength = 16

// stagingArea はアップロード・ダウンロード中のファイルを置く一時領域。
type stagingArea struct {
	// dir はステージングディレクトリのパス。
	dir string
}

// newStagingArea はステージングディレクトリを作成する。
func newStagingArea(dir string) (*stagingArea, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ステージングディレクトリの作成に失敗: %w", err)
	}
	return &stagingArea{dir: dir}, nil
}

// path はリクエストごとに一意なステージングファイルのパスを返す。
// nameはSecureFilename適用済みの名前で、空でもよい。
// ファイル名はuuidと短い拡張子のみで構成し、nameの長さに依存しない。
func (s *stagingArea) path(name string) string {
	base := uuid.New().String()
	if ext := filepath.Ext(name); len(ext) > 1 && len(ext) <= maxStagedExtLength {
		base += ext
	}
	return filepath.Join(s.dir, base)
}

// remove はステージングファイルを削除する。存在しない場合は何もしない。
func (s *stagingArea) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("ステージングファイルの削除に失敗: %s: %v", path, err)
	}
}
