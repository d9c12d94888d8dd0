package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ObjectStore はキー単位でオブジェクトを保存・取得・列挙・削除するストレージ。
// 対象バケットは実装の生成時に固定され、リクエストごとには変わらない。
type ObjectStore interface {
	// Put はrの内容をkeyとして保存する。sizeが不明な場合は-1を渡す。
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get はkeyの内容をwに書き込み、書き込んだバイト数を返す。
	Get(ctx context.Context, key string, w io.Writer) (int64, error)
	// List はバケット内の全キーをバックエンドが返した順序のまま返す。
	List(ctx context.Context) ([]string, error)
	// Delete はkeyを削除する。存在しないキーの扱いはバックエンドに従う。
	Delete(ctx context.Context, key string) error
	// Bucket は操作対象のバケット名を返す。
	Bucket() string
}

// エラー種別。*Error.Kind に格納され、errors.Is で判定する。
var (
	// ErrNotFound はオブジェクトまたはバケットが存在しないことを表す。
	ErrNotFound = errors.New("objectstore: not found")
	// ErrBackendUnavailable はネットワーク、権限、スロットリングなどバックエンド側の失敗を表す。
	ErrBackendUnavailable = errors.New("objectstore: backend unavailable")
	// ErrInvalidInput はキーなどの入力が不正であることを表す。
	ErrInvalidInput = errors.New("objectstore: invalid input")
)

// Error はストレージ操作の失敗を表す。
type Error struct {
	// Op は失敗した操作名（put, get, list, delete）。
	Op string
	// Bucket は対象バケット名。
	Bucket string
	// Key は対象オブジェクトのキー。list では空。
	Key string
	// Kind はエラー種別を表す番兵エラー。
	Kind error
	// Err はバックエンドから返された元のエラー。
	Err error
}

// NewError は新しいErrorを生成する。kindがnilの場合はErrBackendUnavailableとして扱う。
func NewError(op, bucket, key string, kind, err error) *Error {
	if kind == nil {
		kind = ErrBackendUnavailable
	}
	if err == nil {
		err = kind
	}
	return &Error{Op: op, Bucket: bucket, Key: key, Kind: kind, Err: err}
}

// Error はバックエンドのエラーメッセージを操作名付きで返す。
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Bucket, e.Err)
}

// Unwrap は種別と元のエラーの両方を返す。
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindName はエラー種別をレスポンス用の文字列に変換する。
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "backend_unavailable"
	}
}

// IsNotFound はerrがErrNotFound種別かどうかを判定する。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput はerrがErrInvalidInput種別かどうかを判定する。
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// ValidateKey はキーが空でないことを検証する。
func ValidateKey(op, bucket, key string) error {
	if key == "" {
		return NewError(op, bucket, key, ErrInvalidInput, errors.New("empty object key"))
	}
	return nil
}
