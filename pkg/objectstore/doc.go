// Package objectstore はバケット上のオブジェクトを操作するストレージの抽象を提供する。
//
// ゲートウェイはこのパッケージのObjectStoreインターフェースだけに依存し、
// 認証情報の解決方法（インスタンスロール、環境変数など）は各実装が内部で扱う。
// 実装は s3store（AWS SDK）、miniostore（S3互換）、MemoryStore（インメモリ）の3種類。
//
// すべての実装はエラーを *Error で返し、種別は ErrNotFound、ErrBackendUnavailable、
// ErrInvalidInput のいずれかとして errors.Is で判定できる。
package objectstore
