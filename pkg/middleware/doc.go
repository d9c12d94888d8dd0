// Package middleware はゲートウェイのGinルーターで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、リクエストID付与、CORS設定、Prometheusメトリクス、
// OpenTelemetryのサーバースパンを含む。
package middleware
