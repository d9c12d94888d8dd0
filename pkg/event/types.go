// Package event はゲートウェイが実行した操作を表すイベントの型を提供する。
//
// イベントは操作の記録（ジャーナル）専用であり、一覧やダウンロードの応答には使わない。
// バケットの内容の正はあくまでバックエンド側にある。
package event

import (
	"encoding/json"
	"time"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeObjectUploaded はオブジェクトがアップロードされたことを表す。
	TypeObjectUploaded Type = "ObjectUploaded"
	// TypeObjectDownloaded はオブジェクトがダウンロードされたことを表す。
	TypeObjectDownloaded Type = "ObjectDownloaded"
	// TypeObjectDeleted はオブジェクトの削除が要求され、バックエンドが受理したことを表す。
	TypeObjectDeleted Type = "ObjectDeleted"
	// TypeObjectsListed はバケットの一覧が取得されたことを表す。
	TypeObjectsListed Type = "ObjectsListed"
	// TypeOperationFailed はバックエンド操作が失敗したことを表す。
	TypeOperationFailed Type = "OperationFailed"
)

// Event はジャーナルに記録される1件の操作イベント。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// RequestID はイベントを発生させたHTTPリクエストのID。
	RequestID string `json:"request_id,omitempty"`
	// Bucket は操作対象のバケット名。
	Bucket string `json:"bucket"`
	// Key は操作対象のオブジェクトキー。一覧の場合は空。
	Key string `json:"key,omitempty"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// ObjectUploadedData はObjectUploadedイベントのデータ。
type ObjectUploadedData struct {
	// OriginalFilename はクライアントが送信したサニタイズ前のファイル名。
	OriginalFilename string `json:"original_filename"`
	// ContentType は検出したMIMEタイプ。
	ContentType string `json:"content_type"`
	// Size はアップロードしたバイト数。
	Size int64 `json:"size"`
}

// ObjectDownloadedData はObjectDownloadedイベントのデータ。
type ObjectDownloadedData struct {
	// Size はダウンロードしたバイト数。
	Size int64 `json:"size"`
}

// ObjectDeletedData はObjectDeletedイベントのデータ。
type ObjectDeletedData struct{}

// ObjectsListedData はObjectsListedイベントのデータ。
type ObjectsListedData struct {
	// Count は返したキーの件数。
	Count int `json:"count"`
}

// OperationFailedData はOperationFailedイベントのデータ。
type OperationFailedData struct {
	// Operation は失敗した操作（upload, list, download, delete）。
	Operation string `json:"operation"`
	// Kind はエラー種別（not_found, backend_unavailable, invalid_input）。
	Kind string `json:"kind"`
	// Reason はバックエンドのエラーメッセージ。
	Reason string `json:"reason"`
}
