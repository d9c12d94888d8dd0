package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("ObjectUploadedDataでイベントを生成できること", func(t *testing.T) {
		t.Parallel()

		data := ObjectUploadedData{
			OriginalFilename: "../app log.txt",
			ContentType:      "text/plain; charset=utf-8",
			Size:             2048,
		}

		before := time.Now().UTC()
		ev, err := New("req-1", "logs", "app_log.txt", TypeObjectUploaded, data)
		after := time.Now().UTC()
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		if _, err := uuid.Parse(ev.ID); err != nil {
			t.Errorf("IDがUUIDではない: %q", ev.ID)
		}
		if ev.RequestID != "req-1" {
			t.Errorf("RequestID = %q, want %q", ev.RequestID, "req-1")
		}
		if ev.Bucket != "logs" {
			t.Errorf("Bucket = %q, want %q", ev.Bucket, "logs")
		}
		if ev.Key != "app_log.txt" {
			t.Errorf("Key = %q, want %q", ev.Key, "app_log.txt")
		}
		if ev.EventType != TypeObjectUploaded {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypeObjectUploaded)
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		var decoded ObjectUploadedData
		if err := json.Unmarshal(ev.Data, &decoded); err != nil {
			t.Fatalf("Dataのデシリアライズに失敗: %v", err)
		}
		if decoded != data {
			t.Errorf("Data = %+v, want %+v", decoded, data)
		}
	})

	t.Run("IDは呼び出しごとに異なること", func(t *testing.T) {
		t.Parallel()

		ev1, err := New("", "logs", "", TypeObjectsListed, ObjectsListedData{Count: 1})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		ev2, err := New("", "logs", "", TypeObjectsListed, ObjectsListedData{Count: 1})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if ev1.ID == ev2.ID {
			t.Errorf("IDが重複している: %q", ev1.ID)
		}
	})

	t.Run("シリアライズできないデータはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New("", "logs", "k", TypeObjectDeleted, make(chan int)); err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestDecodeData はDecodeData関数を検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	t.Run("OperationFailedDataを復元できること", func(t *testing.T) {
		t.Parallel()

		ev, err := New("req-9", "logs", "missing.log", TypeOperationFailed, OperationFailedData{
			Operation: "download",
			Kind:      "not_found",
			Reason:    "NoSuchKey",
		})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		got, err := DecodeData[OperationFailedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if got.Operation != "download" || got.Kind != "not_found" || got.Reason != "NoSuchKey" {
			t.Errorf("DecodeData() = %+v", got)
		}
	})

	t.Run("不正なJSONはエラーになること", func(t *testing.T) {
		t.Parallel()

		ev := &Event{Data: json.RawMessage(`{invalid`)}
		if _, err := DecodeData[ObjectsListedData](ev); err == nil {
			t.Fatal("DecodeData()がエラーを返すべきだが、nilが返った")
		}
	})
}
