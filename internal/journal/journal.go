package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nao1215/s3logmanager/pkg/event"
	"github.com/nao1215/s3logmanager/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MaxLimit はRecentで一度に取得できる最大件数。
const MaxLimit = 500

// Journal はSQLiteに操作イベントを記録する。
type Journal struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// Open はpathのSQLiteデータベースを開き、マイグレーションを適用する。
// pathに ":memory:" を指定するとプロセス内のみのジャーナルになる。
func Open(ctx context.Context, path string) (*Journal, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append はイベントを1件追記する。
func (j *Journal) Append(ctx context.Context, e *event.Event) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (id, request_id, bucket, object_key, event_type, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.Bucket, e.Key, string(e.EventType), string(e.Data),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("イベントの追記に失敗: %w", err)
	}
	return nil
}

// Recent は新しい順に最大limit件のイベントを返す。
// limitは1からMaxLimitの範囲に丸める。
func (j *Journal) Recent(ctx context.Context, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, request_id, bucket, object_key, event_type, data, created_at
		 FROM events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]event.Event, 0, limit)
	for rows.Next() {
		var (
			e         event.Event
			eventType string
			data      string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Bucket, &e.Key, &eventType, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("イベントの読み取りに失敗: %w", err)
		}
		e.EventType = event.Type(eventType)
		e.Data = []byte(data)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("作成日時の解析に失敗: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
