// S3ログマネージャーゲートウェイのエントリポイント。
// アップロード、一覧取得、ダウンロード、削除のHTTPリクエストを
// 単一バケットへのストレージ操作に変換する。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/s3logmanager/internal/gateway"
	"github.com/nao1215/s3logmanager/internal/journal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Getenv)
	stop()
	if err != nil {
		log.Fatalf("Gatewayサービスが異常終了しました: %v", err)
	}
}

// run はゲートウェイを起動し、ctxがキャンセルされるまで待つ。
// 初期化に失敗した場合も登録済みの後始末を実行してからエラーを返す。
func run(ctx context.Context, getenv func(string) string) error {
	cfg, err := gateway.LoadConfig(getenv)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	traceShutdown, err := initTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("トレーシングの初期化に失敗: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(shutdownCtx); err != nil {
			log.Printf("トレーシングの停止に失敗: %v", err)
		}
	}()

	store, err := gateway.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ストレージの初期化に失敗: %w", err)
	}

	var recorder gateway.Recorder
	if cfg.JournalDB != "" {
		j, err := journal.Open(ctx, cfg.JournalDB)
		if err != nil {
			return fmt.Errorf("操作ジャーナルの初期化に失敗: %w", err)
		}
		defer func() {
			if err := j.Close(); err != nil {
				log.Printf("操作ジャーナルのクローズに失敗: %v", err)
			}
		}()
		recorder = j
	}

	server, err := gateway.NewServer(cfg, store, recorder)
	if err != nil {
		return fmt.Errorf("Gatewayサーバーの初期化に失敗: %w", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s (backend=%s, bucket=%s)", cfg.Port, cfg.StorageBackend, cfg.Bucket)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("Gatewayサービスの実行に失敗: %w", err)
	}
	log.Printf("Gatewayサービスを停止しました")
	return nil
}
