// gatewayctl はS3ログマネージャーゲートウェイを操作するコマンドラインクライアント。
//
//	gatewayctl [-addr URL] health
//	gatewayctl [-addr URL] list
//	gatewayctl [-addr URL] upload FILE
//	gatewayctl [-addr URL] download KEY [OUT]
//	gatewayctl [-addr URL] delete KEY
//	gatewayctl [-addr URL] events [LIMIT]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/nao1215/s3logmanager/pkg/httpclient"
)

// errUsage はコマンドライン引数が不正であることを表す。
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run はコマンドを実行し、終了コードを返す。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gatewayctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	defaultAddr := os.Getenv("GATEWAY_ADDR")
	if defaultAddr == "" {
		defaultAddr = "http://localhost:5000"
	}
	addr := fs.String("addr", defaultAddr, "ゲートウェイのベースURL")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: gatewayctl [-addr URL] health|list|upload FILE|download KEY [OUT]|delete KEY|events [LIMIT]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client := httpclient.New(*addr)
	if err := dispatch(ctx, client, fs.Args(), stdout); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "gatewayctl: %v\n", err)
		return 1
	}
	return 0
}

// dispatch はサブコマンドを実行する。
func dispatch(ctx context.Context, client *httpclient.Client, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "health":
		res, err := client.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s: %s (bucket=%s)\n", res.Status, res.Message, res.Bucket)
		return nil

	case "list":
		res, err := client.List(ctx)
		if err != nil {
			return err
		}
		for _, key := range res.Files {
			fmt.Fprintln(stdout, key)
		}
		return nil

	case "upload":
		if len(rest) != 1 {
			return errUsage
		}
		return upload(ctx, client, rest[0], stdout)

	case "download":
		if len(rest) != 1 && len(rest) != 2 {
			return errUsage
		}
		out := filepath.Base(rest[0])
		if len(rest) == 2 {
			out = rest[1]
		}
		return download(ctx, client, rest[0], out, stdout)

	case "delete":
		if len(rest) != 1 {
			return errUsage
		}
		res, err := client.Delete(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, res.Message)
		return nil

	case "events":
		limit := 0
		if len(rest) == 1 {
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				return fmt.Errorf("LIMITは整数で指定してください: %w", err)
			}
			limit = n
		} else if len(rest) > 1 {
			return errUsage
		}
		events, err := client.Events(ctx, limit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		for i := range events {
			if err := enc.Encode(&events[i]); err != nil {
				return err
			}
		}
		return nil

	default:
		return errUsage
	}
}

func upload(ctx context.Context, client *httpclient.Client, path string, stdout io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ファイルのオープンに失敗: %w", err)
	}
	defer f.Close()

	res, err := client.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.Message)
	return nil
}

// download はkeyのオブジェクトをoutに保存する。outが "-" の場合は標準出力に書き出す。
func download(ctx context.Context, client *httpclient.Client, key, out string, stdout io.Writer) error {
	if out == "-" {
		_, err := client.Download(ctx, key, stdout)
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("出力ファイルの作成に失敗: %w", err)
	}
	n, err := client.Download(ctx, key, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return err
	}
	fmt.Fprintf(stdout, "%s (%d bytes)\n", out, n)
	return nil
}
