package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nao1215/s3logmanager/pkg/event"
)

// Client はゲートウェイ呼び出し用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先ゲートウェイのベースURL。
	baseURL string
}

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithHTTPClient は内部で使用するHTTPクライアントを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New は新しいゲートウェイクライアントを生成する。
// baseURLにはゲートウェイのベースURL（例: "http://localhost:5000"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HealthResponse はヘルスチェックのレスポンス。
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Bucket  string `json:"bucket"`
}

// MessageResponse はアップロード・削除成功時のレスポンス。
type MessageResponse struct {
	Message string `json:"message"`
	Bucket  string `json:"bucket"`
	// Filename は保存されたオブジェクトキー。アップロード時のみ設定される。
	Filename string `json:"filename,omitempty"`
}

// ListResponse は一覧取得のレスポンス。
type ListResponse struct {
	Files      []string `json:"files"`
	TotalFiles int      `json:"total_files"`
}

// StatusError はゲートウェイが2xx以外を返したときのエラー。
type StatusError struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Message はレスポンスのerrorフィールド。
	Message string
	// Kind はレスポンスのkindフィールド。存在しない場合は空。
	Kind string
}

func (e *StatusError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("HTTPエラー: status=%d, kind=%s, error=%s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("HTTPエラー: status=%d, error=%s", e.StatusCode, e.Message)
}

// IsStatus はerrが指定ステータスコードのStatusErrorかどうかを判定する。
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Health はゲートウェイのヘルスチェックを呼び出す。
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var result HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// List はバケット内の全オブジェクトキーと件数を返す。
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	var result ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/list", &result); err != nil {
		return nil, err
	}
	if result.Files == nil {
		result.Files = []string{}
	}
	return &result, nil
}

// Delete はkeyのオブジェクトを削除する。
func (c *Client) Delete(ctx context.Context, key string) (*MessageResponse, error) {
	var result MessageResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/delete/"+url.PathEscape(key), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Events は操作ジャーナルの新しい順に最大limit件を返す。
// limitが0以下の場合はゲートウェイの既定値に従う。
func (c *Client) Events(ctx context.Context, limit int) ([]event.Event, error) {
	path := "/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var events []event.Event
	if err := c.doJSON(ctx, http.MethodGet, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Upload はrの内容をfilenameとしてmultipart/form-dataでアップロードする。
// 保存されるキーはゲートウェイが安全化したファイル名になる。
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*MessageResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	setRequestID(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var result MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return &result, nil
}

// Download はkeyのオブジェクトをwへ書き出し、書き込んだバイト数を返す。
func (c *Client) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+url.PathEscape(key), nil)
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	setRequestID(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("レスポンスボディの読み込みに失敗: %w", err)
	}
	return n, nil
}

// doJSON はボディなしのリクエストを送り、JSONレスポンスをresultにデシリアライズする。
func (c *Client) doJSON(ctx context.Context, method, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	setRequestID(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// checkStatus は2xx以外のレスポンスをStatusErrorに変換する。
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	se := &StatusError{StatusCode: resp.StatusCode}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(respBody, &body); err == nil && body.Error != "" {
		se.Message = body.Error
		se.Kind = body.Kind
	} else {
		se.Message = string(respBody)
	}
	return se
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// 設定したIDはX-Request-IDヘッダーとしてゲートウェイへ伝播する。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

func setRequestID(ctx context.Context, req *http.Request) {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok && id != "" {
		req.Header.Set("X-Request-ID", id)
	}
}
