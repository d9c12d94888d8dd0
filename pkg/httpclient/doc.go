// Package httpclient はS3ログマネージャーゲートウェイのHTTPクライアントを提供する。
//
// ヘルスチェック、アップロード、一覧取得、ダウンロード、削除、
// 操作ジャーナルの参照をGoから呼び出す際に使用する。
// gatewayctlコマンドとゲートウェイの結合テストが利用する。
package httpclient
