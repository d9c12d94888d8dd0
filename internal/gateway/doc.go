// Package gateway はS3ログマネージャーのHTTPゲートウェイを提供する。
//
// アップロード、一覧取得、ダウンロード、削除の各リクエストを
// 単一バケットへのObjectStore呼び出しに変換する。ファイルの中身は
// リクエストごとに一意なステージングファイルを経由して転送し、
// 処理の成否にかかわらず必ず削除する。
//
// バケットの内容の正はバックエンドのみであり、ゲートウェイは
// 独自のインデックスを持たない。操作ジャーナルは記録専用で、
// 一覧やダウンロードの応答には使用しない。
package gateway
