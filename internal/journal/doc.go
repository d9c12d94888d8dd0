// Package journal はゲートウェイの操作イベントをSQLiteに追記するジャーナルを提供する。
//
// ジャーナルは追記のみ（append-only）で運用し、運用者が直近の操作を確認するために使う。
// 一覧やダウンロードの応答を組み立てる際には参照しない。
package journal
