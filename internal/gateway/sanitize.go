package gateway

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SecureFilename はクライアントが送信したファイル名をオブジェクトキーとして
// 安全な形に変換する。NFKD正規化でASCIIに畳み込み、パス区切りを空白に、
// 空白の連続を "_" に置き換え、英数字と "_.-" 以外を取り除き、
// 先頭と末尾の "." と "_" を削る。結果は空文字列になりうる。
func SecureFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	ascii := strings.ReplaceAll(b.String(), "/", " ")
	joined := strings.Join(strings.FieldsFunc(ascii, isSeparatorSpace), "_")

	b.Reset()
	for _, r := range joined {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// isSeparatorSpace は区切りとみなす空白文字を判定する。
// unicode.IsSpaceに加えて情報分離文字(0x1C-0x1F)も含める。
func isSeparatorSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
