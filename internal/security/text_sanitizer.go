package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はフィード供給テキストのサニタイズ機能の
// インターフェースを定義する。
//
// 時間割のタイトル・説明・場所はプレーンテキストとして描画されるため、
// ICSエクスポートに紛れ込むHTMLマークアップ（<br>、リンク等）は
// すべて除去する。同一入力に対して常に同一出力を返す（冪等）。
type TextSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLタグを除去し、
	// エンティティを元の文字に戻したプレーンテキストを返す。
	Sanitize(raw string) string
}

// TextSanitizer はbluemondayのStrictPolicyによる実装。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは残したテキストをエンティティ化するため元に戻す
	return strings.TrimSpace(html.UnescapeString(stripped))
}
