// Package fhsalzburg はFHザルツブルクの時間割フィード固有の
// DESCRIPTIONヒューリスティックパースを提供する。
//
// DESCRIPTIONの形式:
//
//	1行目: "<モジュールコード> - <タイトル> <種別>"（種別は複数語の場合あり）
//	2行目: 参加グループ（存在する場合）
//	最終行: 担当教員名
//
// すべての関数は文字列上の純粋関数で、欠損・不正な入力に対しては
// 空値を返し、決してpanicしない。
package fhsalzburg

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultAbbrLen はタイトル略称の既定最大長。
const DefaultAbbrLen = 4

// stopwords は略称生成時に無視する冠詞・接続詞（英語・ドイツ語）。
var stopwords = map[string]struct{}{
	"for": {}, "and": {}, "of": {}, "the": {}, "a": {}, "an": {}, "to": {}, "in": {},
	"für": {}, "und": {}, "oder": {}, "der": {}, "die": {}, "das": {}, "im": {},
	"am": {}, "von": {}, "mit": {},
}

// multiWordTypes は1つの種別として扱う複数語フレーズ。
// 照合は大文字小文字を無視し、1行目末尾との一致のみを見る。
var multiWordTypes = []string{
	"asynchronous teaching",
	"asynchrone lehre",
}

// CourseInfo はDESCRIPTIONから抽出した構造化講義情報。
type CourseInfo struct {
	Title      string   `json:"courseName"`
	TitleAbbr  string   `json:"-"`
	CourseType string   `json:"courseType"`
	Lecturer   string   `json:"lecturer"`
	Location   string   `json:"location"`
	Groups     []string `json:"groups"`
}

// ParseDescription はDESCRIPTION値を構造化フィールドに分解する。
// グループ行がなければ空リスト、教員行がなければ空文字列を返す。
func ParseDescription(desc string) CourseInfo {
	rawLines := splitLines(desc)
	if len(rawLines) == 0 {
		return CourseInfo{Groups: []string{}}
	}

	lines := make([]string, len(rawLines))
	for i, l := range rawLines {
		lines[i] = unescapeText(l)
	}

	// 教員 = 最後の非空行
	lecturer := strings.TrimSpace(lines[len(lines)-1])

	// 1行目: 最初の" - "までのコードを除去し、タイトルと種別に分解
	afterDash := stripCodePrefix(lines[0])
	title, courseType := splitTypeAndTitle(afterDash)

	// グループ: 2行目（あれば）。区切りを","に正規化してから分割
	groups := []string{}
	if len(rawLines) > 1 {
		groupsLine := unescapeText(normalizeGroupSeparators(rawLines[1]))
		for _, g := range strings.Split(groupsLine, ",") {
			if g = strings.TrimSpace(g); g != "" {
				groups = append(groups, g)
			}
		}
	}

	return CourseInfo{
		Title:      title,
		TitleAbbr:  InitialsAbbr(title, DefaultAbbrLen),
		CourseType: courseType,
		Lecturer:   lecturer,
		Groups:     groups,
	}
}

// InitialsAbbr はタイトルから頭文字略称を導出する。
// 英数字以外を除去し、ストップワードを捨て、残った各語の先頭文字を
// 大文字で連結し、maxLen文字に切り詰める。
func InitialsAbbr(title string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultAbbrLen
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) || r == '-' {
			return r
		}
		return ' '
	}, title)

	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(cleaned) {
		if _, skip := stopwords[strings.ToLower(word)]; skip {
			continue
		}
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		n++
		if n == maxLen {
			break
		}
	}
	return b.String()
}

// splitLines は文字どおりの改行とエスケープ済み改行（"\n"の2文字）の
// 両方で分割し、空行を捨てる。
func splitLines(desc string) []string {
	normalized := strings.ReplaceAll(desc, `\n`, "\n")
	var lines []string
	for _, l := range strings.Split(normalized, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// unescapeText はRFC 5545のTEXTエスケープを解除する。
var textUnescaper = strings.NewReplacer(
	`\n`, "\n",
	`\,`, ",",
	`\;`, ";",
	`\\`, `\`,
)

func unescapeText(s string) string {
	return strings.TrimSpace(textUnescaper.Replace(s))
}

// normalizeGroupSeparators はグループ行の区切りバリエーションを","に揃える。
// "\," と "\/" と "/," のいずれも","として扱う。
var groupSeparatorNormalizer = strings.NewReplacer(
	`\,`, ",",
	`\/`, ",",
	`/,`, ",",
)

func normalizeGroupSeparators(s string) string {
	return groupSeparatorNormalizer.Replace(s)
}

// stripCodePrefix は最初の" - "までのモジュールコードを除去する。
// " - "が無ければ行全体をそのまま返す。
func stripCodePrefix(line string) string {
	if idx := strings.Index(line, " - "); idx != -1 {
		return strings.TrimSpace(line[idx+3:])
	}
	return strings.TrimSpace(line)
}

// splitTypeAndTitle はコード除去後の1行目をタイトルと種別に分解する。
// 末尾が既知の複数語種別ならそれを種別とし、そうでなければ最後の
// 空白区切りトークンを種別とする。
func splitTypeAndTitle(afterDash string) (title, courseType string) {
	s := strings.TrimSpace(afterDash)
	if s == "" {
		return "", ""
	}

	lower := strings.ToLower(s)
	for _, phrase := range multiWordTypes {
		if strings.HasSuffix(lower, phrase) {
			cut := len(s) - len(phrase)
			return strings.TrimSpace(s[:cut]), strings.TrimSpace(s[cut:])
		}
	}

	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return s, ""
	}
	return strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1]
}
