package airwall

import (
	"strings"
	"unicode/utf8"
)

// ScanReport は診断レポートを行単位に分割し、マーカーを含む行を抽出する
// 判定は大文字小文字を区別する部分一致で、行の内容は一切加工しない
// 1行に複数のマーカーが含まれる場合はマーカーごとに1件ずつ返す（imei → msisdn の順）
func ScanReport(text string) []Finding {
	var findings []Finding
	for i, line := range splitLines(text) {
		for _, m := range Markers {
			if strings.Contains(line, string(m)) {
				findings = append(findings, Finding{Marker: m, LineNo: i + 1, Line: line})
			}
		}
	}
	return findings
}

// splitLines は改行文字で行を区切る
// \n, \r\n, \r に加えて \v, \f, \x1c-\x1e, U+0085, U+2028, U+2029 も行区切りとして扱う
// 末尾の改行は空行を生まない
func splitLines(text string) []string {
	var lines []string
	start := 0
	for i, r := range text {
		if i < start {
			// \r\n の \n は読み飛ばし済み
			continue
		}
		if !isLineBreak(r) {
			continue
		}
		lines = append(lines, text[start:i])
		start = i + utf8.RuneLen(r)
		if r == '\r' && start < len(text) && text[start] == '\n' {
			start++
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
