package airwall

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Reporter はスキャン結果の出力先インターフェースです
// Appliance はレポート取得前に、Findings は抽出後に呼ばれます
type Reporter interface {
	Appliance(a Appliance) error
	Findings(a Appliance, findings []Finding) error
}

// TextReporter はAirwallのタイトルと該当行をそのまま書き出すReporterです
type TextReporter struct {
	w io.Writer
}

// NewTextReporter は新しいTextReporterを作成します
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// NewStandardOutputReporter は標準出力に書き出すTextReporterを作成します
func NewStandardOutputReporter() *TextReporter {
	return NewTextReporter(os.Stdout)
}

// Appliance はタイトルを1行で出力します
func (r *TextReporter) Appliance(a Appliance) error {
	_, err := fmt.Fprintln(r.w, a.Title)
	return err
}

// Findings は該当行を加工せずに出力します
func (r *TextReporter) Findings(_ Appliance, findings []Finding) error {
	for _, f := range findings {
		if _, err := fmt.Fprintln(r.w, f.Line); err != nil {
			return err
		}
	}
	return nil
}

// FileReporter はファイルに追記するReporterです
// スケジュール実行時に結果を残す用途を想定しています
type FileReporter struct {
	FilePath string
	now      func() time.Time
}

// NewFileReporter は新しいFileReporterを作成します
func NewFileReporter(filePath string) *FileReporter {
	return &FileReporter{
		FilePath: filePath,
		now:      time.Now,
	}
}

// Appliance はタイトルと取得日時をファイルに追記します
func (r *FileReporter) Appliance(a Appliance) error {
	return r.append(fmt.Sprintf("[%s] %s (%s)\n", r.now().Format(time.RFC3339), a.Title, a.UUID))
}

// Findings は該当行をマーカー付きでファイルに追記します
func (r *FileReporter) Findings(_ Appliance, findings []Finding) error {
	if len(findings) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, f := range findings {
		sb.WriteString(fmt.Sprintf("    %s\t%s\n", f.Marker, f.Line))
	}
	return r.append(sb.String())
}

func (r *FileReporter) append(s string) error {
	// ファイルに書き込み（追記モード）
	f, err := os.OpenFile(r.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("ファイルを開けませんでした: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(s); err != nil {
		return fmt.Errorf("ファイルへの書き込みに失敗: %w", err)
	}
	return nil
}

// MultiReporter は複数のReporterに出力するReporterです
type MultiReporter struct {
	Reporters []Reporter
}

// NewMultiReporter は新しいMultiReporterを作成します
func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{
		Reporters: reporters,
	}
}

// Appliance はすべてのReporterに通知します
func (m *MultiReporter) Appliance(a Appliance) error {
	return m.each(func(r Reporter) error { return r.Appliance(a) })
}

// Findings はすべてのReporterに通知します
func (m *MultiReporter) Findings(a Appliance, findings []Finding) error {
	return m.each(func(r Reporter) error { return r.Findings(a, findings) })
}

func (m *MultiReporter) each(fn func(Reporter) error) error {
	var errs []string

	for _, r := range m.Reporters {
		if err := fn(r); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("一部の出力に失敗しました: %s", strings.Join(errs, "; "))
	}
	return nil
}
