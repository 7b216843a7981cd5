package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/jinford/airwall-diag/internal/core/airwall"
)

var (
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
)

// PrintError はエラーを赤字で表示します
func PrintError(w io.Writer, err error) {
	errorColor.Fprintf(w, "ERROR: %v\n", err)
}

// PrintWarning は警告を黄字で表示します
func PrintWarning(w io.Writer, format string, args ...any) {
	warningColor.Fprintf(w, "WARNING: "+format+"\n", args...)
}

// printSuccess は完了メッセージを緑字で表示します
func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprintf(w, format+"\n", args...)
}

// displayAppliancesTable はAirwall一覧をテーブル形式で表示します
func displayAppliancesTable(w io.Writer, appliances []airwall.Appliance) {
	if len(appliances) == 0 {
		fmt.Fprintln(w, "Airwallは見つかりませんでした")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "UUID", "タイトル")

	for i, a := range appliances {
		table.Append(fmt.Sprintf("%d", i+1), a.UUID, a.Title)
	}

	table.Render()
}

// displaySummaryTable はスキャン結果の集計をテーブル形式で表示します
func displaySummaryTable(w io.Writer, summary *airwall.RunSummary) {
	fmt.Fprintln(w, "\n=== スキャン結果 ===")
	fmt.Fprintf(w, "実行日時: %s\n\n", summary.StartedAt.Format("2006-01-02 15:04:05"))

	table := tablewriter.NewWriter(w)
	table.Header("タイトル", "UUID", "imei", "msisdn", "状態")

	for _, r := range summary.Results {
		imei, msisdn := 0, 0
		for _, f := range r.Findings {
			switch f.Marker {
			case airwall.MarkerIMEI:
				imei++
			case airwall.MarkerMSISDN:
				msisdn++
			}
		}

		status := "OK"
		if r.Failed() {
			status = "失敗"
		}

		table.Append(
			r.Appliance.Title,
			r.Appliance.UUID,
			fmt.Sprintf("%d", imei),
			fmt.Sprintf("%d", msisdn),
			status,
		)
	}

	table.Render()
}

// exportSummaryToJSON はスキャン結果をJSON形式でエクスポートします
func exportSummaryToJSON(summary *airwall.RunSummary, filename string) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("JSONエンコードに失敗: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("ファイル書き込みに失敗: %w", err)
	}

	return nil
}
