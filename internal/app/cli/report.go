package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/airwall-diag/internal/core/airwall"
)

// ReportTriggerAction は指定Airwallの診断ジョブを起動するコマンドのアクション
func ReportTriggerAction(ctx context.Context, cmd *cli.Command) error {
	id, err := parseApplianceUUID(cmd.String("uuid"))
	if err != nil {
		return err
	}

	// 共通コンテキストの初期化
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}

	job, err := appCtx.Conductor.StartDiagnostic(ctx, id)
	if err != nil {
		return fmt.Errorf("診断ジョブの起動に失敗: %w", err)
	}

	slog.Info("診断ジョブを起動しました", "uuid", id, "jobID", job.JobID())
	printSuccess(os.Stderr, "✓ 診断ジョブを起動しました (uuid=%s)", id)

	return nil
}

// ReportFetchAction は指定Airwallの診断レポートを取得するコマンドのアクション
// デフォルトでは IMEI / MSISDN を含む行だけを表示する
func ReportFetchAction(ctx context.Context, cmd *cli.Command) error {
	outFile := cmd.String("out")
	raw := cmd.Bool("raw")

	id, err := parseApplianceUUID(cmd.String("uuid"))
	if err != nil {
		return err
	}

	// 共通コンテキストの初期化
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}

	report, err := appCtx.Conductor.GetDiagnostic(ctx, id)
	if err != nil {
		return fmt.Errorf("診断レポートの取得に失敗: %w", err)
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, []byte(report), 0644); err != nil {
			return fmt.Errorf("ファイル書き込みに失敗: %w", err)
		}
		printSuccess(os.Stderr, "✓ 診断レポートを %s に保存しました", outFile)
		return nil
	}

	return writeReport(os.Stdout, report, raw)
}

// writeReport はレポート全体、または抽出した行を書き出す
func writeReport(w io.Writer, report string, raw bool) error {
	if raw {
		_, err := io.WriteString(w, report)
		return err
	}
	return airwall.NewTextReporter(w).Findings(airwall.Appliance{}, airwall.ScanReport(report))
}

// parseApplianceUUID はAirwallのUUIDを検証する
// UUIDは scan と同じく加工せずにそのまま送信し、UUID形式でない場合は警告のみ行う
func parseApplianceUUID(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", airwall.ErrNoAppliance
	}
	if _, err := uuid.Parse(s); err != nil {
		slog.Warn("UUID形式ではないIDをそのまま使用します", "uuid", s, "error", err)
	}
	return s, nil
}
