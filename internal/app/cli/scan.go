package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/airwall-diag/internal/core/airwall"
)

// ScanFlags は scan / schedule コマンド共通のフラグ
func ScanFlags() []cli.Flag {
	return append(ConfigFlags(),
		&cli.DurationFlag{
			Name:  "wait",
			Usage: "診断ジョブ起動からレポート取得までの待機時間（省略時は DIAG_WAIT または 30s）",
		},
		&cli.BoolFlag{
			Name:  "continue-on-error",
			Usage: "Airwall単位の失敗を警告として記録し、残りの処理を続行する",
		},
	)
}

// ScanAction は全Airwallの診断レポートから IMEI / MSISDN を抽出するコマンドのアクション
func ScanAction(ctx context.Context, cmd *cli.Command) error {
	exportFile := cmd.String("export")
	showSummary := cmd.Bool("summary")

	// 共通コンテキストの初期化
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}

	svc := newScanService(appCtx, cmd, airwall.NewStandardOutputReporter())

	slog.Info("スキャンを開始", "conductor", appCtx.Conductor.BaseURL())

	summary, runErr := svc.Run(ctx)

	// 中断した場合もそれまでの結果はエクスポートする
	if exportFile != "" && summary != nil {
		if err := exportSummaryToJSON(summary, exportFile); err != nil {
			PrintWarning(os.Stderr, "%v", err)
		} else {
			printSuccess(os.Stderr, "✓ スキャン結果を %s にエクスポートしました", exportFile)
		}
	}

	// エラー表示は呼び出し元で行う
	if runErr != nil {
		return runErr
	}

	if showSummary {
		displaySummaryTable(os.Stdout, summary)
	}

	if n := summary.FailedCount(); n > 0 {
		PrintWarning(os.Stderr, "%d 台のAirwallで処理に失敗しました", n)
	}

	return nil
}

// ScheduleAction はスキャンをCronスケジュールで定期実行するコマンドのアクション
// SIGINT / SIGTERM を受け取るまで終了しない
func ScheduleAction(ctx context.Context, cmd *cli.Command) error {
	cronSchedule := cmd.String("cron")
	logFile := cmd.String("log-file")

	if cronSchedule == "" {
		cronSchedule = "0 * * * *" // デフォルト: 毎時0分
	}

	// 共通コンテキストの初期化
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}

	var reporter airwall.Reporter = airwall.NewStandardOutputReporter()
	if logFile != "" {
		reporter = airwall.NewMultiReporter(reporter, airwall.NewFileReporter(logFile))
	}

	svc := newScanService(appCtx, cmd, reporter)
	logger := appCtx.Logger()

	job := airwall.NewScheduledScan(&airwall.ScheduledScanConfig{
		CronSchedule: cronSchedule,
		OnComplete: func(summary *airwall.RunSummary) {
			logger.Info("定期スキャンが完了しました",
				"appliances", len(summary.Results),
				"imei", summary.FindingCount(airwall.MarkerIMEI),
				"msisdn", summary.FindingCount(airwall.MarkerMSISDN),
				"failed", summary.FailedCount(),
			)
		},
		OnError: func(err error) {
			PrintError(os.Stderr, err)
		},
	}, svc, logger)

	if err := job.Start(ctx); err != nil {
		return fmt.Errorf("定期スキャンの開始に失敗: %w", err)
	}

	<-ctx.Done()
	job.Stop()

	return nil
}

// newScanService はフラグと設定から airwall.Service を組み立てる
func newScanService(appCtx *AppContext, cmd *cli.Command, reporter airwall.Reporter) *airwall.Service {
	wait := appCtx.Config.Diagnostic.Wait
	if cmd.IsSet("wait") {
		wait = cmd.Duration("wait")
	}

	return airwall.NewService(appCtx.Conductor, reporter,
		airwall.WithLogger(appCtx.Logger()),
		airwall.WithWait(wait),
		airwall.WithContinueOnError(cmd.Bool("continue-on-error")),
	)
}
