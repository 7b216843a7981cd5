package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/airwall-diag/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "airwall-diag",
		Usage: "Conductor 管理下の Airwall から診断レポートを取得し IMEI / MSISDN を抽出する",
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "全Airwallで診断ジョブを起動し、レポートから IMEI / MSISDN を含む行を表示",
				Flags: append(appcli.ScanFlags(),
					&cli.StringFlag{
						Name:  "export",
						Usage: "結果をJSON形式でエクスポート（ファイルパス）",
					},
					&cli.BoolFlag{
						Name:  "summary",
						Usage: "終了後に集計テーブルを表示",
					},
				),
				Action: appcli.ScanAction,
			},
			{
				Name:  "schedule",
				Usage: "スキャンをCronスケジュールで定期実行",
				Flags: append(appcli.ScanFlags(),
					&cli.StringFlag{
						Name:  "cron",
						Usage: "Cron形式のスケジュール (例: 0 * * * * = 毎時0分)",
						Value: "0 * * * *",
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "抽出結果を追記するファイルパス",
					},
				),
				Action: appcli.ScheduleAction,
			},
			{
				Name:   "list",
				Usage:  "Airwall一覧を表示",
				Flags:  appcli.ConfigFlags(),
				Action: appcli.ListAction,
			},
			{
				Name:  "report",
				Usage: "Airwall単位の診断レポート操作",
				Commands: []*cli.Command{
					{
						Name:  "trigger",
						Usage: "診断ジョブを起動",
						Flags: append(appcli.ConfigFlags(),
							&cli.StringFlag{
								Name:     "uuid",
								Usage:    "AirwallのUUID（一覧APIが返す値をそのまま指定）",
								Required: true,
							},
						),
						Action: appcli.ReportTriggerAction,
					},
					{
						Name:  "fetch",
						Usage: "診断レポートを取得",
						Flags: append(appcli.ConfigFlags(),
							&cli.StringFlag{
								Name:     "uuid",
								Usage:    "AirwallのUUID（一覧APIが返す値をそのまま指定）",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "out",
								Usage: "レポート全体を保存するファイルパス",
							},
							&cli.BoolFlag{
								Name:  "raw",
								Usage: "抽出せずにレポート全体を表示",
							},
						),
						Action: appcli.ReportFetchAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		appcli.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
