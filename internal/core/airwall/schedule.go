package airwall

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// ScheduledScanConfig は定期スキャンの設定です
type ScheduledScanConfig struct {
	CronSchedule string                    // Cron形式のスケジュール（例: "0 * * * *" = 毎時0分）
	OnComplete   func(summary *RunSummary) // 1回のスキャン完了ごとに呼ばれる（省略可）
	OnError      func(err error)           // スキャン失敗時に呼ばれる（省略可）
}

// ScheduledScan はスキャンを定期実行するジョブです
type ScheduledScan struct {
	config  *ScheduledScanConfig
	service *Service
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewScheduledScan は新しいScheduledScanを作成します
// 前回のスキャンが終わっていない場合、その回はスキップします
func NewScheduledScan(config *ScheduledScanConfig, service *Service, logger *slog.Logger) *ScheduledScan {
	if logger == nil {
		logger = slog.Default()
	}

	return &ScheduledScan{
		config:  config,
		service: service,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
	}
}

// Start はスケジューラーを起動します
// ctx はスケジュールされた各スキャンに引き継がれます
func (j *ScheduledScan) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.config.CronSchedule, func() {
		if err := j.Run(ctx); err != nil {
			j.logger.Error("定期スキャンの実行に失敗しました", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cron ジョブの登録に失敗: %w", err)
	}

	j.cron.Start()
	j.logger.Info("定期スキャンを開始しました", "schedule", j.config.CronSchedule)

	return nil
}

// Stop はスケジューラーを停止し、実行中のスキャンの終了を待ちます
func (j *ScheduledScan) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("定期スキャンを停止しました")
}

// Run はスキャンを1回実行します（手動実行可能）
func (j *ScheduledScan) Run(ctx context.Context) error {
	j.logger.Info("定期スキャンを開始します")

	summary, err := j.service.Run(ctx)
	if err != nil {
		if j.config.OnError != nil {
			j.config.OnError(err)
		}
		return err
	}

	if j.config.OnComplete != nil {
		j.config.OnComplete(summary)
	}
	return nil
}
