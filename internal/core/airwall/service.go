package airwall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/mo"
)

// Conductor はConductor APIのうちスキャンで使う操作
type Conductor interface {
	// ListAppliances は管理下のAirwall一覧を返す
	ListAppliances(ctx context.Context) ([]Appliance, error)
	// StartDiagnostic は指定Airwallの診断ジョブを起動する
	StartDiagnostic(ctx context.Context, uuid string) (DiagnosticJob, error)
	// GetDiagnostic は指定Airwallの診断レポートをテキストのまま返す
	GetDiagnostic(ctx context.Context, uuid string) (string, error)
}

// WaitFunc は指定時間だけ待機する。ctx がキャンセルされた場合はそのエラーを返す
type WaitFunc func(ctx context.Context, d time.Duration) error

// SleepContext は time.Timer を使った WaitFunc の標準実装
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Service は診断レポートのスキャン処理を提供する
// 処理はすべて逐次で、Airwallごとの並列実行は行わない
type Service struct {
	conductor       Conductor
	reporter        Reporter
	logger          *slog.Logger
	wait            time.Duration
	waitFn          WaitFunc
	continueOnError bool
	now             func() time.Time
}

// ServiceOption は Service の設定を変更する
type ServiceOption func(*Service)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWait はジョブ起動後の待機時間を設定する
func WithWait(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.wait = d
	}
}

// WithWaitFunc は待機処理を差し替える
func WithWaitFunc(fn WaitFunc) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.waitFn = fn
		}
	}
}

// WithContinueOnError はAirwall単位の失敗を記録して処理を続行するかを設定する
// false（デフォルト）の場合は最初の失敗で中断する
func WithContinueOnError(v bool) ServiceOption {
	return func(s *Service) {
		s.continueOnError = v
	}
}

// NewService は新しいServiceを作成する
func NewService(conductor Conductor, reporter Reporter, opts ...ServiceOption) *Service {
	s := &Service{
		conductor: conductor,
		reporter:  reporter,
		logger:    slog.Default(),
		wait:      30 * time.Second,
		waitFn:    SleepContext,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run はスキャンを1回実行する
//  1. Airwall一覧を取得
//  2. 全Airwallで診断ジョブを起動
//  3. 固定時間待機（ジョブの完了は確認しない）
//  4. 各Airwallのタイトルを出力し、レポートを取得して該当行を出力
//
// 中断した場合も、それまでの結果を含む RunSummary を返す
func (s *Service) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		StartedAt: s.now(),
		Wait:      s.wait,
	}
	defer func() { summary.FinishedAt = s.now() }()

	appliances, err := s.conductor.ListAppliances(ctx)
	if err != nil {
		return summary, fmt.Errorf("Airwall一覧の取得に失敗: %w", err)
	}
	s.logger.Info("Airwall一覧を取得しました", "count", len(appliances))

	summary.Results = make([]ApplianceResult, len(appliances))
	for i, a := range appliances {
		summary.Results[i].Appliance = a
	}

	// 診断ジョブの起動
	for i := range summary.Results {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res := &summary.Results[i]
		job := s.startDiagnostic(ctx, res.Appliance)
		if err := job.Error(); err != nil {
			if !s.continueOnError {
				return summary, err
			}
			s.logger.Warn("診断ジョブの起動に失敗したため、このAirwallをスキップします",
				"uuid", res.Appliance.UUID, "title", res.Appliance.Title, "error", err)
			res.fail(err)
			continue
		}
		res.Job = job.MustGet()
	}

	// 一覧が空でも待機は行う
	s.logger.Info("診断レポートの生成を待機します", "wait", s.wait)
	if err := s.waitFn(ctx, s.wait); err != nil {
		return summary, fmt.Errorf("待機中に中断されました: %w", err)
	}

	// レポートの取得と抽出
	for i := range summary.Results {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res := &summary.Results[i]
		if err := s.reporter.Appliance(res.Appliance); err != nil {
			return summary, fmt.Errorf("結果の出力に失敗: %w", err)
		}
		if res.Failed() {
			continue
		}

		findings := s.fetchAndScan(ctx, res.Appliance)
		if err := findings.Error(); err != nil {
			if !s.continueOnError {
				return summary, err
			}
			s.logger.Warn("診断レポートの取得に失敗しました",
				"uuid", res.Appliance.UUID, "title", res.Appliance.Title, "error", err)
			res.fail(err)
			continue
		}

		res.Findings = findings.MustGet()
		if err := s.reporter.Findings(res.Appliance, res.Findings); err != nil {
			return summary, fmt.Errorf("結果の出力に失敗: %w", err)
		}
	}

	s.logger.Info("スキャンが完了しました",
		"appliances", len(summary.Results),
		"imei", summary.FindingCount(MarkerIMEI),
		"msisdn", summary.FindingCount(MarkerMSISDN),
		"failed", summary.FailedCount(),
	)

	return summary, nil
}

func (s *Service) startDiagnostic(ctx context.Context, a Appliance) mo.Result[DiagnosticJob] {
	if a.UUID == "" {
		return mo.Err[DiagnosticJob](fmt.Errorf("診断ジョブを起動できません (title=%q): %w", a.Title, ErrNoAppliance))
	}

	job, err := s.conductor.StartDiagnostic(ctx, a.UUID)
	if err != nil {
		return mo.Err[DiagnosticJob](fmt.Errorf("診断ジョブの起動に失敗 (uuid=%s): %w", a.UUID, err))
	}

	s.logger.Debug("診断ジョブを起動しました", "uuid", a.UUID, "jobID", job.JobID())
	return mo.Ok(job)
}

func (s *Service) fetchAndScan(ctx context.Context, a Appliance) mo.Result[[]Finding] {
	report, err := s.conductor.GetDiagnostic(ctx, a.UUID)
	if err != nil {
		return mo.Err[[]Finding](fmt.Errorf("診断レポートの取得に失敗 (uuid=%s): %w", a.UUID, err))
	}

	findings := ScanReport(report)
	s.logger.Debug("診断レポートを解析しました", "uuid", a.UUID, "bytes", len(report), "findings", len(findings))
	return mo.Ok(findings)
}
