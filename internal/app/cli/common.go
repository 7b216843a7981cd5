package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/airwall-diag/internal/infra/conductor"
	"github.com/jinford/airwall-diag/internal/platform/config"
	"github.com/jinford/airwall-diag/internal/platform/logger"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Conductor *conductor.Client
	logger    *slog.Logger
}

// NewAppContext は設定を読み込み、Conductorクライアントを作成して AppContext を作成する
func NewAppContext(ctx context.Context, envFile, configFile string) (*AppContext, error) {
	// 設定の読み込み
	cfg, err := config.Load(envFile, configFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// ロガーの初期化
	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.Log.Level)
	logCfg.Format = cfg.Log.Format
	appLogger := logger.New(logCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}

	client, err := conductor.NewClient(cfg.Conductor, appLogger)
	if err != nil {
		return nil, fmt.Errorf("Conductorクライアントの初期化に失敗: %w", err)
	}

	appLogger.Debug("Conductorクライアントを初期化しました",
		"url", client.BaseURL(),
		"tlsInsecure", cfg.Conductor.TLSInsecure,
		"timeout", cfg.Conductor.Timeout,
	)

	return &AppContext{
		Config:    cfg,
		Conductor: client,
		logger:    appLogger,
	}, nil
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.logger != nil {
		return ac.logger
	}
	return slog.Default()
}

// ConfigFlags は全コマンド共通の設定ファイル系フラグ
func ConfigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "env",
			Usage: "環境変数ファイルパス",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "JSON設定ファイルパス（conductor_url / client_id / api_token）",
		},
	}
}

// newAppContextFromCommand はフラグから AppContext を作成する
func newAppContextFromCommand(ctx context.Context, cmd *cli.Command) (*AppContext, error) {
	return NewAppContext(ctx, cmd.String("env"), cmd.String("config"))
}
