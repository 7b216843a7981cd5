package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/mo"
)

const (
	// DefaultDiagnosticWait は診断ジョブ起動からレポート取得までの待機時間
	DefaultDiagnosticWait = 30 * time.Second

	// DefaultTimeout はConductor API呼び出し1回あたりのタイムアウト
	DefaultTimeout = 60 * time.Second
)

var (
	// ErrMissingConductorURL はConductorのURLが設定されていない場合のエラー
	ErrMissingConductorURL = errors.New("conductor url not set: please set CONDUCTOR_URL or conductor_url")

	// ErrMissingCredentials はAPI認証情報が設定されていない場合のエラー
	ErrMissingCredentials = errors.New("conductor credentials not set: please set CONDUCTOR_CLIENT_ID and CONDUCTOR_API_TOKEN")
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Conductor接続設定
	Conductor ConductorConfig

	// 診断レポート設定
	Diagnostic DiagnosticConfig

	// ログ設定
	Log LogConfig
}

// ConductorConfig はConductor API接続設定
type ConductorConfig struct {
	URL         string
	ClientID    string
	APIToken    string
	TLSInsecure bool // 証明書検証を無効化する（Conductorは自己署名証明書が多い）
	Timeout     time.Duration
}

// DiagnosticConfig は診断ジョブの設定
type DiagnosticConfig struct {
	Wait time.Duration // ジョブ起動後、レポート取得までの固定待機時間
}

// LogConfig はログ出力設定
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// fileConfig はJSON設定ファイルの形式
// 既存の運用スクリプトと同じキー名を使う
type fileConfig struct {
	ConductorURL string `json:"conductor_url"`
	ClientID     string `json:"client_id"`
	APIToken     string `json:"api_token"`
	Wait         string `json:"wait"`
	Timeout      string `json:"timeout"`
	TLSInsecure  *bool  `json:"tls_insecure"`
}

// Load は環境変数または.envファイルから設定を読み込みます
// jsonFilePath が指定された場合は、その内容で環境変数の値を上書きします
func Load(envFilePath, jsonFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Conductor: ConductorConfig{
			URL:         getEnv("CONDUCTOR_URL", ""),
			ClientID:    getEnv("CONDUCTOR_CLIENT_ID", ""),
			APIToken:    getEnv("CONDUCTOR_API_TOKEN", ""),
			TLSInsecure: getEnvAsBool("CONDUCTOR_TLS_INSECURE", true),
			Timeout:     getEnvAsDuration("CONDUCTOR_TIMEOUT", DefaultTimeout),
		},
		Diagnostic: DiagnosticConfig{
			Wait: getEnvAsDuration("DIAG_WAIT", DefaultDiagnosticWait),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	fc, err := readFileConfig(jsonFilePath)
	if err != nil {
		return nil, err
	}
	if f, ok := fc.Get(); ok {
		if err := cfg.apply(f); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の値が不正です: %w", jsonFilePath, err)
		}
	}

	return cfg, nil
}

// Validate は必須項目が揃っているかを検証します
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Conductor.URL) == "" {
		return ErrMissingConductorURL
	}
	if c.Conductor.ClientID == "" || c.Conductor.APIToken == "" {
		return ErrMissingCredentials
	}
	if c.Diagnostic.Wait < 0 {
		return fmt.Errorf("diagnostic wait must not be negative: %s", c.Diagnostic.Wait)
	}
	return nil
}

func readFileConfig(path string) (mo.Option[fileConfig], error) {
	if path == "" {
		return mo.None[fileConfig](), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mo.None[fileConfig](), fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return mo.None[fileConfig](), fmt.Errorf("設定ファイルのパースに失敗: %w", err)
	}
	return mo.Some(fc), nil
}

func (c *Config) apply(fc fileConfig) error {
	if fc.ConductorURL != "" {
		c.Conductor.URL = fc.ConductorURL
	}
	if fc.ClientID != "" {
		c.Conductor.ClientID = fc.ClientID
	}
	if fc.APIToken != "" {
		c.Conductor.APIToken = fc.APIToken
	}
	if fc.TLSInsecure != nil {
		c.Conductor.TLSInsecure = *fc.TLSInsecure
	}
	if fc.Wait != "" {
		d, err := time.ParseDuration(fc.Wait)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		c.Diagnostic.Wait = d
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Conductor.Timeout = d
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します
// "45s" のような形式のほか、単位なしの整数は秒として扱います
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
