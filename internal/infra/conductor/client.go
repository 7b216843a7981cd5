package conductor

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/jinford/airwall-diag/internal/core/airwall"
	"github.com/jinford/airwall-diag/internal/platform/config"
)

const (
	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second

	hipservicesPath = "/api/v1/hipservices"

	// maxErrorBody はエラーメッセージに含めるレスポンスボディの最大長
	maxErrorBody = 512
)

var (
	// ErrInvalidResponseFormat は不正なレスポンス形式のエラー
	ErrInvalidResponseFormat = errors.New("invalid response format")

	// ErrPaginationLoop は next_page が同じページを指し続けた場合のエラー
	ErrPaginationLoop = errors.New("pagination loop detected")
)

// APIError はConductorが2xx以外のステータスを返した場合のエラー
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return fmt.Sprintf("%s %s: unexpected status %d %s: %s",
		e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), strings.TrimSpace(body))
}

// IsStatus は err が指定ステータスの APIError かどうかを判定します
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}

// Client は Conductor REST API のクライアント実装
// 認証は X-API-Client-ID / X-API-Token ヘッダーの静的トークンのみ
type Client struct {
	baseURL    string
	clientID   string
	apiToken   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient は設定から新しい Client を作成する
func NewClient(cfg config.ConductorConfig, logger *slog.Logger) (*Client, error) {
	baseURL, err := normalizeBaseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.ClientID == "" || cfg.APIToken == "" {
		return nil, config.ErrMissingCredentials
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := cleanhttp.DefaultPooledTransport()
	if cfg.TLSInsecure {
		// Conductorは自己署名証明書で運用されていることが多い
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		clientID:   cfg.ClientID,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Transport: transport},
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// SetTimeout はAPIコールのタイムアウトを設定する
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SetHTTPClient は内部の http.Client を差し替える
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// BaseURL は正規化済みのConductor URLを返す
func (c *Client) BaseURL() string {
	return c.baseURL
}

// listPage はページング形式の一覧レスポンス
type listPage struct {
	Data     []airwall.Appliance `json:"data"`
	Metadata struct {
		NextPage *string `json:"next_page"`
	} `json:"metadata"`
}

// ListAppliances は管理下のAirwall一覧を取得する
// レスポンスがJSON配列の場合はそのまま、{"data":[...],"metadata":{"next_page":...}} 形式の場合は
// next_page が null になるまで順に取得して連結する
func (c *Client) ListAppliances(ctx context.Context) ([]airwall.Appliance, error) {
	var appliances []airwall.Appliance
	path := hipservicesPath
	seen := map[string]bool{}

	for {
		if seen[path] {
			return nil, fmt.Errorf("%w: %s", ErrPaginationLoop, path)
		}
		seen[path] = true

		body, err := c.do(ctx, http.MethodGet, path)
		if err != nil {
			return nil, err
		}

		trimmed := bytes.TrimSpace(body)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var page []airwall.Appliance
			if err := json.Unmarshal(trimmed, &page); err != nil {
				return nil, fmt.Errorf("failed to decode airwall list: %w", err)
			}
			return append(appliances, page...), nil
		}

		var page listPage
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("failed to decode airwall list: %w", err)
		}
		if page.Data == nil {
			return nil, fmt.Errorf("%w: airwall list has neither array nor data field", ErrInvalidResponseFormat)
		}
		appliances = append(appliances, page.Data...)

		next := page.Metadata.NextPage
		if next == nil || *next == "" {
			return appliances, nil
		}
		path = hipservicesPath + "?" + strings.TrimPrefix(*next, "?")
	}
}

// StartDiagnostic は指定Airwallの診断ジョブを起動する
// レスポンスはJSONとしてデコードするだけで、ジョブの完了は追跡しない
func (c *Client) StartDiagnostic(ctx context.Context, uuid string) (airwall.DiagnosticJob, error) {
	body, err := c.do(ctx, http.MethodPost, diagnosticPath(uuid))
	if err != nil {
		return nil, err
	}

	job := airwall.DiagnosticJob{}
	if len(bytes.TrimSpace(body)) == 0 {
		return job, nil
	}
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to decode diagnostic job response: %w", err)
	}
	return job, nil
}

// GetDiagnostic は指定Airwallの診断レポートをテキストのまま取得する
func (c *Client) GetDiagnostic(ctx context.Context, uuid string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, diagnosticPath(uuid))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func diagnosticPath(uuid string) string {
	return hipservicesPath + "/" + url.PathEscape(uuid) + "/diagnostic"
}

// do はリクエストを1回送信し、2xxの場合のみボディを返す
func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Client-ID", c.clientID)
	req.Header.Set("X-API-Token", c.apiToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	c.logger.Debug("Conductor API",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return body, nil
}

// normalizeBaseURL はスキームが無い場合に https:// を補い、末尾のスラッシュを取り除く
func normalizeBaseURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", config.ErrMissingConductorURL
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid conductor url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid conductor url %q: host is empty", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}
