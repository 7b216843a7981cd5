package airwall

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoAppliance はAirwallのUUIDが空の場合のエラー
	ErrNoAppliance = errors.New("airwall uuid is empty")
)

// Appliance はConductorが管理するAirwall 1台を表す
// uuid と title 以外のフィールドは Extra にそのまま保持する
type Appliance struct {
	UUID  string                     // AirwallのUUID
	Title string                     // 表示名
	Extra map[string]json.RawMessage // 未使用のフィールド
}

// UnmarshalJSON は未知のキーを許容してAirwallをデコードする
// 一覧APIによっては uuid ではなく id でUUIDを返すため、id をフォールバックとして扱う
func (a *Appliance) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	uuid, err := stringField(raw, "uuid")
	if err != nil {
		return err
	}
	if uuid == "" {
		if uuid, err = stringField(raw, "id"); err != nil {
			return err
		}
	}
	title, err := stringField(raw, "title")
	if err != nil {
		return err
	}

	delete(raw, "uuid")
	delete(raw, "title")
	if len(raw) == 0 {
		raw = nil
	}

	*a = Appliance{UUID: uuid, Title: title, Extra: raw}
	return nil
}

// MarshalJSON は Extra を含めて元の形に戻す
func (a Appliance) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+2)
	for k, v := range a.Extra {
		out[k] = v
	}
	out["uuid"] = a.UUID
	out["title"] = a.Title
	return json.Marshal(out)
}

// stringField は文字列のフィールドを取り出す
// 数値のIDは元の表記のまま文字列として扱う
func stringField(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", fmt.Errorf("field %q is not a string or number: %w", key, err)
	}
	return n.String(), nil
}

// DiagnosticJob は診断ジョブ起動APIのレスポンス
// 内容は利用しないが、ログ用に job_id を参照できるようにしている
type DiagnosticJob map[string]any

// JobID はレスポンスに job_id が含まれていればその値を返す
func (j DiagnosticJob) JobID() string {
	if j == nil {
		return ""
	}
	switch v := j["job_id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

// Marker はレポートから抽出する識別子の種類
type Marker string

const (
	MarkerIMEI   Marker = "imei"
	MarkerMSISDN Marker = "msisdn"
)

// Markers は検査順に並べたマーカー一覧
var Markers = []Marker{MarkerIMEI, MarkerMSISDN}

// Finding はレポート内でマーカーを含んでいた1行
type Finding struct {
	Marker Marker `json:"marker"`
	LineNo int    `json:"line_no"` // 1始まり
	Line   string `json:"line"`
}

// ApplianceResult はAirwall 1台分の処理結果
type ApplianceResult struct {
	Appliance Appliance     `json:"appliance"`
	Job       DiagnosticJob `json:"job,omitempty"`
	Findings  []Finding     `json:"findings"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// Failed は処理が失敗していたかを返す
func (r ApplianceResult) Failed() bool {
	return r.Err != nil
}

func (r *ApplianceResult) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

// RunSummary は1回のスキャン全体の結果
type RunSummary struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Wait       time.Duration     `json:"-"`
	Results    []ApplianceResult `json:"results"`
}

// FindingCount はマーカー別の検出件数を返す
func (s *RunSummary) FindingCount(m Marker) int {
	n := 0
	for _, r := range s.Results {
		for _, f := range r.Findings {
			if f.Marker == m {
				n++
			}
		}
	}
	return n
}

// FailedCount は失敗したAirwallの台数を返す
func (s *RunSummary) FailedCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}
