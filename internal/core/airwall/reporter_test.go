package airwall

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf)
	a := Appliance{UUID: "A1", Title: "Unit One"}

	require.NoError(t, r.Appliance(a))
	require.NoError(t, r.Findings(a, []Finding{
		{Marker: MarkerIMEI, LineNo: 1, Line: " imei: 1 "},
		{Marker: MarkerMSISDN, LineNo: 3, Line: "msisdn: 2"},
	}))
	require.NoError(t, r.Findings(a, nil))

	assert.Equal(t, "Unit One\n imei: 1 \nmsisdn: 2\n", buf.String())
}

func TestFileReporter_Append(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "findings.log")
	r := NewFileReporter(filePath)
	r.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }

	a := Appliance{UUID: "A1", Title: "Unit One"}
	require.NoError(t, r.Appliance(a))
	require.NoError(t, r.Findings(a, []Finding{{Marker: MarkerIMEI, Line: "imei: 1"}}))

	b := Appliance{UUID: "A2", Title: "Unit Two"}
	require.NoError(t, r.Appliance(b))
	require.NoError(t, r.Findings(b, nil))

	content, err := os.ReadFile(filePath)
	require.NoError(t, err)

	assert.Equal(t,
		"[2026-10-18T09:00:00Z] Unit One (A1)\n"+
			"    imei\timei: 1\n"+
			"[2026-10-18T09:00:00Z] Unit Two (A2)\n",
		string(content))
}

func TestFileReporter_OpenError(t *testing.T) {
	r := NewFileReporter(filepath.Join(t.TempDir(), "missing", "findings.log"))
	assert.Error(t, r.Appliance(Appliance{Title: "x"}))
}

type failingReporter struct{}

func (failingReporter) Appliance(Appliance) error { return errors.New("disk full") }
func (failingReporter) Findings(Appliance, []Finding) error { return errors.New("disk full") }

func TestMultiReporter(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiReporter(NewTextReporter(&a), NewTextReporter(&b))

	app := Appliance{UUID: "A1", Title: "Unit One"}
	require.NoError(t, m.Appliance(app))
	require.NoError(t, m.Findings(app, []Finding{{Marker: MarkerMSISDN, Line: "msisdn: 1"}}))

	assert.Equal(t, "Unit One\nmsisdn: 1\n", a.String())
	assert.Equal(t, a.String(), b.String())
}

func TestMultiReporter_PartialFailure(t *testing.T) {
	var buf bytes.Buffer
	m := NewMultiReporter(failingReporter{}, NewTextReporter(&buf))

	err := m.Appliance(Appliance{Title: "Unit One"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "Unit One\n", buf.String(), "失敗したReporter以外には出力される")
}
