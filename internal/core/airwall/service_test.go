package airwall

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConductor は呼び出し順序を記録するConductorのスタブ
type stubConductor struct {
	appliances []Appliance
	reports    map[string]string
	listErr    error
	startErr   map[string]error
	fetchErr   map[string]error

	events []string
}

func (c *stubConductor) ListAppliances(ctx context.Context) ([]Appliance, error) {
	c.events = append(c.events, "list")
	return c.appliances, c.listErr
}

func (c *stubConductor) StartDiagnostic(ctx context.Context, id string) (DiagnosticJob, error) {
	c.events = append(c.events, "start:"+id)
	if err := c.startErr[id]; err != nil {
		return nil, err
	}
	return DiagnosticJob{"job_id": "job-" + id}, nil
}

func (c *stubConductor) GetDiagnostic(ctx context.Context, id string) (string, error) {
	c.events = append(c.events, "fetch:"+id)
	if err := c.fetchErr[id]; err != nil {
		return "", err
	}
	return c.reports[id], nil
}

func (c *stubConductor) count(prefix string) int {
	n := 0
	for _, e := range c.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// recordingWait は待機を行わずに呼び出しを記録する
func recordingWait(c *stubConductor, got *time.Duration) WaitFunc {
	return func(ctx context.Context, d time.Duration) error {
		c.events = append(c.events, "wait")
		*got = d
		return nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_Run_SingleAppliance(t *testing.T) {
	conductor := &stubConductor{
		appliances: []Appliance{{UUID: "A1", Title: "Unit One"}},
		reports: map[string]string{
			"A1": "device imei: 123456789012345\nsubscriber msisdn: 15551234567\nother: ignore",
		},
	}
	var out bytes.Buffer
	var waited time.Duration

	svc := NewService(conductor, NewTextReporter(&out),
		WithLogger(discardLogger()),
		WithWait(30*time.Second),
		WithWaitFunc(recordingWait(conductor, &waited)),
	)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"list", "start:A1", "wait", "fetch:A1"}, conductor.events)
	assert.Equal(t, 30*time.Second, waited)
	assert.Equal(t, "Unit One\ndevice imei: 123456789012345\nsubscriber msisdn: 15551234567\n", out.String())

	require.Len(t, summary.Results, 1)
	assert.Equal(t, "job-A1", summary.Results[0].Job.JobID())
	assert.Equal(t, 1, summary.FindingCount(MarkerIMEI))
	assert.Equal(t, 1, summary.FindingCount(MarkerMSISDN))
	assert.Equal(t, 0, summary.FailedCount())
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
}

func TestService_Run_EmptyListStillWaits(t *testing.T) {
	conductor := &stubConductor{appliances: []Appliance{}}
	var out bytes.Buffer
	var waited time.Duration

	svc := NewService(conductor, NewTextReporter(&out),
		WithLogger(discardLogger()),
		WithWait(time.Minute),
		WithWaitFunc(recordingWait(conductor, &waited)),
	)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"list", "wait"}, conductor.events)
	assert.Equal(t, time.Minute, waited)
	assert.Empty(t, out.String())
	assert.Empty(t, summary.Results)
}

func TestService_Run_OneTriggerPerApplianceBeforeWait(t *testing.T) {
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	conductor := &stubConductor{reports: map[string]string{}}
	for i, id := range ids {
		conductor.appliances = append(conductor.appliances, Appliance{UUID: id, Title: "unit-" + string(rune('a'+i))})
	}
	var waited time.Duration

	svc := NewService(conductor, NewTextReporter(io.Discard),
		WithLogger(discardLogger()),
		WithWaitFunc(recordingWait(conductor, &waited)),
	)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	want := []string{"list"}
	for _, id := range ids {
		want = append(want, "start:"+id)
	}
	want = append(want, "wait")
	for _, id := range ids {
		want = append(want, "fetch:"+id)
	}
	assert.Equal(t, want, conductor.events)
	assert.Equal(t, len(ids), conductor.count("start:"))
	assert.Equal(t, 30*time.Second, waited, "デフォルトの待機時間は30秒")
}

func TestService_Run_ListErrorAborts(t *testing.T) {
	conductor := &stubConductor{listErr: errors.New("connection refused")}
	var waited time.Duration

	svc := NewService(conductor, NewTextReporter(io.Discard),
		WithLogger(discardLogger()),
		WithContinueOnError(true),
		WithWaitFunc(recordingWait(conductor, &waited)),
	)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, []string{"list"}, conductor.events)
}

func TestService_Run_FailFastOnTriggerError(t *testing.T) {
	boom := errors.New("500 Internal Server Error")
	conductor := &stubConductor{
		appliances: []Appliance{{UUID: "A1", Title: "one"}, {UUID: "A2", Title: "two"}},
		startErr:   map[string]error{"A1": boom},
	}
	var waited time.Duration
	var out bytes.Buffer

	svc := NewService(conductor, NewTextReporter(&out),
		WithLogger(discardLogger()),
		WithWaitFunc(recordingWait(conductor, &waited)),
	)

	summary, err := svc.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"list", "start:A1"}, conductor.events)
	assert.Empty(t, out.String())
	require.NotNil(t, summary)
	assert.Len(t, summary.Results, 2)
}

func TestService_Run_FailFastOnFetchError(t *testing.T) {
	boom := errors.New("timeout")
	conductor := &stubConductor{
		appliances: []Appliance{{UUID: "A1", Title: "one"}, {UUID: "A2", Title: "two"}},
		reports:    map[string]string{"A2": "imei: 1"},
		fetchErr:   map[string]error{"A1": boom},
	}
	var waited time.Duration
	var out bytes.Buffer

	svc := NewService(conductor, NewTextReporter(&out),
		WithLogger(discardLogger()),
		WithWaitFunc(recordingWait(conductor, &waited)),
	)

	_, err := svc.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"list", "start:A1", "start:A2", "wait", "fetch:A1"}, conductor.events)
	assert.Equal(t, "one\n", out.String())
}

func TestService_Run_ContinueOnError(t *testing.T) {
	conductor := &stubConductor{
		appliances: []Appliance{
			{UUID: "A1", Title: "one"},
			{UUID: "A2", Title: "two"},
			{UUID: "A3", Title: "three"},
		},
		reports:  map[string]string{"A3": "msisdn: 100"},
		startErr: map[string]error{"A1": errors.New("forbidden")},
		fetchErr: map[string]error{"A2": errors.New("not ready")},
	}
	var waited time.Duration
	var out bytes.Buffer

	svc := NewService(conductor, NewTextReporter(&out),
		WithLogger(discardLogger()),
		WithContinueOnError(true),
		WithWaitFunc(recordingWait(conductor, &waited)),
	)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"list", "start:A1", "start:A2", "start:A3", "wait", "fetch:A2", "fetch:A3"}, conductor.events)
	assert.Equal(t, "one\ntwo\nthree\nmsisdn: 100\n", out.String())
	assert.Equal(t, 2, summary.FailedCount())
	assert.Contains(t, summary.Results[0].Error, "forbidden")
	assert.Contains(t, summary.Results[1].Error, "not ready")
	assert.False(t, summary.Results[2].Failed())
}

func TestService_Run_EmptyUUID(t *testing.T) {
	conductor := &stubConductor{appliances: []Appliance{{Title: "no id"}}}
	var waited time.Duration

	svc := NewService(conductor, NewTextReporter(io.Discard),
		WithLogger(discardLogger()),
		WithWaitFunc(recordingWait(conductor, &waited)),
	)

	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoAppliance)
	assert.Equal(t, 0, conductor.count("start:"))
}

func TestService_Run_CanceledDuringWait(t *testing.T) {
	conductor := &stubConductor{appliances: []Appliance{{UUID: "A1", Title: "one"}}}
	ctx, cancel := context.WithCancel(context.Background())

	svc := NewService(conductor, NewTextReporter(io.Discard),
		WithLogger(discardLogger()),
		WithWait(time.Hour),
		WithWaitFunc(func(ctx context.Context, d time.Duration) error {
			cancel()
			return SleepContext(ctx, d)
		}),
	)

	_, err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, conductor.count("fetch:"))
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))
	require.NoError(t, SleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
