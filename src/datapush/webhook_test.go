package datapush

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BandAnalyzer/src/config"
	"BandAnalyzer/src/processor"
	"BandAnalyzer/src/timeseries"
)

func sampleReport(t *testing.T) processor.Report {
	t.Helper()
	ds, err := timeseries.Build([][]string{
		{"", "CO2", "CO2"},
		{"", "Office", "Lab"},
		{" 01/05 Jan 05 02:00 PM", "650", "900"},
		{" 01/05 Jan 05 03:00 PM", "700", "950"},
	}, timeseries.Options{})
	require.NoError(t, err)
	return (&processor.Analyzer{}).Run(ds, processor.Request{Parameter: "CO2", Bands: "800"})
}

func TestNewPayloadSkipsTablesWithoutColumns(t *testing.T) {
	report := sampleReport(t)
	p := NewPayload("CO2", "export.csv", report.Tables(), nil)
	require.Len(t, p.Tables, 3)
	assert.Equal(t, []string{"Zone", "Below 800", "Above 800"}, p.Tables[0].Columns)
	assert.Equal(t, []string{"Office", "2", "0"}, p.Tables[0].Rows[0])

	noBands := (&processor.Analyzer{}).Run(nil, processor.Request{})
	p = NewPayload("", "", noBands.Tables(), noBands.Diagnostics)
	require.Len(t, p.Tables, 2)
	assert.Equal(t, "averages", p.Tables[1].Name)
	assert.Empty(t, p.Tables[0].Rows)
	assert.NotEmpty(t, p.Diagnostics)
}

func TestPublisherRetriesUntilSuccess(t *testing.T) {
	var calls int32
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if n == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	pub := &Publisher{URL: srv.URL, Token: "secret", Retries: 3, Interval: time.Millisecond, Client: srv.Client()}
	payload := NewPayload("CO2", "export.csv", sampleReport(t).Tables(), []string{"note"})
	require.NoError(t, pub.Push(context.Background(), payload))

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "CO2", got.Title)
	assert.Equal(t, []string{"note"}, got.Diagnostics)
	assert.Len(t, got.Tables, 3)
}

func TestPublisherReportsErrCode(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"errcode":40001,"errmsg":"invalid token"}`))
	}))
	defer srv.Close()

	pub := &Publisher{URL: srv.URL, Retries: 2, Interval: time.Millisecond}
	err := pub.Push(context.Background(), Payload{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, func() error {
		calls++
		cancel()
		return assert.AnError
	}, 5, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNewPublisherFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, NewPublisher(cfg))

	cfg.Webhook.URL = "http://example.invalid/hook"
	cfg.Webhook.Retries = 0
	pub := NewPublisher(cfg)
	require.NotNil(t, pub)
	assert.Equal(t, RETRY_TIMES, pub.Retries)
	assert.Equal(t, 10*time.Second, pub.Client.Timeout)
}
