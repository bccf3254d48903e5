package smugmug

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
	"smdl/pkg/retry"
)

func TestFetcherGetJSON(t *testing.T) {
	ts := newTestServer(t)
	ts.page("/api/v2/user/alice", `{"Response":{"User":{"NickName":"alice"}}}`)

	f := NewFetcher(newTestSession(t, ts), FetcherConfig{Policy: instantPolicy()}, logger.NewNopLogger())
	payload, err := f.GetJSON(context.Background(), "/api/v2/user/alice")

	require.NoError(t, err)
	assert.JSONEq(t, `{"Response":{"User":{"NickName":"alice"}}}`, string(payload))
}

func TestFetcherExhaustsAfterFiveAttempts(t *testing.T) {
	ts := newTestServer(t)
	ts.handle("/api/v2/flaky", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	var delays []time.Duration
	policy := instantPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	f := NewFetcher(newTestSession(t, ts), FetcherConfig{Policy: policy}, logger.NewNopLogger())
	_, err := f.GetJSON(context.Background(), "/api/v2/flaky")

	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeFetch, errs.TypeOf(err))
	assert.True(t, errs.Is(err, errs.ErrorTypeTransport))
	assert.Equal(t, 5, ts.hitCount("/api/v2/flaky"))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, delays)

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Attempts)
}

func TestFetcherRetriesExtractionFailures(t *testing.T) {
	ts := newTestServer(t)
	var calls int32
	ts.handle("/api/v2/album/abc", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Write([]byte("<html><body>temporarily unavailable</body></html>"))
			return
		}
		w.Write([]byte(apiPage(`{"Response":{"Album":{"Name":"Trip"}}}`)))
	})

	f := NewFetcher(newTestSession(t, ts), FetcherConfig{Policy: instantPolicy()}, logger.NewNopLogger())
	payload, err := f.GetJSON(context.Background(), "/api/v2/album/abc")

	require.NoError(t, err)
	assert.Contains(t, string(payload), "Trip")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetcherAcceptsAbsoluteURLs(t *testing.T) {
	ts := newTestServer(t)
	ts.page("/api/v2/album/abc!images", `{"Response":{}}`)
	ts.page("/api/v2/album/abc!images?start=101&count=100", `{"Response":{"AlbumImage":[]}}`)

	f := NewFetcher(newTestSession(t, ts), FetcherConfig{Policy: instantPolicy()}, logger.NewNopLogger())

	_, err := f.GetJSON(context.Background(), ts.URL+"/api/v2/album/abc!images")
	require.NoError(t, err)
	_, err = f.GetJSON(context.Background(), "/api/v2/album/abc!images?start=101&count=100")
	require.NoError(t, err)

	assert.Equal(t, 1, ts.hitCount("/api/v2/album/abc!images"))
	assert.Equal(t, 1, ts.hitCount("/api/v2/album/abc!images?start=101&count=100"))
}

func TestFetcherStopsOnCancellation(t *testing.T) {
	ts := newTestServer(t)
	ts.handle("/api/v2/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	policy := instantPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	f := NewFetcher(newTestSession(t, ts), FetcherConfig{Policy: policy}, logger.NewNopLogger())
	_, err := f.GetJSON(ctx, "/api/v2/down")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ts.hitCount("/api/v2/down"))
}

func TestFetcherTreatsAttemptTimeoutAsTransient(t *testing.T) {
	ts := newTestServer(t)
	var calls int32
	ts.handle("/api/v2/slow", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(apiPage(`{"Response":{"ok":true}}`)))
	})

	f := NewFetcher(newTestSession(t, ts), FetcherConfig{
		Policy:         instantPolicy(),
		RequestTimeout: 50 * time.Millisecond,
	}, logger.NewNopLogger())

	payload, err := f.GetJSON(context.Background(), "/api/v2/slow")
	require.NoError(t, err)
	assert.Contains(t, string(payload), "ok")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
