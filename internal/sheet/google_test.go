package sheet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"po-notifier-go/internal/gauth"
)

func newTestGoogle(t *testing.T, h http.HandlerFunc) *Google {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewGoogle(context.Background(), "sheet-1",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	g.retry = &gauth.Retrier{Attempts: 3, Backoff: func(int) time.Duration { return time.Millisecond }}
	return g
}

func TestGoogleSizeReadsColumnAndHeader(t *testing.T) {
	var calls atomic.Int32
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/values:batchGet"), r.URL.Path)
		assert.Equal(t, []string{"'Orders'!A:A", "'Orders'!1:1"}, r.URL.Query()["ranges"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","valueRanges":[
			{"range":"'Orders'!A1:A3","majorDimension":"ROWS","values":[["Timestamp"],[],["2024-03-01"]]},
			{"range":"'Orders'!A1:F1","majorDimension":"ROWS","values":[["Timestamp","Email","Name","PO","Desc","Placed"]]}
		]}`))
	})

	rows, cols, err := g.Size(context.Background(), "Orders")
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 6, cols)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGoogleRetriesQuotaErrors(t *testing.T) {
	var calls atomic.Int32
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded","errors":[{"reason":"rateLimitExceeded"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"range":"'Orders'!2:2","majorDimension":"ROWS","values":[["a","b"]]}`))
	})

	rows, err := g.Read(context.Background(), "Orders", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, rows)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGoogleDoesNotRetryOtherErrors(t *testing.T) {
	var calls atomic.Int32
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range"}}`))
	})

	_, err := g.Read(context.Background(), "Orders", 2, 1)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
