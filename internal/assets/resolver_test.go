package assets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/dhgavali-gis/get-postalcode-datacenter/internal/errors"
)

const usSample = "PostalCode,PlaceName,AdminName1,AdminName2,AdminName3,Latitude,Longitude,Timezone\n" +
	"10001,New York,New York,New York County,,40.7484,-73.9967,America/New_York\n"

func newSampleServer(t *testing.T, heads *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && heads != nil {
			heads.Add(1)
		}
		switch r.URL.Path {
		case "/samples/us-postal-codes-sample.csv":
			w.Header().Set("Content-Type", "text/csv")
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(usSample))
			}
		case "/samples/gb-postal-codes-sample.csv":
			w.WriteHeader(http.StatusOK)
		case "/samples/cn-postal-codes-sample.csv":
			w.WriteHeader(http.StatusForbidden)
		case "/samples/de-postal-codes-sample.csv":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(t *testing.T, srv *httptest.Server, ttl time.Duration) *Resolver {
	t.Helper()
	r, err := NewResolver(Options{BaseURL: srv.URL + "/samples/", HTTPClient: srv.Client(), ProbeCacheTTL: ttl})
	require.NoError(t, err)
	return r
}

func TestNewResolverRejectsBadBase(t *testing.T) {
	for _, base := range []string{"", "ftp://example.com/samples", "http://"} {
		_, err := NewResolver(Options{BaseURL: base})
		assert.Error(t, err, base)
	}
}

func TestResolvePath(t *testing.T) {
	r, err := NewResolver(Options{BaseURL: "https://cdn.example.com/samples/"})
	require.NoError(t, err)

	got, err := r.ResolvePath("us-postal-codes-sample.csv")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/samples/us-postal-codes-sample.csv", got)

	for _, name := range []string{"", "  ", "us.txt", "../secret.csv", "a/b.csv", `a\b.csv`} {
		_, err := r.ResolvePath(name)
		require.Error(t, err, name)
		assert.Equal(t, internalerrors.ErrInvalidInput, internalerrors.GetCode(err), name)
	}
}

func TestExists(t *testing.T) {
	srv := newSampleServer(t, nil)
	r := newTestResolver(t, srv, 0)
	ctx := context.Background()

	assert.True(t, r.Exists(ctx, "us-postal-codes-sample.csv"))
	assert.False(t, r.Exists(ctx, "fr-postal-codes-sample.csv"))
	assert.False(t, r.Exists(ctx, "cn-postal-codes-sample.csv"))
	assert.False(t, r.Exists(ctx, "not-a-csv.txt"))
}

func TestExistsUnreachableHostIsFalse(t *testing.T) {
	srv := newSampleServer(t, nil)
	r := newTestResolver(t, srv, 0)
	srv.Close()

	assert.False(t, r.Exists(context.Background(), "us-postal-codes-sample.csv"))
}

func TestExistsMemoAndReset(t *testing.T) {
	var heads atomic.Int32
	srv := newSampleServer(t, &heads)
	r := newTestResolver(t, srv, time.Minute)
	ctx := context.Background()

	assert.True(t, r.Exists(ctx, "us-postal-codes-sample.csv"))
	assert.True(t, r.Exists(ctx, "us-postal-codes-sample.csv"))
	assert.Equal(t, int32(1), heads.Load())

	r.Reset()
	assert.True(t, r.Exists(ctx, "us-postal-codes-sample.csv"))
	assert.Equal(t, int32(2), heads.Load())
}

func TestCheckAll(t *testing.T) {
	srv := newSampleServer(t, nil)
	r := newTestResolver(t, srv, 0)

	status := r.CheckAll(context.Background(), []string{
		"us-postal-codes-sample.csv",
		"gb-postal-codes-sample.csv",
		"fr-postal-codes-sample.csv",
		"us-postal-codes-sample.csv",
	})

	require.Len(t, status, 3)
	assert.True(t, status["us-postal-codes-sample.csv"])
	assert.True(t, status["gb-postal-codes-sample.csv"])
	assert.False(t, status["fr-postal-codes-sample.csv"])
}

func TestCheckAllRepeatedNameKeepsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/samples/us-postal-codes-sample.csv" {
			return
		}
		time.Sleep(200 * time.Millisecond)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	r := newTestResolver(t, srv, 0)

	// The repeat is reached only after the first us check has finished and
	// freed a slot for the eighth slow request.
	names := []string{"us-postal-codes-sample.csv"}
	for i := 0; i < probeConcurrency; i++ {
		names = append(names, fmt.Sprintf("x%d-postal-codes-sample.csv", i))
	}
	names = append(names, "us-postal-codes-sample.csv")

	status := r.CheckAll(context.Background(), names)
	require.Len(t, status, probeConcurrency+1)
	assert.True(t, status["us-postal-codes-sample.csv"])
	assert.False(t, status["x0-postal-codes-sample.csv"])
}

func TestFetchBytes(t *testing.T) {
	srv := newSampleServer(t, nil)
	r := newTestResolver(t, srv, 0)
	ctx := context.Background()

	data, err := r.FetchBytes(ctx, "us-postal-codes-sample.csv")
	require.NoError(t, err)
	assert.Equal(t, usSample, string(data))

	cases := []struct {
		file string
		code internalerrors.Code
	}{
		{"fr-postal-codes-sample.csv", internalerrors.ErrNotFound},
		{"cn-postal-codes-sample.csv", internalerrors.ErrForbidden},
		{"de-postal-codes-sample.csv", internalerrors.ErrTransfer},
		{"gb-postal-codes-sample.csv", internalerrors.ErrEmptyFile},
		{"gb.json", internalerrors.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			_, err := r.FetchBytes(ctx, tc.file)
			require.Error(t, err)
			assert.Equal(t, tc.code, internalerrors.GetCode(err))
		})
	}
}

func TestDownload(t *testing.T) {
	srv := newSampleServer(t, nil)
	r := newTestResolver(t, srv, 0)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")

	p, err := r.Download(ctx, "us-postal-codes-sample.csv", dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "us-postal-codes-sample.csv"), p)
	content, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, usSample, string(content))

	_, err = r.Download(ctx, "us-postal-codes-sample.csv", dir, false)
	require.Error(t, err)

	_, err = r.Download(ctx, "us-postal-codes-sample.csv", dir, true)
	require.NoError(t, err)
}

func TestDownloadAllStopsAtFirstFailure(t *testing.T) {
	srv := newSampleServer(t, nil)
	r := newTestResolver(t, srv, 0)
	dir := t.TempDir()

	files, err := r.DownloadAll(context.Background(), []string{
		"us-postal-codes-sample.csv",
		"fr-postal-codes-sample.csv",
		"gb-postal-codes-sample.csv",
	}, dir, false)
	require.Error(t, err)
	assert.Equal(t, internalerrors.ErrNotFound, internalerrors.GetCode(err))
	assert.Equal(t, []string{filepath.Join(dir, "us-postal-codes-sample.csv")}, files)
}
