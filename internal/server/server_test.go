package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/nativebox/internal/loader"
	"github.com/danmuck/nativebox/internal/native"
	"github.com/danmuck/nativebox/internal/testutil/testlog"
	"github.com/danmuck/nativebox/internal/testutil/tlstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, ld loader.Loader) (*Server, *native.Repository) {
	t.Helper()
	return newTestServerWith(t, ld, Options{})
}

func newTestServerWith(t *testing.T, ld loader.Loader, opts Options) (*Server, *native.Repository) {
	t.Helper()
	testlog.Start(t)
	repo, err := native.New(native.Config{Dir: t.TempDir(), Loader: ld})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return New("nativectl-test", repo, opts), repo
}

func do(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return doReq(t, s, httptest.NewRequest(method, path, nil))
}

func doReq(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	var body map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr, body
}

func TestHealth(t *testing.T) {
	s, repo := newTestServer(t, loader.Noop{})
	_, err := repo.Register("com.acme", "liba.so")
	require.NoError(t, err)

	rr, body := do(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["artifacts"])

	require.NoError(t, repo.Close())
	rr, body = do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "closed", body["status"])
}

func TestListAndLookupArtifacts(t *testing.T) {
	s, repo := newTestServer(t, loader.Noop{})
	_, err := repo.StoreReader("com.acme", "liba.so", strings.NewReader("payload"))
	require.NoError(t, err)
	_, err = repo.Register("com.acme", "libb.so")
	require.NoError(t, err)

	rr, body := do(t, s, http.MethodGet, "/artifacts")
	require.Equal(t, http.StatusOK, rr.Code)
	list, ok := body["artifacts"].([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	assert.Equal(t, "liba.so", first["name"])
	assert.Equal(t, "stored", first["state"])
	assert.Equal(t, float64(len("payload")), first["size"])

	rr, body = do(t, s, http.MethodGet, "/artifacts/com.acme/libb.so")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "declared", body["state"])

	rr, _ = do(t, s, http.MethodGet, "/artifacts/com.acme/missing.so")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLoadRoute(t *testing.T) {
	rec := &loader.Recorder{}
	s, repo := newTestServer(t, rec)
	_, err := repo.StoreReader("com.acme", "liba.so", strings.NewReader("payload"))
	require.NoError(t, err)
	_, err = repo.Register("com.acme", "libb.so")
	require.NoError(t, err)

	rr, body := do(t, s, http.MethodPost, "/artifacts/com.acme/liba.so/load")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "loaded", body["state"])
	assert.Equal(t, 1, rec.Calls())

	rr, _ = do(t, s, http.MethodPost, "/artifacts/com.acme/liba.so/load")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, rec.Calls())

	rr, _ = do(t, s, http.MethodPost, "/artifacts/com.acme/libb.so/load")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, _ = do(t, s, http.MethodPost, "/artifacts/com.acme/missing.so/load")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.NoError(t, repo.Close())
	rr, _ = do(t, s, http.MethodPost, "/artifacts/com.acme/liba.so/load")
	assert.Equal(t, http.StatusGone, rr.Code)
}

func TestLoadRouteLoaderFailure(t *testing.T) {
	s, repo := newTestServer(t, &loader.Recorder{Err: errors.New("bad elf")})
	_, err := repo.StoreReader("com.acme", "liba.so", strings.NewReader("payload"))
	require.NoError(t, err)

	rr, body := do(t, s, http.MethodPost, "/artifacts/com.acme/liba.so/load")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, body["error"], "bad elf")
}

func TestMetricsRoute(t *testing.T) {
	s, _ := newTestServer(t, loader.Noop{})
	do(t, s, http.MethodGet, "/health")
	rr, _ := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "nativebox_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		native.ErrNotFound:         http.StatusNotFound,
		native.ErrInvalidState:     http.StatusConflict,
		native.ErrAlreadyExists:    http.StatusConflict,
		native.ErrRepositoryClosed: http.StatusGone,
		native.ErrInvalidKey:       http.StatusBadRequest,
		native.ErrLoad:             http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(&native.Error{Op: "load", Kind: err}), err.Error())
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, loader.Noop{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestLoadRouteRequiresToken(t *testing.T) {
	rec := &loader.Recorder{}
	s, repo := newTestServerWith(t, rec, Options{Token: "s3cret"})
	_, err := repo.StoreReader("com.acme", "liba.so", strings.NewReader("payload"))
	require.NoError(t, err)

	rr, _ := do(t, s, http.MethodPost, "/artifacts/com.acme/liba.so/load")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/artifacts/com.acme/liba.so/load", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr, _ = doReq(t, s, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 0, rec.Calls())

	req = httptest.NewRequest(http.MethodPost, "/artifacts/com.acme/liba.so/load", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr, body := doReq(t, s, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "loaded", body["state"])

	// Reads stay open.
	rr, _ = do(t, s, http.MethodGet, "/artifacts")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServeListenerTLS(t *testing.T) {
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, "nativebox-test-ca")
	certPath, keyPath := ca.IssueLocalhost(t, dir)
	s, _ := newTestServerWith(t, loader.Noop{}, Options{TLSCert: certPath, TLSKey: keyPath})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: ca.ClientConfig()},
		Timeout:   5 * time.Second,
	}
	resp, err := client.Get("https://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
