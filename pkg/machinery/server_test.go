package machinery

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// greetingHandle mirrors a generated Handle for a single hello service.
func greetingHandle(ctx context.Context, name, payload string) (out string) {
	defer Recover(&out)
	switch name {
	case "api::greeting::hello":
		args, err := DecodeArgs(payload, 1)
		if err != nil {
			return DeserializeFailed()
		}
		var message string
		if err := DecodeArg(args, 0, &message); err != nil {
			return DeserializeFailed()
		}
		if message == "Laur" {
			return Fail(errors.New("I dont like you"))
		}
		thing := "A"
		return Reply(greeting{Message: "Hello, " + message, Thing: &thing})
	case "api::greeting::whoami":
		return Reply(Headers(ctx).Get("X-User"))
	case "api::greeting::panic":
		panic("handler exploded")
	default:
		return UnknownFunction()
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []CallResult
}

func (r *recordingObserver) Call(_ string, result CallResult, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, result)
}

func post(t *testing.T, h http.Handler, service, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	if service != "" {
		req.Header.Set(ServiceHeader, service)
	}
	req.Header.Set("X-User", "bob")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerCalls(t *testing.T) {
	obs := &recordingObserver{}
	srv := New(greetingHandle, WithObserver(obs))

	tests := []struct {
		name    string
		service string
		body    string
		status  int
		want    string
	}{
		{"ok", "api::greeting::hello", `["Bob"]`, http.StatusOK, `{"result":{"message":"Hello, Bob","thing":"A"}}`},
		{"handler error", "api::greeting::hello", `["Laur"]`, http.StatusOK, `{"error":"I dont like you"}`},
		{"wrong arity", "api::greeting::hello", `[]`, http.StatusOK, `{"error":"Failed to deserialize input"}`},
		{"wrong type", "api::greeting::hello", `[42]`, http.StatusOK, `{"error":"Failed to deserialize input"}`},
		{"unknown key", "api::greeting::nope", `[]`, http.StatusOK, `{"error":"Unknown function"}`},
		{"headers in context", "api::greeting::whoami", `[]`, http.StatusOK, `{"result":"bob"}`},
		{"panic", "api::greeting::panic", `[]`, http.StatusOK, `{"error":"handler exploded"}`},
		{"missing service", "", `[]`, http.StatusBadRequest, `{"error":"Missing service name"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, srv, tt.service, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}

	assert.Equal(t, []CallResult{
		CallResultOK,
		CallResultError,
		CallResultDeserializeFailed,
		CallResultDeserializeFailed,
		CallResultUnknownFunction,
		CallResultOK,
		CallResultError,
		CallResultBadRequest,
	}, obs.calls)
}

func TestServerInvalidServiceName(t *testing.T) {
	srv := New(greetingHandle)
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(`[]`))
	req.Header[ServiceHeader] = []string{"api::\xff"}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid service name"}`, rec.Body.String())
}

func TestServerRejectsOtherMethods(t *testing.T) {
	srv := New(greetingHandle)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerBodyLimit(t *testing.T) {
	srv := New(greetingHandle, WithMaxBodySize(4))
	rec := post(t, srv, "api::greeting::hello", `["Bob"]`)
	assert.JSONEq(t, `{"error":"Failed to deserialize input"}`, rec.Body.String())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(greetingHandle).Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + Path
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(`["Bob"]`))
	require.NoError(t, err)
	req.Header.Set(ServiceHeader, "api::greeting::hello")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"message":"Hello, Bob","thing":"A"}}`, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
