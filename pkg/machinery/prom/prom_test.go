package prom

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinery-rpc/machinery/pkg/machinery"
)

func TestCallObserver(t *testing.T) {
	reg := NewRegistry()
	o := NewCallObserver(reg)

	o.Call("api::greeting::hello", machinery.CallResultOK, 10*time.Millisecond)
	o.Call("api::greeting::hello", machinery.CallResultOK, 20*time.Millisecond)
	o.Call("api::greeting::hello", machinery.CallResultError, time.Millisecond)
	o.Call("whatever::a", machinery.CallResultUnknownFunction, time.Millisecond)
	o.Call("whatever::b", machinery.CallResultUnknownFunction, time.Millisecond)
	o.Call("", machinery.CallResultBadRequest, 0)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `machinery_calls_total{result="ok",service="api::greeting::hello"} 2`)
	assert.Contains(t, body, `machinery_calls_total{result="error",service="api::greeting::hello"} 1`)
	assert.Contains(t, body, `machinery_calls_total{result="unknown_function",service=""} 2`)
	assert.NotContains(t, body, "whatever")
	assert.Contains(t, body, `machinery_call_duration_seconds_count{service="api::greeting::hello"} 3`)
	assert.NotContains(t, body, `machinery_call_duration_seconds_count{service=""} 3`)
}

func TestObserverWiresIntoServer(t *testing.T) {
	reg := NewRegistry()
	srv := machinery.New(func(_ context.Context, _, _ string) string { return machinery.Reply(true) },
		machinery.WithObserver(NewCallObserver(reg)))

	req := httptest.NewRequest("POST", machinery.Path, nil)
	req.Header.Set(machinery.ServiceHeader, "health::ping")
	srv.ServeHTTP(httptest.NewRecorder(), req)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "machinery_calls_total")
	assert.Contains(t, names, "machinery_call_duration_seconds")
}
