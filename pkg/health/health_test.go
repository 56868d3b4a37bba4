package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func call(t *testing.T, endpoint http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body statusBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func fails(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passes() CheckFunc {
	return func(context.Context) error { return nil }
}

type fakePinger struct{ err atomic.Pointer[error] }

func (p *fakePinger) Ping(context.Context) error {
	if e := p.err.Load(); e != nil {
		return *e
	}
	return nil
}

func (p *fakePinger) set(err error) { p.err.Store(&err) }

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.Liveness(Check{Name: "goroutines", Func: passes()})

	code, body := call(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestFailureThreshold(t *testing.T) {
	h := New()
	h.Liveness(Check{Name: "carts", Func: fails("carts 900 exceeds threshold 500")})
	p := h.liveness[0]
	ctx := context.Background()

	p.run(ctx)
	p.run(ctx)
	code, _ := call(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "two failures stay below the default threshold")

	p.run(ctx)
	code, body := call(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"carts": "carts 900 exceeds threshold 500"}, body.Checks)
}

func TestCustomThresholds(t *testing.T) {
	pinger := &fakePinger{}
	h := New()
	h.Readiness(Check{Name: "storage", Func: PingCheck(pinger), FailureThreshold: 1, SuccessThreshold: 2})
	h.SetReady(true)
	p := h.readiness[0]
	ctx := context.Background()

	pinger.set(errors.New("connection refused"))
	p.run(ctx)
	assert.False(t, h.IsReady())
	assert.EqualError(t, p.lastError(), "connection refused")

	pinger.set(nil)
	p.run(ctx)
	assert.False(t, h.IsReady(), "one success is not enough")
	p.run(ctx)
	assert.True(t, h.IsReady())
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.Readiness(Check{Name: "storage", Func: passes()})
	h.Readiness(Check{Name: "commerce", Func: fails("unexpected status 401"), FailureThreshold: 1})

	code, body := call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])

	h.SetReady(true)
	code, _ = call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code, "checks start healthy")

	h.readiness[1].run(context.Background())
	code, body = call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"commerce": "unexpected status 401"}, body.Checks)

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.Readiness(Check{
		Name:             "slow",
		Timeout:          10 * time.Millisecond,
		FailureThreshold: 1,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	h.readiness[0].run(context.Background())
	assert.ErrorIs(t, h.readiness[0].lastError(), context.DeadlineExceeded)
}

func TestStartStop(t *testing.T) {
	var runs atomic.Int64
	h := New()
	h.Liveness(Check{Name: "count", Func: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	h.Start(context.Background(), 5*time.Millisecond)
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.Liveness(Check{Name: "flaky", Func: fails("err")})
	h.Readiness(Check{Name: "storage", Func: passes()})
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestCheckers(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	assert.ErrorContains(t, GoroutineCountCheck(0)(ctx), "exceeds threshold")

	n := 3
	check := SizeCheck("carts", func() int { return n }, 5)
	assert.NoError(t, check(ctx))
	n = 6
	assert.EqualError(t, check(ctx), "carts 6 exceeds threshold 5")
}
