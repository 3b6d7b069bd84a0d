package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerIP(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	l := NewRateLimiter(2, time.Minute, m)
	h := l.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimited))
}

func TestRateLimiterBadRemoteAddr(t *testing.T) {
	l := NewRateLimiter(1, time.Minute, nil)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "not-an-address"
	rr := httptest.NewRecorder()

	l.Limit(http.NotFoundHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRateLimiterSweepDropsIdleVisitors(t *testing.T) {
	l := NewRateLimiter(1, time.Millisecond, nil)
	l.getVisitor("10.0.0.1")
	time.Sleep(5 * time.Millisecond)

	l.sweep()

	assert.Empty(t, l.visitors)
}
