package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(context.Context) CheckResult   { return CheckResult{Status: StatusHealthy} }
func unhealthy(context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} }

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		critical Check
		optional Check
		want     Status
	}{
		{"all healthy", healthy, healthy, StatusHealthy},
		{"critical failing", unhealthy, healthy, StatusUnhealthy},
		{"optional failing", healthy, unhealthy, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.RegisterFunc("db", true, tt.critical)
			c.RegisterFunc("queue", false, tt.optional)
			c.Check(context.Background())
			assert.Equal(t, tt.want, c.OverallStatus())
		})
	}
}

func TestOverallStatusUnknownBeforeCheck(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("db", true, healthy)
	assert.Equal(t, StatusUnknown, c.OverallStatus())
}

func TestCheckTimeout(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:     "slow",
		Critical: true,
		Timeout:  20 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, "check timed out", results["slow"].Message)
}

func TestCheckPanic(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("boom", true, func(context.Context) CheckResult { panic("nil store") })

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["boom"].Status)
	assert.Equal(t, "nil store", results["boom"].Error)
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("db", true, healthy)

	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c.SetReady(true)
	rec = httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	c := NewChecker()
	c.SetReady(true)
	c.RegisterFunc("db", true, DatabaseCheck(func(context.Context) error { return errors.New("connection refused") }))

	mux := http.NewServeMux()
	c.Mount(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.True(t, resp.Ready)
	assert.Equal(t, "connection refused", resp.Components["db"].Error)
}

func TestQueueCheck(t *testing.T) {
	r := QueueCheck(func() (int, int) { return 3, 64 })(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)

	r = QueueCheck(func() (int, int) { return 60, 64 })(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, 60, r.Details["pending"])

	r = QueueCheck(func() (int, int) { return 0, 0 })(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
}

func TestPathsCheck(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gone")

	r := PathsCheck(func() []string { return []string{dir} })(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)

	r = PathsCheck(func() []string { return []string{missing, dir} })(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, []string{missing}, r.Details["missing"])
}
