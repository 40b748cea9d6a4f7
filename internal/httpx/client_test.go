package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onlineChecker struct{ online atomic.Bool }

func newOnlineChecker(online bool) *onlineChecker {
	c := &onlineChecker{}
	c.online.Store(online)
	return c
}

func (c *onlineChecker) Online() bool { return c.online.Load() }

func testOptions() Options {
	return Options{
		MaxRetries:   3,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		OfflinePause: time.Millisecond,
		Timeout:      2 * time.Second,
	}
}

func newTestServer(handler gin.HandlerFunc) *httptest.Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Any("/probe", handler)
	return httptest.NewServer(r)
}

func TestRetryBudgetIssuesExactlyMaxRetriesPlusOneAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(func(c *gin.Context) {
		hits.Add(1)
		c.Status(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	client := NewClient(srv.URL, NewMemoryCredentials("tok"), newOnlineChecker(true), nil, testOptions())
	err := client.GetJSON(context.Background(), "/probe", nil)

	require.ErrorIs(t, err, ErrRetryBudget)
	assert.Equal(t, int32(4), hits.Load())
}

func TestAuthFailureClearsCredentialWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(func(c *gin.Context) {
		hits.Add(1)
		c.Status(http.StatusUnauthorized)
	})
	defer srv.Close()

	creds := NewMemoryCredentials("tok")
	client := NewClient(srv.URL, creds, newOnlineChecker(true), nil, testOptions())
	err := client.GetJSON(context.Background(), "/probe", nil)

	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, creds.Token())
}

func TestOfflineFailsFastWithoutDialing(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(func(c *gin.Context) {
		hits.Add(1)
		c.Status(http.StatusOK)
	})
	defer srv.Close()

	client := NewClient(srv.URL, NewMemoryCredentials("tok"), newOnlineChecker(false), nil, testOptions())
	err := client.GetJSON(context.Background(), "/probe", nil)

	require.ErrorIs(t, err, ErrOffline)
	assert.Zero(t, hits.Load())
}

func TestTerminalClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(func(c *gin.Context) {
		hits.Add(1)
		c.Status(http.StatusNotFound)
	})
	defer srv.Close()

	client := NewClient(srv.URL, NewMemoryCredentials("tok"), newOnlineChecker(true), nil, testOptions())
	err := client.GetJSON(context.Background(), "/probe", nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestTransientFailureRecovers(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(func(c *gin.Context) {
		if hits.Add(1) < 3 {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	defer srv.Close()

	client := NewClient(srv.URL, NewMemoryCredentials("tok"), newOnlineChecker(true), nil, testOptions())
	var out struct {
		OK bool `json:"ok"`
	}
	err := client.GetJSON(context.Background(), "/probe", &out)

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), hits.Load())
}

func TestCredentialAttachedWhenPresent(t *testing.T) {
	var got atomic.Value
	srv := newTestServer(func(c *gin.Context) {
		got.Store(c.GetHeader("Authorization"))
		c.Status(http.StatusOK)
	})
	defer srv.Close()

	client := NewClient(srv.URL, NewMemoryCredentials("tok"), newOnlineChecker(true), nil, testOptions())
	require.NoError(t, client.GetJSON(context.Background(), "/probe", nil))
	assert.Equal(t, "Bearer tok", got.Load())
}

func TestExhaustedRouteStartsFromBaseDelayOnNextCall(t *testing.T) {
	srv := newTestServer(func(c *gin.Context) {
		c.Status(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	client := NewClient(srv.URL, NewMemoryCredentials("tok"), newOnlineChecker(true), nil, testOptions())
	err := client.GetJSON(context.Background(), "/probe", nil)
	require.ErrorIs(t, err, ErrRetryBudget)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Empty(t, client.backoffs)
}

func TestSharedNotifierResetsEveryClientBackoff(t *testing.T) {
	checker := newOnlineChecker(false)
	notifier := NewNotifier(checker, time.Hour)

	c1 := NewClient("http://one", NewMemoryCredentials(""), checker, notifier, testOptions())
	c2 := NewClient("http://two", NewMemoryCredentials(""), checker, notifier, testOptions())
	c1.nextDelay("GET /a")
	c2.nextDelay("GET /b")

	notifier.check()
	checker.online.Store(true)
	notifier.check()

	c1.mu.Lock()
	assert.Empty(t, c1.backoffs)
	c1.mu.Unlock()
	c2.mu.Lock()
	assert.Empty(t, c2.backoffs)
	c2.mu.Unlock()
}

func TestNotifierFiresOnceOnReconnect(t *testing.T) {
	checker := newOnlineChecker(false)
	notifier := NewNotifier(checker, 5*time.Millisecond)

	var fired atomic.Int32
	notifier.OnReconnect(func() { fired.Add(1) })

	notifier.Start()
	defer notifier.Stop()

	// Let the watcher observe the offline state first.
	time.Sleep(25 * time.Millisecond)
	checker.online.Store(true)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), fired.Load())
}

func TestNotifierStartIsIdempotent(t *testing.T) {
	notifier := NewNotifier(newOnlineChecker(true), time.Millisecond)
	notifier.Start()
	notifier.Start()
	notifier.Stop()
}
