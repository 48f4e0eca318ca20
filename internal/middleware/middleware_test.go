package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mall/internal/config"
	"mall/internal/monitor"
	internalutils "mall/internal/utils"
	"mall/pkg/limiter"
	"mall/pkg/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.Response {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		method string
		status int
	}{
		{name: "GET request", path: "/test", method: "GET", status: 200},
		{name: "POST request", path: "/test", method: "POST", status: 201},
		{name: "Client error", path: "/missing", method: "GET", status: 404},
		{name: "Server error", path: "/error", method: "GET", status: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Logger())
			r.GET("/test", func(c *gin.Context) { c.JSON(200, gin.H{"message": "ok"}) })
			r.POST("/test", func(c *gin.Context) { c.JSON(201, gin.H{"message": "created"}) })
			r.GET("/error", func(c *gin.Context) { c.JSON(500, gin.H{"error": "internal error"}) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, utils.CodeInternalError, decode(t, w).Code)
}

func TestAuth(t *testing.T) {
	jwt := internalutils.NewJWTManager("test-secret", "mall", time.Hour)
	buyerToken, err := jwt.GenerateToken(7, internalutils.RoleBuyer)
	require.NoError(t, err)
	adminToken, err := jwt.GenerateToken(1, internalutils.RoleAdmin)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Auth(JWTValidator(jwt)))
	r.GET("/me", func(c *gin.Context) {
		id, ok := GetUserID(c)
		require.True(t, ok)
		utils.SuccessResponse(c, gin.H{"id": id})
	})
	r.GET("/admin", RequireRole(internalutils.RoleAdmin), func(c *gin.Context) {
		utils.SuccessResponse(c, nil)
	})

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"not bearer", "/me", "Basic abc", http.StatusUnauthorized},
		{"empty token", "/me", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"buyer ok", "/me", "Bearer " + buyerToken, http.StatusOK},
		{"buyer on admin route", "/admin", "Bearer " + buyerToken, http.StatusForbidden},
		{"admin ok", "/admin", "Bearer " + adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGetUserID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetUserID(c)
	assert.False(t, ok)

	c.Set(UserIDKey, "7")
	_, ok = GetUserID(c)
	assert.False(t, ok)
}

func TestCORS(t *testing.T) {
	var cfg config.SecurityConfig
	cfg.CORS.AllowOrigins = []string{"https://shop.example.com"}
	cfg.CORS.AllowCredentials = true
	cfg.CORS.MaxAge = 600

	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/test", func(c *gin.Context) { c.String(200, "ok") })

	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(limiter.NewTokenBucketLimiter(1, 2, time.Minute), KeyByIP))
	r.GET("/test", func(c *gin.Context) { c.String(200, "ok") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, utils.CodeRateLimit, decode(t, w).Code)
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// another client has its own bucket
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(failingLimiter{}, KeyByUser))
	r.GET("/test", func(c *gin.Context) { c.String(200, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestKeyByUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.RemoteAddr = "10.0.0.9:80"
	assert.Equal(t, "ip:10.0.0.9", KeyByUser(c))

	c.Set(UserIDKey, uint64(42))
	assert.Equal(t, "user:42", KeyByUser(c))
}

func TestMetrics(t *testing.T) {
	mc := monitor.NewMetricsCollector("mw_test")
	r := gin.New()
	r.Use(Metrics(mc))
	r.GET("/orders/:code", func(c *gin.Context) { c.String(200, "ok") })

	for _, p := range []string{"/orders/a", "/orders/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, nil))
	}

	n, err := testutil.GatherAndCount(mc.Registry(), "mw_test_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTracing_Disabled(t *testing.T) {
	tr, err := monitor.NewTracer(config.TracingConfig{ServiceName: "mall-test"}, "test")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Tracing(tr))
	r.GET("/ping", func(c *gin.Context) { c.String(200, monitor.TraceID(c.Request.Context())) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			utils.ErrorFrom(c, c.Request.Context().Err())
		case <-time.After(time.Second):
			c.String(200, "late")
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/slow", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), "late"))
}
