package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "middleware-test-secret"

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": UserID(c), "name": UserName(c)})
	})
	r.GET("/whoami", handlers...)
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter(JWTAuth(testSecret, "ehs-toolkit"))

	w := get(r, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40100")

	w = get(r, "/whoami", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40102")

	wrongIssuer, err := GenerateToken(testSecret, "someone-else", "u1", "Aoife Byrne", nil, time.Hour)
	require.NoError(t, err)
	w = get(r, "/whoami", wrongIssuer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := GenerateToken(testSecret, "ehs-toolkit", "u1", "Aoife Byrne", nil, -time.Minute)
	require.NoError(t, err)
	w = get(r, "/whoami", expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := GenerateToken(testSecret, "ehs-toolkit", "u1", "Aoife Byrne", []string{"user"}, time.Hour)
	require.NoError(t, err)
	w = get(r, "/whoami", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid":"u1","name":"Aoife Byrne"}`, w.Body.String())

	// SSE 客户端通过 query 传令牌
	w = get(r, "/whoami?token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := newRouter(JWTAuth(testSecret, ""), RequireRole("permit_manager"))

	cases := []struct {
		name   string
		roles  []string
		status int
	}{
		{"matching role", []string{"permit_manager"}, http.StatusOK},
		{"admin passes", []string{RoleAdmin}, http.StatusOK},
		{"other role", []string{"user"}, http.StatusForbidden},
		{"no roles", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := GenerateToken(testSecret, "", "u1", "Mary", tc.roles, time.Hour)
			require.NoError(t, err)
			w := get(r, "/whoami", token)
			assert.Equal(t, tc.status, w.Code)
		})
	}

	// 未经过认证中间件时没有角色信息
	bare := newRouter(RequireRole("permit_manager"))
	w := get(bare, "/whoami", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "40310")
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())

	w := get(r, "/whoami", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/whoami", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggerLevelsAndRedactsToken(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	r.GET("/events", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	get(r, "/events?token=secret-jwt&since=5", "")
	get(r, "/boom", "")
	get(r, "/missing", "")

	entries := logs.All()
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, zapcore.InfoLevel, first.Level)
	query := first.ContextMap()["query"].(string)
	assert.NotContains(t, query, "secret-jwt")
	assert.Contains(t, query, "token=REDACTED")
	assert.Contains(t, query, "since=5")
	assert.NotEmpty(t, first.ContextMap()["request_id"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "Server error", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
}
