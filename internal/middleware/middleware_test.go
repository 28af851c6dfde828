package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "libraryconnect.chat/pkg/errors"
	"libraryconnect.chat/pkg/jwt"
	"libraryconnect.chat/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth map[string]*jwt.Claims

func (f fakeAuth) Authenticate(_ context.Context, token string) (*jwt.Claims, error) {
	if token == "expired" {
		return nil, appErrors.ErrTokenExpired
	}
	claims, ok := f[token]
	if !ok {
		return nil, appErrors.ErrTokenInvalid
	}
	return claims, nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestTokenAuth(t *testing.T) {
	auth := fakeAuth{"good": {UserID: 7, DeviceID: "dev"}}

	r := gin.New()
	r.GET("/me", TokenAuth(auth), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": GetUserID(c), "device": GetDeviceID(c), "token": GetAccessToken(c)})
	})

	tests := []struct {
		name   string
		header string
		status int
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized, appErrors.CodeTokenInvalid},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, appErrors.CodeTokenInvalid},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, appErrors.CodeTokenInvalid},
		{"expired token", "Bearer expired", http.StatusUnauthorized, appErrors.CodeTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Code)
		})
	}

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "bearer good")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"uid":7,"device":"dev","token":"good"}`, w.Body.String())
	})
}

func TestWebSocketAuth_QueryToken(t *testing.T) {
	auth := fakeAuth{"good": {UserID: 9}}
	r := gin.New()
	r.GET("/ws", WebSocketAuth(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetUserID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token=good", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "9", w.Body.String())

	// plain TokenAuth ignores the query string
	r2 := gin.New()
	r2.GET("/x", TokenAuth(auth), func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	r2.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?token=good", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://app.example"}, []string{"GET", "POST"}, true))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

type countingLimiter struct {
	limit int
	hits  map[string]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.hits[key]++
	return l.hits[key] <= l.limit, nil
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := &countingLimiter{limit: 2, hits: map[string]int{}}

	r := gin.New()
	r.GET("/x", RateLimit(limiter, logger), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	limiter.err = errors.New("redis down")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code, "fails open")
}

func TestLogger(t *testing.T) {
	var buf jsonLines
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(Logger(logger))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Len(t, buf.entries, 1)
	assert.Equal(t, "WARN", buf.entries[0]["level"])
	assert.Equal(t, "/missing", buf.entries[0]["path"])
	assert.EqualValues(t, 404, buf.entries[0]["status"])
}

type jsonLines struct {
	entries []map[string]any
}

func (j *jsonLines) Write(p []byte) (int, error) {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return 0, err
	}
	j.entries = append(j.entries, m)
	return len(p), nil
}
