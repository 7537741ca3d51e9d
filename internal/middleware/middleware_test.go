package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"convo-relay/internal/domain/user"
	"convo-relay/internal/redis"
	"convo-relay/internal/services"
	relay_errors "convo-relay/pkg/errors"
	"convo-relay/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token string) (user.Identity, error) {
	switch token {
	case "good":
		return user.Identity{UserID: "alice"}, nil
	case "inactive":
		return user.Identity{}, fmt.Errorf("%w: user inactive", relay_errors.ErrForbidden)
	default:
		return user.Identity{}, relay_errors.ErrUnauthorized
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func TestAuthMiddleware(t *testing.T) {
	engine := gin.New()
	engine.GET("/me", AuthMiddleware(stubAuth{}), func(c *gin.Context) {
		id, _ := services.IdentityFromContext(c.Request.Context())
		logged, _ := c.Request.Context().Value(logger.UserIdKey).(string)
		c.String(http.StatusOK, id.UserID+"/"+logged)
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
		code   string
	}{
		{"valid bearer", "Bearer good", http.StatusOK, "alice/alice", ""},
		{"missing token", "", http.StatusUnauthorized, "", relay_errors.CodeAuthorization},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "", relay_errors.CodeAuthorization},
		{"inactive user", "Bearer inactive", http.StatusForbidden, "", relay_errors.CodeAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK {
				if rec.Body.String() != tt.body {
					t.Fatalf("body = %q, want %q", rec.Body.String(), tt.body)
				}
				return
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success || body.Code != tt.code {
				t.Fatalf("body = %+v, want code %s", body, tt.code)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.GET("/", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(logger.RequestIdKey).(string)
		c.String(http.StatusOK, id)
	})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		got := rec.Header().Get(RequestIDHeader)
		if got == "" || got != rec.Body.String() {
			t.Fatalf("header %q, context %q", got, rec.Body.String())
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc123")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Header().Get(RequestIDHeader) != "abc123" || rec.Body.String() != "abc123" {
			t.Fatalf("request id not propagated: %q", rec.Body.String())
		}
	})
}

func TestErrorHandlerMapsTaxonomy(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{fmt.Errorf("%w: bad since", relay_errors.ErrValidation), http.StatusBadRequest, relay_errors.CodeValidation, "invalid input: bad since"},
		{relay_errors.ErrNotFound, http.StatusNotFound, relay_errors.CodeNotFound, "not found"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, relay_errors.CodeInternal, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			engine := gin.New()
			engine.Use(ErrorHandler(logger.NewNop()))
			engine.GET("/", func(c *gin.Context) { _ = c.Error(tt.err) })

			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rec.Code != tt.status || body.Code != tt.code || body.Error != tt.msg {
				t.Fatalf("got %d %+v, want %d %s %q", rec.Code, body, tt.status, tt.code, tt.msg)
			}
		})
	}
}

type stubSyncLimiter struct {
	allowed bool
	err     error
}

func (s stubSyncLimiter) AllowSync(context.Context, string) (*redis.RateLimitResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &redis.RateLimitResult{Allowed: s.allowed, Limit: 10, ResetIn: 30 * time.Second}, nil
}

func TestSyncRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		limiter stubSyncLimiter
		status  int
	}{
		{"allowed", stubSyncLimiter{allowed: true}, http.StatusOK},
		{"refused", stubSyncLimiter{allowed: false}, http.StatusTooManyRequests},
		{"limiter down", stubSyncLimiter{err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/sync", AuthMiddleware(stubAuth{}), SyncRateLimitMiddleware(tt.limiter), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/sync", nil)
			req.Header.Set("Authorization", "Bearer good")
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.limiter.err == nil && rec.Header().Get("X-RateLimit-Limit") != "10" {
				t.Fatalf("rate limit headers missing: %v", rec.Header())
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	engine := gin.New()
	engine.Use(CORSMiddleware([]string{"https://app.example.com"}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin got status %d", rec.Code)
	}
}
