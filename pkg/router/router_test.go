package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authEngine(apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(apiKey))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		header string
		want   int
	}{
		{"未設定なら検証しない", "", "", http.StatusOK},
		{"既定値なら検証しない", "default_secret_key", "", http.StatusOK},
		{"一致", "secret", "secret", http.StatusOK},
		{"不一致", "secret", "wrong", http.StatusUnauthorized},
		{"ヘッダーなし", "secret", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("X-API-KEY", tt.header)
			}
			w := httptest.NewRecorder()
			authEngine(tt.apiKey).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
