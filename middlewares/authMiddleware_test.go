package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/gin-gonic/gin"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware(), AuthMiddleware())
	r.GET("/open", func(c *gin.Context) {
		id, _ := utils.GetUserIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": id, "admin": utils.IsAdmin(c.Request.Context())})
	})
	r.GET("/private", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/admin", RequireAuth(), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doRequest(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, id int, role string) map[string]string {
	t.Helper()
	token, err := utils.JwtGenerate(id, "Ana", role)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAuthMiddleware(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"anonymous open route", "/open", nil, http.StatusOK},
		{"anonymous private route", "/private", nil, http.StatusUnauthorized},
		{"garbage token", "/open", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"wrong scheme", "/open", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized},
		{"user on private route", "/private", bearer(t, 7, "staff"), http.StatusOK},
		{"user on admin route", "/admin", bearer(t, 7, "staff"), http.StatusForbidden},
		{"admin on admin route", "/admin", bearer(t, 1, utils.RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.path, tt.header)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	r := newTestRouter()

	w := doRequest(r, "/open", map[string]string{CorrelationHeader: "abc-123"})
	if got := w.Header().Get(CorrelationHeader); got != "abc-123" {
		t.Fatalf("correlation id = %q, want the caller's", got)
	}

	w = doRequest(r, "/open", nil)
	if w.Header().Get(CorrelationHeader) == "" {
		t.Fatalf("a correlation id should be generated")
	}
}
