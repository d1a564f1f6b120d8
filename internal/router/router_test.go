package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"dupcheck/internal/handler"
	"dupcheck/internal/router"
	"dupcheck/internal/service"
	"dupcheck/mocks"
)

func TestSetup_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	checkH := handler.NewCheckHandler(new(mocks.MockCheckService), service.NewRunRegistry(0), 0)
	r := router.Setup(zap.NewNop(), []string{"http://localhost:8080"}, checkH, handler.NewHealthHandler(nil))

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/api/v1/checks", http.StatusOK},
		{http.MethodGet, "/api/v1/checks/" + uuid.NewString(), http.StatusNotFound},
		{http.MethodGet, "/api/v1/checks/not-a-uuid/unique", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/checks", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}
