package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shg-finance/internal/pkg/auth"
	"shg-finance/internal/pkg/config"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/metric/noop"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newVerifier() *auth.TokenVerifier {
	return auth.NewTokenVerifier(config.AuthConfig{JWTSecret: "test-secret", Issuer: "shg-identity"})
}

func TestAuthenticate(t *testing.T) {
	verifier := newVerifier()
	user := models.Principal{UserID: primitive.NewObjectID(), GlobalRole: consts.GlobalRoleFieldOfficer}
	token, err := verifier.Sign(user, time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.Use(Authenticate(verifier))
	router.GET("/me", func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"userId": principal.UserID.Hex(), "role": principal.GlobalRole})
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, c.status, w.Code)
			if c.status == http.StatusOK {
				assert.JSONEq(t, `{"userId":"`+user.UserID.Hex()+`","role":"FIELD_OFFICER"}`, w.Body.String())
				return
			}
			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, "UNAUTHENTICATED", body.Code)
		})
	}
}

func TestPrincipalFromMissing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := PrincipalFrom(c)
	assert.False(t, ok)

	c.Set(consts.PrincipalContextKey, "not a principal")
	_, ok = PrincipalFrom(c)
	assert.False(t, ok)
}

func TestAttachRequestDetails(t *testing.T) {
	router := gin.New()
	router.Use(AttachRequestDetails())
	router.GET("/trace", func(c *gin.Context) {
		c.String(http.StatusOK, logger.GetTraceID(c.Request.Context()))
	})

	t.Run("propagates caller request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/trace", nil)
		req.Header.Set(consts.RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-42", w.Body.String())
		assert.Equal(t, "req-42", w.Header().Get(consts.RequestIDHeader))
	})

	t.Run("generates one when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trace", nil))

		generated := w.Header().Get(consts.RequestIDHeader)
		assert.Len(t, generated, 36)
		assert.Equal(t, generated, w.Body.String())
	})
}

func TestMetricMiddlewarePassesThrough(t *testing.T) {
	router := gin.New()
	router.Use(NewMetricMiddleware(noop.NewMeterProvider().Meter("test")))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/conflict", func(c *gin.Context) { c.Status(http.StatusConflict) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}
