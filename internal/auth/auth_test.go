package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTManager(t *testing.T) {
	_, err := NewJWTManager("")
	require.Error(t, err)

	jm, err := NewJWTManager("secret")
	require.NoError(t, err)
	assert.NotNil(t, jm.tracer)
}

func TestJWTManager_RoundTrip(t *testing.T) {
	jm, err := NewJWTManager("secret")
	require.NoError(t, err)

	token, err := jm.GenerateToken(context.Background(), "dev", time.Hour)
	require.NoError(t, err)

	claims, err := jm.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "dev", claims.Username)
	assert.Equal(t, issuer, claims.Issuer)
	assert.NotEmpty(t, claims.UserID)
}

func TestJWTManager_ValidateTokenErrors(t *testing.T) {
	jm, err := NewJWTManager("secret")
	require.NoError(t, err)
	other, err := NewJWTManager("other-secret")
	require.NoError(t, err)

	expired, err := jm.GenerateToken(context.Background(), "dev", -time.Minute)
	require.NoError(t, err)
	foreign, err := other.GenerateToken(context.Background(), "dev", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username:         "dev",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired},
		{name: "wrong signature", token: foreign},
		{name: "wrong issuer", token: wrongIssuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jm.ValidateToken(context.Background(), tt.token)
			assert.Error(t, err)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jm, err := NewJWTManager("secret")
	require.NoError(t, err)
	valid, err := jm.GenerateToken(context.Background(), "dev", time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/protected", RequireAuth(jm, nil), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString(UsernameKey)})
	})

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedBody   string
	}{
		{name: "valid token", header: "Bearer " + valid, expectedStatus: http.StatusOK, expectedBody: `"username":"dev"`},
		{name: "missing header", expectedStatus: http.StatusUnauthorized, expectedBody: "Missing or invalid authorization header"},
		{name: "wrong scheme", header: "Basic abc", expectedStatus: http.StatusUnauthorized, expectedBody: "Missing or invalid authorization header"},
		{name: "empty bearer", header: "Bearer   ", expectedStatus: http.StatusUnauthorized, expectedBody: "Missing or invalid authorization header"},
		{name: "invalid token", header: "Bearer nope", expectedStatus: http.StatusUnauthorized, expectedBody: "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}
