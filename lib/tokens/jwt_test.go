package tokens

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("supersecret")

func TestGenerateAndParseAccessToken(t *testing.T) {
	token, err := GenerateAccessToken(secret, 3600, "0xAbC0000000000000000000000000000000000001")
	require.NoError(t, err)

	wallet, err := ParseAccessToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "0xAbC0000000000000000000000000000000000001", wallet)

	_, err = ParseAccessToken([]byte("other"), token)
	assert.Error(t, err)

	expired, err := GenerateAccessToken(secret, -10, "0xabc")
	require.NoError(t, err)
	_, err = ParseAccessToken(secret, expired)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(ContextKeyWallet).(string))
	}, Middleware(secret))

	token, err := GenerateAccessToken(secret, 3600, "0xAbC0000000000000000000000000000000000001")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
