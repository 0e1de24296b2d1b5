package middleware_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/questlog/internal/middleware"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestParseUserID(t *testing.T) {
	valid := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	userID, err := middleware.ParseUserID(valid, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = middleware.ParseUserID(valid, "other-secret")
	assert.Error(t, err)

	noSubject := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "user-1"})
	_, err = middleware.ParseUserID(noSubject, secret)
	assert.Error(t, err)

	expired := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	_, err = middleware.ParseUserID(expired, secret)
	assert.Error(t, err)

	_, err = middleware.ParseUserID(valid, "")
	assert.Error(t, err)

	otherAlg := sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"user_id": "user-1"})
	_, err = middleware.ParseUserID(otherAlg, secret)
	assert.Error(t, err)
}

func TestJWTAuth(t *testing.T) {
	var seen string
	handler := middleware.JWTAuth(secret, nil)(func(ctx *fasthttp.RequestCtx) {
		seen = middleware.UserID(ctx)
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	var ctx fasthttp.RequestCtx
	handler(&ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "UNAUTHORIZED")
	assert.Empty(t, seen)

	token := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": "user-2"})
	var authed fasthttp.RequestCtx
	authed.Request.Header.Set("Authorization", "Bearer "+token)
	handler(&authed)
	assert.Equal(t, fasthttp.StatusOK, authed.Response.StatusCode())
	assert.Equal(t, "user-2", seen)
}
