package middleware

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/questlog/pkg/httpcontext"
)

// UserIDKey is the request user value holding the authenticated user id.
const UserIDKey = httpcontext.UserIDValue

var (
	errMissingSubject = errors.New("token carries no user_id claim")
	errNoSecret       = errors.New("no signing secret configured")
)

// JWTAuth admits requests with a valid HS256 bearer token carrying a
// user_id claim.
func JWTAuth(secret string, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx)
				return
			}

			userID, err := ParseUserID(tokenString, secret)
			if err != nil {
				logger.Warn("invalid jwt token", zap.Error(err))
				unauthorized(ctx)
				return
			}

			ctx.SetUserValue(UserIDKey, userID)
			next(ctx)
		}
	}
}

// ParseUserID verifies the token and returns its user_id claim.
func ParseUserID(tokenString, secret string) (string, error) {
	if secret == "" {
		return "", errNoSecret
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenUnverifiable
	}
	userID, _ := claims["user_id"].(string)
	if strings.TrimSpace(userID) == "" {
		return "", errMissingSubject
	}
	return userID, nil
}

// UserID returns the authenticated user id, or "" outside JWTAuth.
func UserID(ctx *fasthttp.RequestCtx) string {
	userID, _ := ctx.UserValue(UserIDKey).(string)
	return userID
}

func unauthorized(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBodyString(`{"status":"error","code":"UNAUTHORIZED","error":"missing or invalid bearer token"}`)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
