package tokens

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
)

const ContextKeyWallet = "WalletAddress"

type jwtCustomClaims struct {
	jwt.StandardClaims
}

// GenerateAccessToken : Generate Access Token. The subject is the wallet address.
func GenerateAccessToken(secret []byte, expiryInSeconds int, walletAddress string) (string, error) {
	claims := &jwtCustomClaims{
		jwt.StandardClaims{
			Subject:   walletAddress,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(time.Second * time.Duration(expiryInSeconds)).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	t, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return t, nil
}

// ParseAccessToken validates token and returns the wallet address it was issued for.
func ParseAccessToken(secret []byte, token string) (string, error) {
	claims := &jwtCustomClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}

// Middleware : Check Auth. Stores the wallet address under ContextKeyWallet.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
					"error":   true,
					"code":    1,
					"message": "bad auth",
				})
			}
			wallet, err := ParseAccessToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				c.Logger().Debugf("Rejected access token: %v", err)
				return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
					"error":   true,
					"code":    1,
					"message": "bad auth",
				})
			}
			c.Set(ContextKeyWallet, strings.ToLower(wallet))
			return next(c)
		}
	}
}
