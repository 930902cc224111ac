package middleware

import (
	"time"

	"shipyard/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ContextSubject 在gin上下文中保存token主体
	ContextSubject = "subject"
	// 剩余有效期短于该值时在响应头里下发新token
	refreshWindow = 10 * time.Minute
)

type Claims struct {
	jwt.RegisteredClaims
}

func GenerateJWT(subject, key string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(key))
}

func ParseJWT(tokenString, key string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, common.NewErrNo(common.TOKEN_INVALID)
	}
	return claims, nil
}

// JWTAuthMiddleware rejects requests without a valid bearer token. An empty
// key disables the check.
func JWTAuthMiddleware(key string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" && c.Query("access_token") != "" {
			// 浏览器的websocket无法设置请求头
			header = common.BearerHeader(c.Query("access_token"))
		}
		tokenString, err := common.BearerToken(header)
		if err != nil {
			common.Error(c, err)
			c.Abort()
			return
		}

		claims, err := ParseJWT(tokenString, key)
		if err != nil {
			common.Error(c, err)
			c.Abort()
			return
		}

		if claims.ExpiresAt.Time.Before(time.Now().Add(refreshWindow)) {
			newToken, err := GenerateJWT(claims.Subject, key, ttl)
			if err != nil {
				common.Error(c, common.NewErrNo(common.TOKEN_INVALID))
				c.Abort()
				return
			}
			c.Header("Authorization", common.BearerHeader(newToken))
		}
		c.Set(ContextSubject, claims.Subject)
		c.Next()
	}
}
