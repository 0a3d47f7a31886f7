package utils

import (
	"fmt"
	"time"

	"collab-tracker-backend/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the lifetime of tokens minted by GenerateAccessToken.
const DefaultAccessTokenTTL = 15 * time.Minute

// JWTService JWT服务
//
// Tokens are issued by the identity provider; this service verifies them.
// GenerateAccessToken exists for scripts and tests.
type JWTService struct {
	secretKey []byte
	ttl       time.Duration
}

// NewJWTService 创建JWT服务
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		ttl:       DefaultAccessTokenTTL,
	}
}

// GenerateAccessToken 生成访问令牌
func (j *JWTService) GenerateAccessToken(userID, email string) (string, int64, error) {
	now := time.Now()
	expiry := now.Add(j.ttl)

	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Type:   "access",
		Exp:    expiry.Unix(),
		Iat:    now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, expiry.Unix(), nil
}

// ValidateToken 验证令牌
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	// 检查是否过期
	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}

	return claims, nil
}

// ValidateAccessToken 验证访问令牌并返回操作者身份
func (j *JWTService) ValidateAccessToken(tokenString string) (models.Actor, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return models.Actor{}, err
	}
	if claims.Type != "access" {
		return models.Actor{}, fmt.Errorf("invalid token type: expected access, got %s", claims.Type)
	}
	if claims.UserID == "" || claims.Email == "" {
		return models.Actor{}, fmt.Errorf("token lacks user id or email")
	}
	return claims.Actor(), nil
}
