package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const TOKEN_KEY = "Authorization"

// TokenClaims identifies the authenticated owner of every chat and
// workspace operation.
type TokenClaims struct {
	Appid      string `json:"aid"`
	User       string `json:"u"` // owner id
	ExpireTime int64  `json:"exp"`
	NotBefore  int64  `json:"nbf"`
}

func NewTokenClaims(appid, userID string, expireTime int64) TokenClaims {
	return TokenClaims{
		Appid:      appid,
		User:       userID,
		ExpireTime: expireTime,
		NotBefore:  time.Now().Unix() - 1,
	}
}

func (t TokenClaims) GetUser() string {
	return t.User
}

func GenerateJWT(info TokenClaims, signBytes []byte) (string, error) {
	claims := jwt.MapClaims{
		"aid": info.Appid,
		"u":   info.User,
		"exp": info.ExpireTime,
		"nbf": info.NotBefore,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(signBytes)
	if err != nil {
		return "", err
	}
	return token.SignedString(privateKey)
}

var (
	ErrInvalidJWT = errors.New("invalid token")
	ErrPublicKey  = errors.New("invalid public key")
)

func VerifyToken(tokenString string, key []byte) (*TokenClaims, error) {
	claims, err := ParseJWT(tokenString, key)
	if err != nil {
		return nil, err
	}

	if claims.ExpireTime < time.Now().Unix() || claims.NotBefore > time.Now().Unix() {
		return nil, fmt.Errorf("expired token, %w", ErrInvalidJWT)
	}

	return claims, nil
}

func ParseJWT(tokenString string, key []byte) (*TokenClaims, error) {
	result := &TokenClaims{}
	_, err := jwt.Parse(tokenString, func(i2 *jwt.Token) (i interface{}, e error) {
		publicKey, err := jwt.ParseRSAPublicKeyFromPEM(key)
		if err != nil {
			return nil, fmt.Errorf("%s, %w", err.Error(), ErrPublicKey)
		}
		return publicKey, nil
	})

	if err != nil {
		return nil, err
	}

	parts := strings.Split(tokenString, ".")
	claimBytes, _ := jwt.DecodeSegment(parts[1])

	if err = json.Unmarshal(claimBytes, &result); err != nil {
		return result, fmt.Errorf("%s, %w", err.Error(), ErrInvalidJWT)
	}
	return result, nil
}
