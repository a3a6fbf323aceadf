package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles the platform knows about.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents the JWT payload.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Issue issues signed access and refresh tokens for a user.
func Issue(userID, role, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	sign := func(exp time.Time) (string, error) {
		claims := Claims{
			Subject: userID,
			Role:    role,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Subject:   userID,
				ExpiresAt: jwt.NewNumericDate(exp),
				IssuedAt:  jwt.NewNumericDate(now),
			},
		}
		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	}

	accessToken, err := sign(accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := sign(refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Parse validates a token and returns its claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
