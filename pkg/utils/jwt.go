package utils

import (
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the principal; the subject is the principal id
type Claims struct {
	Role  models.Role `json:"role"`
	OrgID string      `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens
type TokenIssuer struct {
	secret   []byte
	duration time.Duration
}

func NewTokenIssuer(secret string, duration time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), duration: duration}
}

func (i *TokenIssuer) GenerateToken(p models.Principal) (string, error) {
	if p.ID == "" || !p.Role.Valid() {
		return "", errors.Newf("cannot sign token for principal %q with role %q", p.ID, p.Role)
	}
	now := time.Now()
	claims := Claims{
		Role:  p.Role,
		OrgID: p.OrgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *TokenIssuer) ValidateToken(tokenString string) (models.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Principal{}, errors.Mark(errors.Wrap(err, "parse token"), ErrInvalidToken)
	}
	if !token.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return models.Principal{}, ErrInvalidToken
	}
	return models.Principal{ID: claims.Subject, Role: claims.Role, OrgID: claims.OrgID}, nil
}
