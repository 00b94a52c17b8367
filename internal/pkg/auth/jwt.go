package auth

import (
	"strings"
	"time"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/config"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Claims is the access token body. The user id is read from sub, falling back to userId.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens issued by the identity service.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(cfg config.AuthConfig) *TokenVerifier {
	return &TokenVerifier{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.Unauthenticated("authorization header required")
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", apperrors.Unauthenticated("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

// Verify parses tokenString and resolves the caller it names.
func (v *TokenVerifier) Verify(tokenString string) (models.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return models.Principal{}, apperrors.Unauthenticated("invalid token")
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	userID, err := primitive.ObjectIDFromHex(subject)
	if err != nil {
		return models.Principal{}, apperrors.Unauthenticated("token subject is not a valid user id")
	}

	return models.Principal{
		UserID:     userID,
		GlobalRole: consts.GlobalRole(strings.ToUpper(claims.Role)),
	}, nil
}

// Sign issues a token for principal. The service only verifies tokens; Sign exists for tooling and tests.
func (v *TokenVerifier) Sign(principal models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(principal.GlobalRole),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID.Hex(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
