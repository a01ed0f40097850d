// Package auth issues and verifies staff access tokens.
package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cuemby/brigade/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

var (
	// ErrMissingToken is returned when a request carries no bearer token
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned for a token that fails verification
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the staff identity carried in a token
type Claims struct {
	UserID  string        `json:"userId"`
	Role    types.Role    `json:"role"`
	Station types.Station `json:"station,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the identity the claims describe
func (c *Claims) Actor() types.Actor {
	return types.Actor{UserID: c.UserID, Role: c.Role, Station: c.Station}
}

// Authenticator issues and verifies HMAC-signed tokens
type Authenticator struct {
	secret []byte
}

// New creates an authenticator for secret
func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Issue signs a token for actor valid for ttl
func (a *Authenticator) Issue(actor types.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:  actor.UserID,
		Role:    actor.Role,
		Station: actor.Station,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies a token and returns its claims
func (a *Authenticator) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	if claims.Station != "" && !claims.Station.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest reads the token from the "token" query parameter or the
// Authorization bearer header
func TokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Middleware authenticates the request and, when roles are given, requires
// one of them
func (a *Authenticator) Middleware(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.Parse(TokenFromRequest(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// ActorFrom returns the authenticated actor of a request
func ActorFrom(c *gin.Context) types.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(types.Actor); ok {
			return actor
		}
	}
	return types.Actor{}
}
