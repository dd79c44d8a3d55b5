package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by verifiers for any token they reject.
var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer token into an Actor. Identity itself is owned by an
// external provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (Actor, error)
}

// Claims is the payload of tokens accepted by JWTVerifier.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	a := Actor{ID: claims.Subject, Email: claims.Email}
	if claims.Role != "" {
		a.Roles = []string{claims.Role}
	}
	return a, nil
}

// Sign issues a token for a, used by tooling and tests.
func (v *JWTVerifier) Sign(a Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if len(a.Roles) > 0 {
		claims.Role = a.Roles[0]
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier accepts Firebase Authentication ID tokens.
type FirebaseVerifier struct {
	client idTokenVerifier
}

func NewFirebaseVerifier(client *firebaseauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (Actor, error) {
	t, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	a := Actor{ID: t.UID}
	// Unverified addresses never reach the admin allowlist.
	if email, ok := t.Claims["email"].(string); ok && emailVerified(t.Claims) {
		a.Email = email
	}
	if role, ok := t.Claims["role"].(string); ok && role != "" {
		a.Roles = []string{role}
	}
	if admin, ok := t.Claims["admin"].(bool); ok && admin {
		a.Roles = append(a.Roles, RoleAdmin)
	}
	return a, nil
}

func emailVerified(claims map[string]interface{}) bool {
	v, ok := claims["email_verified"].(bool)
	return ok && v
}
