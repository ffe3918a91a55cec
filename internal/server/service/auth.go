package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/leonj1/scribe-crush/internal/server/oauth"
	"github.com/leonj1/scribe-crush/internal/server/repository"
	"github.com/leonj1/scribe-crush/internal/shared/models"
)

// AuthService delegates identity to the OAuth provider, keeps the local user
// table in sync and issues HMAC-signed bearer tokens.
type AuthService struct {
	repo      Repository
	identity  oauth.Provider
	jwtSecret []byte
	algorithm string
	tokenTTL  time.Duration
	now       func() time.Time
}

// LoginURL is where the browser is sent to authenticate.
func (a *AuthService) LoginURL(state string) (string, error) {
	if a.identity == nil {
		return "", fmt.Errorf("%w: identity provider not configured", ErrUpstream)
	}
	return a.identity.AuthCodeURL(state), nil
}

// CompleteLogin exchanges the authorization code, upserts the user by the
// provider's subject id and returns the user with a fresh access token.
func (a *AuthService) CompleteLogin(ctx context.Context, code string) (models.User, string, error) {
	if a.identity == nil {
		return models.User{}, "", fmt.Errorf("%w: identity provider not configured", ErrUpstream)
	}
	id, err := a.identity.Exchange(ctx, code)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	user, err := a.repo.UpsertUser(ctx, models.User{
		ExternalID:  id.Subject,
		Email:       id.Email,
		DisplayName: id.Name,
		AvatarURL:   id.Picture,
	})
	if err != nil {
		return models.User{}, "", err
	}
	token, err := a.IssueAccessToken(user.ID, a.tokenTTL)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

func (a *AuthService) signingMethod() (jwt.SigningMethod, error) {
	m := jwt.GetSigningMethod(a.algorithm)
	if m == nil {
		return nil, fmt.Errorf("unknown signing method %q", a.algorithm)
	}
	if _, ok := m.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not HMAC", a.algorithm)
	}
	return m, nil
}

func (a *AuthService) IssueAccessToken(userID string, ttl time.Duration) (string, error) {
	m, err := a.signingMethod()
	if err != nil {
		return "", err
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(m, claims).SignedString(a.jwtSecret)
}

// ParseToken validates signature, algorithm and expiry and returns the subject.
func (a *AuthService) ParseToken(_ context.Context, token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{a.algorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims.Subject, nil
}

// CurrentUser loads the profile behind an authenticated user id.
func (a *AuthService) CurrentUser(ctx context.Context, userID string) (models.User, error) {
	u, err := a.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
	}
	return u, err
}
