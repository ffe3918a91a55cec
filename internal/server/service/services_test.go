package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/leonj1/scribe-crush/internal/server/config"
	"github.com/leonj1/scribe-crush/internal/server/oauth"
	"github.com/leonj1/scribe-crush/internal/server/repository/sqlite"
	"github.com/leonj1/scribe-crush/internal/server/storage"
	"github.com/leonj1/scribe-crush/internal/server/transcribe"
)

type fakeProvider struct {
	identities map[string]oauth.Identity
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example.com/auth?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (oauth.Identity, error) {
	id, ok := f.identities[code]
	if !ok {
		return oauth.Identity{}, errors.New("invalid_grant")
	}
	return id, nil
}

type testEnv struct {
	svcs  *Services
	repo  *sqlite.Repository
	blobs *storage.FS
	root  string
}

func newTestEnv(t *testing.T, name string, tr transcribe.Backend) *testEnv {
	t.Helper()
	repo, err := sqlite.New("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	root := t.TempDir()
	blobs, err := storage.NewFS(root, "webm", 0)
	if err != nil {
		t.Fatal(err)
	}
	if tr == nil {
		tr = transcribe.Func(func(context.Context, string) (string, error) { return "hello world", nil })
	}
	provider := &fakeProvider{identities: map[string]oauth.Identity{
		"code-u": {Subject: "sub-u", Email: "u@example.com", Name: "U"},
		"code-v": {Subject: "sub-v", Email: "v@example.com", Name: "V"},
	}}
	cfg := config.Config{JWTSecret: "test", JWTAlgorithm: "HS256", JWTExpirationMinutes: 60, TranscribeTimeout: time.Second}
	svcs := NewServices(Deps{Repo: repo, Blobs: blobs, Transcriber: tr, Identity: provider}, cfg)
	return &testEnv{svcs: svcs, repo: repo, blobs: blobs, root: root}
}

func TestCompleteLoginAndParseToken(t *testing.T) {
	env := newTestEnv(t, "svc_login", nil)
	ctx := context.Background()
	user, token, err := env.svcs.Auth.CompleteLogin(ctx, "code-u")
	if err != nil {
		t.Fatal(err)
	}
	if user.ID == "" || user.ExternalID != "sub-u" || token == "" {
		t.Fatalf("bad login result: %+v %q", user, token)
	}
	uid, err := env.svcs.Auth.ParseToken(ctx, token)
	if err != nil || uid != user.ID {
		t.Fatalf("parse: %v %s", err, uid)
	}

	// logging in again maps to the same local user
	again, _, err := env.svcs.Auth.CompleteLogin(ctx, "code-u")
	if err != nil || again.ID != user.ID {
		t.Fatalf("relogin: %v %s", err, again.ID)
	}
	me, err := env.svcs.Auth.CurrentUser(ctx, user.ID)
	if err != nil || me.Email != "u@example.com" {
		t.Fatalf("current user: %v %+v", err, me)
	}
	if _, err := env.svcs.Auth.CurrentUser(ctx, "ghost"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ghost user: %v", err)
	}

	if _, _, err := env.svcs.Auth.CompleteLogin(ctx, "bogus"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("want ErrUpstream, got %v", err)
	}
	u, err := env.svcs.Auth.LoginURL("st")
	if err != nil || u == "" {
		t.Fatalf("login url: %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	env := newTestEnv(t, "svc_token_expiry", nil)
	ctx := context.Background()
	auth := env.svcs.Auth
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return now }

	tok, err := auth.IssueAccessToken("user-x", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	uid, err := auth.ParseToken(ctx, tok)
	if err != nil || uid != "user-x" {
		t.Fatalf("before expiry: %v %s", err, uid)
	}

	now = now.Add(2 * time.Hour)
	if _, err := auth.ParseToken(ctx, tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("after expiry: want ErrUnauthorized, got %v", err)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	env := newTestEnv(t, "svc_token_reject", nil)
	ctx := context.Background()
	auth := env.svcs.Auth

	if _, err := auth.ParseToken(ctx, "not-a-jwt"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("garbage: %v", err)
	}

	// wrong secret
	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-x",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("other"))
	if _, err := auth.ParseToken(ctx, forged); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("forged: %v", err)
	}

	// algorithm other than the configured one
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-x",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test"))
	if _, err := auth.ParseToken(ctx, hs512); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong alg: %v", err)
	}

	// no expiry
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-x"}).SignedString([]byte("test"))
	if _, err := auth.ParseToken(ctx, noExp); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("no exp: %v", err)
	}

	// no subject
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test"))
	if _, err := auth.ParseToken(ctx, noSub); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("no sub: %v", err)
	}
}

func TestIssueAccessToken_BadAlgorithm(t *testing.T) {
	auth := &AuthService{jwtSecret: []byte("x"), algorithm: "RS256", now: time.Now}
	if _, err := auth.IssueAccessToken("u", time.Hour); err == nil {
		t.Fatalf("expected error for non-HMAC algorithm")
	}
	auth.algorithm = "nope"
	if _, err := auth.IssueAccessToken("u", time.Hour); err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
}
