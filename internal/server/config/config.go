package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-secret-change"

// Token delivery modes for the OAuth callback redirect.
const (
	TokenDeliveryFragment = "fragment"
	TokenDeliveryQuery    = "query"
)

// Transcription backends.
const (
	TranscriberHTTP   = "http"
	TranscriberOpenAI = "openai"
)

type Config struct {
	HTTPAddr         string
	HTTPWriteTimeout time.Duration
	DatabaseDSN      string

	JWTSecret            string
	JWTAlgorithm         string
	JWTExpirationMinutes int

	FrontendURL   string
	TokenDelivery string
	CookieSecure  bool

	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string

	AudioStoragePath string
	AudioExt         string
	MaxChunkBytes    int64

	Transcriber       string
	TranscriberAPIKey string
	TranscriberURL    string
	TranscriberModel  string
	TranscribeTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory, or the file named by SCRIBE_ENV_FILE, is loaded first when present;
// variables already set in the environment win.
func Load() Config {
	envFile := getEnv("SCRIBE_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARNING: could not load %s: %v", envFile, err)
	}

	cfg := Config{
		HTTPAddr:         getEnv("SCRIBE_HTTP_ADDR", ":8000"),
		HTTPWriteTimeout: getEnvDuration("SCRIBE_HTTP_WRITE_TIMEOUT", 10*time.Minute),
		DatabaseDSN:      getEnv("SCRIBE_DB_DSN", "file:scribe.db?cache=shared&mode=rwc&_pragma=foreign_keys(1)"),

		JWTSecret:            getEnv("SCRIBE_JWT_SECRET", devJWTSecret),
		JWTAlgorithm:         getEnv("SCRIBE_JWT_ALGORITHM", "HS256"),
		JWTExpirationMinutes: getEnvInt("SCRIBE_JWT_EXPIRATION_MINUTES", 10080),

		FrontendURL:   strings.TrimRight(getEnv("SCRIBE_FRONTEND_URL", "http://localhost:3000"), "/"),
		TokenDelivery: getEnv("SCRIBE_TOKEN_DELIVERY", TokenDeliveryFragment),
		CookieSecure:  getEnvBool("SCRIBE_COOKIE_SECURE", false),

		GoogleClientID:     getEnv("SCRIBE_GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("SCRIBE_GOOGLE_CLIENT_SECRET", ""),
		OAuthRedirectURL:   getEnv("SCRIBE_OAUTH_REDIRECT_URL", "http://localhost:8000/auth/google/callback"),

		AudioStoragePath: getEnv("SCRIBE_AUDIO_STORAGE_PATH", "audio"),
		AudioExt:         strings.TrimPrefix(getEnv("SCRIBE_AUDIO_EXT", "webm"), "."),
		MaxChunkBytes:    int64(getEnvInt("SCRIBE_MAX_CHUNK_BYTES", 0)),

		Transcriber:       getEnv("SCRIBE_TRANSCRIBER", TranscriberHTTP),
		TranscriberAPIKey: getEnv("SCRIBE_TRANSCRIBER_API_KEY", ""),
		TranscriberURL:    getEnv("SCRIBE_TRANSCRIBER_URL", ""),
		TranscriberModel:  getEnv("SCRIBE_TRANSCRIBER_MODEL", ""),
		TranscribeTimeout: getEnvDuration("SCRIBE_TRANSCRIBE_TIMEOUT", 5*time.Minute),
	}
	if cfg.JWTSecret == devJWTSecret {
		log.Println("WARNING: using development JWT secret; set SCRIBE_JWT_SECRET")
	}
	return cfg
}

// TokenTTL is the lifetime of minted bearer tokens.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpirationMinutes) * time.Minute
}

// Validate reports configuration the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT algorithm %q", c.JWTAlgorithm))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT secret is empty"))
	}
	if c.JWTExpirationMinutes <= 0 {
		errs = append(errs, errors.New("JWT expiration must be positive"))
	}
	switch c.TokenDelivery {
	case TokenDeliveryFragment, TokenDeliveryQuery:
	default:
		errs = append(errs, fmt.Errorf("unknown token delivery %q", c.TokenDelivery))
	}
	switch c.Transcriber {
	case TranscriberHTTP, TranscriberOpenAI:
		if c.TranscriberAPIKey == "" {
			errs = append(errs, fmt.Errorf("transcriber %q requires SCRIBE_TRANSCRIBER_API_KEY", c.Transcriber))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transcriber %q", c.Transcriber))
	}
	if c.AudioStoragePath == "" {
		errs = append(errs, errors.New("audio storage path is empty"))
	}
	if c.MaxChunkBytes < 0 {
		errs = append(errs, errors.New("max chunk bytes must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARNING: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARNING: invalid %s=%q, using %t", key, v, def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARNING: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}
