// Package vault keeps the CLI's bearer token on disk between invocations.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoCredentials is returned by Load when nobody is signed in.
var ErrNoCredentials = errors.New("not signed in, run `scribe auth login`")

type Credentials struct {
	Server  string    `json:"server"`
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// Path returns the credentials file location. SCRIBE_CREDENTIALS overrides
// the default of ~/.scribe_credentials.
func Path() string {
	if p := os.Getenv("SCRIBE_CREDENTIALS"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scribe_credentials")
}

func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Save writes the credentials with 0600 perms, replacing any previous ones.
func Save(c Credentials) error {
	c.Token = strings.TrimSpace(c.Token)
	if c.Token == "" {
		return errors.New("empty token")
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now().UTC()
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(Path()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(Path(), b, 0o600)
}

func Load() (Credentials, error) {
	b, err := os.ReadFile(Path())
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("corrupt credentials file %s: %w", Path(), err)
	}
	if c.Token == "" {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

// Remove deletes the stored credentials. Removing nothing is not an error.
func Remove() error {
	err := os.Remove(Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
