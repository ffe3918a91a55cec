package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leonj1/scribe-crush/internal/client/vault"
	"github.com/leonj1/scribe-crush/internal/shared/models"
)

type authClient struct {
	serverURL *string
}

func newAuthCmd(serverURL *string) *cobra.Command {
	a := &authClient{serverURL: serverURL}
	cmd := &cobra.Command{Use: "auth", Short: "Authentication commands"}
	cmd.AddCommand(&cobra.Command{
		Use:   "login [token]",
		Short: "Sign in with Google and store the access token",
		Long: "Prints the Google sign-in URL. After signing in the browser lands on the\n" +
			"dashboard with the token in the URL; paste it here or pass it as an argument.",
		Args: cobra.MaximumNArgs(1),
		RunE: a.login,
	})
	cmd.AddCommand(&cobra.Command{Use: "whoami", Short: "Show the signed in user", RunE: a.whoami})
	cmd.AddCommand(&cobra.Command{Use: "logout", Short: "Forget the stored token", RunE: a.logout})
	return cmd
}

func (a *authClient) login(cmd *cobra.Command, args []string) error {
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in a browser and sign in:\n\n  %s/auth/google/login\n\n", *a.serverURL)
		t, err := promptSecret(cmd, "Token: ")
		if err != nil {
			return err
		}
		token = t
	}
	token = extractToken(token)
	if token == "" {
		return errors.New("no token given")
	}

	user, err := fetchMe(cmd.Context(), newAPIClient(*a.serverURL, token))
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}
	if err := vault.Save(vault.Credentials{Server: *a.serverURL, Token: token}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email)
	return nil
}

func (a *authClient) whoami(cmd *cobra.Command, args []string) error {
	c, err := authedClient(a.serverURL)
	if err != nil {
		return err
	}
	user, err := fetchMe(cmd.Context(), c)
	if err != nil {
		return err
	}
	return printJSON(cmd, user)
}

func (a *authClient) logout(cmd *cobra.Command, args []string) error {
	if err := vault.Remove(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

func fetchMe(ctx context.Context, c *apiClient) (models.User, error) {
	var u models.User
	err := c.do(ctx, http.MethodGet, "/users/me", nil, "", &u)
	return u, err
}

// extractToken accepts either a bare token or the whole dashboard URL.
func extractToken(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "token="); i >= 0 {
		s = s[i+len("token="):]
		if j := strings.IndexAny(s, "&#"); j >= 0 {
			s = s[:j]
		}
	}
	return s
}

func promptSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return line, nil
}
