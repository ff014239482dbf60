package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"tocolab/internal/auth"
)

// authCmd re-runs the OAuth flow even when a cached token exists.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Re-run the Google OAuth2 authentication flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		if _, err := ensureCredentials(ctx, true); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Authentication successful!")
		return nil
	},
}

// ensureCredentials returns a valid token, running the full browser OAuth
// flow when there is no refreshable token or when force is set.
func ensureCredentials(ctx context.Context, force bool) (*auth.Token, error) {
	tm, err := auth.NewTokenManager()
	if err != nil {
		return nil, err
	}

	if !force {
		token, err := tm.Credentials(ctx)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, auth.ErrAuthRequired) {
			return nil, err
		}
	}

	flow, err := tm.StartAuth()
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(os.Stderr, "Opening browser for Google OAuth...")
	fmt.Fprintf(os.Stderr, "If the browser doesn't open, visit:\n%s\n\n", flow.AuthURL)
	_ = openBrowser(flow.AuthURL)

	fmt.Fprintln(os.Stderr, "Waiting for OAuth callback...")
	code, err := auth.StartCallbackServer(ctx, flow.State)
	if err != nil {
		return nil, fmt.Errorf("OAuth callback failed: %w", err)
	}

	token, err := tm.ExchangeCode(ctx, code, flow.Verifier)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return token, nil
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
