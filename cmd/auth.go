package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/threadx/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 5 * time.Minute

// AuthLogin runs the browser authorization flow and stores the credential.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	oauth, err := r.oauthService()
	if err != nil {
		return err
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.logger.Info("starting authorization", "timeout", timeout)
	cred, err := oauth.StartAuthorization(ctx)
	if err != nil {
		return err
	}

	r.writePlain("✓ Authentication successful\n")
	r.writePlain("Access token expires %s\n", humanize.Time(cred.ExpiresAt()))

	client, err := r.apiClient()
	if err != nil {
		return err
	}
	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		r.logger.Warn("signed in, but the account lookup failed", "error", err)
		return nil
	}
	return r.writePlain("Signed in as %s (%s)\n", user.Handle(), user.Name)
}

// AuthLogout deletes the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	oauth, err := r.oauthService()
	if err != nil {
		return err
	}
	if err := oauth.SignOut(); err != nil {
		return err
	}
	if r.client != nil {
		r.client.ClearUser()
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports whether a credential is stored and when it expires.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	oauth, err := r.oauthService()
	if err != nil {
		return err
	}

	cred, err := oauth.Tokens().Load()
	if errors.Is(err, shared.ErrNotFound) {
		return r.writePlain("✗ Not signed in\nRun 'threadx auth login' to authenticate\n")
	}
	if err != nil {
		return err
	}

	r.writePlainHeader("Authentication")
	if cred.IsExpired(time.Now()) {
		r.writePlain("Access token: expired %s\n", humanize.Time(cred.ExpiresAt()))
	} else {
		r.writePlain("Access token: valid, expires %s\n", humanize.Time(cred.ExpiresAt()))
	}
	if cred.HasRefreshToken() {
		r.writePlain("Refresh token: available\n")
	} else {
		r.writePlain("Refresh token: none, sign in again when the access token expires\n")
	}
	if cred.Scope != "" {
		r.writePlain("Scopes: %s\n", cred.Scope)
	}
	return nil
}

// AuthWhoami prints the signed-in account.
func (r *Runner) AuthWhoami(ctx context.Context, cmd *cli.Command) error {
	client, err := r.apiClient()
	if err != nil {
		return err
	}

	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]string{
			"id":         user.ID,
			"username":   user.Username,
			"name":       user.Name,
			"avatar_url": user.AvatarURL,
		}, true)
	}

	r.writePlain("%s (%s)\n", user.Name, user.Handle())
	r.writePlain("ID: %s\n", user.ID)
	if user.AvatarURL != "" {
		r.writePlain("Avatar: %s\n", user.AvatarURL)
	}
	return nil
}
