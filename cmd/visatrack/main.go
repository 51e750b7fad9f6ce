// Package main implements the visatrack command line client: account
// management, document ingestion and deadline tracking against a
// running backend.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"visatrack/internal/api"
	"visatrack/internal/identity"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries what every subcommand shares. The session store doubles
// as the API client's identity source, so a saved login is picked up
// by the next invocation automatically.
type cli struct {
	baseURL string
	store   *identity.FileStore
}

func (c *cli) client() *api.Client {
	return &api.Client{BaseURL: c.baseURL, Identity: c.store}
}

func rootCmd() *cobra.Command {
	app := &cli{}

	cmd := &cobra.Command{
		Use:           "visatrack",
		Short:         "Track immigration documents and OPT deadlines from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.store != nil {
				return nil
			}
			path, err := identity.DefaultPath()
			if err != nil {
				return fmt.Errorf("resolve session path: %w", err)
			}
			app.store = &identity.FileStore{Path: path}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&app.baseURL, "api", envOr("VISATRACK_API", defaultBaseURL), "base URL of the visatrack API")

	cmd.AddCommand(
		signupCmd(app),
		loginCmd(app),
		logoutCmd(app),
		whoamiCmd(app),
		uploadCmd(app),
		listCmd(app),
		statusCmd(app),
		verifyCmd(app),
		deleteCmd(app),
		policiesCmd(app),
		timelineCmd(app),
	)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// friendly rewrites errors a user can act on; everything else passes
// through with the server's own message.
func friendly(err error) error {
	if errors.Is(err, identity.ErrNotAuthenticated) {
		return errors.New("not signed in; run `visatrack login` first")
	}
	return err
}
