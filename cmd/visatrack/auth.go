package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"visatrack/internal/api"
	"visatrack/internal/identity"
)

func signupCmd(app *cli) *cobra.Command {
	var (
		email    string
		password string
		fullName string
		visaType string
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(cmd, password)
			if err != nil {
				return err
			}
			user, err := app.client().Signup(cmd.Context(), api.SignupRequest{
				Email:    email,
				Password: pw,
				FullName: fullName,
				VisaType: visaType,
			})
			if err != nil {
				return err
			}
			if err := app.store.Save(sessionFromUser(user)); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. You are signed in.\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when omitted)")
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	cmd.Flags().StringVar(&visaType, "visa", "F-1", "visa type (F-1, J-1, H-1B)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	return cmd
}

func loginCmd(app *cli) *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(cmd, password)
			if err != nil {
				return err
			}
			res, err := app.client().Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			if err := app.store.Save(sessionFromUser(&res.User)); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Signed in as %s (%s).\n", res.User.FullName, res.User.Email)
			if res.IsFirstLogin {
				fmt.Fprintln(out, "Welcome! Upload your first document with `visatrack upload <file>`.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when omitted)")
	cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func whoamiCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.store.Current(cmd.Context())
			if err != nil {
				return friendly(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", id.FullName, id.Email)
			if id.VisaType != "" {
				fmt.Fprintf(out, "Visa type: %s\n", id.VisaType)
			}
			return nil
		},
	}
}

func sessionFromUser(u *api.User) identity.Identity {
	return identity.Identity{
		UserID:   u.UserID,
		Email:    u.Email,
		FullName: u.FullName,
		VisaType: u.VisaType,
	}
}

// resolvePassword prefers the flag and otherwise reads one line from
// stdin.
func resolvePassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("password required")
	}
	return pw, nil
}
