package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/spf13/cobra"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// valueOrPrompt returns v, or asks for it when empty.
func (a *App) valueOrPrompt(v, prompt string) (string, error) {
	if v != "" {
		return v, nil
	}
	return getSimpleText(a.reader, prompt, a.out)
}

// withPassword reads a password, hands it to fn as a string and wipes the
// buffer afterwards.
func (a *App) withPassword(prompt string, fn func(password string) error) error {
	pw, err := getPassword(prompt, a.out)
	if err != nil {
		return err
	}
	defer cryptox.WipeByteArray(pw)
	return fn(string(pw))
}

func (a *App) newSignupCommand() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and start a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if name, err = a.valueOrPrompt(name, "Enter name"); err != nil {
				return err
			}
			if email, err = a.valueOrPrompt(email, "Enter email"); err != nil {
				return err
			}

			var user *client.User
			err = a.withPassword("Enter password", func(pw string) error {
				user, err = a.client.Signup(commandContext(cmd), name, email, pw)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Registered %s. A verification code was sent to %s.\n", user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	return cmd
}

func (a *App) newLoginCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if email, err = a.valueOrPrompt(email, "Enter email"); err != nil {
				return err
			}

			var user *client.User
			err = a.withPassword("Enter password", func(pw string) error {
				user, err = a.client.Login(commandContext(cmd), email, pw)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Logged in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	return cmd
}

func (a *App) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Logout(commandContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *App) newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [code]",
		Short: "Confirm the email address with the mailed code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := a.valueOrPrompt(firstArg(args), "Enter verification code")
			if err != nil {
				return err
			}

			user, err := a.client.VerifyEmail(commandContext(cmd), code)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Email %s verified\n", user.Email)
			return nil
		},
	}
}

func (a *App) newForgotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot [email]",
		Short: "Request a password reset link",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := a.valueOrPrompt(firstArg(args), "Enter email")
			if err != nil {
				return err
			}

			if err := a.client.ForgotPassword(commandContext(cmd), email); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Reset link sent to %s\n", email)
			return nil
		},
	}
}

func (a *App) newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [token]",
		Short: "Set a new password using the token from the reset link",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.valueOrPrompt(firstArg(args), "Enter reset token")
			if err != nil {
				return err
			}

			err = a.withPassword("Enter new password", func(pw string) error {
				return a.client.ResetPassword(commandContext(cmd), token, pw)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Password reset. You can log in with the new password.")
			return nil
		},
	}
}

func (a *App) newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.client.CheckAuth(commandContext(cmd))
			if err != nil {
				if errors.Is(err, client.ErrUnauthorized) {
					return errors.New("not logged in")
				}
				return err
			}

			fmt.Fprintf(a.out, "%s <%s>\n", user.Name, user.Email)
			fmt.Fprintf(a.out, "verified:   %t\n", user.IsVerified)
			fmt.Fprintf(a.out, "last login: %s\n", user.LastLogin.Local().Format(time.RFC1123))
			return nil
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
