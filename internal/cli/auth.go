package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/totegamma/memorial"
)

func NewAuthCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in and manage your account",
	}

	var email, password, name, code string

	signin := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and print a session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			result, err := c.SignIn(cmd.Context(), email, password)
			if errors.Is(err, memorial.ErrUserNotConfirmed) {
				return fmt.Errorf("account not confirmed yet, run `memorialctl auth confirm` with the code you received")
			}
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "signed in as %s\nexport MEMORIAL_TOKEN=%s\n", result.User.Name, result.Token)
			})
		},
	}
	signin.Flags().StringVar(&email, "email", "", "account email")
	signin.Flags().StringVar(&password, "password", "", "account password")
	_ = signin.MarkFlagRequired("email")
	_ = signin.MarkFlagRequired("password")

	signup := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			result, err := c.SignUp(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "account %s created, confirm it with the code sent to %s\n", result.UserID, email)
			})
		},
	}
	signup.Flags().StringVar(&email, "email", "", "account email")
	signup.Flags().StringVar(&password, "password", "", "account password")
	signup.Flags().StringVar(&name, "name", "", "display name")
	_ = signup.MarkFlagRequired("email")
	_ = signup.MarkFlagRequired("password")

	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm an account with its confirmation code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.ConfirmSignUp(cmd.Context(), email, code); err != nil {
				if errors.Is(err, memorial.ErrCodeMismatch) {
					return fmt.Errorf("the confirmation code does not match")
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "account confirmed")
			return nil
		},
	}
	confirm.Flags().StringVar(&email, "email", "", "account email")
	confirm.Flags().StringVar(&code, "code", "", "confirmation code")
	_ = confirm.MarkFlagRequired("email")
	_ = confirm.MarkFlagRequired("code")

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			user, err := c.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("not signed in")
			}
			return opts.print(cmd.OutOrStdout(), user, func(w io.Writer) {
				role := "member"
				if user.IsAdmin {
					role = "admin"
				}
				fmt.Fprintf(w, "%s <%s> %s\n", user.Name, user.Email, role)
			})
		},
	}

	cmd.AddCommand(signin, signup, confirm, whoami)
	return cmd
}
