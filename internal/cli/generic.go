package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(s *session) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in to the resource API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := s.app.Controller.Login(cmd.Context(), args[0], password)
			if err := check(res); err != nil {
				return err
			}
			u := res.Value()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", u.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func newLogoutGenericCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "logout-api",
		Short: "Sign out of the resource API only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := check(s.app.Controller.LogoutGeneric(cmd.Context())); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out of the resource API")
			return nil
		},
	}
}

func newValidateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the resource API token is still accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := s.app.Controller.ValidateGenericToken(cmd.Context())
			if err := check(res); err != nil {
				return err
			}
			if !res.Value() {
				return fmt.Errorf("token rejected")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token valid")
			return nil
		},
	}
}
