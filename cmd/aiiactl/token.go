package main

import (
	"github.com/spf13/cobra"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage a user's API token",
	}

	var username string
	rotate := &cobra.Command{
		Use:   "rotate",
		Short: "Replace a user's token and print the new key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accts, closeFn, err := a.openAccounts(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			user, err := accts.UserByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			issued, err := accts.RotateToken(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			cmd.Printf("rotated token for %s\n", user.Username)
			printToken(cmd, issued)
			return nil
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a user's token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accts, closeFn, err := a.openAccounts(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			user, err := accts.UserByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			if err := accts.RevokeToken(cmd.Context(), user.ID); err != nil {
				return err
			}
			cmd.Printf("revoked token for %s\n", user.Username)
			return nil
		},
	}

	for _, c := range []*cobra.Command{rotate, revoke} {
		c.Flags().StringVar(&username, "username", "", "account to act on")
		_ = c.MarkFlagRequired("username")
	}

	cmd.AddCommand(rotate, revoke)
	return cmd
}
