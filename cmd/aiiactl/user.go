package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aiiabox/aiiabox/internal/service"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var input service.CreateUserInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user and print their first API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accts, closeFn, err := a.openAccounts(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			user, issued, err := accts.CreateUser(cmd.Context(), input)
			if err != nil {
				return describeError(err)
			}

			cmd.Printf("created user %s (%s)", user.Username, user.ID)
			if user.IsStaff {
				cmd.Print(" [staff]")
			}
			cmd.Println()
			printToken(cmd, issued)
			return nil
		},
	}
	create.Flags().StringVar(&input.Username, "username", "", "login name")
	create.Flags().StringVar(&input.Email, "email", "", "email address")
	create.Flags().StringVar(&input.Password, "password", "", "initial password")
	create.Flags().BoolVar(&input.IsStaff, "staff", false, "grant staff access")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

func printToken(cmd *cobra.Command, issued *service.IssuedToken) {
	cmd.Printf("token: %s\n", issued.Plaintext)
	cmd.Println("store it now; it will not be shown again")
}

// describeError flattens validation errors into one line per field.
func describeError(err error) error {
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	lines := make([]string, 0, len(verr.Fields))
	for field, msgs := range verr.Fields {
		lines = append(lines, fmt.Sprintf("%s: %s", field, strings.Join(msgs, " ")))
	}
	sort.Strings(lines)
	return errors.New(strings.Join(lines, "; "))
}
