package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"github.com/frudas24/quadpin/internal/config"
)

// newPasswordCmd manages the UI password kept in the OS keyring.
func newPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the UI password stored in the OS keyring",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <password>",
		Short: "Store the UI password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw := strings.TrimSpace(args[0])
			if pw == "" {
				return errors.New("password must not be empty")
			}
			if err := keyring.Set(config.KeyringService, config.KeyringUser, pw); err != nil {
				return fmt.Errorf("write keyring: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password stored")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored UI password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := keyring.Delete(config.KeyringService, config.KeyringUser)
			if err != nil && !errors.Is(err, keyring.ErrNotFound) {
				return fmt.Errorf("clear keyring: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password cleared")
			return nil
		},
	})
	return cmd
}
