package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/frudas24/quadpin/internal/calib"
)

// storeFlags selects the points store outside a running server.
type storeFlags struct {
	driver  string
	dataDir string
	dsn     string
	key     string
}

// open opens the selected store.
func (f *storeFlags) open() (calib.Store, error) {
	if err := calib.ValidateKey(f.key); err != nil {
		return nil, err
	}
	return calib.OpenStore(f.driver, f.dataDir, f.dsn)
}

// newPointsCmd returns the points command group.
func newPointsCmd() *cobra.Command {
	flags := &storeFlags{}
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Inspect or edit saved corner points",
	}
	cmd.PersistentFlags().StringVar(&flags.driver, "driver", "file", "store driver: file, sqlite or postgres")
	cmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "./data", "data directory for file and sqlite stores")
	cmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "postgres connection string")
	cmd.PersistentFlags().StringVar(&flags.key, "key", "default", "points key")

	cmd.AddCommand(newPointsShowCmd(flags))
	cmd.AddCommand(newPointsSetCmd(flags))
	cmd.AddCommand(newPointsMoveCmd(flags))
	cmd.AddCommand(newPointsResetCmd(flags))
	return cmd
}

// newPointsShowCmd prints the stored document.
func newPointsShowCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := flags.open()
			if err != nil {
				return err
			}
			defer store.Close()
			p, found, err := store.Load(cmd.Context(), flags.key)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no points stored for key %q", flags.key)
			}
			data, err := calib.Encode(p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

// newPointsSetCmd replaces the stored document from a file or stdin.
func newPointsSetCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set <file|->",
		Short: "Replace all four points from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			p, err := calib.Decode(data)
			if err != nil {
				return err
			}
			store, err := flags.open()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Save(cmd.Context(), flags.key, p)
		},
	}
}

// newPointsMoveCmd moves one stored corner.
func newPointsMoveCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move <corner> <x> <y>",
		Short: "Move one stored corner",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			corner, err := calib.ParseCorner(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", err, args[0])
			}
			x, errX := strconv.ParseFloat(args[1], 64)
			y, errY := strconv.ParseFloat(args[2], 64)
			if errX != nil || errY != nil {
				return fmt.Errorf("coordinates must be numeric")
			}

			store, err := flags.open()
			if err != nil {
				return err
			}
			defer store.Close()
			p, found, err := store.Load(cmd.Context(), flags.key)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no points stored for key %q", flags.key)
			}
			next, _ := p.With(corner, calib.Point{X: x, Y: y})
			return store.Save(cmd.Context(), flags.key, next)
		},
	}
}

// newPointsResetCmd deletes the stored document so the next start auto-fits.
func newPointsResetCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the stored points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := flags.open()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(cmd.Context(), flags.key)
		},
	}
}
