package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"educbt.org/internal/migrate"
	"educbt.org/internal/store/pg"
)

type dbKey struct{}

var (
	dsn  string
	seed = migrate.DefaultSeed()

	rootCmd = &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the EduCBT database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				return errors.New("missing DSN: provide via --dsn or DATABASE_URL")
			}
			store, err := pg.Open(dsn)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				store.Close() // nolint: errcheck
				return fmt.Errorf("ping db: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), dbKey{}, store))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return storeFrom(cmd).Close()
		},
	}

	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return manager(cmd).Up(cmd.Context())
		},
	}

	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return manager(cmd).Down(cmd.Context())
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := manager(cmd).Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tAPPLIED\tSOURCE")
			for _, s := range history {
				fmt.Fprintf(w, "%d\t%t\t%s\n", s.Version, s.Applied, s.Source)
			}
			return w.Flush()
		},
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create the default organization, permissions, roles and administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := migrate.Seed(cmd.Context(), storeFrom(cmd), seed)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "default organization: %d\nadministrator: %d\n", res.OrganizationID, res.AdminID)
			for _, c := range res.Created {
				fmt.Fprintf(out, "created %s\n", c)
			}
			return nil
		},
	}
)

func storeFrom(cmd *cobra.Command) *pg.Store {
	return cmd.Context().Value(dbKey{}).(*pg.Store)
}

func manager(cmd *cobra.Command) *migrate.Manager {
	return migrate.NewManager(storeFrom(cmd).DB())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")

	seedCmd.Flags().StringVar(&seed.OrganizationName, "org-name", seed.OrganizationName, "default organization name")
	seedCmd.Flags().StringVar(&seed.AdminName, "admin-name", seed.AdminName, "administrator display name")
	seedCmd.Flags().StringVar(&seed.AdminEmail, "admin-email", seed.AdminEmail, "administrator email")
	seedCmd.Flags().StringVar(&seed.AdminPassword, "admin-password", seed.AdminPassword, "administrator password")
	seedCmd.Flags().IntVar(&seed.BcryptCost, "bcrypt-cost", seed.BcryptCost, "bcrypt cost for the administrator password")

	rootCmd.AddCommand(upCmd, downCmd, statusCmd, seedCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
