// Package seed creates operator accounts from the command line.
package seed

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/logger"
	"github.com/jonesrussell/gosched/internal/store"
)

// Command creates the seed command.
func Command() *cobra.Command {
	var (
		username   string
		password   string
		categoryID int64
		isAdmin    bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			st, err := store.New(cfg.Database, logger.NewNoOp())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if err := st.Init(cmd.Context(), "", ""); err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			user := &domain.User{
				Username:     username,
				PasswordHash: string(hash),
				IsAdmin:      isAdmin,
				CategoryID:   categoryID,
			}
			if err := st.Users.Add(cmd.Context(), user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			fmt.Printf("created user %q (id %d)\n", username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username for the new account")
	cmd.Flags().StringVar(&password, "password", "", "password for the new account")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id scoping the account (0 = unscoped)")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant admin privileges")

	return cmd
}
