package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

// adminCmd manages admin accounts, which cannot be self-registered.
func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			first, _ := cmd.Flags().GetString("first-name")
			last, _ := cmd.Flags().GetString("last-name")

			a, err := newApp()
			if err != nil {
				return err
			}
			user, err := createAdmin(cmd.Context(), a.store, email, password, first, last)
			if err != nil {
				return err
			}
			a.log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("admin created")
			return nil
		},
	}
	createCmd.Flags().String("email", "", "admin email")
	createCmd.Flags().String("password", "", "admin password (min 8 characters)")
	createCmd.Flags().String("first-name", "Clinic", "first name")
	createCmd.Flags().String("last-name", "Admin", "last name")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")

	cmd.AddCommand(createCmd)
	return cmd
}

func createAdmin(ctx context.Context, st store.Store, email, password, first, last string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	user := &models.User{
		Email:     email,
		FirstName: first,
		LastName:  last,
		Role:      models.RoleAdmin,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := st.Users().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return user, nil
}
