package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcadelocator/arcade-api/internal/model"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(newUserCreateCmd())

	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		name  string
		roles []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		Long:  "Create a user record and optionally assign roles. Users without at least one role cannot exchange API keys for tokens.",
		Example: `  arcade user create --name "Brandon" --role Admin
  arcade user create --name "Guest" --role Member --role Scanner`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(name, roles)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the user (required)")
	cmd.Flags().StringArrayVar(&roles, "role", nil, "Role to assign (repeatable)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runUserCreate(name string, roles []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user := &model.User{DisplayName: name}
	if err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	for _, role := range roles {
		roleID, err := st.EnsureRole(ctx, role)
		if err != nil {
			return fmt.Errorf("ensure role %q: %w", role, err)
		}
		if err := st.AssignRole(ctx, user.ID, roleID); err != nil {
			return fmt.Errorf("assign role %q: %w", role, err)
		}
	}

	fmt.Println("User created:")
	fmt.Println()
	fmt.Printf("  ID:    %d\n", user.ID)
	fmt.Printf("  Name:  %s\n", user.DisplayName)
	fmt.Printf("  UUID:  %s\n", user.UUID)
	if len(roles) > 0 {
		fmt.Printf("  Roles: %v\n", roles)
	} else {
		fmt.Println()
		fmt.Println("  No roles assigned - the user cannot exchange a key until one is.")
	}
	return nil
}
