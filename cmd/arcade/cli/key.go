package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/arcadelocator/arcade-api/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Issue API keys used to authenticate against the token exchange endpoint.",
	}

	cmd.AddCommand(newKeyIssueCmd())

	return cmd
}

func newKeyIssueCmd() *cobra.Command {
	var (
		userID   int64
		adminKey string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new API key for a user",
		Long:  "Generate a new API key bound to a user. The raw key is shown once and cannot be retrieved again.",
		Example: `  arcade key issue --user 42
  arcade key issue --user 42 --admin-key <keymaster>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyIssue(userID, adminKey)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "ID of the user to bind the key to (required)")
	cmd.Flags().StringVar(&adminKey, "admin-key", "", "Keymaster admin key (prompted when configured and omitted)")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runKeyIssue(userID int64, adminKey string) error {
	// Mirror the HTTP issuance gate: when a keymaster key is configured the
	// operator has to present it, even with direct database access.
	if keymaster := viper.GetString("auth.keymaster_key"); keymaster != "" {
		if adminKey == "" {
			var err error
			adminKey, err = promptKeymasterKey()
			if err != nil {
				return err
			}
		}
		if adminKey != keymaster {
			return fmt.Errorf("keymaster key mismatch")
		}
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user, err := st.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user %d: %w", userID, err)
	}

	rawKey, key, err := service.GenerateAPIKey()
	if err != nil {
		return fmt.Errorf("generate api key: %w", err)
	}
	if err := st.CreateAPIKeyForUser(ctx, key, user.ID); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:  %s\n", rawKey)
	fmt.Printf("  User: %s (id %d)\n", user.DisplayName, user.ID)
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

func promptKeymasterKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("keymaster key required: pass --admin-key or run interactively")
	}
	fmt.Fprint(os.Stderr, "Keymaster key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read keymaster key: %w", err)
	}
	return string(key), nil
}
