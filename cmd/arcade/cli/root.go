package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arcadelocator/arcade-api/internal/service"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arcade",
		Short: "Arcade location API backend",
		Long: `Arcade: the REST API backend for the arcade locator service.

The server authenticates consumers with long-lived API keys, exchanging them
for short-lived JWT access tokens carrying the holder's roles and permissions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./arcade.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for SQLite storage (default: ~/.arcade)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newUserCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("arcade")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.arcade")
	}

	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.rate_limit", 120)
	viper.SetDefault("auth.token_lifetime", service.DefaultTokenLifetime)
	viper.SetDefault("auth.cache_size", service.DefaultCacheSize)
	viper.SetDefault("auth.cache_ttl", time.Hour)
	viper.SetDefault("app.id", "arcade-api")
	viper.SetDefault("app.issuer", "https://api.arcadelocator.com")
	viper.SetDefault("app.audience", "https://api.arcadelocator.com")

	viper.SetEnvPrefix("ARCADE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
