package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arcadelocator/arcade-api/internal/server"
	"github.com/arcadelocator/arcade-api/internal/service"
	"github.com/arcadelocator/arcade-api/internal/store"
)

const banner = `
   _   ___  ___   _   ___  ___
  /_\ | _ \/ __| /_\ |   \| __|
 / _ \|   / (__ / _ \| |) | _|
/_/ \_\_|_\\___/_/ \_\___/|___|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Arcade API server",
		Long:  "Start the HTTP server that exchanges API keys for JWT access tokens.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// The signing secret has no default. Refusing to start beats minting
	// tokens the whole world can forge.
	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured; set it in arcade.yaml or ARCADE_AUTH_JWT_SECRET")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store initialized", "driver", viper.GetString("db.driver"))

	if seedPath := viper.GetString("db.seed_file"); seedPath != "" {
		if err := applySeedFile(st, seedPath); err != nil {
			st.Close()
			return fmt.Errorf("apply seed file: %w", err)
		}
		logger.Info("role seed applied", "path", seedPath)
	}

	minter, err := service.NewMinter(service.MinterConfig{
		Secret:        jwtSecret,
		Lifetime:      viper.GetDuration("auth.token_lifetime"),
		Issuer:        viper.GetString("app.issuer"),
		Audience:      viper.GetString("app.audience"),
		ApplicationID: viper.GetString("app.id"),
	})
	if err != nil {
		st.Close()
		return fmt.Errorf("configure token minter: %w", err)
	}

	cache := service.NewTokenCache(
		viper.GetInt("auth.cache_size"),
		viper.GetDuration("auth.cache_ttl"),
		minter.Lifetime(),
	)

	authSvc := service.NewAuthService(st, st, minter, cache, viper.GetString("app.id"), logger)

	if viper.GetString("auth.keymaster_key") == "" {
		logger.Warn("no keymaster key configured - HTTP key issuance is disabled; use: arcade key issue")
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host = viper.GetString("server.host")
	srvCfg.Port = viper.GetInt("server.port")
	srvCfg.RateLimit = viper.GetInt("server.rate_limit")
	srvCfg.KeymasterKey = viper.GetString("auth.keymaster_key")
	if origins := viper.GetStringSlice("server.cors_origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}

	srv := server.New(srvCfg, st, authSvc, minter, logger)

	logger.Debug("resolved configuration",
		"host", srvCfg.Host,
		"port", srvCfg.Port,
		"rate_limit", srvCfg.RateLimit,
		"token_lifetime", minter.Lifetime(),
		"cache_size", viper.GetInt("auth.cache_size"),
		"cache_ttl", viper.GetDuration("auth.cache_ttl"),
	)

	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Token exchange: POST http://%s:%d/api/v1/auth/token\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:         http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Println()

	return srv.ListenAndServe()
}

func applySeedFile(st *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	seed, err := store.LoadSeed(data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return st.ApplySeed(ctx, seed)
}
