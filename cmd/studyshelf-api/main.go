package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/config"
	"github.com/studyshelf/studyshelf/internal/database"
	"github.com/studyshelf/studyshelf/internal/engagement"
	"github.com/studyshelf/studyshelf/internal/files"
	"github.com/studyshelf/studyshelf/internal/identity"
	"github.com/studyshelf/studyshelf/internal/leaderboard"
	"github.com/studyshelf/studyshelf/internal/logging"
	"github.com/studyshelf/studyshelf/internal/saved"
	"github.com/studyshelf/studyshelf/internal/server"
	"github.com/studyshelf/studyshelf/internal/storage"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "studyshelf-api",
		Short: "StudyShelf notes catalog service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN (postgres URL or sqlite path)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Duration("token-ttl", defaults.GetDuration("auth.token_ttl"), "Issued token lifetime")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().String("minio-endpoint", defaults.GetString("minio.endpoint"), "MinIO endpoint, empty keeps blobs in memory")
	cmd.PersistentFlags().String("minio-bucket", defaults.GetString("minio.bucket"), "MinIO bucket for note files")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.token_ttl", "token-ttl")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "minio.endpoint", "minio-endpoint")
	bindFlag(cmd, "minio.bucket", "minio-bucket")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// openStore picks the durable backend when the database is reachable
// and falls back to the in-memory store for the process lifetime
// otherwise. The choice is made once; it never changes mid-flight.
func openStore(appConfig config.AppConfig, logger *zap.Logger) (storage.Store, func(), error) {
	db, err := database.Open(appConfig.DatabaseDSN, logger)
	if err != nil {
		logger.Warn("database unavailable, serving from memory",
			zap.String("dsn", appConfig.DatabaseDSN), zap.Error(err))
		return storage.NewMemoryStore(time.Now), func() {}, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return storage.NewGormStore(db), func() { sqlDB.Close() }, nil
}

func openBlobStore(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) files.BlobStore {
	if appConfig.MinioEndpoint == "" {
		logger.Info("no object store configured, keeping blobs in memory")
		return files.NewMemoryBlobStore()
	}

	blobs, err := files.NewMinioBlobStore(ctx, files.MinioConfig{
		Endpoint:  appConfig.MinioEndpoint,
		AccessKey: appConfig.MinioAccessKey,
		SecretKey: appConfig.MinioSecretKey,
		Bucket:    appConfig.MinioBucket,
		UseSSL:    appConfig.MinioUseSSL,
	})
	if err != nil {
		logger.Warn("object store unavailable, keeping blobs in memory",
			zap.String("endpoint", appConfig.MinioEndpoint), zap.Error(err))
		return files.NewMemoryBlobStore()
	}
	return blobs
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, closeStore, err := openStore(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	blobs := openBlobStore(ctx, appConfig, logger)

	tokenIssuer := identity.NewTokenIssuer(identity.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "studyshelf-auth",
		Audience:      "studyshelf-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	resolver, err := identity.NewResolver(identity.ResolverConfig{
		Validator: tokenIssuer,
		Store:     store,
	})
	if err != nil {
		return err
	}

	accounts, err := identity.NewAccountService(identity.AccountServiceConfig{
		Store:  store,
		Issuer: tokenIssuer,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ledger, err := engagement.NewLedger(engagement.LedgerConfig{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:  store,
		Views:  ledger,
		Blobs:  blobs,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	savedIndex, err := saved.NewIndex(saved.IndexConfig{Store: store})
	if err != nil {
		return err
	}

	ranker, err := leaderboard.NewRanker(leaderboard.RankerConfig{Store: store})
	if err != nil {
		return err
	}

	fileResolver, err := files.NewResolver(files.ResolverConfig{Blobs: blobs})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Resolver: resolver,
		Accounts: accounts,
		Catalog:  catalogService,
		Ledger:   ledger,
		Saved:    savedIndex,
		Ranker:   ranker,
		Files:    fileResolver,
		Blobs:    blobs,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
