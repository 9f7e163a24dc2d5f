// Package cli wires configuration, storage and services into the clinic
// command line: serve, sweep, migrate and admin.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clinic-booking-server/internal/clinical"
	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/lifecycle"
	"clinic-booking-server/internal/notify"
	"clinic-booking-server/internal/payment"
	"clinic-booking-server/internal/store"
	"clinic-booking-server/internal/store/memstore"
)

var envFile string

// Execute runs the root command.
func Execute() error {
	rootCmd := &cobra.Command{
		Use:           "clinic",
		Short:         "Clinic appointment booking server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// newLogger builds the process logger: JSON on stdout, a console writer in
// development.
func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// app holds everything a subcommand may need.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	store      store.Store
	dispatcher *notify.Dispatcher
	lifecycle  *lifecycle.Manager
	clinical   *clinical.Service
	gateway    *payment.Gateway
}

// loadConfig reads .env (a missing file only warns) and the environment.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	envErr := godotenv.Load(envFile)
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, newLogger(os.Getenv("APP_ENV"), ""), fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Environment, cfg.LogLevel)
	if envErr != nil {
		logger.Warn().Str("file", envFile).Msg("no env file loaded, using process environment")
	}
	return cfg, logger, nil
}

func openStore(cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		return memstore.New(), nil
	default:
		db, err := store.Open(store.DatabaseConfig{DSN: cfg.Database.DSN})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("connected to database")
		return store.NewGormStore(db), nil
	}
}

func newApp() (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher(st, notify.NewEmailSender(cfg.SMTP, logger), logger)
	mgr := lifecycle.NewManager(st, dispatcher, logger, lifecycle.Options{
		DefaultFee:  cfg.DefaultConsultationFee,
		MissedGrace: cfg.Sweep.MissedGrace,
		ApprovalTTL: cfg.Sweep.ApprovalTTL,
		Location:    cfg.Sweep.Location,
	})
	return &app{
		cfg:        cfg,
		log:        logger,
		store:      st,
		dispatcher: dispatcher,
		lifecycle:  mgr,
		clinical:   clinical.NewService(st, logger),
		gateway:    payment.NewGateway(cfg.Payment, cfg.FrontendURL, logger),
	}, nil
}
