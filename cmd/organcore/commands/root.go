// Package commands implements the organcore command line.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"organcore/internal/blob"
	"organcore/internal/cache"
	"organcore/internal/config"
	"organcore/internal/core"
	"organcore/internal/infra/persistence/relational"
	"organcore/internal/observability"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "organcore",
	Short: "organcore - registry of people, organizations and their relationships",
	Long: `organcore maintains a registry of people, organizations, nations and
businesses together with their memberships, relations and events.

Configuration is read from an optional YAML file (--config) and ORGANCORE_*
environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version reported by --version.
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")
}

// runtime is the wired process: configuration, logger, metrics, stores and
// the core service.
type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *observability.Collector
	db      *relational.DB
	svc     *core.Service
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	metrics := observability.NewCollector()

	identity, err := cache.New(append(cfg.CacheOptions(), cache.WithObserver(metrics))...)
	if err != nil {
		return nil, err
	}

	poolOpts := cfg.PoolOptions()
	poolOpts.Logger = logger.Named("store")
	driver, dsn := cfg.StoreDSN()
	db, err := relational.Open(ctx, driver, dsn, poolOpts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	store, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open document store: %w", err)
	}

	svc, err := core.NewService(db, blob.NewDocuments(store),
		core.WithLogger(logger),
		core.WithMetrics(metrics),
		core.WithCache(identity),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("runtime ready",
		zap.String("driver", string(driver)),
		zap.String("blob", string(store.Driver())))
	return &runtime{cfg: cfg, logger: logger, metrics: metrics, db: db, svc: svc}, nil
}

func (r *runtime) Close() error {
	_ = r.logger.Sync()
	return r.db.Close()
}

// withRuntime opens the runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, fn func(context.Context, *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	return fn(ctx, rt)
}
