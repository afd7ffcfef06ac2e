package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ecordell/optgen/helpers"
	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	v1 "github.com/openrail/provision-agent/api/v1"
	"github.com/openrail/provision-agent/internal/config"
	"github.com/openrail/provision-agent/internal/handlers"
	"github.com/openrail/provision-agent/internal/server"
	"github.com/openrail/provision-agent/internal/services"
	"github.com/openrail/provision-agent/internal/store"
	"github.com/openrail/provision-agent/internal/store/migrations"
	"github.com/openrail/provision-agent/pkg/scheduler"
)

func NewRunCommand(cfg *config.Configuration) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the provisioning agent",
		Example: `  # Run with persistent data under /var/lib/provision-agent
  provision-agent run --data-folder /var/lib/provision-agent

  # Run in production mode serving the web console
  provision-agent run --data-folder /var/lib/provision-agent --server-mode prod --server-statics-folder /var/www/statics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConfiguration(cfg); err != nil {
				return err
			}

			zap.S().Infow("using configuration",
				"agent", helpers.Flatten(cfg.Agent.DebugMap()),
				"server", helpers.Flatten(cfg.Server.DebugMap()),
			)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
			wg := sync.WaitGroup{}
			wg.Add(1)

			// init store
			dataFolder := cfg.Agent.DataFolder
			dbPath := filepath.Join(dataFolder, "agent.duckdb")
			if dataFolder == "" {
				dbPath = ":memory:"
				dataFolder = filepath.Join(os.TempDir(), "provision-agent")
				zap.S().Warn("data-folder not set, using in-memory database (data will not persist)")
			}
			db, err := store.NewDB(dbPath)
			if err != nil {
				zap.S().Errorw("failed to initialize database", "error", err)
				return err
			}
			s := store.NewStore(db)
			defer s.Close()

			if err := migrations.Run(ctx, db); err != nil {
				zap.S().Errorw("failed to run migrations", "error", err)
				return err
			}
			zap.S().Info("database initialized successfully")

			// init scheduler
			sched := scheduler.NewScheduler(cfg.Agent.NumWorkers)
			defer sched.Close()

			// init services
			runner := services.NewTaskRunner(sched)
			toolchain := services.NewToolchainProvisioner(dataFolder, cfg.Agent.ToolchainURL, cfg.Agent.NetworkTimeout)
			versions := services.NewVersionControl(dataFolder, cfg.Agent.NetworkTimeout)
			devices := services.NewDeviceRegistry(services.SerialPortLister{}, s.Signatures())
			builder := services.NewBuildFlash(toolchain.BinaryPath(), devices)
			configs := services.NewConfigGenerator()

			wizard := services.NewWizard(runner, toolchain, versions, devices, builder, configs, s.Products(), s.Sessions())
			if err := wizard.Restore(ctx); err != nil {
				zap.S().Warnw("failed to restore session", "error", err)
			}

			// init handlers
			h := handlers.New(wizard, s.Preferences(), s.Signatures())

			srv, err := server.NewServer(cfg, func(router *gin.RouterGroup) {
				v1.RegisterHandlers(router, h)
			})
			if err != nil {
				zap.S().Errorw("failed to create http server", "error", err)
				return err
			}

			go func() {
				defer func() {
					wg.Done()
					cancel()
				}()
				zap.S().Infof("Starting HTTP server on port %d", cfg.Server.HTTPPort)

				if err := srv.Start(ctx); err != nil {
					if !errors.Is(err, http.ErrServerClosed) {
						zap.S().Errorw("failed to start http server", "error", err)
					}
				}
			}()

			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				srv.Stop(stopCtx)
			}()

			<-ctx.Done()
			wg.Wait()

			zap.S().Info("server shutdown")

			return nil
		},
	}

	registerFlags(runCmd, cfg)

	return runCmd
}

func registerFlags(cmd *cobra.Command, config *config.Configuration) {
	nfs := cobrautil.NewNamedFlagSets(cmd)

	serverFlagSet := nfs.FlagSet(color.New(color.FgBlue, color.Bold).Sprint("Server"))
	registerServerFlags(serverFlagSet, config)

	agentFlagSet := nfs.FlagSet(color.New(color.FgBlue, color.Bold).Sprint("Agent"))
	registerAgentFlags(agentFlagSet, config)

	nfs.AddFlagSets(cmd)
}

func validateConfiguration(cfg *config.Configuration) error {
	switch config.ServerModeType(cfg.Server.ServerMode) {
	case config.ServerModeProd, config.ServerModeDev:
	default:
		return fmt.Errorf("invalid server mode %q: must be %q or %q", cfg.Server.ServerMode, config.ServerModeProd, config.ServerModeDev)
	}

	if config.ServerModeType(cfg.Server.ServerMode) == config.ServerModeProd && cfg.Server.StaticsFolder == "" {
		return errors.New("statics folder must be set when server mode is production")
	}

	if cfg.Server.HTTPPort < 1 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http-port %d: must be between 1 and 65535", cfg.Server.HTTPPort)
	}

	if cfg.Agent.NumWorkers < 1 {
		return fmt.Errorf("invalid num-workers %d: must be at least 1", cfg.Agent.NumWorkers)
	}

	if cfg.Agent.NetworkTimeout <= 0 {
		return fmt.Errorf("invalid network-timeout %s: must be positive", cfg.Agent.NetworkTimeout)
	}

	return nil
}

func registerServerFlags(flagSet *pflag.FlagSet, config *config.Configuration) {
	flagSet.IntVar(&config.Server.HTTPPort, "server-http-port", config.Server.HTTPPort, "Port on which the HTTP server is listening")
	flagSet.StringVar(&config.Server.StaticsFolder, "server-statics-folder", config.Server.StaticsFolder, "Path to statics folder")
	flagSet.StringVar(&config.Server.ServerMode, "server-mode", config.Server.ServerMode, "Server mode: either prod or dev. If prod the statics folder must be set")
}

func registerAgentFlags(flagSet *pflag.FlagSet, config *config.Configuration) {
	flagSet.StringVar(&config.Agent.DataFolder, "data-folder", config.Agent.DataFolder, "Path to the persistent data folder")
	flagSet.IntVar(&config.Agent.NumWorkers, "num-workers", config.Agent.NumWorkers, "Number of scheduler workers")
	flagSet.StringVar(&config.Agent.ToolchainURL, "toolchain-url", config.Agent.ToolchainURL, "Override the toolchain download host")
	flagSet.DurationVar(&config.Agent.NetworkTimeout, "network-timeout", config.Agent.NetworkTimeout, "Timeout for network connection setup")
}
