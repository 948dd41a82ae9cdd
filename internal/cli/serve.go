package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/rituo/internal/analytics"
	"github.com/mesh-intelligence/rituo/internal/api"
	"github.com/mesh-intelligence/rituo/internal/auth"
	"github.com/mesh-intelligence/rituo/internal/completion"
	"github.com/mesh-intelligence/rituo/internal/cycle"
	"github.com/mesh-intelligence/rituo/internal/metrics"
	"github.com/mesh-intelligence/rituo/internal/rollover"
	"github.com/mesh-intelligence/rituo/internal/store"
	"github.com/mesh-intelligence/rituo/pkg/types"
)

const schedulerStopTimeout = 30 * time.Second

type serveFlags struct {
	listenAddr      string
	rolloverOnStart bool
}

func newServeCmd() *cobra.Command {
	var sf serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily rollover",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, sf)
		},
	}
	cmd.Flags().StringVar(&sf.listenAddr, "listen", "", "listen address (overrides listen_addr)")
	cmd.Flags().BoolVar(&sf.rolloverOnStart, "rollover-on-start", true, "run one rollover pass at startup to cover a missed midnight")
	return cmd
}

func runServe(cmd *cobra.Command, sf serveFlags) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	if sf.listenAddr != "" {
		cfg.ListenAddr = sf.listenAddr
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := store.NewBackend()
	if err := ledger.Attach(ctx, cfg.Store); err != nil {
		return fmt.Errorf("attach store: %w", err)
	}
	defer func() {
		if err := ledger.Detach(); err != nil {
			logger.Error("detach store", "error", err)
		}
	}()
	logger.Info("store attached", "driver", cfg.Store.Driver, "data_dir", cfg.Store.DataDir)

	m := metrics.New()
	sched, err := rollover.New(ledger, logger,
		rollover.WithSchedule(cfg.RolloverSchedule),
		rollover.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Deps{
		Ledger:        ledger,
		Cycles:        cycle.NewManager(ledger, logger),
		Completions:   completion.NewEngine(ledger, logger),
		Analytics:     analytics.NewEngine(ledger),
		Auth:          auth.NewService(ledger, auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), logger),
		Scheduler:     sched,
		Metrics:       m,
		Logger:        logger,
		AuthRateLimit: cfg.AuthRateLimit,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.ListenAddr)
	})
	g.Go(func() error {
		sched.Start()
		if sf.rolloverOnStart {
			catchUp(gctx, sched, logger)
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
		defer cancel()
		return sched.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("rituo stopped")
	return nil
}

// catchUp runs today's rollover once. Rows already present are left alone,
// so this is safe on every start.
func catchUp(ctx context.Context, sched *rollover.Scheduler, logger *slog.Logger) {
	today := types.DateOf(time.Now())
	res, err := sched.RunOnce(ctx, today)
	if err != nil {
		logger.Warn("startup rollover failed", "date", today.String(), "error", err)
		return
	}
	logger.Info("startup rollover done", "date", today.String(), "created", res.Created, "existing", res.Existing)
}
