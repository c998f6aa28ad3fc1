package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/cron"
	"github.com/rcliao/recall/internal/metrics"
	"github.com/rcliao/recall/internal/server"
)

const shutdownTimeout = 5 * time.Second

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory tools over MCP stdio",
		Long: "Run an MCP server on stdin/stdout exposing memory_add, memory_search, memory_delete and memory_purge. " +
			"Also runs the scheduled purge and, when metrics.addr is set, a Prometheus /metrics listener.",
		Run: runServe,
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	sqlStore, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	st := metrics.NewInstrumentedStore(sqlStore)
	defer st.Close()

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv, err = startMetrics(cfg.Metrics.Addr, st.Handler())
		if err != nil {
			exitErr("metrics", err)
		}
	}

	var sched *cron.Scheduler
	if cfg.Purge.Enabled {
		sched = cron.NewScheduler(logger)
		job := &cron.PurgeJob{Store: st, Logger: logger, ScheduleExpr: cfg.Purge.Schedule}
		if err := sched.RegisterJob(job); err != nil {
			exitErr("scheduler", err)
		}
		if err := sched.Start(); err != nil {
			exitErr("scheduler", err)
		}
	}

	srv := server.New(st, server.Options{
		DefaultUser: cfg.DefaultUser,
		DefaultTopK: cfg.Search.DefaultTopK,
	})

	logger.Info("mcp server starting", "db", cfg.DBPath, "search_mode", sqlStore.SearchMode().String())
	serveErr := mcpserver.ServeStdio(srv)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sched != nil {
		_ = sched.Stop(ctx)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", "error", err)
		}
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		exitErr("serve", serveErr)
	}
}

func startMetrics(addr string, h http.Handler) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, errors.New("metrics: listen failed: " + err.Error())
	}

	go func() {
		logger.Info("metrics listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics serve error", "error", err)
		}
	}()

	return srv, nil
}
