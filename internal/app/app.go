// Package app holds the po-notifier command line
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"po-notifier-go/internal/handler"
	"po-notifier-go/internal/pipeline"
	"po-notifier-go/internal/router"
	"po-notifier-go/internal/scheduler"
)

var configFile string

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "po-notifier",
		Short:         "Purchase order notification relay",
		Long:          "Sends order confirmation emails for rows marked as placed in a Google Sheet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml)")

	root.AddCommand(serveCmd(), notifyCmd(), sweepCmd(), integrityCmd(), rateLimitCmd())
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withComponents loads the configuration, builds the pipeline and runs fn
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *components) error) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the pending row sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, serve)
		},
	}
}

func serve(ctx context.Context, c *components) error {
	logrus.Info("Starting PO notifier service")

	sched := scheduler.NewScheduler(&c.cfg.Scheduler, c.processor)
	h := handler.NewHandlers(c.processor, c.wb, c.auditReader(), sched, c.db, c.registry, c.cfg.Server.APIKeys)
	srv := &http.Server{
		Addr:         ":" + c.cfg.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
	}

	if c.cfg.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting HTTP server on port %s", c.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		logrus.Errorf("HTTP server error: %v", serveErr)
	}

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return serveErr
}

func notifyCmd() *cobra.Command {
	var (
		row   int
		force bool
	)
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send the confirmation for one row of the primary sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if row < 2 {
				return fmt.Errorf("--row must be a data row (2 or greater)")
			}
			return withComponents(cmd, func(ctx context.Context, c *components) error {
				primary, err := c.processor.PrimarySheet(ctx)
				if err != nil {
					return err
				}
				res := c.processor.ProcessRow(ctx, primary, row, pipeline.Options{AllowDuplicate: force})
				if err := printJSON(cmd, res); err != nil {
					return err
				}
				return resultError(res)
			})
		},
	}
	cmd.Flags().IntVar(&row, "row", 0, "row number to notify")
	cmd.Flags().BoolVar(&force, "force", false, "send even if the same order was notified recently")
	_ = cmd.MarkFlagRequired("row")
	return cmd
}

// resultError turns a failed outcome into a non-zero exit
func resultError(res pipeline.Result) error {
	switch res.Outcome {
	case pipeline.OutcomeSent, pipeline.OutcomeSkipped, pipeline.OutcomeAlreadyNotified:
		return nil
	}
	return fmt.Errorf("row %d: %s", res.Row, res.Outcome)
}

func sweepCmd() *cobra.Command {
	var retryFailed bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Notify every placed order that has not been notified yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *components) error {
				results, err := c.processor.SweepPending(ctx, pipeline.SweepOptions{RetryFailed: retryFailed})
				if err != nil {
					return err
				}
				return printJSON(cmd, handler.SweepResponse{Processed: len(results), Results: results})
			})
		},
	}
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "also retry rows marked with an earlier error")
	return cmd
}

func integrityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "Report inconsistent rows and normalize email casing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *components) error {
				report, err := c.processor.AuditIntegrity(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
}

func rateLimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect or reset the send quota",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show hourly and daily usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *components) error {
				status, err := c.processor.RateStatus(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, status)
			})
		},
	}, &cobra.Command{
		Use:   "reset",
		Short: "Clear every recorded send event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *components) error {
				n, err := c.processor.ResetRateLimit(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d rate events\n", n)
				return nil
			})
		},
	})
	return cmd
}
