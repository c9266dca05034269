package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github/itish2003/healthagent/config"
	"github/itish2003/healthagent/controller"
	"github/itish2003/healthagent/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthagent",
		Short: "Diet and exercise tracking assistant with nightly coaching reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(reindexCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, knowledge watcher and nightly scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func reportCmd() *cobra.Command {
	var userID, day string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a daily report once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.reports.GenerateDaily(ctx, userID, day)
			if err != nil {
				return err
			}
			fmt.Printf("Saved: %s\n\n", resp.ReportPath)
			fmt.Println(resp.ReportMD)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (default_user when empty)")
	cmd.Flags().StringVar(&day, "day", "", "day as YYYY-MM-DD (today when empty)")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the knowledge index from the seed URLs and knowledge directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			urls, chunks, err := a.knowledge.Reindex(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d URLs into %d chunks\n", urls, chunks)
			return nil
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Initial scan so files added while offline are picked up, then watch.
	a.knowledge.ScanAndIndexDirectory(ctx, cfg.KnowledgeDir)
	go a.knowledge.WatchDirectory(ctx, cfg.KnowledgeDir)

	scheduler := services.NewScheduler(a.reports, cfg.Location, cfg.ReportHour, cfg.ReportMinute, cfg.ReportUsers)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	hc := controller.NewHealthController(a.ingest, a.knowledge, a.reports, a.query, a.chat)
	server := &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      newRouter(hc),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Go Gin backend server starting on %s", cfg.HTTPAddress)
		log.Printf("Health check available at: %s/health", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Println("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	return nil
}
