package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/devserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the development server",
	Long:  "Start a local development server with live reload support.",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := persistentFlagString(cmd, "config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fatalExit(fmt.Errorf("loading config: %w", err))
		}

		port, _ := cmd.Flags().GetInt("port")
		bind, _ := cmd.Flags().GetString("bind")
		noLiveReload, _ := cmd.Flags().GetBool("no-live-reload")

		if port != 0 {
			cfg.Server.Port = port
		}
		if bind != "" {
			cfg.Server.Host = bind
		}

		projectRoot, err := os.Getwd()
		if err != nil {
			return fatalExit(fmt.Errorf("determining project root: %w", err))
		}

		dirs := resolveDirs(cfg, projectRoot, "")

		orch, registry, _, err := newOrchestrator(cfg, dirs)
		if err != nil {
			return fatalExit(err)
		}

		srv := devserver.New(orch, registry, devserver.Options{
			Config:       cfg,
			ContentDir:   dirs.ContentDir,
			AssetsDir:    dirs.AssetsDir,
			DataDir:      dirs.DataDir,
			ThemeDir:     dirs.ThemeDir,
			OutputDir:    dirs.OutputDir,
			CachePath:    dirs.CachePath,
			ProjectRoot:  dirs.ProjectRoot,
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			NoLiveReload: noLiveReload || !cfg.Server.LiveReload,
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
			cancel()
		}()

		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s:%d\n", dirs.OutputDir, cfg.Server.Host, cfg.Server.Port)

		if err := srv.Start(ctx); err != nil && err != context.Canceled {
			return fatalExit(fmt.Errorf("server error: %w", err))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "server port (default: server.port from config, or 1313)")
	serveCmd.Flags().String("bind", "", "bind address (default: server.host from config, or localhost)")
	serveCmd.Flags().Bool("no-live-reload", false, "disable live reload")

	rootCmd.AddCommand(serveCmd)
}
