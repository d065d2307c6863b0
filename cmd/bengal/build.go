package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/content"
	"github.com/bengal-ssg/bengal/internal/orchestrator"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the static site",
	Long:  "Build transforms your content into a complete static website.",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := persistentFlagString(cmd, "config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fatalExit(fmt.Errorf("loading config: %w", err))
		}

		if baseURL, _ := cmd.Flags().GetString("baseURL"); baseURL != "" {
			cfg.Site.BaseURL = baseURL
		}

		drafts, _ := cmd.Flags().GetBool("drafts")
		future, _ := cmd.Flags().GetBool("future")
		expired, _ := cmd.Flags().GetBool("expired")
		destination, _ := cmd.Flags().GetString("destination")

		projectRoot, err := os.Getwd()
		if err != nil {
			return fatalExit(fmt.Errorf("determining project root: %w", err))
		}

		dirs := resolveDirs(cfg, projectRoot, destination)

		orch, _, _, err := newOrchestrator(cfg, dirs)
		if err != nil {
			return fatalExit(err)
		}

		mode := content.ModeDefault
		if drafts || future || expired {
			mode = content.ModeAll
		}

		result, err := orch.Run(context.Background(), orchestrator.Options{
			Config:     cfg,
			ContentDir: dirs.ContentDir,
			AssetsDir:  dirs.AssetsDir,
			DataDir:    dirs.DataDir,
			OutputDir:  dirs.OutputDir,
			CachePath:  dirs.CachePath,
			Mode:       mode,
		})
		if err != nil {
			return fatalExit(fmt.Errorf("build failed: %w", err))
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"Build %s complete: %d pages rendered, %d files written, %d files copied in %s\n",
			result.Stats.BuildID,
			result.Stats.Counts.Total,
			result.Stats.FilesWritten,
			result.Stats.FilesCopied,
			result.Stats.Duration.Round(1_000_000),
		)

		if result.Session.HasErrors() {
			summary := result.Session.Summarize()
			fmt.Fprintf(cmd.ErrOrStderr(), "build recorded %d error(s)\n", summary.Total)
			return recordedErrorsExit(fmt.Errorf("%d error(s) recorded during build", summary.Total))
		}

		return nil
	},
}

func init() {
	buildCmd.Flags().Bool("drafts", false, "include draft content")
	buildCmd.Flags().Bool("future", false, "include future-dated content")
	buildCmd.Flags().Bool("expired", false, "include expired content")
	buildCmd.Flags().String("baseURL", "", "override base URL")
	buildCmd.Flags().StringP("destination", "d", "", "output directory (default: build.output_dir, or \"public\")")

	rootCmd.AddCommand(buildCmd)
}
