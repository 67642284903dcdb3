/*
Copyright 2025 The Flux authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxcd/artifact-publisher/artifact/config"
	"github.com/fluxcd/artifact-publisher/logger"
	"github.com/fluxcd/artifact-publisher/publish"
)

const (
	envBuildMode   = "BUILD_MODE"
	productionMode = "production"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Archive the build output, upload it to the release host and send the notification card",
	Long: `Run the release pipeline once.

The pipeline only runs in production mode, every other mode exits without
touching the storage directory or the release host.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runCmdFlags struct {
	mode       string
	configFile string
	options    config.Options
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runCmdFlags.mode, "mode", os.Getenv(envBuildMode),
		"The build mode, the pipeline runs only when it is 'production'.")
	runCmd.Flags().StringVar(&runCmdFlags.configFile, "config", "",
		"Path to a YAML or JSON file with the publisher options. Flags and environment variables take precedence.")
	runCmdFlags.options.BindFlags(runCmd.Flags())
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := rootCmdFlags.log.Validate(); err != nil {
		return err
	}
	log := logger.NewLoggerTo(cmd.ErrOrStderr(), rootCmdFlags.log)

	if runCmdFlags.mode != productionMode {
		log.Info("build mode is not production, skipping publish", "mode", runCmdFlags.mode)
		return nil
	}

	opts := runCmdFlags.options
	opts.LoadSecretsFromEnv()
	if runCmdFlags.configFile != "" {
		file, err := config.LoadFile(runCmdFlags.configFile)
		if err != nil {
			return err
		}
		opts.MergeFile(file, cmd.Flags())
	}

	p, err := publish.NewFromOptions(&opts, log)
	if err != nil {
		return err
	}

	res, err := p.Run(context.Background())
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", opts.AppName, err)
	}
	if res.Skipped {
		log.Info("nothing was published", "sourceDir", opts.SourceDir)
		return nil
	}
	log.Info("artifact published", "result", res)
	return nil
}
