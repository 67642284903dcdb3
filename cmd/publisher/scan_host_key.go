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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	pkgssh "github.com/fluxcd/artifact-publisher/ssh"
)

var scanHostKeyCmd = &cobra.Command{
	Use:   "scan-host-key <host:port>",
	Short: "Print the host keys of a release host in known_hosts format",
	Example: `  publisher scan-host-key releases.example.com:22 >> known_hosts
  publisher run --sftp-known-hosts-file=known_hosts ...`,
	Args: cobra.ExactArgs(1),
	RunE: runScanHostKey,
}

var scanHostKeyCmdFlags struct {
	timeout      time.Duration
	hostKeyAlgos []string
	hashed       bool
}

func init() {
	rootCmd.AddCommand(scanHostKeyCmd)

	scanHostKeyCmd.Flags().DurationVar(&scanHostKeyCmdFlags.timeout, "timeout", 10*time.Second,
		"The timeout for the SSH handshake.")
	scanHostKeyCmd.Flags().StringSliceVar(&scanHostKeyCmdFlags.hostKeyAlgos, "host-key-algorithms", nil,
		"The host key algorithms to offer, defaults to all algorithms supported by the client.")
	scanHostKeyCmd.Flags().BoolVar(&scanHostKeyCmdFlags.hashed, "hashed", false,
		"Hash the host names in the output.")
}

func runScanHostKey(cmd *cobra.Command, args []string) error {
	keys, err := pkgssh.ScanHostKey(args[0], scanHostKeyCmdFlags.timeout,
		scanHostKeyCmdFlags.hostKeyAlgos, scanHostKeyCmdFlags.hashed)
	if err != nil {
		return fmt.Errorf("failed to scan host key of %s: %w", args[0], err)
	}
	_, err = cmd.OutOrStdout().Write(keys)
	return err
}
