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
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/fluxcd/artifact-publisher/artifact/storage"
)

var versionCmd = &cobra.Command{
	Use:   "version <filename>",
	Short: "Print the app and version encoded in an archive file name",
	Example: `  publisher version web-2026101801.zip
  publisher version -o yaml /var/www/releases/web-2026101801.zip`,
	Args: cobra.ExactArgs(1),
	RunE: runVersion,
}

var versionCmdFlags struct {
	output string
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionCmdFlags.output, "output", "o", "",
		"The output format, one of '', 'yaml' or 'json'. The default prints the version only.")
}

func runVersion(cmd *cobra.Command, args []string) error {
	app, version, err := storage.ParseFilename(filepath.Base(args[0]))
	if err != nil {
		return err
	}
	v := storage.Version{
		App:      app,
		Date:     version[:len(storage.DateFormat)],
		Sequence: version[len(storage.DateFormat):],
	}

	var b []byte
	switch versionCmdFlags.output {
	case "":
		b = []byte(v.String() + "\n")
	case "yaml":
		b, err = yaml.Marshal(v)
	case "json":
		b, err = json.MarshalIndent(v, "", "  ")
		b = append(b, '\n')
	default:
		err = fmt.Errorf("unsupported output format %q", versionCmdFlags.output)
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}
