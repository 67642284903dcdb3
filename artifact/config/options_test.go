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

package config_test

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/fluxcd/artifact-publisher/artifact/config"
)

func validOptions() config.Options {
	return config.Options{
		AppName:      "web",
		SourceDir:    "dist",
		StoragePath:  "releases",
		RemoteDir:    "/srv/releases",
		DownloadHost: "https://dl.example.com",
		FillWidth:    2,
		Transport:    config.TransportSFTP,
		SFTP: config.SFTPOptions{
			Address:  "dl.example.com:22",
			User:     "deploy",
			Password: "s3cr3t",
		},
	}
}

func Test_Options_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *config.Options)
		wantErr string
	}{
		{
			name:   "valid sftp options",
			mutate: func(o *config.Options) {},
		},
		{
			name: "valid s3 options",
			mutate: func(o *config.Options) {
				o.Transport = config.TransportS3
				o.SFTP = config.SFTPOptions{}
				o.S3.Bucket = "releases"
			},
		},
		{
			name:    "missing app name",
			mutate:  func(o *config.Options) { o.AppName = "" },
			wantErr: "app name is required",
		},
		{
			name:    "app name with dash",
			mutate:  func(o *config.Options) { o.AppName = "my-app" },
			wantErr: "must not contain '-'",
		},
		{
			name:    "fill width not set",
			mutate:  func(o *config.Options) { o.FillWidth = 0 },
			wantErr: "fill width must be set",
		},
		{
			name:    "missing download host",
			mutate:  func(o *config.Options) { o.DownloadHost = "" },
			wantErr: "download host is required",
		},
		{
			name:    "sftp without credentials",
			mutate:  func(o *config.Options) { o.SFTP.Password = "" },
			wantErr: "password or a private key file",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(o *config.Options) { o.Transport = config.TransportS3 },
			wantErr: "s3 bucket is required",
		},
		{
			name:    "unknown transport",
			mutate:  func(o *config.Options) { o.Transport = "ftp" },
			wantErr: `unsupported transport "ftp"`,
		},
		{
			name:    "negative notify retries",
			mutate:  func(o *config.Options) { o.Notify.Retries = -1 },
			wantErr: "notify retries must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			opts := validOptions()
			tt.mutate(&opts)

			err := opts.Validate()
			if tt.wantErr == "" {
				g.Expect(err).NotTo(HaveOccurred())
				return
			}
			g.Expect(err).To(HaveOccurred())
			g.Expect(errors.Is(err, config.ErrInvalidOptions)).To(BeTrue())
			g.Expect(err.Error()).To(ContainSubstring(tt.wantErr))
		})
	}
}

func Test_Options_Validate_ReportsAllErrors(t *testing.T) {
	g := NewWithT(t)

	opts := config.Options{}
	err := opts.Validate()
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(And(
		ContainSubstring("app name is required"),
		ContainSubstring("source dir is required"),
		ContainSubstring("fill width must be set"),
		ContainSubstring("unsupported transport"),
	))
}

func Test_Options_GetDownloadHost(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{host: "https://dl.example.com", want: "https://dl.example.com/"},
		{host: "https://dl.example.com/", want: "https://dl.example.com/"},
		{host: "https://dl.example.com/web", want: "https://dl.example.com/web/"},
		{host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			g := NewWithT(t)

			opts := config.Options{DownloadHost: tt.host}
			g.Expect(opts.GetDownloadHost()).To(Equal(tt.want))
		})
	}
}

func Test_Options_Secrets(t *testing.T) {
	g := NewWithT(t)

	opts := validOptions()
	opts.Notify.AccessToken = "token"
	g.Expect(opts.Secrets()).To(ConsistOf("s3cr3t", "token"))
}
