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

// Package transfer moves release archives to the remote host they are
// downloaded from.
package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/fluxcd/artifact-publisher/artifact/config"
	"github.com/fluxcd/artifact-publisher/ssh"
	"github.com/fluxcd/artifact-publisher/transfer/s3"
	"github.com/fluxcd/artifact-publisher/transfer/sftp"
)

// Transport is a session with a remote release host.
type Transport interface {
	// Connect opens the session.
	Connect(ctx context.Context) error

	// Prune deletes the files of the remote dir whose base name does not
	// match keep, and returns their remote paths. A missing dir is created.
	Prune(ctx context.Context, dir string, keep *regexp.Regexp) ([]string, error)

	// Upload writes the content of r to remotePath.
	Upload(ctx context.Context, r io.Reader, remotePath string) error

	// Close ends the session. It is safe to call on a session
	// that failed to connect.
	Close() error
}

// New returns the Transport selected by the given options.
func New(opts *config.Options) (Transport, error) {
	switch opts.Transport {
	case config.TransportSFTP:
		clientOpts := ssh.ClientOptions{
			User:     opts.SFTP.User,
			Password: opts.SFTP.Password,
			Timeout:  opts.SFTP.Timeout.Duration,
		}
		if opts.SFTP.PrivateKeyFile != "" {
			b, err := os.ReadFile(opts.SFTP.PrivateKeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read private key: %w", err)
			}
			clientOpts.PrivateKey = b
		}
		if opts.SFTP.KnownHostsFile != "" {
			b, err := os.ReadFile(opts.SFTP.KnownHostsFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read known_hosts: %w", err)
			}
			clientOpts.KnownHosts = b
		}
		return sftp.New(opts.SFTP.Address, clientOpts), nil
	case config.TransportS3:
		return s3.New(s3.Options{
			Bucket:          opts.S3.Bucket,
			Region:          opts.S3.Region,
			Endpoint:        opts.S3.Endpoint,
			ForcePathStyle:  opts.S3.ForcePathStyle,
			AccessKeyID:     opts.S3.AccessKeyID,
			SecretAccessKey: opts.S3.SecretAccessKey,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", opts.Transport)
	}
}
