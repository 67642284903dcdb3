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

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kerrors "k8s.io/apimachinery/pkg/util/errors"
)

const (
	// TransportSFTP uploads artifacts to an SSH host over SFTP.
	TransportSFTP = "sftp"
	// TransportS3 uploads artifacts to an S3 compatible bucket.
	TransportS3 = "s3"
)

// ErrInvalidOptions is returned (wrapped) by Options.Validate.
var ErrInvalidOptions = errors.New("invalid options")

// Options contains configuration settings for a publish run.
type Options struct {
	// AppName is the artifact family prefix. It must be stable and unique
	// across the applications that share a storage directory.
	AppName string `json:"appName"`

	// SourceDir is the build output directory packaged into the archive.
	SourceDir string `json:"sourceDir"`

	// StoragePath is the local directory where archives are written.
	StoragePath string `json:"storagePath"`

	// RemoteDir is the base directory on the remote host.
	RemoteDir string `json:"remoteDir"`

	// DownloadHost is the public URL prefix the uploaded archives are served from.
	DownloadHost string `json:"downloadHost"`

	// FillWidth is the number of digits the daily sequence is zero-padded to.
	FillWidth int `json:"fillWidth"`

	// Ignore holds gitignore style patterns excluded from the archive.
	Ignore []string `json:"ignore,omitempty"`

	// Transport selects the remote transfer implementation.
	Transport string `json:"transport"`

	SFTP   SFTPOptions   `json:"sftp"`
	S3     S3Options     `json:"s3"`
	Notify NotifyOptions `json:"notify"`
	Card   CardOptions   `json:"card"`
}

// SFTPOptions holds the settings of the SFTP transport.
type SFTPOptions struct {
	// Address is the host:port of the SSH server.
	Address string `json:"address"`

	User     string `json:"user"`
	Password string `json:"password,omitempty"`

	// PrivateKeyFile is the path to a PEM encoded private key.
	PrivateKeyFile string `json:"privateKeyFile,omitempty"`

	// KnownHostsFile is the path to a known_hosts file used to verify the host key.
	KnownHostsFile string `json:"knownHostsFile,omitempty"`

	Timeout metav1.Duration `json:"timeout"`
}

// S3Options holds the settings of the S3 transport.
type S3Options struct {
	Bucket string `json:"bucket"`
	Region string `json:"region,omitempty"`

	// Endpoint overrides the service endpoint, for example for MinIO.
	Endpoint       string `json:"endpoint,omitempty"`
	ForcePathStyle bool   `json:"forcePathStyle,omitempty"`

	AccessKeyID     string `json:"accessKeyID,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
}

// NotifyOptions holds the settings of the chat webhook notifier.
type NotifyOptions struct {
	// Webhook is the robot endpoint. Notifications are disabled when empty.
	Webhook     string          `json:"webhook,omitempty"`
	AccessToken string          `json:"accessToken,omitempty"`
	Secret      string          `json:"secret,omitempty"`
	Retries     int             `json:"retries"`
	Timeout     metav1.Duration `json:"timeout"`
}

// CardOptions is the notification card template.
type CardOptions struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body,omitempty"`
}

// GetDownloadHost returns the download host with a trailing slash.
func (o *Options) GetDownloadHost() string {
	if o.DownloadHost == "" || strings.HasSuffix(o.DownloadHost, "/") {
		return o.DownloadHost
	}
	return o.DownloadHost + "/"
}

// Secrets returns the credential values that must never appear in logs or errors.
func (o *Options) Secrets() []string {
	var s []string
	for _, v := range []string{o.SFTP.Password, o.S3.SecretAccessKey, o.Notify.AccessToken, o.Notify.Secret} {
		if v != "" {
			s = append(s, v)
		}
	}
	return s
}

// Validate returns an error wrapping ErrInvalidOptions listing every invalid setting.
func (o *Options) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch {
	case o.AppName == "":
		add("app name is required")
	case strings.ContainsAny(o.AppName, `-/\`):
		add("app name %q must not contain '-' or path separators", o.AppName)
	}
	if o.SourceDir == "" {
		add("source dir is required")
	}
	if o.StoragePath == "" {
		add("storage path is required")
	}
	if o.FillWidth < 1 {
		add("fill width must be set to a positive number of digits, got %d", o.FillWidth)
	}
	if o.DownloadHost == "" {
		add("download host is required")
	} else if _, err := url.Parse(o.DownloadHost); err != nil {
		add("invalid download host %q: %w", o.DownloadHost, err)
	}

	switch o.Transport {
	case TransportSFTP:
		if o.SFTP.Address == "" {
			add("sftp address is required")
		}
		if o.SFTP.User == "" {
			add("sftp user is required")
		}
		if o.SFTP.Password == "" && o.SFTP.PrivateKeyFile == "" {
			add("sftp requires a password or a private key file")
		}
	case TransportS3:
		if o.S3.Bucket == "" {
			add("s3 bucket is required")
		}
	default:
		add("unsupported transport %q, must be one of %q or %q", o.Transport, TransportSFTP, TransportS3)
	}

	if o.Notify.Webhook != "" {
		if _, err := url.Parse(o.Notify.Webhook); err != nil {
			add("invalid notify webhook: %w", err)
		}
	}
	if o.Notify.Retries < 0 {
		add("notify retries must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, kerrors.NewAggregate(errs))
	}
	return nil
}
