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
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"
)

// LoadFile reads Options from a YAML or JSON file.
func LoadFile(path string) (*Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	o := &Options{}
	if err := yaml.UnmarshalStrict(b, o); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return o, nil
}

type fileField struct {
	flag string
	env  string
	copy func(dst, src *Options)
}

// fileFields lists the settings a config file can provide, with the flag
// and environment variable that take precedence over it.
var fileFields = []fileField{
	{flagAppName, envAppName, func(d, s *Options) { merge(&d.AppName, s.AppName) }},
	{flagSourceDir, envSourceDir, func(d, s *Options) { merge(&d.SourceDir, s.SourceDir) }},
	{flagStoragePath, envStoragePath, func(d, s *Options) { merge(&d.StoragePath, s.StoragePath) }},
	{flagRemoteDir, envRemoteDir, func(d, s *Options) { merge(&d.RemoteDir, s.RemoteDir) }},
	{flagDownloadHost, envDownloadHost, func(d, s *Options) { merge(&d.DownloadHost, s.DownloadHost) }},
	{flagFillWidth, envFillWidth, func(d, s *Options) { merge(&d.FillWidth, s.FillWidth) }},
	{flagIgnore, "", func(d, s *Options) { mergeSlice(&d.Ignore, s.Ignore) }},
	{flagTransport, envTransport, func(d, s *Options) { merge(&d.Transport, s.Transport) }},
	{flagSFTPAddress, envSFTPAddress, func(d, s *Options) { merge(&d.SFTP.Address, s.SFTP.Address) }},
	{flagSFTPUser, envSFTPUser, func(d, s *Options) { merge(&d.SFTP.User, s.SFTP.User) }},
	{flagSFTPPrivateKeyFile, envSFTPPrivateKeyFile, func(d, s *Options) { merge(&d.SFTP.PrivateKeyFile, s.SFTP.PrivateKeyFile) }},
	{flagSFTPKnownHostsFile, envSFTPKnownHostsFile, func(d, s *Options) { merge(&d.SFTP.KnownHostsFile, s.SFTP.KnownHostsFile) }},
	{flagSFTPTimeout, "", func(d, s *Options) { merge(&d.SFTP.Timeout, s.SFTP.Timeout) }},
	{flagS3Bucket, envS3Bucket, func(d, s *Options) { merge(&d.S3.Bucket, s.S3.Bucket) }},
	{flagS3Region, envS3Region, func(d, s *Options) { merge(&d.S3.Region, s.S3.Region) }},
	{flagS3Endpoint, envS3Endpoint, func(d, s *Options) { merge(&d.S3.Endpoint, s.S3.Endpoint) }},
	{flagS3ForcePathStyle, "", func(d, s *Options) { merge(&d.S3.ForcePathStyle, s.S3.ForcePathStyle) }},
	{flagNotifyWebhook, envNotifyWebhook, func(d, s *Options) { merge(&d.Notify.Webhook, s.Notify.Webhook) }},
	{flagNotifyRetries, "", func(d, s *Options) { merge(&d.Notify.Retries, s.Notify.Retries) }},
	{flagNotifyTimeout, "", func(d, s *Options) { merge(&d.Notify.Timeout, s.Notify.Timeout) }},
	{flagCardTitle, envCardTitle, func(d, s *Options) { merge(&d.Card.Title, s.Card.Title) }},
	{flagCardSubtitle, envCardSubtitle, func(d, s *Options) { merge(&d.Card.Subtitle, s.Card.Subtitle) }},
	{flagCardBody, envCardBody, func(d, s *Options) { merge(&d.Card.Body, s.Card.Body) }},
	{"", envSFTPPassword, func(d, s *Options) { merge(&d.SFTP.Password, s.SFTP.Password) }},
	{"", envS3AccessKeyID, func(d, s *Options) { merge(&d.S3.AccessKeyID, s.S3.AccessKeyID) }},
	{"", envS3SecretAccessKey, func(d, s *Options) { merge(&d.S3.SecretAccessKey, s.S3.SecretAccessKey) }},
	{"", envNotifyAccessToken, func(d, s *Options) { merge(&d.Notify.AccessToken, s.Notify.AccessToken) }},
	{"", envNotifySecret, func(d, s *Options) { merge(&d.Notify.Secret, s.Notify.Secret) }},
}

// MergeFile copies the settings of the file Options into o.
// The precedence is: command line flag, environment variable, file, default.
// Zero values in the file never override o.
func (o *Options) MergeFile(file *Options, fs *pflag.FlagSet) {
	if file == nil {
		return
	}
	for _, f := range fileFields {
		if f.flag != "" && fs != nil && fs.Changed(f.flag) {
			continue
		}
		if f.env != "" && os.Getenv(f.env) != "" {
			continue
		}
		f.copy(o, file)
	}
}

func merge[T comparable](dst *T, src T) {
	var zero T
	if src != zero {
		*dst = src
	}
}

func mergeSlice(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}
