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
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

const (
	flagAppName = "app-name"
	envAppName  = "APP_NAME"

	flagSourceDir    = "source-dir"
	envSourceDir     = "SOURCE_DIR"
	defaultSourceDir = "dist"

	flagStoragePath    = "storage-path"
	envStoragePath     = "STORAGE_PATH"
	defaultStoragePath = "releases"

	flagRemoteDir = "remote-dir"
	envRemoteDir  = "REMOTE_DIR"

	flagDownloadHost = "download-host"
	envDownloadHost  = "DOWNLOAD_HOST"

	flagFillWidth = "fill-width"
	envFillWidth  = "FILL_WIDTH"

	flagIgnore = "ignore"

	flagTransport    = "transport"
	envTransport     = "TRANSPORT"
	defaultTransport = TransportSFTP

	flagSFTPAddress = "sftp-address"
	envSFTPAddress  = "SFTP_ADDRESS"

	flagSFTPUser = "sftp-user"
	envSFTPUser  = "SFTP_USER"

	flagSFTPPrivateKeyFile = "sftp-private-key-file"
	envSFTPPrivateKeyFile  = "SFTP_PRIVATE_KEY_FILE"

	flagSFTPKnownHostsFile = "sftp-known-hosts-file"
	envSFTPKnownHostsFile  = "SFTP_KNOWN_HOSTS_FILE"

	flagSFTPTimeout    = "sftp-timeout"
	defaultSFTPTimeout = 30 * time.Second

	flagS3Bucket = "s3-bucket"
	envS3Bucket  = "S3_BUCKET"

	flagS3Region = "s3-region"
	envS3Region  = "S3_REGION"

	flagS3Endpoint = "s3-endpoint"
	envS3Endpoint  = "S3_ENDPOINT"

	flagS3ForcePathStyle = "s3-force-path-style"

	flagNotifyWebhook = "notify-webhook"
	envNotifyWebhook  = "NOTIFY_WEBHOOK"

	flagNotifyRetries = "notify-retries"

	flagNotifyTimeout    = "notify-timeout"
	defaultNotifyTimeout = 5 * time.Second

	flagCardTitle    = "card-title"
	envCardTitle     = "CARD_TITLE"
	defaultCardTitle = "New release"

	flagCardSubtitle = "card-subtitle"
	envCardSubtitle  = "CARD_SUBTITLE"

	flagCardBody = "card-body"
	envCardBody  = "CARD_BODY"

	// Credentials are read from the environment only, so they never
	// show up as flag defaults in the usage output.
	envSFTPPassword      = "SFTP_PASSWORD"
	envS3AccessKeyID     = "S3_ACCESS_KEY_ID"
	envS3SecretAccessKey = "S3_SECRET_ACCESS_KEY"
	envNotifyAccessToken = "NOTIFY_ACCESS_TOKEN"
	envNotifySecret      = "NOTIFY_SECRET"
)

// BindFlags will parse the given pflag.FlagSet for the publisher and set the Options accordingly.
// Credentials are not exposed as flags; they are loaded from the environment.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.AppName, flagAppName,
		envOrDefault(envAppName, ""),
		"The application name, used as the artifact family prefix.")

	fs.StringVar(&o.SourceDir, flagSourceDir,
		envOrDefault(envSourceDir, defaultSourceDir),
		"The build output directory to package.")

	fs.StringVar(&o.StoragePath, flagStoragePath,
		envOrDefault(envStoragePath, defaultStoragePath),
		"The path to the directory where archives will be stored.")

	fs.StringVar(&o.RemoteDir, flagRemoteDir,
		envOrDefault(envRemoteDir, ""),
		"The remote directory archives are uploaded to.")

	fs.StringVar(&o.DownloadHost, flagDownloadHost,
		envOrDefault(envDownloadHost, ""),
		"The public URL prefix the uploaded archives are downloaded from.")

	fs.IntVar(&o.FillWidth, flagFillWidth,
		intEnvOrDefault(envFillWidth, 0),
		"The number of digits the daily sequence number is zero-padded to (required).")

	fs.StringSliceVar(&o.Ignore, flagIgnore, nil,
		"Gitignore style patterns of files excluded from the archive.")

	fs.StringVar(&o.Transport, flagTransport,
		envOrDefault(envTransport, defaultTransport),
		"The remote transfer implementation. Can be 'sftp' or 's3'.")

	fs.StringVar(&o.SFTP.Address, flagSFTPAddress,
		envOrDefault(envSFTPAddress, ""),
		"The host:port of the SFTP server.")

	fs.StringVar(&o.SFTP.User, flagSFTPUser,
		envOrDefault(envSFTPUser, ""),
		"The SFTP user name.")

	fs.StringVar(&o.SFTP.PrivateKeyFile, flagSFTPPrivateKeyFile,
		envOrDefault(envSFTPPrivateKeyFile, ""),
		"The path to the private key used to authenticate with the SFTP server.")

	fs.StringVar(&o.SFTP.KnownHostsFile, flagSFTPKnownHostsFile,
		envOrDefault(envSFTPKnownHostsFile, ""),
		"The path to the known_hosts file used to verify the SFTP host key.")

	fs.DurationVar(&o.SFTP.Timeout.Duration, flagSFTPTimeout, defaultSFTPTimeout,
		"The timeout for establishing the SSH connection.")

	fs.StringVar(&o.S3.Bucket, flagS3Bucket,
		envOrDefault(envS3Bucket, ""),
		"The S3 bucket archives are uploaded to.")

	fs.StringVar(&o.S3.Region, flagS3Region,
		envOrDefault(envS3Region, ""),
		"The S3 region.")

	fs.StringVar(&o.S3.Endpoint, flagS3Endpoint,
		envOrDefault(envS3Endpoint, ""),
		"A custom S3 endpoint, e.g. a MinIO server.")

	fs.BoolVar(&o.S3.ForcePathStyle, flagS3ForcePathStyle, false,
		"Use path style addressing for S3 requests.")

	fs.StringVar(&o.Notify.Webhook, flagNotifyWebhook,
		envOrDefault(envNotifyWebhook, ""),
		"The chat robot webhook address. Notifications are disabled when empty.")

	fs.IntVar(&o.Notify.Retries, flagNotifyRetries, 0,
		"The number of times a failed notification request is retried.")

	fs.DurationVar(&o.Notify.Timeout.Duration, flagNotifyTimeout, defaultNotifyTimeout,
		"The timeout of a single notification request.")

	fs.StringVar(&o.Card.Title, flagCardTitle,
		envOrDefault(envCardTitle, defaultCardTitle),
		"The notification card title.")

	fs.StringVar(&o.Card.Subtitle, flagCardSubtitle,
		envOrDefault(envCardSubtitle, ""),
		"The notification card subtitle.")

	fs.StringVar(&o.Card.Body, flagCardBody,
		envOrDefault(envCardBody, ""),
		"A literal markdown body replacing the default release summary.")

	o.LoadSecretsFromEnv()
}

// LoadSecretsFromEnv sets the credentials found in the environment.
// Values that are not present in the environment are left untouched.
func (o *Options) LoadSecretsFromEnv() {
	setFromEnv(&o.SFTP.Password, envSFTPPassword)
	setFromEnv(&o.S3.AccessKeyID, envS3AccessKeyID)
	setFromEnv(&o.S3.SecretAccessKey, envS3SecretAccessKey)
	setFromEnv(&o.Notify.AccessToken, envNotifyAccessToken)
	setFromEnv(&o.Notify.Secret, envNotifySecret)
}

// envOrDefault returns the value of the environment variable named by the key.
// If the variable is empty or not present, it returns the defaultValue instead.
func envOrDefault(envName, defaultValue string) string {
	ret := os.Getenv(envName)
	if ret != "" {
		return ret
	}

	return defaultValue
}

func intEnvOrDefault(envName string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(envName)); err == nil {
		return v
	}
	return defaultValue
}

func setFromEnv(dst *string, envName string) {
	if v := os.Getenv(envName); v != "" {
		*dst = v
	}
}
