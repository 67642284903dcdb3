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

// Package s3 uploads release archives to an S3 compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	kerrors "k8s.io/apimachinery/pkg/util/errors"
)

// ErrNotConnected is returned by the operations of a Transport
// that has not been connected.
var ErrNotConnected = errors.New("s3: not connected")

// maxDeleteKeys is the DeleteObjects batch limit.
const maxDeleteKeys = 1000

// API is the subset of the S3 client used by the Transport.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options holds the bucket and the credentials of the Transport.
// Empty credentials fall back to the default AWS credential chain.
type Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// Transport stores the archives as objects of a bucket, using the
// remote dir as key prefix.
type Transport struct {
	opts   Options
	client API
}

// New returns a Transport for the given options. The client is created on Connect.
func New(opts Options) *Transport {
	return &Transport{opts: opts}
}

// NewWithClient returns a connected Transport using the given client.
func NewWithClient(bucket string, client API) *Transport {
	return &Transport{opts: Options{Bucket: bucket}, client: client}
}

// Connect loads the AWS configuration and creates the S3 client.
func (t *Transport) Connect(ctx context.Context) error {
	if t.client != nil {
		return nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if t.opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(t.opts.Region))
	}
	if t.opts.AccessKeyID != "" && t.opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(t.opts.AccessKeyID, t.opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("failed to load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	t.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if t.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(t.opts.Endpoint)
		}
		o.UsePathStyle = t.opts.ForcePathStyle
	})
	return nil
}

// Prune deletes the objects directly under the dir prefix whose base name
// does not match keep. Objects of nested prefixes are left untouched.
func (t *Transport) Prune(ctx context.Context, dir string, keep *regexp.Regexp) ([]string, error) {
	if t.client == nil {
		return nil, ErrNotConnected
	}

	prefix := keyPrefix(dir)
	paginator := s3.NewListObjectsV2Paginator(t.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(t.opts.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", t.opts.Bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, prefix)
			if name == "" || keep.MatchString(name) {
				continue
			}
			keys = append(keys, key)
		}
	}

	var pruned []string
	for len(keys) > 0 {
		n := min(len(keys), maxDeleteKeys)
		batch := keys[:n]
		keys = keys[n:]

		ids := make([]types.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
		}
		out, err := t.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(t.opts.Bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return pruned, fmt.Errorf("failed to delete objects of s3://%s/%s: %w", t.opts.Bucket, prefix, err)
		}

		failed := make(map[string]struct{}, len(out.Errors))
		var errs []error
		for _, e := range out.Errors {
			failed[aws.ToString(e.Key)] = struct{}{}
			errs = append(errs, fmt.Errorf("failed to delete %q: %s: %s",
				aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
		}
		for _, key := range batch {
			if _, ok := failed[key]; !ok {
				pruned = append(pruned, key)
			}
		}
		if len(errs) > 0 {
			return pruned, kerrors.NewAggregate(errs)
		}
	}
	return pruned, nil
}

// Upload puts the content of r as the object at remotePath.
func (t *Transport) Upload(ctx context.Context, r io.Reader, remotePath string) error {
	if t.client == nil {
		return ErrNotConnected
	}
	key := strings.TrimPrefix(path.Clean("/"+remotePath), "/")
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.opts.Bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", t.opts.Bucket, key, err)
	}
	return nil
}

// Close releases the client. The S3 client holds no session,
// so there is nothing to tear down remotely.
func (t *Transport) Close() error {
	t.client = nil
	return nil
}

// keyPrefix returns the key prefix of a remote dir, without leading
// slash and with a trailing one. The root dir has an empty prefix.
func keyPrefix(dir string) string {
	p := strings.TrimPrefix(path.Clean("/"+dir), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
