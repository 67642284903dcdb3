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

package s3

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	. "github.com/onsi/gomega"
)

// fakeBucket is an in-memory bucket implementing API.
type fakeBucket struct {
	objects   map[string][]byte
	failKeys  map[string]bool
	deleteErr error
	putErr    error

	contentTypes map[string]string
}

func newFakeBucket(keys ...string) *fakeBucket {
	b := &fakeBucket{
		objects:      map[string][]byte{},
		failKeys:     map[string]bool{},
		contentTypes: map[string]string{},
	}
	for _, k := range keys {
		b.objects[k] = []byte(k)
	}
	return b
}

func (b *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	delimiter := aws.ToString(in.Delimiter)

	var keys []string
	for k := range b.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if delimiter != "" && strings.Contains(strings.TrimPrefix(k, prefix), delimiter) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (b *fakeBucket) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if b.deleteErr != nil {
		return nil, b.deleteErr
	}
	out := &s3.DeleteObjectsOutput{}
	for _, id := range in.Delete.Objects {
		key := aws.ToString(id.Key)
		if b.failKeys[key] {
			out.Errors = append(out.Errors, types.Error{
				Key:     id.Key,
				Code:    aws.String("AccessDenied"),
				Message: aws.String("Access Denied"),
			})
			continue
		}
		delete(b.objects, key)
	}
	return out, nil
}

func (b *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	b.objects[key] = data
	b.contentTypes[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (b *fakeBucket) keys() []string {
	var keys []string
	for k := range b.objects {
		keys = append(keys, k)
	}
	return keys
}

var keepToday = regexp.MustCompile(`20261018\d+\.zip`)

func TestTransport_Prune(t *testing.T) {
	tests := []struct {
		name       string
		dir        string
		objects    []string
		wantPruned []string
		wantKept   []string
	}{
		{
			name: "keeps today's archives of every app",
			dir:  "/var/www/releases",
			objects: []string{
				"var/www/releases/web-2026101801.zip",
				"var/www/releases/web-2026101701.zip",
				"var/www/releases/admin-2026101803.zip",
				"var/www/releases/index.html",
				"var/www/releases/old/web-2026100101.zip",
				"var/www/other/web-2026101701.zip",
			},
			wantPruned: []string{
				"var/www/releases/web-2026101701.zip",
				"var/www/releases/index.html",
			},
			wantKept: []string{
				"var/www/releases/web-2026101801.zip",
				"var/www/releases/admin-2026101803.zip",
				"var/www/releases/old/web-2026100101.zip",
				"var/www/other/web-2026101701.zip",
			},
		},
		{
			name:    "root dir",
			dir:     "",
			objects: []string{"web-2026101701.zip", "web-2026101801.zip", "releases/web-2026101701.zip"},
			wantPruned: []string{
				"web-2026101701.zip",
			},
			wantKept: []string{"web-2026101801.zip", "releases/web-2026101701.zip"},
		},
		{
			name:     "nothing to prune",
			dir:      "releases/",
			objects:  []string{"releases/web-2026101801.zip"},
			wantKept: []string{"releases/web-2026101801.zip"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			bucket := newFakeBucket(tt.objects...)
			tr := NewWithClient("releases", bucket)
			g.Expect(tr.Connect(context.TODO())).To(Succeed())

			pruned, err := tr.Prune(context.TODO(), tt.dir, keepToday)
			g.Expect(err).NotTo(HaveOccurred())
			if len(tt.wantPruned) == 0 {
				g.Expect(pruned).To(BeEmpty())
			} else {
				g.Expect(pruned).To(ConsistOf(tt.wantPruned))
			}
			g.Expect(bucket.keys()).To(ConsistOf(tt.wantKept))
		})
	}
}

func TestTransport_Prune_Errors(t *testing.T) {
	g := NewWithT(t)

	bucket := newFakeBucket("r/a.txt", "r/b.txt")
	bucket.failKeys["r/b.txt"] = true
	tr := NewWithClient("releases", bucket)

	pruned, err := tr.Prune(context.TODO(), "r", keepToday)
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("AccessDenied"))
	g.Expect(pruned).To(ConsistOf("r/a.txt"))

	bucket.deleteErr = errors.New("connection reset")
	_, err = tr.Prune(context.TODO(), "r", keepToday)
	g.Expect(err).To(MatchError(ContainSubstring("connection reset")))
}

func TestTransport_Upload(t *testing.T) {
	g := NewWithT(t)

	bucket := newFakeBucket()
	tr := NewWithClient("releases", bucket)

	g.Expect(tr.Upload(context.TODO(), strings.NewReader("zip"), "/var/www/web-2026101801.zip")).To(Succeed())
	g.Expect(bucket.objects).To(HaveKeyWithValue("var/www/web-2026101801.zip", []byte("zip")))
	g.Expect(bucket.contentTypes).To(HaveKeyWithValue("var/www/web-2026101801.zip", "application/zip"))

	bucket.putErr = errors.New("slow down")
	err := tr.Upload(context.TODO(), strings.NewReader("zip"), "web.zip")
	g.Expect(err).To(MatchError(ContainSubstring("failed to upload s3://releases/web.zip")))
}

func TestTransport_NotConnected(t *testing.T) {
	g := NewWithT(t)

	tr := New(Options{Bucket: "releases"})
	_, err := tr.Prune(context.TODO(), "", keepToday)
	g.Expect(err).To(MatchError(ErrNotConnected))
	g.Expect(tr.Upload(context.TODO(), strings.NewReader(""), "a.zip")).To(MatchError(ErrNotConnected))
	g.Expect(tr.Close()).To(Succeed())
}

func Test_keyPrefix(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"/":                 "",
		"releases":          "releases/",
		"/var/www/releases": "var/www/releases/",
		"releases/":         "releases/",
	}
	for dir, want := range tests {
		t.Run(dir, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(keyPrefix(dir)).To(Equal(want))
		})
	}
}
