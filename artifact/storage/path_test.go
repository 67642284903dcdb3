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

package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	. "github.com/onsi/gomega"

	. "github.com/fluxcd/artifact-publisher/artifact/storage"
)

func mustParseDate(t *testing.T, date string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(DateFormat, date, time.Local)
	if err != nil {
		t.Fatalf("invalid date %q: %v", date, err)
	}
	return d.Add(12 * time.Hour)
}

func TestStorage_LocalPath(t *testing.T) {
	s, err := NewWithFilesystem(memfs.New(), testBase, 2)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{name: "archive name", filename: "web-2026101801.zip", want: filepath.Join(testBase, "web-2026101801.zip")},
		{name: "empty", filename: "", want: ""},
		{name: "traversal stays inside the base path", filename: "../../etc/passwd", want: filepath.Join(testBase, "etc", "passwd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(s.LocalPath(tt.filename)).To(Equal(tt.want))
		})
	}
}

func TestRemotePath(t *testing.T) {
	tests := []struct {
		remoteDir string
		want      string
	}{
		{remoteDir: "/var/www/releases", want: "/var/www/releases/web-2026101801.zip"},
		{remoteDir: "/var/www/releases/", want: "/var/www/releases/web-2026101801.zip"},
		{remoteDir: "releases", want: "releases/web-2026101801.zip"},
		{remoteDir: "", want: "web-2026101801.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.remoteDir, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(RemotePath(tt.remoteDir, "web-2026101801.zip")).To(Equal(tt.want))
		})
	}
}

func TestDownloadURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{host: "https://dl.example.com/web/", want: "https://dl.example.com/web/web-2026101801.zip"},
		{host: "http://10.0.0.1:8080/", want: "http://10.0.0.1:8080/web-2026101801.zip"},
		{host: "dl.example.com/", want: "http://dl.example.com/web-2026101801.zip"},
		{host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(DownloadURL(tt.host, "web-2026101801.zip")).To(Equal(tt.want))
		})
	}
}
