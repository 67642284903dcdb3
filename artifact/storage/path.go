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

package storage

import (
	"path"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// LocalPath returns the secure local path of the given file name
// (that is: relative to the Storage.BasePath).
func (s Storage) LocalPath(filename string) string {
	if filename == "" {
		return ""
	}
	p, err := securejoin.SecureJoinVFS(s.BasePath, filename, s.fs)
	if err != nil {
		return ""
	}
	return p
}

// RemotePath returns the upload path of the given file name in the form
// '<remoteDir>/<filename>', using forward slashes. An empty remoteDir
// results in a path relative to the remote working directory.
func RemotePath(remoteDir, filename string) string {
	return path.Join(remoteDir, filename)
}

// DownloadURL returns the public URL of the given file name.
// The host is expected to end with a slash; an URL without scheme defaults to http.
func DownloadURL(host, filename string) string {
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + filename
}
