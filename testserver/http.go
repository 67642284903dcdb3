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

package testserver

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
)

// HTTPServer serves a directory over HTTP. Tests use it as the download
// host of the published archives, with the remote dir as docroot.
type HTTPServer struct {
	docroot string
	server  *httptest.Server
}

// NewHTTPServer returns an HTTPServer serving docroot. The directory does
// not need to exist before the first request.
func NewHTTPServer(docroot string) *HTTPServer {
	root, err := filepath.Abs(docroot)
	if err != nil {
		panic(err)
	}
	return &HTTPServer{docroot: root}
}

// Start starts listening on a random local port.
func (s *HTTPServer) Start() {
	s.server = httptest.NewServer(http.FileServer(http.Dir(s.docroot)))
}

// Stop closes the server, if started.
func (s *HTTPServer) Stop() {
	if s.server != nil {
		s.server.Close()
	}
}

// Root returns the docroot.
func (s *HTTPServer) Root() string {
	return s.docroot
}

// URL returns the base URL of the started server, without trailing slash.
func (s *HTTPServer) URL() string {
	if s.server != nil {
		return s.server.URL
	}
	return ""
}
