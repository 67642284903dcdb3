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
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// WebhookRequest is a request received by the WebhookServer.
type WebhookRequest struct {
	Method string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// WebhookServer is a chat robot endpoint for testing purposes.
// It records every request and answers with a configurable response.
type WebhookServer struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []WebhookRequest
	status   int
	response string
}

// NewWebhookServer returns a started WebhookServer answering
// 200 with a successful robot response.
func NewWebhookServer() *WebhookServer {
	s := &WebhookServer{
		status:   http.StatusOK,
		response: `{"errcode":0,"errmsg":"ok"}`,
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *WebhookServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, WebhookRequest{
		Method: r.Method,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	status, response := s.status, s.response
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

// Respond sets the status code and body of the next responses.
func (s *WebhookServer) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.response = body
}

// Requests returns a copy of the received requests.
func (s *WebhookServer) Requests() []WebhookRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WebhookRequest(nil), s.requests...)
}

// URL returns the address the WebhookServer is listening at.
func (s *WebhookServer) URL() string {
	return s.server.URL
}

// Stop stops the WebhookServer.
func (s *WebhookServer) Stop() {
	s.server.Close()
}
