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
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPServer is an in-process SSH server offering the sftp subsystem,
// for testing purposes. It is not chrooted: clients are expected to use
// absolute paths below Root.
type SFTPServer struct {
	root     string
	user     string
	password string

	authorizedKeys []ssh.PublicKey
	hostSigner     ssh.Signer

	listener net.Listener
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewTempSFTPServer returns an SFTPServer with a newly created temp dir as root,
// accepting the given user and password.
func NewTempSFTPServer(user, password string) (*SFTPServer, error) {
	tmpDir, err := os.MkdirTemp("", "sftp-test-")
	if err != nil {
		return nil, err
	}
	return NewSFTPServer(tmpDir, user, password)
}

// NewSFTPServer returns an SFTPServer with the given root, accepting the
// given user and password. A new ed25519 host key is generated.
func NewSFTPServer(root, user, password string) (*SFTPServer, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.NewSignerFromSigner(key)
	if err != nil {
		return nil, err
	}
	return &SFTPServer{
		root:       root,
		user:       user,
		password:   password,
		hostSigner: signer,
	}, nil
}

// WithAuthorizedKey allows the user to authenticate with the given public key.
func (s *SFTPServer) WithAuthorizedKey(key ssh.PublicKey) *SFTPServer {
	s.authorizedKeys = append(s.authorizedKeys, key)
	return s
}

// Start listens on a random local port and serves connections
// until Stop is called.
func (s *SFTPServer) Start() error {
	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == s.user && s.password != "" && string(pass) == s.password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if c.User() == s.user {
				for _, k := range s.authorizedKeys {
					if bytes.Equal(k.Marshal(), key.Marshal()) {
						return nil, nil
					}
				}
			}
			return nil, fmt.Errorf("unknown public key for %q", c.User())
		},
	}
	config.AddHostKey(s.hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serveConn(conn, config)
			}()
		}
	}()
	return nil
}

func (s *SFTPServer) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *SFTPServer) serveConn(conn net.Conn, config *ssh.ServerConfig) {
	defer func() {
		conn.Close()
		s.track(conn, false)
	}()

	sConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	defer sConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			return
		}

		go func(in <-chan *ssh.Request) {
			for req := range in {
				ok := req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp"
				_ = req.Reply(ok, nil)
			}
		}(requests)

		server, err := sftp.NewServer(channel)
		if err != nil {
			channel.Close()
			continue
		}
		_ = server.Serve()
		_ = server.Close()
		channel.Close()
	}
}

// Stop closes the listener and the open connections.
func (s *SFTPServer) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Addr returns the host:port the SFTPServer is listening at, if started.
func (s *SFTPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Root returns the root dir of the SFTPServer.
func (s *SFTPServer) Root() string {
	return s.root
}

// HostKey returns the public host key of the SFTPServer.
func (s *SFTPServer) HostKey() ssh.PublicKey {
	return s.hostSigner.PublicKey()
}

// KnownHosts returns a known_hosts line pinning the host key
// to the address of the started SFTPServer.
func (s *SFTPServer) KnownHosts() []byte {
	return []byte(knownhosts.Line([]string{knownhosts.Normalize(s.Addr())}, s.HostKey()) + "\n")
}
