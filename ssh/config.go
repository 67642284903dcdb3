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

package ssh

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/fluxcd/artifact-publisher/ssh/knownhosts"
)

// ClientOptions holds the credentials and the host verification
// settings of an SSH connection to a release host.
type ClientOptions struct {
	User     string
	Password string

	// PrivateKey is a PEM encoded private key, used in favour of the password
	// when both are set.
	PrivateKey []byte

	// KnownHosts is the content of a known_hosts file. When empty, the host
	// key is not verified.
	KnownHosts []byte

	Timeout time.Duration
}

// NewClientConfig returns the ssh.ClientConfig for the given options.
func NewClientConfig(opts ClientOptions) (*ssh.ClientConfig, error) {
	if opts.User == "" {
		return nil, errors.New("ssh user cannot be empty")
	}

	var auth []ssh.AuthMethod
	if len(opts.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(opts.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if opts.Password != "" {
		auth = append(auth, ssh.Password(opts.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("ssh password or private key must be set")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if len(opts.KnownHosts) > 0 {
		keys, err := knownhosts.ParseKnownHosts(string(opts.KnownHosts))
		if err != nil {
			return nil, fmt.Errorf("failed to parse known_hosts: %w", err)
		}
		hostKeyCallback = knownhosts.HostKeyCallback(keys)
	}

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}
	config.SetDefaults()
	SetPreferredKexAlgos(config)
	return config, nil
}
