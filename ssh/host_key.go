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
	"bytes"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ScanHostKey dials the release host and returns the host keys it presents,
// one known_hosts line each, ready to be pinned with --sftp-known-hosts-file.
// The handshake is expected to fail at authentication, so the dial error is
// only returned when no key was collected.
//
// hostKeyAlgos restricts the offered host key algorithms, empty means the
// x/crypto defaults. hashKeys writes hashed host names.
func ScanHostKey(host string, timeout time.Duration, hostKeyAlgos []string, hashKeys bool) ([]byte, error) {
	var keys bytes.Buffer
	config := &ssh.ClientConfig{
		HostKeyCallback: func(hostname string, _ net.Addr, key ssh.PublicKey) error {
			keys.WriteString(knownHostsEntry(hostname, key, hashKeys))
			return nil
		},
		Timeout: timeout,
	}
	config.SetDefaults()
	SetPreferredKexAlgos(config)
	if len(hostKeyAlgos) > 0 {
		config.HostKeyAlgorithms = hostKeyAlgos
	}

	client, err := ssh.Dial("tcp", host, config)
	if err == nil {
		client.Close()
	}
	if keys.Len() > 0 {
		return keys.Bytes(), nil
	}
	return nil, err
}

func knownHostsEntry(hostname string, key ssh.PublicKey, hashed bool) string {
	h := knownhosts.Normalize(hostname)
	if hashed {
		h = knownhosts.HashHostname(h)
	}
	return h + " " + string(ssh.MarshalAuthorizedKey(key))
}
