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

import "golang.org/x/crypto/ssh"

// PreferredKexAlgos lists the key exchanges offered to release hosts,
// modern curves first. The group14 and group exchange algorithms stay at
// the end for hosts running older OpenSSH versions.
var PreferredKexAlgos = []string{
	"curve25519-sha256@libssh.org",
	"ecdh-sha2-nistp256",
	"ecdh-sha2-nistp384",
	"ecdh-sha2-nistp521",
	"diffie-hellman-group14-sha256",
	"diffie-hellman-group14-sha1",
	"diffie-hellman-group-exchange-sha256",
}

// SetPreferredKexAlgos makes config offer PreferredKexAlgos.
func SetPreferredKexAlgos(config *ssh.ClientConfig) {
	if config != nil {
		config.KeyExchanges = PreferredKexAlgos
	}
}
