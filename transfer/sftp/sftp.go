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

// Package sftp uploads release archives to an SSH host over SFTP.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"regexp"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	kerrors "k8s.io/apimachinery/pkg/util/errors"

	pkgssh "github.com/fluxcd/artifact-publisher/ssh"
)

// ErrNotConnected is returned by the operations of a Transport
// that has not been connected.
var ErrNotConnected = errors.New("sftp: not connected")

// partialSuffix is appended to the name of an upload in progress.
const partialSuffix = ".part"

// Transport is an SFTP session with a release host.
type Transport struct {
	addr string
	opts pkgssh.ClientOptions

	conn   *ssh.Client
	client *sftp.Client
}

// New returns a Transport for the SSH server at addr (host:port).
func New(addr string, opts pkgssh.ClientOptions) *Transport {
	return &Transport{addr: addr, opts: opts}
}

// Connect dials the SSH server and starts the SFTP subsystem.
// The handshake is bound to the deadline of ctx and the client timeout.
func (t *Transport) Connect(ctx context.Context) error {
	if t.client != nil {
		return nil
	}

	cfg, err := pkgssh.NewClientConfig(t.opts)
	if err != nil {
		return err
	}

	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", t.addr, err)
	}

	deadline, ok := ctx.Deadline()
	if cfg.Timeout > 0 {
		if d := time.Now().Add(cfg.Timeout); !ok || d.Before(deadline) {
			deadline, ok = d, true
		}
	}
	if ok {
		_ = conn.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, t.addr, cfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s failed: %w", t.addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	sshClient := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return fmt.Errorf("failed to start sftp session: %w", err)
	}

	t.conn = sshClient
	t.client = client
	return nil
}

// Prune removes the regular files of dir whose name does not match keep.
// Directories are never removed. A missing dir is created.
func (t *Transport) Prune(ctx context.Context, dir string, keep *regexp.Regexp) ([]string, error) {
	if t.client == nil {
		return nil, ErrNotConnected
	}
	if dir == "" {
		dir = "."
	}

	entries, err := t.client.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := t.client.MkdirAll(dir); err != nil {
				return nil, fmt.Errorf("failed to create remote dir %q: %w", dir, err)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list remote dir %q: %w", dir, err)
	}

	var pruned []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		if !entry.Mode().IsRegular() || keep.MatchString(entry.Name()) {
			continue
		}
		p := path.Join(dir, entry.Name())
		if err := t.client.Remove(p); err != nil {
			return pruned, fmt.Errorf("failed to remove remote file %q: %w", p, err)
		}
		pruned = append(pruned, p)
	}
	return pruned, nil
}

// Upload writes r to a partial file next to remotePath, and renames it
// to remotePath once the content is complete.
func (t *Transport) Upload(ctx context.Context, r io.Reader, remotePath string) (err error) {
	if t.client == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmpPath := path.Join(path.Dir(remotePath), "."+path.Base(remotePath)+partialSuffix)
	f, err := t.client.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to create remote file %q: %w", tmpPath, err)
	}
	defer func() {
		if err != nil {
			_ = t.client.Remove(tmpPath)
		}
	}()

	if _, err := f.ReadFrom(&contextReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		return fmt.Errorf("failed to write remote file %q: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close remote file %q: %w", tmpPath, err)
	}

	if err := t.client.PosixRename(tmpPath, remotePath); err != nil {
		return fmt.Errorf("failed to rename %q to %q: %w", tmpPath, remotePath, err)
	}
	return nil
}

// Close ends the SFTP session and the SSH connection.
func (t *Transport) Close() error {
	var errs []error
	if t.client != nil {
		if err := t.client.Close(); err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, fmt.Errorf("failed to close sftp session: %w", err))
		}
		t.client = nil
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
			errs = append(errs, fmt.Errorf("failed to close ssh connection: %w", err))
		}
		t.conn = nil
	}
	return kerrors.NewAggregate(errs)
}

// contextReader stops reading once its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
