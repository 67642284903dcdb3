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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
)

const (
	// DefaultFileMode is the permission mode applied to files inside an archive.
	DefaultFileMode os.FileMode = 0o644
	// DefaultDirMode is the permission mode applied to all directories inside an archive.
	DefaultDirMode os.FileMode = 0o755
	// DefaultExeFileMode is the permission mode applied to executable files inside an archive.
	DefaultExeFileMode os.FileMode = 0o755
)

// ErrInvalidSource is returned by Archive when the source is missing or not a directory.
var ErrInvalidSource = errors.New("invalid source dir")

// Artifact describes an archive written to the storage.
type Artifact struct {
	Version Version `json:"version"`

	// Path is the local path of the archive.
	Path string `json:"path"`

	// Digest is the sha256 digest of the archive.
	Digest string `json:"digest"`

	// Size is the number of bytes of the archive.
	Size int64 `json:"size"`

	// LastUpdateTime is the time the archive was packed.
	LastUpdateTime time.Time `json:"lastUpdateTime"`
}

// writeCounter is an implementation of io.Writer
// that only records the number of bytes written.
type writeCounter struct {
	written int64
}

// Write implements the io.Writer interface.
func (wc *writeCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.written += int64(n)
	return n, nil
}

// ArchiveFileFilter must return true if a file should not be included
// in the archive after inspecting the given path and/or os.FileInfo.
// The path is relative to the archived directory and uses the OS separator.
type ArchiveFileFilter func(p string, fi os.FileInfo) bool

// VCSPatterns are always excluded from archives.
var VCSPatterns = []string{".git/", ".hg/", ".svn/", ".bzr/"}

// IgnoreFilter returns an ArchiveFileFilter that filters out files matching
// VCSPatterns and any of the provided gitignore style patterns.
func IgnoreFilter(patterns []string) ArchiveFileFilter {
	var ps []gitignore.Pattern
	for _, p := range append(append([]string{}, VCSPatterns...), patterns...) {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	matcher := gitignore.NewMatcher(ps)
	return func(p string, fi os.FileInfo) bool {
		return matcher.Match(strings.Split(p, string(filepath.Separator)), fi.IsDir())
	}
}

// Archive atomically archives the given directory as a zip file to the path of the Version,
// excluding any ArchiveFileFilter matches. While archiving, any environment specific data
// is stripped from the file headers, and every entry gets packedAt as modification time.
// If the directory does not exist or is not a directory, ErrInvalidSource is returned
// and nothing is written.
func (s Storage) Archive(ctx context.Context, v Version, dir string, packedAt time.Time, filter ArchiveFileFilter) (_ *Artifact, err error) {
	if f, err := s.fs.Stat(dir); err != nil || !f.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, dir)
	}

	localPath := s.LocalPath(v.Filename())
	if localPath == "" {
		return nil, fmt.Errorf("invalid archive name: %s", v.Filename())
	}

	tf, err := s.fs.TempFile(s.BasePath, "."+v.Filename()+"-")
	if err != nil {
		return nil, err
	}
	tmpName := tf.Name()
	defer func() {
		if err != nil {
			s.fs.Remove(tmpName)
		}
	}()

	d := digest.Canonical.Digester()
	sz := &writeCounter{}
	mw := io.MultiWriter(d.Hash(), tf, sz)

	zw := zip.NewWriter(mw)
	if err := util.Walk(s.fs, dir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Ignore anything that is not a file or directories e.g. symlinks
		if m := fi.Mode(); !(m.IsRegular() || m.IsDir()) {
			return nil
		}

		relFilePath, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if relFilePath == "." {
			return nil
		}

		// Skip filtered files
		if filter != nil && filter(relFilePath, fi) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		header, err := zip.FileInfoHeader(fi)
		if err != nil {
			return err
		}
		sanitizeHeader(relFilePath, packedAt, header)

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := s.fs.Open(p)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}); err != nil {
		zw.Close()
		tf.Close()
		return nil, fmt.Errorf("failed to archive %s: %w", dir, err)
	}

	if err := zw.Close(); err != nil {
		tf.Close()
		return nil, err
	}
	if err := tf.Close(); err != nil {
		return nil, err
	}

	if err := s.fs.Rename(tmpName, localPath); err != nil {
		return nil, err
	}
	if ch, ok := s.fs.(billy.Change); ok {
		if err := ch.Chmod(localPath, DefaultFileMode); err != nil {
			return nil, err
		}
	}

	return &Artifact{
		Version:        v,
		Path:           localPath,
		Digest:         d.Digest().String(),
		Size:           sz.written,
		LastUpdateTime: packedAt,
	}, nil
}

// sanitizeHeader modifies the zip.FileHeader to be relative to the root of the
// archive and removes any environment specific data.
func sanitizeHeader(relP string, packedAt time.Time, h *zip.FileHeader) {
	// Zip entries always use forward slashes, directories end with one.
	h.Name = filepath.ToSlash(relP)
	if h.FileInfo().IsDir() {
		h.Name += "/"
		h.Method = zip.Store
	} else {
		h.Method = zip.Deflate
	}

	h.Modified = packedAt
	h.Comment = ""
	h.Extra = nil

	setDefaultMode(h)
}

// setDefaultMode sets the default mode for the given header.
func setDefaultMode(h *zip.FileHeader) {
	mode := h.Mode()
	switch {
	case mode.IsDir():
		h.SetMode(os.ModeDir | DefaultDirMode)
	case mode&0o111 != 0:
		h.SetMode(DefaultExeFileMode)
	default:
		h.SetMode(DefaultFileMode)
	}
}
