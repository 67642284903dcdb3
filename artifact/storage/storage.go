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
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/fluxcd/artifact-publisher/artifact/config"
)

// Storage manages the versioned release archives of the local artifact directory.
// It provides methods for reconciling the directory against the current day,
// allocating versions and archiving build output.
type Storage struct {
	// BasePath is the local directory path where the archives are stored.
	BasePath string `json:"basePath"`

	// FillWidth is the number of digits the daily sequence is zero-padded to.
	FillWidth int `json:"fillWidth"`

	fs billy.Filesystem
}

// New creates the storage helper using the provided configuration options,
// operating on the OS filesystem. A relative storage path is resolved
// against the working directory.
func New(opts *config.Options) (*Storage, error) {
	if opts == nil {
		return nil, fmt.Errorf("options cannot be nil")
	}
	if opts.StoragePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	basePath, err := filepath.Abs(opts.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path %q: %w", opts.StoragePath, err)
	}
	return NewWithFilesystem(osfs.New("/"), basePath, opts.FillWidth)
}

// NewWithFilesystem creates a storage helper rooted at basePath inside the given filesystem.
// The directory does not need to exist, it is created on the first reconciliation.
func NewWithFilesystem(fs billy.Filesystem, basePath string, fillWidth int) (*Storage, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem cannot be nil")
	}
	if basePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if fillWidth < 1 {
		return nil, fmt.Errorf("fill width must be at least 1, got %d", fillWidth)
	}
	return &Storage{
		BasePath:  basePath,
		FillWidth: fillWidth,
		fs:        fs,
	}, nil
}

// NextVersion reconciles the storage directory for the day of now and
// allocates the version of the next archive of the given app.
// It returns the paths removed by the reconciliation.
func (s Storage) NextVersion(app string, now time.Time) (Version, []string, error) {
	date := FormatDate(now)
	count, deleted, err := s.Reconcile(app, date)
	if err != nil {
		return Version{}, deleted, err
	}
	return NewVersion(app, date, count, s.FillWidth), deleted, nil
}
