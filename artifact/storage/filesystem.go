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

import "io"

// Open opens the archive of the given Artifact for reading.
func (s Storage) Open(artifact Artifact) (io.ReadCloser, error) {
	return s.fs.Open(artifact.Path)
}

// Size returns the current size in bytes of the archive of the given Artifact.
func (s Storage) Size(artifact Artifact) (int64, error) {
	fi, err := s.fs.Stat(artifact.Path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
