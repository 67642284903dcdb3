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
	"strings"
	"time"
)

const (
	// DateFormat is the layout of the date part of a version.
	DateFormat = "20060102"

	// ArchiveExt is the extension of every release archive.
	ArchiveExt = ".zip"
)

// Version identifies a release archive within its artifact family.
type Version struct {
	// App is the artifact family prefix.
	App string `json:"app"`

	// Date is the day of the release in the DateFormat layout.
	Date string `json:"date"`

	// Sequence is the zero-padded 1-based ordinal of the release within the day.
	Sequence string `json:"sequence"`
}

// NewVersion returns the Version for the given sequence count, zero-padded to fillWidth.
// Counts wider than fillWidth are used as-is.
func NewVersion(app, date string, count, fillWidth int) Version {
	return Version{
		App:      app,
		Date:     date,
		Sequence: fmt.Sprintf("%0*d", fillWidth, count),
	}
}

// String returns the version identifier in the form '<date><sequence>'.
func (v Version) String() string {
	return v.Date + v.Sequence
}

// Filename returns the archive file name in the form '<app>-<date><sequence>.zip'.
func (v Version) Filename() string {
	return v.App + "-" + v.String() + ArchiveExt
}

// FormatDate returns the date part of a version for the given time.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// ParseFilename splits an archive file name into its app and version.
func ParseFilename(name string) (app, version string, err error) {
	base, ok := strings.CutSuffix(name, ArchiveExt)
	if !ok {
		return "", "", fmt.Errorf("invalid archive name %q: missing %s extension", name, ArchiveExt)
	}
	app, version, ok = strings.Cut(base, "-")
	if !ok || app == "" {
		return "", "", fmt.Errorf("invalid archive name %q: missing app prefix", name)
	}
	if len(version) <= len(DateFormat) {
		return "", "", fmt.Errorf("invalid archive name %q: version %q is too short", name, version)
	}
	for _, r := range version {
		if r < '0' || r > '9' {
			return "", "", fmt.Errorf("invalid archive name %q: version %q is not numeric", name, version)
		}
	}
	if _, err := time.Parse(DateFormat, version[:len(DateFormat)]); err != nil {
		return "", "", fmt.Errorf("invalid archive name %q: %w", name, err)
	}
	return app, version, nil
}
