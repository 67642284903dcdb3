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
	"os"
	"regexp"

	"github.com/go-git/go-billy/v5/util"
)

// Decision is the retention outcome for a single entry of the storage directory.
type Decision int

const (
	// Delete marks an entry that belongs to neither today's family nor any other app of today.
	Delete Decision = iota
	// KeepSibling marks an archive of today's family of the app being published.
	KeepSibling
	// KeepForeignToday marks an archive of today that belongs to another app,
	// or to this app with a sequence wider than the fill width.
	KeepForeignToday
)

func (d Decision) String() string {
	switch d {
	case KeepSibling:
		return "sibling"
	case KeepForeignToday:
		return "foreign-today"
	default:
		return "delete"
	}
}

// FamilyPattern matches the archives of the given app and date whose
// sequence is exactly fillWidth digits long. It is anchored at both ends,
// so companions such as 'web-2026101801.zip.sha256' are not counted.
func FamilyPattern(app, date string, fillWidth int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^%s-%s\d{%d}%s$`,
		regexp.QuoteMeta(app), regexp.QuoteMeta(date), fillWidth, regexp.QuoteMeta(ArchiveExt)))
}

// TodayPattern matches the archives of any app for the given date, with a sequence of any length.
// It is not anchored, so any entry of today's archives, 'other-2026101805.zip.sha256' included,
// is kept.
func TodayPattern(date string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`%s\d+%s`, regexp.QuoteMeta(date), regexp.QuoteMeta(ArchiveExt)))
}

// RetentionPolicy classifies the entries of a storage directory for one app and day.
type RetentionPolicy struct {
	family *regexp.Regexp
	today  *regexp.Regexp
}

// NewRetentionPolicy returns the policy of the given app and date.
func NewRetentionPolicy(app, date string, fillWidth int) RetentionPolicy {
	return RetentionPolicy{
		family: FamilyPattern(app, date, fillWidth),
		today:  TodayPattern(date),
	}
}

// Classify returns the Decision for the entry with the given base name.
// The family pattern is tested first, then the today pattern.
func (p RetentionPolicy) Classify(name string) Decision {
	switch {
	case p.family.MatchString(name):
		return KeepSibling
	case p.today.MatchString(name):
		return KeepForeignToday
	default:
		return Delete
	}
}

// Reconcile prepares the storage directory for a new archive of app on date.
// A missing directory is created. Otherwise its immediate entries are listed once
// and every entry that matches neither today's family of app nor today's archives
// of any app is deleted. Deletion failures abort the reconciliation.
//
// The returned count is the number of today's family archives plus one,
// which is the sequence of the next archive.
func (s Storage) Reconcile(app, date string) (count int, deleted []string, err error) {
	count = 1

	fi, err := s.fs.Stat(s.BasePath)
	switch {
	case os.IsNotExist(err):
		if err := s.fs.MkdirAll(s.BasePath, 0o750); err != nil {
			return 0, nil, fmt.Errorf("failed to create storage dir %q: %w", s.BasePath, err)
		}
		return count, nil, nil
	case err != nil:
		return 0, nil, fmt.Errorf("failed to stat storage dir %q: %w", s.BasePath, err)
	case !fi.IsDir():
		return 0, nil, fmt.Errorf("invalid dir path: %s", s.BasePath)
	}

	entries, err := s.fs.ReadDir(s.BasePath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list storage dir %q: %w", s.BasePath, err)
	}

	policy := NewRetentionPolicy(app, date, s.FillWidth)
	for _, entry := range entries {
		switch policy.Classify(entry.Name()) {
		case KeepSibling:
			count++
		case KeepForeignToday:
		case Delete:
			p := s.fs.Join(s.BasePath, entry.Name())
			if entry.IsDir() {
				err = util.RemoveAll(s.fs, p)
			} else {
				err = s.fs.Remove(p)
			}
			if err != nil {
				return 0, deleted, fmt.Errorf("failed to remove stale artifact %q: %w", p, err)
			}
			deleted = append(deleted, p)
		}
	}
	return count, deleted, nil
}
