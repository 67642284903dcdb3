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

package notifier

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateFormat is the layout of CardBody.Date.
	DateFormat = "2006-01-02 15:04:05"

	// DownloadButtonTitle is the title of the single button of every card.
	DownloadButtonTitle = "download"
)

// Button is a link rendered at the bottom of an ActionCard.
type Button struct {
	Title     string `json:"title"`
	ActionURL string `json:"actionURL"`
}

// ActionCard is a markdown card with buttons.
type ActionCard struct {
	Title          string   `json:"title"`
	Text           string   `json:"text"`
	HideAvatar     bool     `json:"hideAvatar"`
	BtnOrientation bool     `json:"btnOrientation"`
	Buttons        []Button `json:"btns"`
}

// CardBody holds the facts of a published archive a card body is rendered from.
type CardBody struct {
	// Version is the archive version, e.g. '2026101801'.
	Version string
	// Size is the archive size formatted by FormatSize.
	Size string
	// Date is the packing time formatted with DateFormat.
	Date string
	// Digest is the sha256 digest of the archive.
	Digest string
	// URL is the download URL of the archive.
	URL string
}

// Body is the body of a card Template: either a Literal or a Computed body.
type Body interface {
	isBody()
}

// Literal is a body used verbatim. An empty Literal selects the default body.
type Literal string

func (Literal) isBody() {}

// Computed is a body rendered from the facts of the published archive.
type Computed func(CardBody) string

func (Computed) isBody() {}

// Template is the static part of a notification card.
type Template struct {
	Title    string
	Subtitle string
	Body     Body
}

// FormatSize returns the size in mebibytes with two decimals, e.g. '1.50M'.
func FormatSize(size int64) string {
	return fmt.Sprintf("%.2fM", float64(size)/(1<<20))
}

// FormatDate returns t formatted with DateFormat.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// DefaultBody renders the version, size and packing date as a code block.
func DefaultBody(b CardBody) string {
	var sb strings.Builder
	sb.WriteString("```\n")
	fmt.Fprintf(&sb, "version: %s\n", b.Version)
	fmt.Fprintf(&sb, "size:    %s\n", b.Size)
	fmt.Fprintf(&sb, "date:    %s\n", b.Date)
	sb.WriteString("```")
	return sb.String()
}

// ResolveBody returns the body text of the template for the given facts.
func (t Template) ResolveBody(b CardBody) string {
	switch body := t.Body.(type) {
	case Computed:
		if body != nil {
			return body(b)
		}
	case Literal:
		if body != "" {
			return string(body)
		}
	}
	return DefaultBody(b)
}

// BuildCard returns the card announcing the archive described by b,
// with a single download button pointing at b.URL.
func BuildCard(t Template, b CardBody) ActionCard {
	text := fmt.Sprintf("#### %s\n\n%s\n\n---\n\n%s", t.Title, t.Subtitle, t.ResolveBody(b))
	return ActionCard{
		Title: t.Title,
		Text:  text,
		Buttons: []Button{
			{Title: DownloadButtonTitle, ActionURL: b.URL},
		},
	}
}
