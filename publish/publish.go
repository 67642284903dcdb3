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

// Package publish runs the release pipeline: reconcile the local storage,
// allocate the next version, archive the build output, upload the archive
// and announce it.
package publish

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-logr/logr"
	kerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/fluxcd/artifact-publisher/artifact/config"
	"github.com/fluxcd/artifact-publisher/artifact/storage"
	"github.com/fluxcd/artifact-publisher/logger"
	"github.com/fluxcd/artifact-publisher/masktoken"
	"github.com/fluxcd/artifact-publisher/notifier"
	"github.com/fluxcd/artifact-publisher/transfer"
)

// Stage names reported by StageError.
const (
	StageRetention = "retention"
	StageArchive   = "archive"
	StageConnect   = "connect"
	StagePrune     = "prune"
	StageUpload    = "upload"
	StageStat      = "stat"
)

// StageError is a fatal error of a pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Config is the immutable configuration of a Publisher.
type Config struct {
	// App is the artifact family prefix.
	App string
	// SourceDir is the directory archived on every run.
	SourceDir string
	// RemoteDir is the directory the archives are uploaded to.
	RemoteDir string
	// DownloadHost is the URL prefix the archives are downloaded from.
	DownloadHost string
	// Ignore holds gitignore style patterns excluded from the archive.
	Ignore []string
	// Card is the template of the notification card.
	Card notifier.Template
}

// Result summarizes a run.
type Result struct {
	Version  string   `json:"version,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Path     string   `json:"path,omitempty"`
	Size     int64    `json:"size,omitempty"`
	Digest   string   `json:"digest,omitempty"`
	URL      string   `json:"url,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
	Pruned   []string `json:"pruned,omitempty"`

	// Skipped is true when the source dir was missing and nothing was published.
	Skipped bool `json:"skipped"`
	// Notified is true when the notification card was delivered.
	Notified bool `json:"notified"`
}

// Publisher runs the release pipeline of one app.
type Publisher struct {
	cfg       Config
	storage   *storage.Storage
	transport transfer.Transport
	sender    notifier.Sender
	secrets   []string
	log       logr.Logger
	now       func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger of the Publisher.
func WithLogger(log logr.Logger) Option {
	return func(p *Publisher) {
		p.log = log
	}
}

// WithSender enables notifications through the given sender.
func WithSender(s notifier.Sender) Option {
	return func(p *Publisher) {
		p.sender = s
	}
}

// WithSecrets sets the values redacted from the returned and logged errors.
func WithSecrets(secrets ...string) Option {
	return func(p *Publisher) {
		p.secrets = append(p.secrets, secrets...)
	}
}

// WithClock sets the clock the version date and the packing time are read from.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// New returns a Publisher for the given configuration.
func New(cfg Config, st *storage.Storage, tr transfer.Transport, opts ...Option) (*Publisher, error) {
	if cfg.App == "" {
		return nil, errors.New("app name cannot be empty")
	}
	if cfg.SourceDir == "" {
		return nil, errors.New("source dir cannot be empty")
	}
	if st == nil {
		return nil, errors.New("storage cannot be nil")
	}
	if tr == nil {
		return nil, errors.New("transport cannot be nil")
	}

	cfg.Ignore = append([]string(nil), cfg.Ignore...)
	p := &Publisher{
		cfg:       cfg,
		storage:   st,
		transport: tr,
		log:       logr.Discard(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// NewFromOptions validates the options and returns a Publisher
// writing to the OS filesystem.
func NewFromOptions(opts *config.Options, log logr.Logger) (*Publisher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	st, err := storage.New(opts)
	if err != nil {
		return nil, err
	}
	sourceDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source dir %q: %w", opts.SourceDir, err)
	}
	tr, err := transfer.New(opts)
	if err != nil {
		return nil, err
	}

	pOpts := []Option{
		WithLogger(log),
		WithSecrets(opts.Secrets()...),
	}
	if opts.Notify.Webhook != "" {
		sender, err := notifier.NewDingTalk(notifier.Options{
			Webhook:     opts.Notify.Webhook,
			AccessToken: opts.Notify.AccessToken,
			Secret:      opts.Notify.Secret,
			Retries:     opts.Notify.Retries,
			Timeout:     opts.Notify.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		pOpts = append(pOpts, WithSender(sender))
	} else {
		log.Info("notify webhook is not set, notifications are disabled")
	}

	return New(Config{
		App:          opts.AppName,
		SourceDir:    sourceDir,
		RemoteDir:    opts.RemoteDir,
		DownloadHost: opts.GetDownloadHost(),
		Ignore:       opts.Ignore,
		Card: notifier.Template{
			Title:    opts.Card.Title,
			Subtitle: opts.Card.Subtitle,
			Body:     notifier.Literal(opts.Card.Body),
		},
	}, st, tr, pOpts...)
}

// Run executes the pipeline once. A missing source dir ends the run with a
// skipped Result and no error. Any other failure before the upload completed
// is returned as a *StageError. Notification failures are logged only.
func (p *Publisher) Run(ctx context.Context) (*Result, error) {
	res, err := p.run(ctx)
	return res, masktoken.MaskError(err, p.secrets...)
}

func (p *Publisher) run(ctx context.Context) (*Result, error) {
	log := p.log.WithValues("app", p.cfg.App)
	res := &Result{}

	now := p.now()
	v, deleted, err := p.storage.NextVersion(p.cfg.App, now)
	res.Deleted = deleted
	for _, d := range deleted {
		log.V(logger.DebugLevel).Info("stale artifact removed", "path", d)
	}
	if err != nil {
		return res, &StageError{Stage: StageRetention, Err: err}
	}
	log = log.WithValues("version", v.String())
	log.Info("version allocated", "filename", v.Filename(), "removed", len(deleted))

	art, err := p.storage.Archive(ctx, v, p.cfg.SourceDir, now, storage.IgnoreFilter(p.cfg.Ignore))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidSource) {
			log.Error(err, "nothing to publish, source dir is missing or not a directory", "sourceDir", p.cfg.SourceDir)
			res.Skipped = true
			return res, nil
		}
		return res, &StageError{Stage: StageArchive, Err: err}
	}
	res.Version = v.String()
	res.Filename = v.Filename()
	res.Path = art.Path
	res.Digest = art.Digest
	log.V(logger.DebugLevel).Info("artifact archived", "path", art.Path, "digest", art.Digest)

	remotePath := storage.RemotePath(p.cfg.RemoteDir, v.Filename())
	pruned, err := p.upload(ctx, art, storage.TodayPattern(v.Date), remotePath)
	res.Pruned = pruned
	if err != nil {
		return res, err
	}
	log.Info("artifact uploaded", "remotePath", remotePath, "pruned", len(pruned))

	size, err := p.storage.Size(*art)
	if err != nil {
		return res, &StageError{Stage: StageStat, Err: err}
	}
	res.Size = size
	res.URL = storage.DownloadURL(p.cfg.DownloadHost, v.Filename())

	if p.sender == nil {
		return res, nil
	}
	card := notifier.BuildCard(p.cfg.Card, notifier.CardBody{
		Version: v.String(),
		Size:    notifier.FormatSize(size),
		Date:    notifier.FormatDate(art.LastUpdateTime),
		Digest:  art.Digest,
		URL:     res.URL,
	})
	if err := p.sender.Send(ctx, card); err != nil {
		log.Error(masktoken.MaskError(err, p.secrets...), "notification failed, the artifact is published")
		return res, nil
	}
	res.Notified = true
	log.V(logger.DebugLevel).Info("notification sent")
	return res, nil
}

// upload connects the transport, prunes the remote dir and uploads the
// archive. The transport is always closed. A close error is aggregated into
// the StageError of a failed step, and only logged after a successful upload.
func (p *Publisher) upload(ctx context.Context, art *storage.Artifact, keep *regexp.Regexp, remotePath string) (pruned []string, err error) {
	defer func() {
		cerr := p.transport.Close()
		if cerr == nil {
			return
		}
		cerr = fmt.Errorf("failed to close transport: %w", cerr)
		if err == nil {
			p.log.Error(masktoken.MaskError(cerr, p.secrets...), "artifact uploaded but the connection did not close cleanly")
			return
		}
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			stageErr.Err = kerrors.NewAggregate([]error{stageErr.Err, cerr})
			return
		}
		err = kerrors.NewAggregate([]error{err, cerr})
	}()

	if err := p.transport.Connect(ctx); err != nil {
		return nil, &StageError{Stage: StageConnect, Err: err}
	}

	pruned, err = p.transport.Prune(ctx, p.cfg.RemoteDir, keep)
	if err != nil {
		return pruned, &StageError{Stage: StagePrune, Err: err}
	}

	f, err := p.storage.Open(*art)
	if err != nil {
		return pruned, &StageError{Stage: StageUpload, Err: err}
	}
	defer f.Close()

	if err := p.transport.Upload(ctx, f, remotePath); err != nil {
		return pruned, &StageError{Stage: StageUpload, Err: err}
	}
	return pruned, nil
}
