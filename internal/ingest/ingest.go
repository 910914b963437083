// Package ingest accepts new sessions for analysis: it validates metadata and
// media, stores the media, creates the pending job and hands it to the dispatcher.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mentor-insights-go/internal/dispatch"
	"mentor-insights-go/internal/logger"
	"mentor-insights-go/internal/types"
)

// ErrNotDispatched means the job was stored but could not be queued. It stays
// pending and is picked up again on the next startup.
var ErrNotDispatched = errors.New("analysis job created but not queued")

// Request is the metadata submitted with a session recording.
type Request struct {
	Subject  string `json:"subject" validate:"required,max=200"`
	Owner    string `json:"owner" validate:"required,max=200"`
	Filename string `json:"filename" validate:"required,media_ext"`
}

// ValidationError rejects a submission before any job exists.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Reason)
}

// JobCreator stores new jobs.
type JobCreator interface {
	Create(ctx context.Context, job *types.AnalysisJob) error
}

// Queue accepts job ids for processing.
type Queue interface {
	Submit(id string) (*dispatch.Ticket, error)
}

type Options struct {
	UploadDir         string
	MaxUploadBytes    int64
	AllowedExtensions []string
	Log               *logrus.Entry
}

type Ingestor struct {
	jobs      JobCreator
	queue     Queue
	uploadDir string
	maxBytes  int64
	allowed   map[string]bool
	validate  *validator.Validate
	log       *logrus.Entry
}

func New(jobs JobCreator, queue Queue, opts Options) *Ingestor {
	allowed := make(map[string]bool, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	in := &Ingestor{
		jobs:      jobs,
		queue:     queue,
		uploadDir: opts.UploadDir,
		maxBytes:  opts.MaxUploadBytes,
		allowed:   allowed,
		validate:  validator.New(),
		log:       log.WithField("component", "ingest"),
	}
	_ = in.validate.RegisterValidation("media_ext", func(fl validator.FieldLevel) bool {
		return in.allowed[extension(fl.Field().String())]
	})
	return in
}

// Submit stores media under the upload directory and starts a job for it.
func (in *Ingestor) Submit(ctx context.Context, req Request, media io.Reader) (*types.AnalysisJob, *dispatch.Ticket, error) {
	if err := in.check(req); err != nil {
		return nil, nil, err
	}
	if media == nil {
		return nil, nil, &ValidationError{Field: "Media", Reason: "missing"}
	}

	id := uuid.NewString()
	dir := filepath.Join(in.uploadDir, "videos")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create upload dir: %w", err)
	}
	dest := filepath.Join(dir, id+"."+extension(req.Filename))
	if err := in.save(dest, media); err != nil {
		return nil, nil, err
	}

	job, ticket, err := in.start(ctx, id, req, dest)
	if job == nil {
		_ = os.Remove(dest)
	}
	return job, ticket, err
}

// SubmitPath starts a job for media that is already on disk or reachable by URL.
func (in *Ingestor) SubmitPath(ctx context.Context, req Request, path string) (*types.AnalysisJob, *dispatch.Ticket, error) {
	if req.Filename == "" {
		req.Filename = path
	}
	if err := in.check(req); err != nil {
		return nil, nil, err
	}
	ref := path
	if !isURL(path) {
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil, &ValidationError{Field: "Media", Reason: "unreadable: " + err.Error()}
		}
		if info.IsDir() {
			return nil, nil, &ValidationError{Field: "Media", Reason: "is a directory"}
		}
		if info.Size() == 0 {
			return nil, nil, &ValidationError{Field: "Media", Reason: "empty"}
		}
		if in.maxBytes > 0 && info.Size() > in.maxBytes {
			return nil, nil, &ValidationError{Field: "Media", Reason: fmt.Sprintf("larger than %d bytes", in.maxBytes)}
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, &ValidationError{Field: "Media", Reason: "unreadable: " + err.Error()}
		}
		_ = f.Close()
		if abs, err := filepath.Abs(path); err == nil {
			ref = abs
		}
	}
	return in.start(ctx, uuid.NewString(), req, ref)
}

func (in *Ingestor) check(req Request) error {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Owner = strings.TrimSpace(req.Owner)
	err := in.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		ve := verrs[0]
		reason := ve.Tag()
		if ve.Tag() == "media_ext" {
			reason = fmt.Sprintf("extension %q not allowed", extension(req.Filename))
		}
		return &ValidationError{Field: ve.Field(), Reason: reason}
	}
	return &ValidationError{Field: "Request", Reason: err.Error()}
}

func (in *Ingestor) save(dest string, media io.Reader) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	src := media
	if in.maxBytes > 0 {
		src = io.LimitReader(media, in.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		_ = os.Remove(dest)
		return fmt.Errorf("write media file: %w", err)
	case n == 0:
		_ = os.Remove(dest)
		return &ValidationError{Field: "Media", Reason: "empty"}
	case in.maxBytes > 0 && n > in.maxBytes:
		_ = os.Remove(dest)
		return &ValidationError{Field: "Media", Reason: fmt.Sprintf("larger than %d bytes", in.maxBytes)}
	}
	return nil
}

func (in *Ingestor) start(ctx context.Context, id string, req Request, ref string) (*types.AnalysisJob, *dispatch.Ticket, error) {
	job := &types.AnalysisJob{
		ID:        id,
		Subject:   strings.TrimSpace(req.Subject),
		Owner:     strings.TrimSpace(req.Owner),
		InputRef:  ref,
		Status:    types.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := in.jobs.Create(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("create job: %w", err)
	}
	log := in.log.WithFields(logrus.Fields{"job_id": id, "owner": job.Owner})
	log.Info("job created")

	ticket, err := in.queue.Submit(id)
	if err != nil {
		log.WithError(err).Warn("job left pending")
		return job, nil, fmt.Errorf("%w: %v", ErrNotDispatched, err)
	}
	return job, ticket, nil
}

func extension(name string) string {
	if isURL(name) {
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func isURL(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
