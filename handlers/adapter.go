package handlers

import (
	"context"

	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/soroosh-tanzadeh/bgqueue/runner"

	log "github.com/sirupsen/logrus"
)

// Payload keys understood by the adapters.
const (
	PayloadPlugin = "plugin"
	PayloadPath   = "path"
)

// Worker performs the real work for one queued subject. It returns Retry
// while the subject is not ready yet.
type Worker interface {
	Work(ctx context.Context, kind Kind, item contracts.QueueItem) (contracts.Result, error)
}

// Excluder records a permanent failure so the subject is skipped by future
// automatic processing.
type Excluder interface {
	Exclude(ctx context.Context, kind Kind, item contracts.QueueItem) error
}

// Adapter is the TaskHandler of one job kind.
type Adapter struct {
	Kind        Kind
	MaxAttempts int

	worker   Worker
	excluder Excluder
	accept   func(item contracts.QueueItem) bool
}

func newAdapter(kind Kind, worker Worker, excluder Excluder) *Adapter {
	return &Adapter{
		Kind:        kind,
		MaxAttempts: kind.DefaultMaxAttempts(),
		worker:      worker,
		excluder:    excluder,
	}
}

// NewMedia handles media library attachments; the subject is the attachment id.
func NewMedia(worker Worker, excluder Excluder) *Adapter {
	return newAdapter(KindMedia, worker, excluder)
}

// NewImage handles single ad hoc images; the payload carries the file path.
func NewImage(worker Worker, excluder Excluder) *Adapter {
	a := newAdapter(KindImage, worker, excluder)
	a.accept = func(item contracts.QueueItem) bool {
		return item.Payload.String(PayloadPath) != ""
	}
	return a
}

// NewGallery handles uploads made through a third party gallery plugin; the
// payload names the plugin.
func NewGallery(worker Worker, excluder Excluder) *Adapter {
	a := newAdapter(KindGallery, worker, excluder)
	a.accept = func(item contracts.QueueItem) bool {
		return item.Payload.String(PayloadPlugin) != ""
	}
	return a
}

// NewMetadata refreshes attachment metadata.
func NewMetadata(worker Worker, excluder Excluder) *Adapter {
	return newAdapter(KindMetadata, worker, excluder)
}

func New(kind Kind, worker Worker, excluder Excluder) *Adapter {
	switch kind {
	case KindImage:
		return NewImage(worker, excluder)
	case KindGallery:
		return NewGallery(worker, excluder)
	case KindMetadata:
		return NewMetadata(worker, excluder)
	}
	return NewMedia(worker, excluder)
}

func (a *Adapter) QueueOptions() []runner.QueueOption {
	return []runner.QueueOption{runner.WithMaxAttempts(a.MaxAttempts)}
}

func (a *Adapter) Task(ctx context.Context, item contracts.QueueItem) (contracts.Result, error) {
	if a.accept != nil && !a.accept(item) {
		// Nothing can ever be done with it.
		log.WithField("kind", a.Kind).WithField("item_id", item.ID).WithField("subject_id", item.SubjectID).WithField("attempts", item.Attempts).Warn("dropping malformed item")
		return contracts.Completed(), nil
	}
	return a.worker.Work(ctx, a.Kind, item)
}

func (a *Adapter) Failure(ctx context.Context, item contracts.QueueItem) {
	if a.excluder == nil {
		return
	}
	if err := a.excluder.Exclude(ctx, a.Kind, item); err != nil {
		log.WithError(err).WithField("kind", a.Kind).WithField("item_id", item.ID).WithField("subject_id", item.SubjectID).WithField("attempts", item.Attempts).Error("can not exclude subject")
	}
}
