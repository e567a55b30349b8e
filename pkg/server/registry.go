package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sanisideup/fxrates/pkg/logger"
	"github.com/sanisideup/fxrates/pkg/metrics"
	"github.com/sanisideup/fxrates/pkg/refresh"
	"go.uber.org/zap"
)

type view struct {
	id       string
	ctrl     *refresh.Controller
	lastSeen time.Time
}

// Registry keeps one refresh controller per mounted view
type Registry struct {
	mu    sync.Mutex
	views map[string]*view

	fetcher     refresh.Fetcher
	idleTimeout time.Duration
	logger      *zap.Logger
	metrics     *metrics.Recorder
	now         func() time.Time
}

// NewRegistry creates an empty registry. Views idle for longer than
// idleTimeout are closed by Reap; 0 disables reaping.
func NewRegistry(fetcher refresh.Fetcher, idleTimeout time.Duration, log *zap.Logger, rec *metrics.Recorder) *Registry {
	return &Registry{
		views:       make(map[string]*view),
		fetcher:     fetcher,
		idleTimeout: idleTimeout,
		logger:      logger.OrNop(log),
		metrics:     rec,
		now:         time.Now,
	}
}

// Open mounts a new view and returns its id
func (r *Registry) Open(opts refresh.Options) (string, *refresh.Controller) {
	id := uuid.NewString()
	opts.Logger = r.logger.With(zap.String("view_id", id))
	opts.Metrics = r.metrics

	ctrl := refresh.New(r.fetcher, opts)

	r.mu.Lock()
	r.views[id] = &view{id: id, ctrl: ctrl, lastSeen: r.now()}
	r.mu.Unlock()

	r.metrics.ViewOpened()
	ctrl.Start()

	r.logger.Info("view opened", zap.String("view_id", id))
	return id, ctrl
}

// Get returns the controller of a view and marks it as recently used
func (r *Registry) Get(id string) (*refresh.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.views[id]
	if !ok {
		return nil, false
	}
	v.lastSeen = r.now()
	return v.ctrl, true
}

// Remove unmounts a view. It reports whether the view existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.closeView(v, "view closed")
	return true
}

// Len returns the number of mounted views
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Reap closes views idle longer than the idle timeout and returns how many
func (r *Registry) Reap() int {
	if r.idleTimeout <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	var idle []*view
	for id, v := range r.views {
		if v.lastSeen.Before(cutoff) {
			idle = append(idle, v)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, v := range idle {
		r.closeView(v, "idle view reaped")
	}
	return len(idle)
}

// RunReaper calls Reap periodically until ctx is cancelled
func (r *Registry) RunReaper(ctx context.Context) {
	if r.idleTimeout <= 0 {
		return
	}

	every := r.idleTimeout / 2
	if every < time.Second {
		every = time.Second
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}

// CloseAll unmounts every view
func (r *Registry) CloseAll() {
	r.mu.Lock()
	views := make([]*view, 0, len(r.views))
	for id, v := range r.views {
		views = append(views, v)
		delete(r.views, id)
	}
	r.mu.Unlock()

	for _, v := range views {
		r.closeView(v, "view closed on shutdown")
	}
}

func (r *Registry) closeView(v *view, msg string) {
	v.ctrl.Close()
	r.metrics.ViewClosed()
	r.logger.Info(msg, zap.String("view_id", v.id))
}
