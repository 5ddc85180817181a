package model

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Session runs one forward pass. *Server is the production implementation.
type Session interface {
	Run(input []float32) (*Scores, error)
	Close()
}

type LoadFunc func(ctx context.Context) (Session, error)

// Loader opens the model on first use and hands the same Session to every
// later caller. Concurrent first calls share one load. A failed load is
// not cached, so the next request tries again.
type Loader struct {
	source string
	load   LoadFunc
	logger *slog.Logger
	group  singleflight.Group

	mu      sync.RWMutex
	session Session
	closed  bool
}

var errLoaderClosed = errors.New("loader is closed")

func NewLoader(source string, load LoadFunc, logger *slog.Logger) *Loader {
	return &Loader{
		source: source,
		load:   load,
		logger: logger,
	}
}

func (l *Loader) Get(ctx context.Context) (Session, error) {
	if s := l.current(); s != nil {
		return s, nil
	}

	ch := l.group.DoChan("session", func() (interface{}, error) {
		if s := l.current(); s != nil {
			return s, nil
		}
		if l.isClosed() {
			return nil, errLoaderClosed
		}

		start := time.Now()
		l.logger.Info("loading model", "source", l.source)

		// The load outlives the caller that triggered it.
		s, err := l.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			s.Close()
			return nil, errLoaderClosed
		}
		l.session = s
		l.mu.Unlock()

		l.logger.Info("model loaded", "source", l.source, "elapsed", time.Since(start))
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, &ModelUnavailableError{Source: l.source, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			l.logger.Error("failed to load model", "source", l.source, "err", res.Err)
			return nil, &ModelUnavailableError{Source: l.source, Err: res.Err}
		}
		return res.Val.(Session), nil
	}
}

func (l *Loader) Loaded() bool {
	return l.current() != nil
}

// Close releases the session. A load still in flight closes its session
// as soon as it finishes, and later calls to Get fail.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.session != nil {
		l.session.Close()
		l.session = nil
	}
}

func (l *Loader) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

func (l *Loader) current() Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}
