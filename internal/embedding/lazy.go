package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/resume-fit/internal/logger"
)

// Loader constructs an encoder. It may be slow (model download, ONNX
// session creation).
type Loader func(ctx context.Context) (Encoder, error)

// Lazy loads an encoder on first use and shares it afterwards. A failed load
// is not remembered, so the next request tries again. The load runs in the
// background: callers wait for it only as long as their context allows, and
// concurrent callers share one load.
type Lazy struct {
	provider string
	model    string
	load     Loader
	logger   *zap.Logger

	mu      sync.Mutex
	enc     Encoder
	pending *loadCall
	closed  bool
}

type loadCall struct {
	done chan struct{}
	enc  Encoder
	err  error
}

func NewLazy(provider, model string, load Loader, l *zap.Logger) *Lazy {
	return &Lazy{
		provider: provider,
		model:    model,
		load:     load,
		logger:   logger.WithCommonFields(l, provider, model),
	}
}

// Ready wraps an already constructed encoder.
func Ready(provider string, enc Encoder) *Lazy {
	return &Lazy{provider: provider, model: enc.Model(), enc: enc, logger: zap.NewNop()}
}

func (l *Lazy) Provider() string { return l.provider }

func (l *Lazy) Model() string { return l.model }

// Get returns the shared encoder, loading it if necessary. It returns
// ctx.Err() when ctx is done before the load finishes; the load itself keeps
// running for the next caller.
func (l *Lazy) Get(ctx context.Context) (Encoder, error) {
	l.mu.Lock()
	if l.enc != nil {
		enc := l.enc
		l.mu.Unlock()
		return enc, nil
	}
	if l.load == nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: no loader configured", ErrUnavailable)
	}

	call := l.pending
	if call == nil {
		call = &loadCall{done: make(chan struct{})}
		l.pending = call
		l.closed = false
		go l.run(context.WithoutCancel(ctx), call)
	}
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
		return call.enc, call.err
	}
}

func (l *Lazy) run(ctx context.Context, call *loadCall) {
	defer close(call.done)

	l.logger.Info("loading embedding model")
	enc, err := l.load(ctx)
	switch {
	case err != nil:
		l.logger.Error("failed to load embedding model", zap.Error(err))
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	case enc == nil:
		err = fmt.Errorf("%w: loader returned no encoder", ErrUnavailable)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = nil
	if err != nil {
		call.err = err
		return
	}
	if l.closed {
		// Close was called while loading.
		_ = enc.Close()
		call.err = fmt.Errorf("%w: encoder closed", ErrUnavailable)
		return
	}

	l.enc = enc
	call.enc = enc
	l.logger.Info("embedding model loaded", zap.Int("dimension", enc.Dimension()))
}

// Loaded returns the encoder if it has been loaded already.
func (l *Lazy) Loaded() (Encoder, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc, l.enc != nil
}

func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending != nil {
		l.closed = true
	}
	if l.enc == nil {
		return nil
	}
	err := l.enc.Close()
	l.enc = nil
	return err
}
