package coprocessor

import (
	"context"
	"log/slog"
	"sync"

	"go.uber.org/atomic"
)

// LazyEngine builds an Engine in the background. Until the build finishes
// every operation fails with ErrEngineLoading; a failed build is reported by
// Status and returned from every operation.
type LazyEngine struct {
	build func() (Engine, error)
	log   *slog.Logger

	once    sync.Once
	loading atomic.Bool
	engine  atomic.Value
	initErr atomic.Error
}

// NewLazyEngine wraps build. Nothing runs until Start.
func NewLazyEngine(build func() (Engine, error), log *slog.Logger) *LazyEngine {
	return &LazyEngine{build: build, log: log}
}

// Start launches the build once. Later calls are no-ops.
func (l *LazyEngine) Start(ctx context.Context) {
	l.once.Do(func() {
		l.loading.Store(true)
		go func() {
			defer l.loading.Store(false)

			l.log.Info("Initializing FHE engine")
			engine, err := l.build()
			if err != nil {
				l.log.Error("FHE engine initialization failed", "err", err)
				l.initErr.Store(err)
				return
			}
			if ctx.Err() != nil {
				l.initErr.Store(ctx.Err())
				return
			}
			l.engine.Store(engine)
			l.log.Info("FHE engine ready")
		}()
	})
}

// Status reports whether the engine is still loading and the init error, if any.
func (l *LazyEngine) Status() (loading bool, err error) {
	return l.loading.Load(), l.initErr.Load()
}

// Ready reports whether operations can run.
func (l *LazyEngine) Ready() bool {
	_, ok := l.engine.Load().(Engine)
	return ok
}

func (l *LazyEngine) get() (Engine, error) {
	if engine, ok := l.engine.Load().(Engine); ok {
		return engine, nil
	}
	if err := l.initErr.Load(); err != nil {
		return nil, err
	}
	return nil, ErrEngineLoading
}

func (l *LazyEngine) EncryptUint32(value uint32) ([]byte, error) {
	engine, err := l.get()
	if err != nil {
		return nil, err
	}
	return engine.EncryptUint32(value)
}

func (l *LazyEngine) Eq(lhs, rhs []byte) ([]byte, error) {
	engine, err := l.get()
	if err != nil {
		return nil, err
	}
	return engine.Eq(lhs, rhs)
}

func (l *LazyEngine) Decrypt(ct []byte) (uint64, error) {
	engine, err := l.get()
	if err != nil {
		return 0, err
	}
	return engine.Decrypt(ct)
}
