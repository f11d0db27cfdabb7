package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/dialect"
)

// Engine pairs a dialect with a connection URL and hands out connections.
type Engine struct {
	dialect  dialect.Dialect
	original dialect.Dialect
	url      *core.URL

	logger *zap.Logger
	echo   bool

	handlers       []dberr.Handler
	invalidateHook func(c *Connection, wholePool bool)

	initMu      sync.Mutex
	initialized bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger; the default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEcho logs every executed statement and its parameters.
func WithEcho() Option {
	return func(e *Engine) { e.echo = true }
}

// WithErrorHandler appends a handler to the exception-translation chain.
// Handlers run in registration order and may reclassify disconnects,
// substitute replacement errors, or veto pool-wide invalidation.
func WithErrorHandler(h dberr.Handler) Option {
	return func(e *Engine) { e.handlers = append(e.handlers, h) }
}

// WithInvalidateHook registers the pool-boundary invalidation signal.
// wholePool reports whether every pooled connection should be discarded,
// or only the offending one.
func WithInvalidateHook(fn func(c *Connection, wholePool bool)) Option {
	return func(e *Engine) { e.invalidateHook = fn }
}

// New assembles an engine. The dialect may substitute a different
// implementation based on URL contents; when it does, the substituted
// dialect's EngineCreated hook fires first, then the original's.
func New(d dialect.Dialect, u *core.URL, opts ...Option) *Engine {
	final := d.ForURL(u)
	e := &Engine{
		dialect:  final,
		original: d,
		url:      u,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	final.EngineCreated(e)
	if final != d {
		d.EngineCreated(e)
	}
	return e
}

// Open looks the dialect up from the registry and assembles an engine.
func Open(name string, u *core.URL, opts ...Option) (*Engine, error) {
	d, err := dialect.Lookup(name)
	if err != nil {
		return nil, err
	}
	return New(d, u, opts...), nil
}

// URL returns the engine's connection URL.
func (e *Engine) URL() *core.URL { return e.url }

// Dialect returns the engine's dialect (the substituted one, when ForURL
// substituted).
func (e *Engine) Dialect() dialect.Dialect { return e.dialect }

// Connect establishes a new connection. The dialect's OnConnect callback
// runs exactly once per new raw connection, including the very first; the
// dialect's Initialize hook runs once per engine, on the first connection
// it succeeds on.
func (e *Engine) Connect() (*Connection, error) {
	args, err := e.dialect.CreateConnectArgs(e.url)
	if err != nil {
		return nil, fmt.Errorf("connect args for %s: %w", e.dialect.Name(), err)
	}

	raw, err := e.dialect.Connect(args)
	if err != nil {
		return nil, e.translateConnectError(err)
	}

	if cb := e.dialect.OnConnect(); cb != nil {
		if err := cb(raw); err != nil {
			e.dialect.DoClose(raw)
			return nil, e.translateConnectError(err)
		}
	}

	conn := &Connection{engine: e, raw: raw}

	if err := e.initialize(conn); err != nil {
		e.dialect.DoClose(raw)
		return nil, fmt.Errorf("initialize dialect %s: %w", e.dialect.Name(), err)
	}

	return conn, nil
}

// initialize runs the dialect's Initialize hook until it succeeds once.
// A failed attempt leaves the engine uninitialized, so the next Connect
// retries instead of replaying a stale error forever.
func (e *Engine) initialize(conn *Connection) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.initialized {
		return nil
	}
	if err := e.dialect.Initialize(conn); err != nil {
		return err
	}
	e.initialized = true
	return nil
}

// translateConnectError classifies a failure raised before any connection
// existed.
func (e *Engine) translateConnectError(raw error) error {
	kind := e.dialect.ClassifyError(raw)
	if e.dialect.IsDisconnect(raw, nil, nil) {
		kind = dberr.KindDisconnect
	}
	wrapped := dberr.New(kind, raw)

	ctx := &dberr.Context{Engine: e, Original: raw, Wrapped: wrapped}
	d := dberr.Fold(e.handlers, ctx, dberr.Decision{
		IsDisconnect:   kind == dberr.KindDisconnect,
		InvalidatePool: true,
	})
	if d.Replacement != nil {
		return d.Replacement
	}
	if d.IsDisconnect && wrapped.Kind != dberr.KindDisconnect {
		wrapped.Kind = dberr.KindDisconnect
	}
	return wrapped
}

func (e *Engine) logExec(stmt string, params any) {
	if e.echo {
		e.logger.Info("executing statement",
			zap.String("statement", stmt),
			zap.Any("parameters", params))
	}
}
