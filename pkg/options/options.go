package options

import (
	"log/slog"

	"github.com/go-biokey/biokey/pkg/authn"
	"github.com/go-biokey/biokey/pkg/biostate"
	"github.com/go-biokey/biokey/pkg/keystore"
	"github.com/go-biokey/biokey/pkg/lifecycle"
	"github.com/go-biokey/biokey/pkg/storage"
)

type Options struct {
	Logger     *slog.Logger
	Level      *slog.LevelVar
	Store      storage.Store
	Backend    keystore.Backend
	Challenger authn.Challenger
	Sensor     biostate.Sensor
	Sink       lifecycle.EventSink
	AppID      string
}

type Option func(*Options)

// WithLogger sets the logger used throughout the engine. Pair it with
// WithLevel, handing over the same LevelVar the logger's handler was built
// with; otherwise debug-mode toggles adjust a level var no handler observes.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithLevel supplies the level var the engine toggles when debug logging is
// switched on or off. It must be the one wired into the logger's handler for
// the toggle to have a visible effect (see WithLogger).
func WithLevel(level *slog.LevelVar) Option {
	return func(opts *Options) {
		opts.Level = level
	}
}

func WithStore(store storage.Store) Option {
	return func(opts *Options) {
		opts.Store = store
	}
}

func WithBackend(backend keystore.Backend) Option {
	return func(opts *Options) {
		opts.Backend = backend
	}
}

func WithChallenger(challenger authn.Challenger) Option {
	return func(opts *Options) {
		opts.Challenger = challenger
	}
}

func WithSensor(sensor biostate.Sensor) Option {
	return func(opts *Options) {
		opts.Sensor = sensor
	}
}

func WithEventSink(sink lifecycle.EventSink) Option {
	return func(opts *Options) {
		opts.Sink = sink
	}
}

// WithAppID sets the application identifier used for the generated default
// key alias.
func WithAppID(appID string) Option {
	return func(opts *Options) {
		opts.AppID = appID
	}
}

func NewOptions(opts ...Option) *Options {
	oo := &Options{
		Logger: slog.Default(),
		Level:  new(slog.LevelVar),
		AppID:  "biokey",
	}

	for _, opt := range opts {
		opt(oo)
	}

	if oo.Store == nil {
		oo.Store = storage.NewMemoryStore()
	}

	return oo
}
