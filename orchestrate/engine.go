package orchestrate

import (
	"go.uber.org/zap"

	"github.com/sun-rs/three/catalog"
	"github.com/sun-rs/three/config"
	"github.com/sun-rs/three/process"
	"github.com/sun-rs/three/session"
)

// Engine is the process-wide facade that the three
// orchestration primitives are built on.
type Engine struct {
	resolver *config.Resolver
	catalog  *catalog.Catalog
	coord    *session.Coordinator
	procOpts process.Options
	log      *zap.SugaredLogger
}

// NewEngine builds an Engine from its already-constructed dependencies. A
// nil logger is replaced with a no-op logger, so callers that don't care
// about structured logs (tests, one-off tools) can pass nil.
func NewEngine(resolver *config.Resolver, cat *catalog.Catalog, coord *session.Coordinator, procOpts process.Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{resolver: resolver, catalog: cat, coord: coord, procOpts: procOpts, log: logger.Sugar()}
}
