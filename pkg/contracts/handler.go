package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Worker runs until ctx is cancelled.
type Worker interface {
	Start(ctx context.Context) error
}

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error
