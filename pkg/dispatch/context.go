package dispatch

import (
	"time"

	"github.com/bluekornchips/gandalf/pkg/agentictools"
	"github.com/bluekornchips/gandalf/pkg/aggregator"
	"github.com/bluekornchips/gandalf/pkg/cache"
	"github.com/bluekornchips/gandalf/pkg/config"
	"github.com/bluekornchips/gandalf/pkg/gitactivity"
	"github.com/bluekornchips/gandalf/pkg/project"
)

// Context is the explicit, handler-facing dependency bundle (§9: "pass
// an explicit context struct into every handler, constructed once at
// startup; no process-wide mutable statics"). It is built once in
// serverapp.New and threaded into every Registry.Call.
type Context struct {
	Project     *project.Info
	Weights     *config.Watcher
	Cache       *cache.Cache
	Tools       *agentictools.Registry
	Git         *gitactivity.Tracker
	Aggregator  *aggregator.Aggregator
	GandalfHome string
	StartedAt   time.Time
}
