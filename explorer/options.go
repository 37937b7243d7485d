package explorer

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// The default bound on the number of transitions on one path
const DefaultMaxDepth = 1000

// How the explorer decides which actors to try from a state
type Reduction int

const (
	// Try every enabled actor
	ReductionNone Reduction = iota
	// Dynamic partial order reduction. Only actors whose step depends on a later step are tried.
	ReductionDPOR
)

func (r Reduction) String() string {
	switch r {
	case ReductionNone:
		return "none"
	case ReductionDPOR:
		return "dpor"
	}
	return "unknown"
}

// Parse the name of a reduction as returned by String
func ParseReduction(name string) (Reduction, error) {
	switch name {
	case "none", "":
		return ReductionNone, nil
	case "dpor":
		return ReductionDPOR, nil
	}
	return ReductionNone, errors.Errorf("explorer: unknown reduction %q", name)
}

// Configures an explorer
type Option interface {
	ExplorerOpt()
}

// Bounds the number of transitions on one path. Paths reaching the bound while actors are still runnable are
// reported as non-terminating. Values below 1 remove the bound.
// Default value is DefaultMaxDepth.
type MaxDepthOption struct {
	Depth int
}

func (MaxDepthOption) ExplorerOpt() {}

// Selects the reduction.
// Default value is ReductionNone.
type ReductionOption struct {
	Reduction Reduction
}

func (ReductionOption) ExplorerOpt() {}

// Enables the visited state reduction, storing at most Max snapshots. 0 disables it.
// Can not be combined with ReductionDPOR.
// Default value is 0.
type VisitedStatesOption struct {
	Max int
}

func (VisitedStatesOption) ExplorerOpt() {}

// Snapshot every Interval-th state so that backtracking replays fewer transitions. 0 only keeps the initial
// snapshot. Ignored when the visited state reduction is on since then every state has a snapshot.
// Default value is 0.
type CheckpointOption struct {
	Interval int
}

func (CheckpointOption) ExplorerOpt() {}

// Default value is logrus.StandardLogger().
type LoggerOption struct {
	Log logrus.FieldLogger
}

func (LoggerOption) ExplorerOpt() {}

// Default value is the tracer of the global OpenTelemetry provider.
type TracerOption struct {
	Tracer trace.Tracer
}

func (TracerOption) ExplorerOpt() {}

// Record the explored states in a tree. See DFS.Graph.
// Default value is off.
type GraphOption struct{}

func (GraphOption) ExplorerOpt() {}

func MaxDepth(depth int) Option {
	return MaxDepthOption{Depth: depth}
}

func WithReduction(r Reduction) Option {
	return ReductionOption{Reduction: r}
}

func MaxVisitedStates(max int) Option {
	return VisitedStatesOption{Max: max}
}

func Checkpoint(interval int) Option {
	return CheckpointOption{Interval: interval}
}

func WithLogger(log logrus.FieldLogger) Option {
	return LoggerOption{Log: log}
}

func WithTracer(tracer trace.Tracer) Option {
	return TracerOption{Tracer: tracer}
}

func RecordGraph() Option {
	return GraphOption{}
}

type options struct {
	maxDepth         int
	reduction        Reduction
	maxVisitedStates int
	checkpoint       int
	log              logrus.FieldLogger
	tracer           trace.Tracer
	graph            bool
}

func parseOptions(opts []Option) (options, error) {
	o := options{
		maxDepth: DefaultMaxDepth,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		switch t := opt.(type) {
		case MaxDepthOption:
			o.maxDepth = t.Depth
		case ReductionOption:
			if t.Reduction != ReductionNone && t.Reduction != ReductionDPOR {
				return o, errors.Errorf("explorer: unknown reduction %d", t.Reduction)
			}
			o.reduction = t.Reduction
		case VisitedStatesOption:
			if t.Max < 0 {
				return o, errors.Errorf("explorer: negative number of visited states %d", t.Max)
			}
			o.maxVisitedStates = t.Max
		case CheckpointOption:
			if t.Interval < 0 {
				return o, errors.Errorf("explorer: negative checkpoint interval %d", t.Interval)
			}
			o.checkpoint = t.Interval
		case LoggerOption:
			if t.Log != nil {
				o.log = t.Log
			}
		case TracerOption:
			o.tracer = t.Tracer
		case GraphOption:
			o.graph = true
		default:
			return o, errors.Errorf("explorer: unknown option %T", opt)
		}
	}
	if o.reduction == ReductionDPOR && o.maxVisitedStates > 0 {
		return o, errors.Wrap(ErrConfigurationConflict, "DPOR can not be combined with the visited state reduction")
	}
	return o, nil
}
