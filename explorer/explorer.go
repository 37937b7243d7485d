// Package explorer searches the interleavings of the actors of a checked program for safety violations.
//
// The search is stateless: the explorer only keeps the path from the initial state to the current one and
// moves the checked program back and forth through a driver.Driver, restoring snapshots and replaying
// transitions when it backtracks.
package explorer

import (
	"context"

	"github.com/pkg/errors"

	"mcheck/driver"
	"mcheck/transition"
)

// An exploration strategy
type Explorer interface {
	// Explore the interleavings of the checked program. Returns once a violation is found or the search is over.
	Run(ctx context.Context) (*Result, error)
	// The steps leading to the reported outcome
	RecordTrace() transition.RecordTrace
	// One human readable line per transition leading to the reported outcome
	TextualTrace() []string
}

type Strategy int

const (
	// Depth first search over an explicit stack of states
	StrategyDFS Strategy = iota
	// Unfolding based partial order reduction
	StrategyUDPOR
)

func (s Strategy) String() string {
	switch s {
	case StrategyDFS:
		return "dfs"
	case StrategyUDPOR:
		return "udpor"
	}
	return "unknown"
}

// Parse the name of a strategy as returned by String
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "dfs", "":
		return StrategyDFS, nil
	case "udpor":
		return StrategyUDPOR, nil
	}
	return StrategyDFS, errors.Errorf("explorer: unknown strategy %q", name)
}

// Create an explorer using the strategy
func New(strategy Strategy, drv driver.Driver, opts ...Option) (Explorer, error) {
	switch strategy {
	case StrategyDFS:
		d, err := NewDFS(drv, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	case StrategyUDPOR:
		u, err := NewUDPOR(drv, opts...)
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	return nil, errors.Errorf("explorer: unknown strategy %d", strategy)
}
