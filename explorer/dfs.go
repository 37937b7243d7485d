package explorer

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mcheck/driver"
	"mcheck/replay"
	"mcheck/state"
	"mcheck/transition"
	"mcheck/tree"
	"mcheck/visited"
)

type Phase int

const (
	PhaseInit Phase = iota
	PhaseRunning
	PhaseBacktracking
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseRunning:
		return "RUNNING"
	case PhaseBacktracking:
		return "BACKTRACKING"
	case PhaseDone:
		return "DONE"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Depth first exploration over an explicit stack of states.
//
// The stack holds the path from the initial state to the current state. The outgoing transition of every
// state but the top one is the transition taken to reach the state above it.
// A DFS explores once. It is not safe for concurrent use.
type DFS struct {
	drv    driver.Driver
	opts   options
	log    logrus.FieldLogger
	tracer trace.Tracer

	phase   Phase
	stack   []*state.State
	visited *visited.VisitedStateSet
	nextNum int64
	stats   Stats

	violation *driver.Violation
	trace     []transition.Transition
	// The first path cut at the maximum depth
	truncated []transition.Transition

	graph *tree.Tree[GraphNode]
	nodes map[int64]*tree.Tree[GraphNode]

	// Under DPOR, the happens-before clock of the outgoing transition of every state on the stack
	clocks []clock

	// Called with the stack after every push
	onPush func([]*state.State)
}

// Create a depth first explorer.
//
// Returns ErrConfigurationConflict if DPOR is combined with the visited state reduction.
func NewDFS(drv driver.Driver, opts ...Option) (*DFS, error) {
	o, err := parseOptions(opts)
	if err != nil {
		return nil, err
	}
	d := &DFS{
		drv:    drv,
		opts:   o,
		log:    o.log.WithField("explorer", "dfs"),
		tracer: o.tracer,
		stack:  []*state.State{},
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer("mcheck/explorer")
	}
	if o.maxVisitedStates > 0 {
		d.visited = visited.NewVisitedStateSet(o.maxVisitedStates, d.log)
	}
	return d, nil
}

func (d *DFS) Phase() Phase {
	return d.phase
}

// Explore the interleavings reachable from the current state of the driver.
//
// The search stops at the first violation. Violations and non-termination are reported in the Result.
// An error is returned when the driver fails, when ctx is done, or when the bookkeeping of the explorer is
// corrupted (a *ProgrammingError). The result then holds the counters of the partial exploration.
func (d *DFS) Run(ctx context.Context) (result *Result, err error) {
	if d.phase != PhaseInit {
		return nil, ErrAlreadyRun
	}
	ctx, span := d.tracer.Start(ctx, "explorer.Run", trace.WithAttributes(
		attribute.String("mcheck.reduction", d.opts.reduction.String()),
		attribute.Int("mcheck.max_depth", d.opts.maxDepth),
		attribute.Int("mcheck.max_visited_states", d.opts.maxVisitedStates),
	))
	defer span.End()

	// The result holds the counters on every path, including after a panic
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*ProgrammingError)
			if !ok {
				panic(r)
			}
			d.log.WithError(pe).Error("Exploration aborted")
			err = errors.WithStack(pe)
		}
		d.phase = PhaseDone
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		result = d.result()
		span.SetAttributes(
			attribute.String("mcheck.outcome", result.Outcome.String()),
			attribute.Int64("mcheck.expanded_states", result.Stats.ExpandedStates),
			attribute.Int64("mcheck.duplicates", result.Stats.Duplicates),
		)
	}()

	if err = d.init(ctx); err != nil {
		return
	}
	if err = d.explore(ctx); err != nil {
		return
	}
	d.log.WithFields(logrus.Fields{
		"outcome":  d.outcome(),
		"expanded": d.stats.ExpandedStates,
		"dups":     d.stats.Duplicates,
	}).Info("Exploration done")
	return
}

func (d *DFS) RecordTrace() transition.RecordTrace {
	return transition.RecordOf(d.currentTrace())
}

func (d *DFS) TextualTrace() []string {
	return textualTrace(d.currentTrace())
}

// The explored states. nil unless the explorer was created with RecordGraph.
func (d *DFS) Graph() *tree.Tree[GraphNode] {
	return d.graph
}

// The explored states in Newick format. Empty unless the explorer was created with RecordGraph.
func (d *DFS) Newick() string {
	if d.graph == nil {
		return ""
	}
	return d.graph.Newick(graphLabel)
}

func (d *DFS) init(ctx context.Context) error {
	actors, err := d.drv.InitialActors(ctx)
	if err != nil {
		return errors.Wrap(err, "explorer: get initial actors")
	}
	root := state.New(d.newNum(), actors)
	snap, err := d.drv.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "explorer: snapshot initial state")
	}
	if d.visited != nil {
		d.visited.AddVisitedState(root, snap)
	} else {
		root.SetSnapshot(snap)
	}
	d.considerActors(root)

	if d.opts.graph {
		d.graph = tree.New(GraphNode{Num: root.Num, EqualTo: -1})
		d.nodes = map[int64]*tree.Tree[GraphNode]{root.Num: d.graph}
	}
	d.push(root)
	d.log.WithFields(logrus.Fields{
		"actors":    root.ActorCount(),
		"reduction": d.opts.reduction,
		"maxDepth":  d.opts.maxDepth,
	}).Info("Start exploration")

	d.phase = PhaseRunning
	if isDeadlock(root) {
		d.reportViolation(deadlock(root), root.Num)
	}
	return nil
}

func (d *DFS) explore(ctx context.Context) error {
	for len(d.stack) > 0 && d.phase != PhaseDone {
		// Transitions are never interrupted
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := d.top()
		depth := len(d.stack) - 1

		if !d.withinDepth(depth) {
			if cur.CountTodo() > 0 {
				d.depthLimitHit(cur, depth)
			}
			if err := d.backtrack(ctx); err != nil {
				return err
			}
			continue
		}

		aid, ok := cur.NextTransition()
		if !ok {
			if err := d.backtrack(ctx); err != nil {
				return err
			}
			continue
		}

		res, err := cur.ExecuteNext(ctx, d.drv, aid)
		if err != nil {
			return errors.Wrapf(err, "explorer: execute actor %d from state %d", aid, cur.Num)
		}
		if d.opts.reduction == ReductionDPOR {
			d.clocks = append(d.clocks[:depth], d.clockOf(depth))
		}
		d.log.WithFields(logrus.Fields{
			"state":      cur.Num,
			"depth":      depth,
			"actor":      aid,
			"transition": cur.Transition(),
		}).Debug("Execute")

		if res.Violation != nil {
			d.reportViolation(*res.Violation, d.newNum())
			return nil
		}

		next := cur.Successor(d.newNum(), res)
		if isDeadlock(next) {
			d.reportViolation(deadlock(next), next.Num)
			return nil
		}

		if d.visited != nil {
			snap, err := d.drv.Snapshot(ctx)
			if err != nil {
				return errors.Wrapf(err, "explorer: snapshot state %d", next.Num)
			}
			if old := d.visited.AddVisitedState(next, snap); old != nil {
				d.stats.Duplicates++
				d.addNode(cur, next, old.Original())
				d.log.WithFields(logrus.Fields{
					"state": next.Num,
					"equal": old.Num,
				}).Debug("State already visited, exploration stopped on this path")
				if cur.CountTodo() == 0 {
					if err := d.backtrack(ctx); err != nil {
						return err
					}
					continue
				}
				// Another actor is tried from cur, only the driver moves back
				if err := d.restoreTop(ctx); err != nil {
					return err
				}
				continue
			}
		} else if d.opts.checkpoint > 0 && next.Num%int64(d.opts.checkpoint) == 0 {
			snap, err := d.drv.Snapshot(ctx)
			if err != nil {
				return errors.Wrapf(err, "explorer: checkpoint state %d", next.Num)
			}
			next.SetSnapshot(snap)
		}

		d.considerActors(next)
		d.addNode(cur, next, -1)
		d.push(next)
	}
	return nil
}

// Pop states until one with actors left to try is found, and move the driver back to it.
//
// Under DPOR every popped state is first compared with the states below it, which may add actors to
// their todo sets.
func (d *DFS) backtrack(ctx context.Context) error {
	d.phase = PhaseBacktracking
	d.stats.Backtracks++
	d.log.WithField("depth", len(d.stack)-1).Debug("Backtrack")

	for len(d.stack) > 0 {
		st := d.pop()
		if d.opts.reduction == ReductionDPOR && st.Transition() != nil {
			d.analyseDependencies(st)
		}
		depth := len(d.stack)
		if st.CountTodo() > 0 && d.withinDepth(depth) {
			d.push(st)
			if err := d.restoreTop(ctx); err != nil {
				return err
			}
			d.phase = PhaseRunning
			return nil
		}
		d.log.WithFields(logrus.Fields{
			"state": st.Num,
			"depth": depth,
		}).Debug("Delete state")
		if d.nodes != nil {
			delete(d.nodes, st.Num)
		}
	}
	return nil
}

// Find the states below popped whose transition races with the transition of popped, and schedule the actor
// of popped there.
//
// A transition of another actor races with it if the two are dependent and the other one did not happen
// before the previous transition of the same actor. Every racing state gets the actor, not only the latest.
func (d *DFS) analyseDependencies(popped *state.State) {
	t := popped.Transition()
	top := len(d.stack)
	last := -1
	for i := top - 1; i >= 0; i-- {
		if d.transitionAt(i).Actor == t.Actor {
			last = i
			break
		}
	}
	for i := top - 1; i >= 0; i-- {
		prev := d.stack[i]
		pt := d.transitionAt(i)
		if pt.Actor == t.Actor || !transition.Dependent(*t, *pt) {
			continue
		}
		if last >= 0 && d.clocks[last].covers(pt.Actor, i) {
			d.log.WithFields(logrus.Fields{"state": prev.Num, "actor": t.Actor}).Trace("Dependent transition happened before")
			continue
		}
		log := d.log.WithFields(logrus.Fields{
			"state":     prev.Num,
			"actor":     t.Actor,
			"dependent": pt.String(),
		})
		switch {
		case !prev.IsEnabled(t.Actor):
			// The actor can not be scheduled earlier, try everything that can
			log.Debug("Dependent transitions, actor not enabled earlier")
			prev.ConsiderAll()
		case prev.IsDone(t.Actor):
			log.Debug("Dependent transitions, actor in done set")
		default:
			log.Debug("Dependent transitions")
			prev.MarkTodo(t.Actor)
		}
	}
}

// The clock of the outgoing transition of the state at index k of the stack.
// The clocks of the states below it must be known.
func (d *DFS) clockOf(k int) clock {
	t := d.transitionAt(k)
	c := clock{}
	for i := k - 1; i >= 0; i-- {
		pt := d.transitionAt(i)
		if pt.Actor == t.Actor || transition.Dependent(*t, *pt) {
			c.join(d.clocks[i])
		}
	}
	c[t.Actor] = k
	return c
}

func (d *DFS) transitionAt(i int) *transition.Transition {
	t := d.stack[i].Transition()
	if t == nil {
		panic(&ProgrammingError{Msg: fmt.Sprintf("state %d on the stack has no outgoing transition", d.stack[i].Num)})
	}
	return t
}

// Move the driver to the state on top of the stack.
//
// The nearest snapshot at or below the top is restored and the transitions above it are replayed.
func (d *DFS) restoreTop(ctx context.Context) error {
	top := len(d.stack) - 1
	i := top
	for i >= 0 && d.stack[i].Snapshot() == nil {
		i--
	}
	if i < 0 {
		panic(&ProgrammingError{Msg: "no snapshot on the stack"})
	}
	if err := d.drv.Restore(ctx, d.stack[i].Snapshot()); err != nil {
		return errors.Wrapf(err, "explorer: restore state %d", d.stack[i].Num)
	}
	steps := make([]transition.Step, 0, top-i)
	for _, st := range d.stack[i:top] {
		steps = append(steps, st.Transition().Step())
	}
	if err := replay.Steps(ctx, d.drv, steps); err != nil {
		return errors.Wrapf(err, "explorer: replay to state %d", d.stack[top].Num)
	}
	d.log.WithFields(logrus.Fields{
		"state":    d.stack[top].Num,
		"snapshot": d.stack[i].Num,
		"replayed": len(steps),
	}).Debug("Restore state")
	return nil
}

func (d *DFS) considerActors(st *state.State) {
	if d.opts.reduction == ReductionDPOR {
		st.ConsiderOne()
		return
	}
	st.ConsiderAll()
}

func (d *DFS) depthLimitHit(st *state.State, depth int) {
	d.stats.DepthLimitHits++
	if d.truncated == nil {
		d.truncated = d.stackTrace()
	}
	if n := d.nodes[st.Num]; n != nil {
		n.Update(func(gn *GraphNode) { gn.Truncated = true })
	}
	d.log.WithFields(logrus.Fields{
		"state": st.Num,
		"depth": depth,
	}).Warn("Max depth reached")
}

func (d *DFS) reportViolation(v driver.Violation, num int64) {
	d.violation = &v
	d.trace = d.stackTrace()
	if d.graph != nil {
		from := d.top()
		if from.Transition() == nil {
			d.nodes[from.Num].Update(func(gn *GraphNode) { gn.Violation = &v })
		} else {
			t := *from.Transition()
			d.nodes[from.Num].AddChild(GraphNode{Num: num, Via: &t, EqualTo: -1, Violation: &v})
		}
	}
	d.log.WithFields(logrus.Fields{
		"violation": v.String(),
		"trace":     transition.RecordOf(d.trace).String(),
	}).Warn("Violation found")
	d.phase = PhaseDone
}

func (d *DFS) addNode(parent, child *state.State, equalTo int64) {
	if d.graph == nil {
		return
	}
	t := *parent.Transition()
	node := d.nodes[parent.Num].AddChild(GraphNode{Num: child.Num, Via: &t, EqualTo: equalTo})
	if equalTo < 0 {
		d.nodes[child.Num] = node
	}
}

func (d *DFS) push(st *state.State) {
	d.stack = append(d.stack, st)
	if depth := len(d.stack) - 1; depth > d.stats.MaxDepthReached {
		d.stats.MaxDepthReached = depth
	}
	if d.phase != PhaseBacktracking {
		d.stats.ExpandedStates++
	}
	if d.onPush != nil {
		d.onPush(d.stack)
	}
}

func (d *DFS) pop() *state.State {
	st := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return st
}

func (d *DFS) top() *state.State {
	return d.stack[len(d.stack)-1]
}

func (d *DFS) newNum() int64 {
	num := d.nextNum
	d.nextNum++
	return num
}

func (d *DFS) withinDepth(depth int) bool {
	return d.opts.maxDepth < 1 || depth < d.opts.maxDepth
}

// The outgoing transitions of the states on the stack
func (d *DFS) stackTrace() []transition.Transition {
	trace := make([]transition.Transition, 0, len(d.stack))
	for _, st := range d.stack {
		if t := st.Transition(); t != nil {
			trace = append(trace, *t)
		}
	}
	return trace
}

func (d *DFS) currentTrace() []transition.Transition {
	if d.phase != PhaseDone {
		return d.stackTrace()
	}
	switch d.outcome() {
	case OutcomeViolation:
		return d.trace
	case OutcomeNonTermination:
		return d.truncated
	}
	return []transition.Transition{}
}

func (d *DFS) outcome() Outcome {
	switch {
	case d.violation != nil:
		return OutcomeViolation
	case d.truncated != nil:
		return OutcomeNonTermination
	}
	return OutcomeNoViolation
}

func (d *DFS) result() *Result {
	return &Result{
		Outcome:   d.outcome(),
		Violation: d.violation,
		Trace:     d.currentTrace(),
		Stats:     d.stats,
	}
}

// Alive actors of which none can move
func isDeadlock(st *state.State) bool {
	return st.ActorCount() > 0 && len(st.EnabledActors()) == 0
}

func deadlock(st *state.State) driver.Violation {
	return driver.Violation{
		Kind:    driver.Deadlock,
		Message: fmt.Sprintf("%d actors blocked: %v", st.ActorCount(), st.ActorIDs()),
	}
}
