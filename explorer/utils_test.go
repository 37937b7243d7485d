package explorer

import (
	"context"
	"math/rand"

	"github.com/sirupsen/logrus"

	"mcheck/driver"
	"mcheck/driver/drivertest"
	"mcheck/transition"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func actor(steps ...drivertest.Step) drivertest.Actor {
	return drivertest.Actor{Steps: steps}
}

func both(a, b string) func(drivertest.Vars) bool {
	return func(vars drivertest.Vars) bool { return vars[a] == 1 && vars[b] == 1 }
}

func equals(name string, value int) func(drivertest.Vars) bool {
	return func(vars drivertest.Vars) bool { return vars[name] == value }
}

// Two actors writing different variables
func independentWriters() *drivertest.Driver {
	return drivertest.New(nil,
		actor(drivertest.Write("x", 1)),
		actor(drivertest.Write("y", 1)),
	)
}

// Two actors writing the same variable
func dependentWriters() *drivertest.Driver {
	return drivertest.New(nil,
		actor(drivertest.Write("x", 1)),
		actor(drivertest.Write("x", 2)),
	)
}

// Two actors taking two locks in opposite order
func lockOrderInversion() *drivertest.Driver {
	return drivertest.New(nil,
		actor(drivertest.Lock("a"), drivertest.Lock("b"), drivertest.Unlock("b"), drivertest.Unlock("a")),
		actor(drivertest.Lock("b"), drivertest.Lock("a"), drivertest.Unlock("a"), drivertest.Unlock("b")),
	)
}

// A program of three actors doing random steps on two variables.
// The last actor ends with an assertion on a.
func randomProgram(r *rand.Rand) *drivertest.Driver {
	vars := []string{"a", "b"}
	step := func() drivertest.Step {
		v := vars[r.Intn(len(vars))]
		switch r.Intn(3) {
		case 0:
			return drivertest.Write(v, 1+r.Intn(2))
		case 1:
			return drivertest.Incr(v)
		}
		return drivertest.Read(v)
	}
	actors := make([]drivertest.Actor, 3)
	for i := range actors {
		n := 1 + r.Intn(2)
		for j := 0; j < n; j++ {
			actors[i].Steps = append(actors[i].Steps, step())
		}
	}
	actors[2].Steps = append(actors[2].Steps, drivertest.Assert("a", r.Intn(3)))
	return drivertest.New(nil, actors...)
}

// A program of three actors taking locks and waiting on two variables.
// Its only violations are deadlocks.
func guardedProgram(r *rand.Rand) *drivertest.Driver {
	vars := []string{"a", "b"}
	locks := []string{"m", "n"}
	segment := func() []drivertest.Step {
		v := vars[r.Intn(len(vars))]
		switch r.Intn(4) {
		case 0:
			first, second := locks[0], locks[1]
			if r.Intn(2) == 0 {
				first, second = second, first
			}
			return []drivertest.Step{drivertest.Lock(first), drivertest.Lock(second), drivertest.Unlock(second), drivertest.Unlock(first)}
		case 1:
			l := locks[r.Intn(len(locks))]
			return []drivertest.Step{drivertest.Lock(l), drivertest.Incr(v), drivertest.Unlock(l)}
		case 2:
			return []drivertest.Step{drivertest.Write(v, 1+r.Intn(2)).When(equals(vars[r.Intn(len(vars))], r.Intn(2)))}
		}
		return []drivertest.Step{drivertest.Write(v, r.Intn(2))}
	}
	actors := make([]drivertest.Actor, 3)
	for i := range actors {
		actors[i].Steps = segment()
		if r.Intn(2) == 0 {
			v := vars[r.Intn(len(vars))]
			actors[i].Steps = append(actors[i].Steps, drivertest.Write(v, 1).When(equals(vars[r.Intn(len(vars))], r.Intn(2))))
		}
	}
	return drivertest.New(nil, actors...)
}

// Reports every transition as taken by another actor
type MockWrongActorDriver struct {
	*drivertest.Driver
}

func (m MockWrongActorDriver) Execute(ctx context.Context, aid transition.ActorID, times int) (driver.ExecResult, error) {
	res, err := m.Driver.Execute(ctx, aid, times)
	res.Transition.Actor = aid + 1
	return res, err
}

// Fails every restore
type MockRestoreFailDriver struct {
	*drivertest.Driver
}

func (m MockRestoreFailDriver) Restore(ctx context.Context, snap driver.Snapshot) error {
	return errRestore
}

type testError string

func (te testError) Error() string { return string(te) }

const errRestore = testError("restore failed")

func steps(s string) []transition.Step {
	trace, err := transition.ParseRecordTrace(s)
	if err != nil {
		panic(err)
	}
	return trace
}
