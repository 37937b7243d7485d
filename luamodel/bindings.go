package luamodel

import (
	"github.com/Shopify/go-lua"

	"mcheck/transition"
)

const (
	// Global holding the functions of the model, indexed by reference
	functionsTable = "_MCHECK_FUNCTIONS"
	// Global holding the shared state of the model
	stateGlobal = "state"
)

type stepDef struct {
	kind     transition.Kind
	resource string
	label    string
	choices  int
	// References into the functions table. 0 if absent.
	run   int
	guard int
}

type actorDef struct {
	name  string
	steps []stepDef
}

type invariantDef struct {
	name string
	fn   int
}

// Collects the definitions made by a model script
type loader struct {
	actors     []actorDef
	invariants []invariantDef
	nextRef    int
}

func (ld *loader) register(l *lua.State) {
	l.NewTable()
	l.SetGlobal(functionsTable)

	l.Register("actor", ld.actor)
	l.Register("step", step)
	l.Register("invariant", ld.invariant)
}

// actor(name, steps) declares an actor. Ids are assigned in declaration order starting at 1.
func (ld *loader) actor(l *lua.State) int {
	name := lua.CheckString(l, 1)
	lua.CheckType(l, 2, lua.TypeTable)
	def := actorDef{name: name}

	n := l.RawLength(2)
	if n == 0 {
		lua.Errorf(l, "actor %s has no steps", name)
		return 0
	}
	for i := 1; i <= n; i++ {
		l.RawGetInt(2, i)
		if l.TypeOf(-1) != lua.TypeTable {
			lua.Errorf(l, "actor %s: step %d is not a table", name, i)
			return 0
		}
		def.steps = append(def.steps, ld.step(l, name, i))
		l.Pop(1)
	}
	ld.actors = append(ld.actors, def)
	return 0
}

// Read the step table on top of the stack
func (ld *loader) step(l *lua.State, actor string, i int) stepDef {
	kindName := stringField(l, "kind")
	kind, err := transition.ParseKind(kindName)
	if err != nil {
		lua.Errorf(l, "actor %s: step %d: unknown kind %s", actor, i, kindName)
	}
	def := stepDef{
		kind:     kind,
		resource: stringField(l, "resource"),
		label:    stringField(l, "label"),
		choices:  1,
	}
	l.Field(-1, "choices")
	if !l.IsNil(-1) {
		choices, ok := l.ToInteger(-1)
		if !ok || choices < 1 {
			lua.Errorf(l, "actor %s: step %d: choices must be a positive integer", actor, i)
		}
		def.choices = choices
	}
	l.Pop(1)

	def.run = ld.functionField(l, "run", actor, i)
	def.guard = ld.functionField(l, "guard", actor, i)
	return def
}

// invariant(name, fn) declares a predicate over the state that must hold after every step
func (ld *loader) invariant(l *lua.State) int {
	name := lua.CheckString(l, 1)
	lua.CheckType(l, 2, lua.TypeFunction)
	l.PushValue(2)
	ld.invariants = append(ld.invariants, invariantDef{name: name, fn: ld.storeFunction(l)})
	return 0
}

// step{...} returns its table. It only makes model scripts read better.
func step(l *lua.State) int {
	lua.CheckType(l, 1, lua.TypeTable)
	l.PushValue(1)
	return 1
}

// Store the function field of the table on top of the stack. Returns 0 if the field is nil.
func (ld *loader) functionField(l *lua.State, field, actor string, i int) int {
	l.Field(-1, field)
	switch l.TypeOf(-1) {
	case lua.TypeNil:
		l.Pop(1)
		return 0
	case lua.TypeFunction:
		return ld.storeFunction(l)
	}
	lua.Errorf(l, "actor %s: step %d: %s must be a function", actor, i, field)
	return 0
}

// Pop the function on top of the stack into the functions table and return its reference
func (ld *loader) storeFunction(l *lua.State) int {
	ld.nextRef++
	l.Global(functionsTable)
	l.PushValue(-2)
	l.RawSetInt(-2, ld.nextRef)
	l.Pop(2)
	return ld.nextRef
}

func stringField(l *lua.State, field string) string {
	l.Field(-1, field)
	defer l.Pop(1)
	if l.IsNil(-1) {
		return ""
	}
	s, ok := l.ToString(-1)
	if !ok {
		lua.Errorf(l, "%s must be a string", field)
	}
	return s
}
