package luamodel

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"mcheck/driver"
)

// The position of every actor and the shared state of a model.
//
// Two snapshots are equal when their deterministic encodings are equal.
type Snapshot struct {
	content *structpb.Struct
	data    []byte
	actors  int
}

func (s *Snapshot) ActorCount() int {
	return s.actors
}

func (s *Snapshot) HeapBytesUsed() int64 {
	return int64(len(s.data))
}

func (s *Snapshot) Equal(other driver.Snapshot) bool {
	o, ok := other.(*Snapshot)
	if !ok {
		return false
	}
	return s.actors == o.actors && bytes.Equal(s.data, o.data)
}

// The content of the snapshot. It must not be modified.
func (s *Snapshot) Content() *structpb.Struct {
	return s.content
}

func newSnapshot(content *structpb.Struct, actorCount int) (*Snapshot, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(content)
	if err != nil {
		return nil, errors.Wrap(err, "luamodel: encode snapshot")
	}
	return &Snapshot{content: content, data: data, actors: actorCount}, nil
}

func (m *Model) Snapshot(ctx context.Context) (driver.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	top := m.l.Top()
	defer m.l.SetTop(top)
	m.l.Global(stateGlobal)
	state, err := toValue(m.l, -1, 0)
	if err != nil {
		return nil, err
	}

	pcs := make([]*structpb.Value, len(m.pcs))
	alive := 0
	for i, pc := range m.pcs {
		pcs[i] = structpb.NewNumberValue(float64(pc))
		if m.alive(i) {
			alive++
		}
	}
	content := &structpb.Struct{Fields: map[string]*structpb.Value{
		"pcs":   structpb.NewListValue(&structpb.ListValue{Values: pcs}),
		"state": state,
	}}
	return newSnapshot(content, alive)
}

func (m *Model) Restore(ctx context.Context, snap driver.Snapshot) error {
	s, ok := snap.(*Snapshot)
	if !ok {
		return errors.Errorf("luamodel: can not restore a snapshot of type %T", snap)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pcs, err := m.decodePCs(s.content)
	if err != nil {
		return err
	}
	top := m.l.Top()
	defer m.l.SetTop(top)
	pushValue(m.l, s.content.GetFields()["state"])
	m.l.SetGlobal(stateGlobal)
	copy(m.pcs, pcs)
	if err := m.refresh(); err != nil {
		return errors.Wrap(err, "luamodel: restore")
	}
	m.log.WithField("bytes", len(s.data)).Trace("Snapshot restored")
	return nil
}

// The content of a snapshot taken by the model
func (m *Model) EncodeSnapshot(snap driver.Snapshot) (*structpb.Struct, error) {
	s, ok := snap.(*Snapshot)
	if !ok {
		return nil, errors.Errorf("luamodel: can not encode a snapshot of type %T", snap)
	}
	return s.content, nil
}

// Rebuild a snapshot from content returned by EncodeSnapshot
func (m *Model) DecodeSnapshot(content *structpb.Struct) (driver.Snapshot, error) {
	pcs, err := m.decodePCs(content)
	if err != nil {
		return nil, err
	}
	alive := 0
	for i, pc := range pcs {
		if pc < len(m.actors[i].steps) {
			alive++
		}
	}
	return newSnapshot(content, alive)
}

func (m *Model) decodePCs(content *structpb.Struct) ([]int, error) {
	list := content.GetFields()["pcs"].GetListValue()
	if list == nil || len(list.GetValues()) != len(m.actors) {
		return nil, errors.Errorf("luamodel: snapshot does not hold the position of %d actors", len(m.actors))
	}
	pcs := make([]int, len(m.actors))
	for i, v := range list.GetValues() {
		pc := int(v.GetNumberValue())
		if pc < 0 || pc > len(m.actors[i].steps) {
			return nil, errors.Errorf("luamodel: actor %d has no step %d", i+1, pc)
		}
		pcs[i] = pc
	}
	return pcs, nil
}
