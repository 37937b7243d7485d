package remote

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"mcheck/driver"
	"mcheck/transition"
)

// Messages are carried as google.protobuf.Struct values.

func encodeActors(actors []driver.Actor) *structpb.Value {
	values := make([]*structpb.Value, 0, len(actors))
	for _, a := range actors {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"id":           structpb.NewNumberValue(float64(a.ID)),
			"enabled":      structpb.NewBoolValue(a.Enabled),
			"max_consider": structpb.NewNumberValue(float64(a.MaxConsider)),
		}}))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func decodeActors(v *structpb.Value) []driver.Actor {
	actors := []driver.Actor{}
	for _, item := range v.GetListValue().GetValues() {
		fields := item.GetStructValue().GetFields()
		actors = append(actors, driver.Actor{
			ID:          transition.ActorID(fields["id"].GetNumberValue()),
			Enabled:     fields["enabled"].GetBoolValue(),
			MaxConsider: int(fields["max_consider"].GetNumberValue()),
		})
	}
	return actors
}

func encodeIDs(ids []transition.ActorID) *structpb.Value {
	values := make([]*structpb.Value, 0, len(ids))
	for _, id := range ids {
		values = append(values, structpb.NewNumberValue(float64(id)))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func decodeIDs(v *structpb.Value) []transition.ActorID {
	var ids []transition.ActorID
	for _, item := range v.GetListValue().GetValues() {
		ids = append(ids, transition.ActorID(item.GetNumberValue()))
	}
	return ids
}

func encodeExecRequest(aid transition.ActorID, timesConsidered int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"actor": structpb.NewNumberValue(float64(aid)),
		"times": structpb.NewNumberValue(float64(timesConsidered)),
	}}
}

func decodeExecRequest(req *structpb.Struct) (transition.ActorID, int, error) {
	actor, ok := req.GetFields()["actor"]
	if !ok {
		return 0, 0, errors.New("remote: execute request without actor")
	}
	return transition.ActorID(actor.GetNumberValue()), int(req.GetFields()["times"].GetNumberValue()), nil
}

func encodeExecResult(res driver.ExecResult) *structpb.Struct {
	t := res.Transition
	fields := map[string]*structpb.Value{
		"transition": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"actor":    structpb.NewNumberValue(float64(t.Actor)),
			"kind":     structpb.NewStringValue(t.Kind.String()),
			"resource": structpb.NewStringValue(t.Resource),
			"times":    structpb.NewNumberValue(float64(t.TimesConsidered)),
			"args":     structpb.NewStringValue(t.Args),
			"guarded":  structpb.NewBoolValue(t.Guarded),
		}}),
		"newly_enabled":  encodeActors(res.NewlyEnabled),
		"newly_disabled": encodeIDs(res.NewlyDisabled),
		"finished":       encodeIDs(res.Finished),
	}
	if res.Violation != nil {
		fields["violation"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"kind":    structpb.NewNumberValue(float64(res.Violation.Kind)),
			"message": structpb.NewStringValue(res.Violation.Message),
		}})
	}
	return &structpb.Struct{Fields: fields}
}

func decodeExecResult(msg *structpb.Struct) (driver.ExecResult, error) {
	fields := msg.GetFields()
	t := fields["transition"].GetStructValue().GetFields()
	if t == nil {
		return driver.ExecResult{}, errors.New("remote: execute result without transition")
	}
	kind, err := transition.ParseKind(t["kind"].GetStringValue())
	if err != nil {
		return driver.ExecResult{}, errors.Wrap(err, "remote")
	}
	res := driver.ExecResult{
		Transition: transition.Transition{
			Actor:           transition.ActorID(t["actor"].GetNumberValue()),
			Kind:            kind,
			Resource:        t["resource"].GetStringValue(),
			TimesConsidered: int(t["times"].GetNumberValue()),
			Args:            t["args"].GetStringValue(),
			Guarded:         t["guarded"].GetBoolValue(),
		},
		NewlyDisabled: decodeIDs(fields["newly_disabled"]),
		Finished:      decodeIDs(fields["finished"]),
	}
	if enabled := decodeActors(fields["newly_enabled"]); len(enabled) > 0 {
		res.NewlyEnabled = enabled
	}
	if v := fields["violation"].GetStructValue(); v != nil {
		res.Violation = &driver.Violation{
			Kind:    driver.ViolationKind(v.GetFields()["kind"].GetNumberValue()),
			Message: v.GetFields()["message"].GetStringValue(),
		}
	}
	return res, nil
}
