package luamodel

import (
	"github.com/Shopify/go-lua"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"google.golang.org/protobuf/types/known/structpb"
)

// Nested tables deeper than this are treated as cycles
const maxDepth = 64

// Convert the Lua value at index to a protobuf value.
//
// Sequences become lists and tables with string keys become structs. Other keys, functions and userdata can not
// be part of a snapshot and are reported as errors.
func toValue(l *lua.State, index int, depth int) (*structpb.Value, error) {
	switch l.TypeOf(index) {
	case lua.TypeNil:
		return structpb.NewNullValue(), nil
	case lua.TypeBoolean:
		return structpb.NewBoolValue(l.ToBoolean(index)), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return structpb.NewNumberValue(n), nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return structpb.NewStringValue(s), nil
	case lua.TypeTable:
		if depth >= maxDepth {
			return nil, errors.New("luamodel: state is nested too deeply or contains a cycle")
		}
		return tableToValue(l, l.AbsIndex(index), depth+1)
	}
	return nil, errors.Errorf("luamodel: unsupported value of type %s in state", lua.TypeNameOf(l, index))
}

func tableToValue(l *lua.State, index int, depth int) (*structpb.Value, error) {
	length := l.RawLength(index)
	count := 0
	stringKeys := true
	l.PushNil()
	for l.Next(index) {
		count++
		if l.TypeOf(-2) != lua.TypeString {
			stringKeys = false
		}
		l.Pop(1)
	}

	if count > 0 && count == length {
		list := &structpb.ListValue{Values: make([]*structpb.Value, 0, length)}
		for i := 1; i <= length; i++ {
			l.RawGetInt(index, i)
			v, err := toValue(l, -1, depth)
			l.Pop(1)
			if err != nil {
				return nil, err
			}
			list.Values = append(list.Values, v)
		}
		return structpb.NewListValue(list), nil
	}
	if !stringKeys {
		return nil, errors.New("luamodel: state tables must be sequences or have string keys")
	}

	fields := map[string]*structpb.Value{}
	keys := make([]string, 0, count)
	l.PushNil()
	for l.Next(index) {
		key, _ := l.ToString(-2)
		keys = append(keys, key)
		l.Pop(1)
	}
	// Fields are read in a fixed order so that errors are reported deterministically
	slices.Sort(keys)
	for _, key := range keys {
		l.Field(index, key)
		v, err := toValue(l, -1, depth)
		l.Pop(1)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", key)
		}
		fields[key] = v
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
}

// Push the protobuf value as a Lua value
func pushValue(l *lua.State, v *structpb.Value) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		l.PushBoolean(k.BoolValue)
	case *structpb.Value_NumberValue:
		l.PushNumber(k.NumberValue)
	case *structpb.Value_StringValue:
		l.PushString(k.StringValue)
	case *structpb.Value_ListValue:
		l.CreateTable(len(k.ListValue.GetValues()), 0)
		for i, item := range k.ListValue.GetValues() {
			pushValue(l, item)
			l.RawSetInt(-2, i+1)
		}
	case *structpb.Value_StructValue:
		l.CreateTable(0, len(k.StructValue.GetFields()))
		for key, item := range k.StructValue.GetFields() {
			pushValue(l, item)
			l.SetField(-2, key)
		}
	default:
		l.PushNil()
	}
}
