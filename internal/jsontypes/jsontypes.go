// Package jsontypes supports decoding for interface types whose concrete
// implementations need to be stored as JSON. To do this, concrete values are
// packaged in wrapper objects having the form:
//
//	{
//	  "type": "<type-tag>",
//	  "value": <json-encoding-of-value>
//	}
//
// This package provides a registry for type tag strings and functions to
// encode and decode wrapper objects.
package jsontypes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// The Tagged interface must be implemented by a type in order to register it
// with the jsontypes package. The TypeTag method returns a string label that
// is used to distinguish objects of that type.
type Tagged interface {
	TypeTag() string
}

// registry records the mapping from type tags to value types. Values in this
// map must be normalized to non-pointer types.
var registry = struct {
	types map[string]reflect.Type
}{types: make(map[string]reflect.Type)}

// register adds v to the type registry. It reports an error if the tag
// returned by v is already registered.
func register(v Tagged) error {
	tag := v.TypeTag()
	if t, ok := registry.types[tag]; ok {
		return fmt.Errorf("type tag %q already registered to %v", tag, t)
	}
	typ := reflect.TypeOf(v)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	registry.types[tag] = typ
	return nil
}

// MustRegister adds v to the type registry. It will panic if the tag returned
// by v is already registered. This function is meant for use during program
// initialization.
func MustRegister(v Tagged) {
	if err := register(v); err != nil {
		panic(fmt.Sprintf("MustRegister %q failed: %v", v.TypeTag(), err))
	}
}

type wrapper struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Marshal marshals a JSON wrapper object containing v. If v == nil, Marshal
// returns the JSON "null" value without error.
func Marshal(v Tagged) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wrapper{
		Type:  v.TypeTag(),
		Value: data,
	})
}

// Unmarshal unmarshals a JSON wrapper object into v. It reports an error if
// the data do not encode a valid wrapper object, if the wrapper's type tag is
// not registered with jsontypes, or if the resulting value is not compatible
// with the type of v.
func Unmarshal(data []byte, v interface{}) error {
	// Verify that the target is some kind of pointer.
	target := reflect.ValueOf(v)
	if target.Kind() != reflect.Ptr {
		return fmt.Errorf("target %T is not a pointer", v)
	} else if target.IsZero() {
		return fmt.Errorf("target is a nil %T", v)
	}
	baseType := target.Type().Elem()

	var w wrapper
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("invalid type wrapper: %w", err)
	}
	typ, ok := registry.types[w.Type]
	if !ok {
		return fmt.Errorf("unknown type tag for %T: %q", v, w.Type)
	}

	if typ.AssignableTo(baseType) {
		// ok: registered type is directly assignable to the target
	} else if typ.ConvertibleTo(baseType) {
		// ok: registered type is convertible to the target
	} else if baseType.Kind() == reflect.Interface && reflect.PtrTo(typ).Implements(baseType) {
		// ok: a pointer to the registered type implements the target interface
	} else if baseType.Kind() == reflect.Interface && typ.Implements(baseType) {
		// ok: the registered type itself implements the target interface
	} else {
		return fmt.Errorf("type %v not compatible with type %v", typ, baseType)
	}

	obj := reflect.New(typ)
	if len(w.Value) != 0 {
		if err := json.Unmarshal(w.Value, obj.Interface()); err != nil {
			return fmt.Errorf("decoding wrapped value: %w", err)
		}
	}

	ov := obj.Elem()
	if baseType.Kind() == reflect.Interface && !ov.Type().Implements(baseType) {
		// Pointer receiver methods: assign the pointer instead of the value.
		target.Elem().Set(obj)
		return nil
	}
	if !ov.Type().AssignableTo(baseType) && ov.Type().ConvertibleTo(baseType) {
		ov = ov.Convert(baseType)
	}
	target.Elem().Set(ov)
	return nil
}
