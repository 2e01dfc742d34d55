// Package ty holds small generic value types shared across the domain
// model and config layers, kept free of other internal packages so both
// can import it without creating a cycle.
package ty

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Opt wraps an optional scalar so config structs can distinguish "absent"
// from "zero value" across both YAML and JSON decoding.
type Opt[T any] struct {
	Value T
	Set   bool
}

// OptWrap builds a set Opt from a plain value, mostly useful in tests.
func OptWrap[T any](value T) Opt[T] {
	return Opt[T]{Value: value, Set: true}
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		o.Set = false
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt[T]) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		o.Set = false
		return nil
	}
	var v T
	if err := value.Decode(&v); err != nil {
		return err
	}
	o.Value = v
	o.Set = true
	return nil
}
