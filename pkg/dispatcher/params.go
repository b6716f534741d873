package dispatcher

import (
	"encoding/json"
	"reflect"
	"sort"

	"github.com/SuperID/nanoservices/pkg/svcerr"
)

// Params is a read-only snapshot of the parameters a service was called with. Maps
// and slices are deep-copied on the way in and on the way out, so neither the caller
// nor the handler can mutate the snapshot.
type Params struct {
	m map[string]interface{}
}

// NewParams takes a defensive copy of m.
func NewParams(m map[string]interface{}) Params {
	if len(m) == 0 {
		return Params{}
	}
	return Params{m: copyValue(m).(map[string]interface{})}
}

// Get returns a copy of the value stored under key.
func (p Params) Get(key string) (interface{}, bool) {
	v, ok := p.m[key]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Value returns the value stored under key, or nil.
func (p Params) Value(key string) interface{} {
	v, _ := p.Get(key)
	return v
}

// String returns the value under key when it is a string.
func (p Params) String(key string) string {
	s, _ := p.m[key].(string)
	return s
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.m[key]
	return ok
}

// Len returns the number of top-level keys.
func (p Params) Len() int {
	return len(p.m)
}

// Keys returns the top-level keys in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p.m))
	for k := range p.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a mutable deep copy of the parameters.
func (p Params) Map() map[string]interface{} {
	if p.m == nil {
		return map[string]interface{}{}
	}
	return copyValue(p.m).(map[string]interface{})
}

// MarshalJSON encodes the parameters as a JSON object.
func (p Params) MarshalJSON() ([]byte, error) {
	if p.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.m)
}

// AsParams converts a step input into call parameters. Maps and Params are used as
// they are, nil means no parameters, and other values must encode to a JSON object.
func AsParams(v interface{}) (map[string]interface{}, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return p, nil
	case Params:
		return p.Map(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, svcerr.InvalidConfiguration("params of type %T cannot be encoded: %v", v, err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return nil, svcerr.InvalidConfiguration("params of type %T is not an object", v)
	}
	return out, nil
}

// copyValue deep-copies maps and slices. Other values, including pointers and
// structs, are returned as they are.
func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case Params:
		return t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyReflect(iter.Value(), rv.Type().Elem()))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(copyReflect(rv.Index(i), rv.Type().Elem()))
		}
		return out.Interface()
	}
	return v
}

func copyReflect(v reflect.Value, elem reflect.Type) reflect.Value {
	if (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) && v.IsNil() {
		return reflect.Zero(elem)
	}
	c := copyValue(v.Interface())
	if c == nil {
		return reflect.Zero(elem)
	}
	return reflect.ValueOf(c)
}
