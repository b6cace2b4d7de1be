package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

const convertLogPrefix = "wire:convert"

// ArgumentError reports a Go value that cannot cross the channel.
type ArgumentError struct {
	Path   string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s - invalid argument: %s", convertLogPrefix, e.Reason)
	}
	return fmt.Sprintf("%s - invalid argument at %s: %s", convertLogPrefix, e.Path, e.Reason)
}

// Hook lets a caller claim values before the default conversion. It returns
// handled=false to fall through.
type Hook func(v any) (out Value, handled bool, err error)

// FromGo converts a Go value to a Value, consulting hook first at every node.
func FromGo(v any, hook Hook) (Value, error) {
	return fromGo(v, hook, "")
}

// FromGoArgs converts an argument list; element paths are reported as args[i].
func FromGoArgs(args []any, hook Hook) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := fromGo(a, hook, "args["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fromGo(v any, hook Hook, path string) (Value, error) {
	if hook != nil {
		out, handled, err := hook(v)
		if err != nil {
			var argErr *ArgumentError
			if errors.As(err, &argErr) && argErr.Path == "" {
				argErr.Path = path
			}
			return Value{}, err
		}
		if handled {
			return out, nil
		}
	}

	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return Null(), nil
		}
		return *x, nil
	case CallbackRef:
		return Callback(x.CallbackID), nil
	case *CallbackRef:
		if x == nil {
			return Null(), nil
		}
		return Callback(x.CallbackID), nil
	case ObjectProxyDescriptor:
		return Proxy(x), nil
	case *ObjectProxyDescriptor:
		if x == nil {
			return Null(), nil
		}
		return Proxy(*x), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, &ArgumentError{Path: path, Reason: "invalid number " + x.String()}
		}
		return Number(f), nil
	case json.RawMessage:
		var out Value
		if err := json.Unmarshal(x, &out); err != nil {
			return Value{}, &ArgumentError{Path: path, Reason: err.Error()}
		}
		return out, nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			iv, err := fromGo(item, hook, indexPath(path, i))
			if err != nil {
				return Value{}, err
			}
			items[i] = iv
		}
		return Array(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			fv, err := fromGo(item, hook, fieldPath(path, k))
			if err != nil {
				return Value{}, err
			}
			fields[k] = fv
		}
		return Record(fields), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromGo(rv.Elem().Interface(), hook, path)
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, &ArgumentError{Path: path, Reason: "number is not finite"}
		}
		return Number(f), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return fromJSON(v, path)
		}
		return fromSequence(rv, hook, path)
	case reflect.Array:
		return fromSequence(rv, hook, path)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, &ArgumentError{Path: path, Reason: fmt.Sprintf("map key type %s is not a string", rv.Type().Key())}
		}
		if rv.IsNil() {
			return Null(), nil
		}
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			fv, err := fromGo(iter.Value().Interface(), hook, fieldPath(path, k))
			if err != nil {
				return Value{}, err
			}
			fields[k] = fv
		}
		return Record(fields), nil
	case reflect.Struct:
		return fromJSON(v, path)
	default:
		return Value{}, &ArgumentError{Path: path, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

func fromSequence(rv reflect.Value, hook Hook, path string) (Value, error) {
	items := make([]Value, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		iv, err := fromGo(rv.Index(i).Interface(), hook, indexPath(path, i))
		if err != nil {
			return Value{}, err
		}
		items[i] = iv
	}
	return Array(items...), nil
}

func fromJSON(v any, path string) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, &ArgumentError{Path: path, Reason: err.Error()}
	}
	var out Value
	if err := json.Unmarshal(data, &out); err != nil {
		return Value{}, &ArgumentError{Path: path, Reason: err.Error()}
	}
	return out, nil
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func fieldPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
