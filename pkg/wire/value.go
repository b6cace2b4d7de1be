package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const valueLogPrefix = "wire:value"

// Kind identifies the variant held by a Value.
type Kind uint8

// Value variants.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindRecord
	KindCallback
	KindObjectProxy
)

var kindNames = [...]string{
	KindNull:        "null",
	KindBool:        "bool",
	KindNumber:      "number",
	KindString:      "string",
	KindArray:       "array",
	KindRecord:      "record",
	KindCallback:    "callback",
	KindObjectProxy: "object-proxy",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a single argument crossing the channel. The zero Value is Null.
type Value struct {
	kind   Kind
	b      bool
	n      float64
	s      string
	items  []Value
	fields map[string]Value
	cb     CallbackRef
	proxy  *ObjectProxyDescriptor
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a JSON number.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps an ordered list of values.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Record wraps a string-keyed set of values.
func Record(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindRecord, fields: fields}
}

// Callback wraps a callback reference.
func Callback(id string) Value {
	return Value{kind: KindCallback, cb: CallbackRef{CallbackID: id}}
}

// Proxy wraps an object proxy descriptor.
func Proxy(d ObjectProxyDescriptor) Value {
	d.Type = ObjectProxyType
	return Value{kind: KindObjectProxy, proxy: &d}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload, false for other kinds.
func (v Value) AsBool() bool { return v.kind == KindBool && v.b }

// AsNumber returns the numeric payload, 0 for other kinds.
func (v Value) AsNumber() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.n
}

// AsString returns the string payload, "" for other kinds.
func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// Items returns the array elements, nil for other kinds.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Fields returns the record fields, nil for other kinds.
func (v Value) Fields() map[string]Value {
	if v.kind != KindRecord {
		return nil
	}
	return v.fields
}

// CallbackRef returns the callback reference held by v.
func (v Value) CallbackRef() (CallbackRef, bool) {
	if v.kind != KindCallback {
		return CallbackRef{}, false
	}
	return v.cb, true
}

// ObjectProxy returns the descriptor held by v.
func (v Value) ObjectProxy() (*ObjectProxyDescriptor, bool) {
	if v.kind != KindObjectProxy || v.proxy == nil {
		return nil, false
	}
	return v.proxy, true
}

// Interface converts v to plain Go values: nil, bool, float64, string,
// []any, map[string]any, CallbackRef or ObjectProxyDescriptor.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindRecord:
		out := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			out[k] = f.Interface()
		}
		return out
	case KindCallback:
		return v.cb
	case KindObjectProxy:
		if v.proxy == nil {
			return nil
		}
		return *v.proxy
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	case KindRecord:
		if v.fields == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.fields)
	case KindCallback:
		return json.Marshal(v.cb)
	case KindObjectProxy:
		if v.proxy == nil {
			return []byte("null"), nil
		}
		return json.Marshal(v.proxy)
	default:
		return nil, fmt.Errorf("%s - cannot marshal value of kind %s", valueLogPrefix, v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Records shaped like a callback
// reference or an object proxy descriptor decode to those variants.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := fromDecoded(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func fromDecoded(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%s - invalid number %q: %w", valueLogPrefix, x.String(), err)
		}
		return Number(f), nil
	case float64:
		return Number(x), nil
	case string:
		return String(x), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			iv, err := fromDecoded(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = iv
		}
		return Array(items...), nil
	case map[string]any:
		if id, ok := x["callbackid"].(string); ok && id != "" {
			return Callback(id), nil
		}
		if IsObjectProxy(x) {
			d, err := proxyFromMap(x)
			if err != nil {
				return Value{}, err
			}
			return Proxy(d), nil
		}
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			fv, err := fromDecoded(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = fv
		}
		return Record(fields), nil
	default:
		return Value{}, fmt.Errorf("%s - unexpected decoded type %T", valueLogPrefix, raw)
	}
}
