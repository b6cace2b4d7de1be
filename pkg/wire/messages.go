// Package wire defines the messages exchanged between web content and the
// native host, plus the argument value model they carry.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const logPrefix = "wire:messages"

// Message targets. The target field is the discriminant of every message.
const (
	TargetBindingCall        = "ubuntu-webapps-binding-call"
	TargetObjectMethodCall   = "ubuntu-webapps-binding-call-object-method"
	TargetCallbackInvocation = "ubuntu-webapps-binding-callback-call"
)

// ObjectProxyType is the type tag carried by object proxy descriptors.
const ObjectProxyType = "object-proxy"

// CallbackRef is the wire form of a function value.
type CallbackRef struct {
	CallbackID string `json:"callbackid"`
}

// ObjectProxyDescriptor represents a native object by identity plus an
// optional snapshot of cached field values.
type ObjectProxyDescriptor struct {
	Type       string           `json:"type"`
	APIID      string           `json:"apiid"`
	ObjectType string           `json:"objecttype"`
	ObjectID   string           `json:"objectid"`
	Content    map[string]Value `json:"content,omitempty"`
}

// NewObjectProxy builds a descriptor with the object-proxy type tag set.
func NewObjectProxy(apiID, objectType, objectID string, content map[string]Value) ObjectProxyDescriptor {
	return ObjectProxyDescriptor{
		Type:       ObjectProxyType,
		APIID:      apiID,
		ObjectType: objectType,
		ObjectID:   objectID,
		Content:    content,
	}
}

// UnmarshalJSON accepts numeric object ids and normalizes them to strings.
func (d *ObjectProxyDescriptor) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	if !IsObjectProxy(m) {
		return fmt.Errorf("%w: not an object proxy descriptor", ErrMalformed)
	}
	out, err := proxyFromMap(m)
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// BindingCall is a flat function call from content to a native namespace.
type BindingCall struct {
	Target   string       `json:"target"`
	Name     string       `json:"name"`
	Args     string       `json:"args"`
	Callback *CallbackRef `json:"callback"`
}

// ObjectMethodCall is a method call on a remote native object.
type ObjectMethodCall struct {
	Target    string       `json:"target"`
	ObjectID  string       `json:"objectid"`
	Name      string       `json:"name"`
	APIURI    string       `json:"api_uri"`
	ClassName string       `json:"class_name"`
	Args      string       `json:"args"`
	Callback  *CallbackRef `json:"callback"`
}

// CallbackInvocation asks the content side to run a registered callback.
type CallbackInvocation struct {
	Target string  `json:"target"`
	ID     string  `json:"id"`
	Args   []Value `json:"args"`
}

// NewBindingCall builds a BindingCall message.
func NewBindingCall(name string, args []Value, callback *CallbackRef) (*BindingCall, error) {
	encoded, err := EncodeArgs(args)
	if err != nil {
		return nil, err
	}
	return &BindingCall{Target: TargetBindingCall, Name: name, Args: encoded, Callback: callback}, nil
}

// NewObjectMethodCall builds an ObjectMethodCall message.
func NewObjectMethodCall(objectID, apiURI, className, name string, args []Value, callback *CallbackRef) (*ObjectMethodCall, error) {
	encoded, err := EncodeArgs(args)
	if err != nil {
		return nil, err
	}
	return &ObjectMethodCall{
		Target:    TargetObjectMethodCall,
		ObjectID:  objectID,
		Name:      name,
		APIURI:    apiURI,
		ClassName: className,
		Args:      encoded,
		Callback:  callback,
	}, nil
}

// NewCallbackInvocation builds a CallbackInvocation message.
func NewCallbackInvocation(id string, args []Value) *CallbackInvocation {
	if args == nil {
		args = []Value{}
	}
	return &CallbackInvocation{Target: TargetCallbackInvocation, ID: id, Args: args}
}

// EncodeArgs renders an argument list as JSON array text.
func EncodeArgs(args []Value) (string, error) {
	if args == nil {
		args = []Value{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%s - encode args: %w", logPrefix, err)
	}
	return string(data), nil
}

// DecodeArgs parses JSON array text into an argument list.
func DecodeArgs(encoded string) ([]Value, error) {
	var v Value
	if err := json.Unmarshal([]byte(encoded), &v); err != nil {
		return nil, fmt.Errorf("%w: args: %v", ErrMalformed, err)
	}
	if v.Kind() != KindArray {
		return nil, fmt.Errorf("%w: args is a JSON %s, not an array", ErrMalformed, v.Kind())
	}
	return v.Items(), nil
}

// Marshal serializes any message to its string form.
func Marshal(msg any) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("%s - marshal message: %w", logPrefix, err)
	}
	return string(data), nil
}

// MessageKind identifies the decoded message variant.
type MessageKind int

// Decoded message variants.
const (
	MessageUnknown MessageKind = iota
	MessageBindingCall
	MessageObjectMethodCall
	MessageCallbackInvocation
)

// Envelope is a decoded message. Exactly one of the variant pointers is set
// unless Kind is MessageUnknown.
type Envelope struct {
	Kind               MessageKind
	Target             string
	BindingCall        *BindingCall
	ObjectMethodCall   *ObjectMethodCall
	CallbackInvocation *CallbackInvocation
}

// Decode parses a raw message. Unknown targets decode to MessageUnknown
// without error; anything that is not a JSON object with a string target is
// malformed.
func Decode(raw string) (*Envelope, error) {
	var head struct {
		Target *string `json:"target"`
	}
	if err := json.Unmarshal([]byte(raw), &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if head.Target == nil || *head.Target == "" {
		return nil, fmt.Errorf("%w: missing target", ErrMalformed)
	}

	env := &Envelope{Target: *head.Target}
	switch env.Target {
	case TargetBindingCall:
		var m BindingCall
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("%w: binding call: %v", ErrMalformed, err)
		}
		m.Callback = normalizeCallback(m.Callback)
		env.Kind = MessageBindingCall
		env.BindingCall = &m
	case TargetObjectMethodCall:
		var m ObjectMethodCall
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("%w: object method call: %v", ErrMalformed, err)
		}
		m.Callback = normalizeCallback(m.Callback)
		env.Kind = MessageObjectMethodCall
		env.ObjectMethodCall = &m
	case TargetCallbackInvocation:
		var m CallbackInvocation
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("%w: callback invocation: %v", ErrMalformed, err)
		}
		env.Kind = MessageCallbackInvocation
		env.CallbackInvocation = &m
	default:
		env.Kind = MessageUnknown
	}
	return env, nil
}

func normalizeCallback(ref *CallbackRef) *CallbackRef {
	if ref == nil || ref.CallbackID == "" {
		return nil
	}
	return ref
}

// IsObjectProxy reports whether a decoded JSON object has the object proxy
// shape: type "object-proxy" and non-null apiid, objecttype and objectid.
func IsObjectProxy(m map[string]any) bool {
	if m == nil {
		return false
	}
	if t, ok := m["type"].(string); !ok || t != ObjectProxyType {
		return false
	}
	for _, k := range []string{"apiid", "objecttype", "objectid"} {
		if v, ok := m[k]; !ok || v == nil {
			return false
		}
	}
	return true
}

func proxyFromMap(m map[string]any) (ObjectProxyDescriptor, error) {
	d := ObjectProxyDescriptor{Type: ObjectProxyType}
	d.APIID = scalarString(m["apiid"])
	d.ObjectType = scalarString(m["objecttype"])
	d.ObjectID = scalarString(m["objectid"])

	if raw, ok := m["content"].(map[string]any); ok {
		d.Content = make(map[string]Value, len(raw))
		for k, item := range raw {
			v, err := fromDecoded(item)
			if err != nil {
				return ObjectProxyDescriptor{}, err
			}
			d.Content[k] = v
		}
	}
	return d, nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
