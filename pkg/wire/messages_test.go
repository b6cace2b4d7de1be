package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestBindingCall_MarshalNullCallback(t *testing.T) {
	msg, err := NewBindingCall("Launcher.setCount", []Value{Number(5)}, nil)
	if err != nil {
		t.Fatalf("wire:messages_test - unexpected error: %v", err)
	}
	raw, err := Marshal(msg)
	if err != nil {
		t.Fatalf("wire:messages_test - marshal failed: %v", err)
	}
	want := `{"target":"ubuntu-webapps-binding-call","name":"Launcher.setCount","args":"[5]","callback":null}`
	if raw != want {
		t.Errorf("wire:messages_test - expected %s, got %s", want, raw)
	}
}

func TestBindingCall_MarshalWithCallback(t *testing.T) {
	msg, err := NewBindingCall("Alarm.createAlarm", nil, &CallbackRef{CallbackID: "ubuntu-webapps-api1"})
	if err != nil {
		t.Fatalf("wire:messages_test - unexpected error: %v", err)
	}
	raw, _ := Marshal(msg)
	want := `{"target":"ubuntu-webapps-binding-call","name":"Alarm.createAlarm","args":"[]","callback":{"callbackid":"ubuntu-webapps-api1"}}`
	if raw != want {
		t.Errorf("wire:messages_test - expected %s, got %s", want, raw)
	}
}

func TestObjectMethodCall_MarshalKeys(t *testing.T) {
	msg, err := NewObjectMethodCall("AlarmAlarm0", "Alarm", "Alarm", "setEnabled", []Value{Bool(true)}, nil)
	if err != nil {
		t.Fatalf("wire:messages_test - unexpected error: %v", err)
	}
	raw, _ := Marshal(msg)
	want := `{"target":"ubuntu-webapps-binding-call-object-method","objectid":"AlarmAlarm0","name":"setEnabled","api_uri":"Alarm","class_name":"Alarm","args":"[true]","callback":null}`
	if raw != want {
		t.Errorf("wire:messages_test - expected %s, got %s", want, raw)
	}
}

func TestDecode_Variants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind MessageKind
	}{
		{
			name: "binding call",
			raw:  `{"target":"ubuntu-webapps-binding-call","name":"Launcher.clearCount","args":"[]","callback":null}`,
			kind: MessageBindingCall,
		},
		{
			name: "object method call",
			raw:  `{"target":"ubuntu-webapps-binding-call-object-method","objectid":"x","name":"m","api_uri":"A","class_name":"B","args":"[]","callback":null}`,
			kind: MessageObjectMethodCall,
		},
		{
			name: "callback invocation",
			raw:  `{"target":"ubuntu-webapps-binding-callback-call","id":"cb1","args":[1,"two"]}`,
			kind: MessageCallbackInvocation,
		},
		{
			name: "unknown target",
			raw:  `{"target":"something-else","payload":1}`,
			kind: MessageUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode(tt.raw)
			if err != nil {
				t.Fatalf("wire:messages_test - unexpected error: %v", err)
			}
			if env.Kind != tt.kind {
				t.Errorf("wire:messages_test - expected kind %d, got %d", tt.kind, env.Kind)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `hello`},
		{name: "array", raw: `[1,2]`},
		{name: "missing target", raw: `{"name":"Launcher.setCount"}`},
		{name: "numeric target", raw: `{"target":5}`},
		{name: "args wrong type", raw: `{"target":"ubuntu-webapps-binding-call","name":"a.b","args":[5]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("wire:messages_test - expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecode_NullCallbackIDIsNoCallback(t *testing.T) {
	env, err := Decode(`{"target":"ubuntu-webapps-binding-call","name":"a.b","args":"[]","callback":{"callbackid":null}}`)
	if err != nil {
		t.Fatalf("wire:messages_test - unexpected error: %v", err)
	}
	if env.BindingCall.Callback != nil {
		t.Errorf("wire:messages_test - expected nil callback, got %+v", env.BindingCall.Callback)
	}
}

func TestDecodeArgs_ClassifiesReferences(t *testing.T) {
	args, err := DecodeArgs(`[{"callbackid":"cb-1"},{"type":"object-proxy","apiid":"Alarm","objecttype":"Alarm","objectid":7,"content":{"enabled":true}},{"type":"object-proxy","apiid":null},{"a":[1,null]}]`)
	if err != nil {
		t.Fatalf("wire:messages_test - unexpected error: %v", err)
	}
	if len(args) != 4 {
		t.Fatalf("wire:messages_test - expected 4 args, got %d", len(args))
	}

	ref, ok := args[0].CallbackRef()
	if !ok || ref.CallbackID != "cb-1" {
		t.Errorf("wire:messages_test - expected callback cb-1, got %v", args[0].Interface())
	}

	proxy, ok := args[1].ObjectProxy()
	if !ok {
		t.Fatalf("wire:messages_test - expected object proxy, got kind %s", args[1].Kind())
	}
	if proxy.ObjectID != "7" {
		t.Errorf("wire:messages_test - expected numeric objectid normalized to \"7\", got %q", proxy.ObjectID)
	}
	if !proxy.Content["enabled"].AsBool() {
		t.Errorf("wire:messages_test - expected cached content enabled=true")
	}

	if args[2].Kind() != KindRecord {
		t.Errorf("wire:messages_test - incomplete proxy should stay a record, got %s", args[2].Kind())
	}
	if args[3].Kind() != KindRecord {
		t.Errorf("wire:messages_test - expected record, got %s", args[3].Kind())
	}
	inner := args[3].Fields()["a"].Items()
	if len(inner) != 2 || inner[0].AsNumber() != 1 || !inner[1].IsNull() {
		t.Errorf("wire:messages_test - nested array not preserved: %v", args[3].Interface())
	}
}

func TestDecodeArgs_RejectsNonArray(t *testing.T) {
	if _, err := DecodeArgs(`{"a":1}`); !errors.Is(err, ErrMalformed) {
		t.Errorf("wire:messages_test - expected ErrMalformed, got %v", err)
	}
}

func TestCallbackInvocation_RoundTrip(t *testing.T) {
	proxy := NewObjectProxy("Alarm", "Alarm", "Alarm_Alarm0", nil)
	msg := NewCallbackInvocation("cb-9", []Value{Proxy(proxy)})
	raw, err := Marshal(msg)
	if err != nil {
		t.Fatalf("wire:messages_test - marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("wire:messages_test - invalid json: %v", err)
	}
	args := decoded["args"].([]any)
	first := args[0].(map[string]any)
	if first["type"] != "object-proxy" || first["objectid"] != "Alarm_Alarm0" {
		t.Errorf("wire:messages_test - unexpected proxy encoding: %v", first)
	}
	if _, has := first["content"]; has {
		t.Errorf("wire:messages_test - empty content should be omitted")
	}

	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("wire:messages_test - decode failed: %v", err)
	}
	got, ok := env.CallbackInvocation.Args[0].ObjectProxy()
	if !ok || got.ObjectID != "Alarm_Alarm0" || got.APIID != "Alarm" {
		t.Errorf("wire:messages_test - proxy did not survive round trip: %+v", got)
	}
}

func TestValidators(t *testing.T) {
	if err := ValidateBindingCall(&BindingCall{Target: TargetBindingCall, Name: "", Args: "[]"}); !errors.Is(err, ErrMalformed) {
		t.Errorf("wire:messages_test - empty name should be malformed, got %v", err)
	}
	if err := ValidateBindingCall(&BindingCall{Target: TargetBindingCall, Name: "A.b", Args: ""}); !errors.Is(err, ErrMalformed) {
		t.Errorf("wire:messages_test - empty args should be malformed, got %v", err)
	}
	if err := ValidateBindingCall(&BindingCall{Target: TargetBindingCall, Name: "A.b", Args: "[]"}); err != nil {
		t.Errorf("wire:messages_test - unexpected error: %v", err)
	}

	omc := &ObjectMethodCall{Target: TargetObjectMethodCall, ObjectID: "o", Name: "m", APIURI: "A", ClassName: "", Args: "[]"}
	if err := ValidateObjectMethodCall(omc); !errors.Is(err, ErrMalformed) {
		t.Errorf("wire:messages_test - missing class_name should be malformed, got %v", err)
	}
	omc.ClassName = "C"
	if err := ValidateObjectMethodCall(omc); err != nil {
		t.Errorf("wire:messages_test - unexpected error: %v", err)
	}

	if err := ValidateCallbackInvocation(&CallbackInvocation{Target: TargetCallbackInvocation, ID: "x"}); !errors.Is(err, ErrMalformed) {
		t.Errorf("wire:messages_test - missing args should be malformed, got %v", err)
	}
}

func TestIsObjectProxy(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want bool
	}{
		{name: "complete", in: map[string]any{"type": "object-proxy", "apiid": "a", "objecttype": "b", "objectid": "c"}, want: true},
		{name: "numeric id", in: map[string]any{"type": "object-proxy", "apiid": "a", "objecttype": "b", "objectid": 0.0}, want: true},
		{name: "wrong type", in: map[string]any{"type": "proxy", "apiid": "a", "objecttype": "b", "objectid": "c"}, want: false},
		{name: "null objectid", in: map[string]any{"type": "object-proxy", "apiid": "a", "objecttype": "b", "objectid": nil}, want: false},
		{name: "nil map", in: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsObjectProxy(tt.in); got != tt.want {
				t.Errorf("wire:messages_test - expected %v, got %v", tt.want, got)
			}
		})
	}
}
