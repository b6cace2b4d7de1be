package commsutil

import (
	"encoding/json"
	"testing"
)

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    string
		wantErr bool
	}{
		{
			name:  "lifecycle fields",
			input: map[string]interface{}{"action": "deleted", "live": 0},
			want:  `{"action":"deleted","live":0}`,
		},
		{
			name:  "nil",
			input: nil,
			want:  "null",
		},
		{
			name:    "channel is not serializable",
			input:   make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePayload(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("commsutil:codec_test - EncodePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(data) != tt.want {
				t.Errorf("commsutil:codec_test - EncodePayload() = %q, want %q", data, tt.want)
			}
		})
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	for _, data := range []string{`{invalid}`, ""} {
		var target map[string]string
		if err := DecodePayload([]byte(data), &target); err == nil {
			t.Errorf("commsutil:codec_test - expected an error for %q", data)
		}
	}
}

func TestDecodePayload_KeepsNumbers(t *testing.T) {
	var decoded map[string]interface{}
	if err := DecodePayload([]byte(`{"objectid":12345678901234567}`), &decoded); err != nil {
		t.Fatalf("commsutil:codec_test - decode failed: %v", err)
	}
	n, ok := decoded["objectid"].(json.Number)
	if !ok {
		t.Fatalf("commsutil:codec_test - expected json.Number, got %T", decoded["objectid"])
	}
	if n.String() != "12345678901234567" {
		t.Errorf("commsutil:codec_test - precision lost: %s", n.String())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	type TestPayload struct {
		Action    string `json:"action"`
		ObjectID  string `json:"objectId"`
		URI       string `json:"uri"`
		ClassName string `json:"className"`
	}

	original := TestPayload{
		Action:    "registered",
		ObjectID:  "AlarmAlarm0",
		URI:       "Alarm",
		ClassName: "Alarm",
	}

	data, err := EncodePayload(original)
	if err != nil {
		t.Fatalf("commsutil:codec_test - encode failed: %v", err)
	}

	var decoded TestPayload
	err = DecodePayload(data, &decoded)
	if err != nil {
		t.Fatalf("commsutil:codec_test - decode failed: %v", err)
	}

	if decoded != original {
		t.Errorf("commsutil:codec_test - round trip = %+v, want %+v", decoded, original)
	}
}
