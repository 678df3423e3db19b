package queue

import (
	"encoding/json"
	"reflect"
	"testing"
)

type notifyJob struct {
	ID         string  `json:"id"`
	Instrument string  `json:"instrument_id"`
	SignalType string  `json:"signal_type"`
	Confidence float64 `json:"confidence"`
}

func TestParsePayloadPassthrough(t *testing.T) {
	in := &notifyJob{ID: "s-1", Instrument: "AAPL", SignalType: "STRONG_BUY", Confidence: 0.8}

	out, err := ParsePayload[notifyJob](in)
	if err != nil {
		t.Fatalf("pointer payload: %v", err)
	}
	if out != in {
		t.Error("pointer payload should be returned as is")
	}

	val, err := ParsePayload[notifyJob](*in)
	if err != nil {
		t.Fatalf("value payload: %v", err)
	}
	if !reflect.DeepEqual(*val, *in) {
		t.Errorf("value payload = %+v, want %+v", *val, *in)
	}
}

func TestParsePayloadAfterRedisRoundTrip(t *testing.T) {
	// After a trip through Redis the payload comes back as generic JSON
	// shapes rather than the published type.
	raw, err := json.Marshal(notifyJob{ID: "s-2", Instrument: "MSFT", SignalType: "SELL", Confidence: 0.4})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ParsePayload[notifyJob](json.RawMessage(raw))
	if err != nil {
		t.Fatalf("raw message payload: %v", err)
	}
	if got.Instrument != "MSFT" || got.SignalType != "SELL" {
		t.Errorf("raw message payload = %+v", got)
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	got, err = ParsePayload[notifyJob](generic)
	if err != nil {
		t.Fatalf("generic map payload: %v", err)
	}
	if got.Confidence != 0.4 || got.ID != "s-2" {
		t.Errorf("generic map payload = %+v", got)
	}
}

func TestParsePayloadSliceShape(t *testing.T) {
	out, err := ParsePayload[[]string]([]interface{}{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("slice payload: %v", err)
	}
	if !reflect.DeepEqual(*out, []string{"AAPL", "MSFT"}) {
		t.Errorf("slice payload = %v", *out)
	}
}

func TestParsePayloadRejections(t *testing.T) {
	if _, err := ParsePayload[notifyJob](42); err == nil {
		t.Error("unsupported payload type should fail")
	}
	if _, err := ParsePayload[notifyJob](json.RawMessage(`{nope`)); err == nil {
		t.Error("malformed JSON should fail")
	}
	if _, err := ParsePayload[notifyJob](map[string]interface{}{"confidence": "high"}); err == nil {
		t.Error("mistyped field should fail to decode")
	}
}
