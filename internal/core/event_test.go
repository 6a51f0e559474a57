package core

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRelayEventKeepsPayloadBytes(t *testing.T) {
	raw := json.RawMessage(`{ "sdp": "a=<x>&y" ,"type":"offer" }`)
	msg := RelayEvent(EventOffer, "S1", raw)
	if msg.Binary {
		t.Fatalf("relay must be a text message")
	}
	if !bytes.Contains(msg.Data, raw) {
		t.Fatalf("payload rewritten: %s", msg.Data)
	}
	env, err := DecodeEnvelope(msg.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != EventOffer || env.SessionID != "S1" || !bytes.Equal(env.Data, raw) {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestEncodeEventOmitsEmptyFields(t *testing.T) {
	msg, err := EncodeEvent(EventPong, "", nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Data) != `{"type":"pong"}` {
		t.Fatalf("got %s", msg.Data)
	}
}

func TestDecodeEnvelopeRejectsMissingType(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{"data":1}`)); err == nil {
		t.Fatalf("expected error for envelope without type")
	}
	if _, err := DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for garbage")
	}
}
