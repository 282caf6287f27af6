package transport

import (
	"testing"

	"github.com/R3E-Network/worldcore/internal/dispatcher"
	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

func TestToWireConvertsEntityRef(t *testing.T) {
	got := toWire(&value.EntityRef{ID: 5})
	m, ok := got.(map[string]any)
	if !ok || m["$entity"] != int64(5) {
		t.Fatalf("expected tagged entity map, got %#v", got)
	}
}

func TestToWirePassesThroughPlainValues(t *testing.T) {
	in := []any{"hi", 1.0, map[string]any{"nested": true}}
	got := toWire(in)
	list, ok := got.([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("expected a 3-element list, got %#v", got)
	}
}

func TestResponseFromResultSuccess(t *testing.T) {
	resp, note := responseFromResult(3, dispatcher.Response{Kind: dispatcher.ResponseSuccess, Value: 1.0})
	if resp.ID != 3 || resp.Result != 1.0 || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if note != nil {
		t.Fatalf("expected no accompanying notification, got %+v", note)
	}
}

func TestResponseFromResultError(t *testing.T) {
	resp, _ := responseFromResult(4, dispatcher.Response{Kind: dispatcher.ResponseError, Error: "nope", ErrKind: interp.KindPermissionDenied})
	if resp.Error == nil || resp.Error.Code != 403 || resp.Error.Message != "nope" {
		t.Fatalf("unexpected error response: %+v", resp)
	}
}

func TestResponseFromResultWarnings(t *testing.T) {
	resp, note := responseFromResult(5, dispatcher.Response{Kind: dispatcher.ResponseWarnings, Value: 2.0, Warnings: []string{"careful"}})
	if resp.ID != 5 || resp.Result != 2.0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if note == nil || note.Method != NotifyUpdate {
		t.Fatalf("expected an update notification carrying warnings, got %+v", note)
	}
}

func TestDecodeFrameRejectsMissingMethod(t *testing.T) {
	if _, err := decodeFrame([]byte(`{"id":1,"params":[]}`)); err == nil {
		t.Fatal("expected an error for a frame with no method")
	}
}
