package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParamsMarshalPreservesOrder(t *testing.T) {
	ps := Params{P("symbol", "AAPL"), P("change", "6.00"), P("attempt", 3), P("err", errors.New("boom"))}
	b, err := json.Marshal(ps)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"symbol":"AAPL","change":"6.00","attempt":3,"err":"boom"}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestParamsMarshalEmpty(t *testing.T) {
	b, err := json.Marshal(Params(nil))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{}` {
		t.Errorf("got %s, want {}", b)
	}
}

func TestJSONEmitterWritesOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONEmitter(&buf)
	e.Emit(CycleStarted, P("cycle", "abc"), P("assets", 2))
	e.Emit(AlertFired, P("symbol", "AAPL"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var rec struct {
		Code   string         `json:"code"`
		Params map[string]any `json:"params"`
		Time   string         `json:"time"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if rec.Code != "CYCLE_STARTED" {
		t.Errorf("code = %q", rec.Code)
	}
	if rec.Params["cycle"] != "abc" || rec.Params["assets"] != float64(2) {
		t.Errorf("unexpected params: %v", rec.Params)
	}
	if rec.Time == "" {
		t.Error("expected a timestamp")
	}
	if strings.Index(lines[0], `"cycle"`) > strings.Index(lines[0], `"assets"`) {
		t.Errorf("params out of order: %s", lines[0])
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Emit(AlertFired, P("symbol", "AAPL"))
	r.Emit(BelowThreshold, P("symbol", "MSFT"))
	r.Emit(AlertFired, P("symbol", "TSLA"))

	if got := r.Count(AlertFired); got != 2 {
		t.Errorf("Count(AlertFired) = %d, want 2", got)
	}
	codes := r.Codes()
	if len(codes) != 3 || codes[1] != BelowThreshold {
		t.Errorf("unexpected codes: %v", codes)
	}
	v, ok := r.Records()[2].Params.Get("symbol")
	if !ok || v != "TSLA" {
		t.Errorf("Get(symbol) = %v, %v", v, ok)
	}
}
