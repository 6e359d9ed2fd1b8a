package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopeReload, true},
		{LevelPhase, ScopeStage, false},
		{LevelDetail, ScopeStage, true},
		{LevelDetail, ScopeEvent, false},
		{LevelDebug, ScopeEvent, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%v.ShouldEmit(%v) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatNDJSON)

	span := Begin(tr, ScopeReload, "reload", 0)
	Point(tr, ScopeEvent, "diagnostic", "dropped at this level", span.ID())
	span.WithExtra("state", "linked").End("ok")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 events, got %d:\n%s", len(lines), buf.String())
	}
	var end struct {
		Kind   string            `json:"kind"`
		Scope  string            `json:"scope"`
		Name   string            `json:"name"`
		Detail string            `json:"detail"`
		Extra  map[string]string `json:"extra"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &end); err != nil {
		t.Fatal(err)
	}
	if end.Kind != "end" || end.Scope != "reload" || end.Name != "reload" || end.Detail != "ok" {
		t.Fatalf("unexpected end event %+v", end)
	}
	if end.Extra["state"] != "linked" {
		t.Fatalf("extra not propagated: %+v", end.Extra)
	}
}

func TestErrorEventsPassAtErrorLevel(t *testing.T) {
	ring := NewRingTracer(8, LevelError)
	Begin(ring, ScopeDriver, "watch", 0).End("")
	Error(ring, ScopeReload, "reload", errors.New("compile failed"), 0)

	events := ring.Snapshot()
	if len(events) != 1 || events[0].Kind != KindError {
		t.Fatalf("expected only the error event, got %+v", events)
	}

	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "reload (compile failed)") {
		t.Fatalf("unexpected dump %q", buf.String())
	}
}

func TestRingWraps(t *testing.T) {
	ring := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(ring, ScopeDriver, name, "", 0)
	}
	events := ring.Snapshot()
	if len(events) != 2 || events[0].Name != "b" || events[1].Name != "c" {
		t.Fatalf("unexpected snapshot %+v", events)
	}
}

func TestDumpTailKeepsNewest(t *testing.T) {
	ring := NewRingTracer(8, LevelDebug)
	for _, name := range []string{"first", "second", "third"} {
		Point(ring, ScopeDriver, name, "", 0)
	}
	var buf bytes.Buffer
	if err := ring.DumpTail(&buf, FormatText, 2); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "first") || !strings.Contains(out, "second") || !strings.Contains(out, "third") {
		t.Fatalf("unexpected tail %q", out)
	}
}

func TestNewAndContext(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("LevelOff must yield a disabled tracer (err=%v)", err)
	}

	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := Ring(tr); !ok {
		t.Fatal("ModeBoth must keep a ring buffer")
	}

	ctx := WithTracer(context.Background(), tr)
	if FromContext(ctx) != tr {
		t.Fatal("FromContext did not return the attached tracer")
	}
	if FromContext(context.Background()) != Nop {
		t.Fatal("missing tracer must fall back to Nop")
	}

	span := Begin(tr, ScopeDriver, "check", 0)
	if CurrentSpan(WithSpan(ctx, span)) != span.ID() {
		t.Fatal("span id not propagated")
	}
}

func TestParseHelpers(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error")
	}
	if f, err := ParseFormat("ndjson"); err != nil || f != FormatNDJSON {
		t.Fatalf("ParseFormat = %v, %v", f, err)
	}
	if m, err := ParseMode("ring"); err != nil || m != ModeRing {
		t.Fatalf("ParseMode = %v, %v", m, err)
	}
}
