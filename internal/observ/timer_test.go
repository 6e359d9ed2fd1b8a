package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	base := time.Unix(0, 0)
	ticks := []time.Duration{0, 2 * time.Millisecond, 2 * time.Millisecond, 5 * time.Millisecond}
	i := 0
	tm := NewTimer()
	tm.now = func() time.Time {
		d := ticks[i]
		i++
		return base.Add(d)
	}

	compile := tm.Begin("compile")
	tm.End(compile, "fragment")
	link := tm.Begin("link")
	tm.End(link, "")

	report := tm.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(report.Phases))
	}
	if report.Phases[0].DurationMS != 2 || report.Phases[1].DurationMS != 3 {
		t.Fatalf("unexpected durations %+v", report.Phases)
	}
	if report.TotalMS != 5 {
		t.Fatalf("total = %v, want 5", report.TotalMS)
	}
	summary := tm.Summary()
	if !strings.Contains(summary, "compile") || !strings.Contains(summary, "// fragment") {
		t.Fatalf("summary missing phase data:\n%s", summary)
	}

	tm.Reset()
	if len(tm.Phases()) != 0 {
		t.Fatal("Reset must drop phases")
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	idx := tm.Begin("x")
	tm.End(idx, "")
	tm.Reset()
	if r := tm.Report(); len(r.Phases) != 0 {
		t.Fatal("nil timer must report nothing")
	}
}
