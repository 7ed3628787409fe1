package progress

import "testing"

func TestMulti_FansOutInOrder(t *testing.T) {
	var got []string
	a := ReporterFunc(func(e Event) { got = append(got, "a:"+e.Stage) })
	b := ReporterFunc(func(e Event) { got = append(got, "b:"+e.Stage) })

	r := Multi(a, nil, b)
	r.Report(Event{Stage: StageParsing})
	r.Report(Event{Stage: StageComplete})

	want := []string{"a:parsing", "b:parsing", "a:complete", "b:complete"}
	if len(got) != len(want) {
		t.Fatalf("expected %d calls, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOrDiscard(t *testing.T) {
	r := OrDiscard(nil)
	r.Report(Event{Stage: StageError}) // must not panic

	called := false
	r = OrDiscard(ReporterFunc(func(Event) { called = true }))
	r.Report(Event{})
	if !called {
		t.Error("expected wrapped reporter to be called")
	}
}
