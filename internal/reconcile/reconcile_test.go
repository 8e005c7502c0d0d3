package reconcile

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"tfvc/internal/vc"
)

type fakeQuerier struct {
	pending    []vc.PendingChange
	candidates []vc.CandidateChange
	unchanged  map[string]bool
	err        error

	candidateScope []vc.ItemSpec
	candidateOpts  Candidates
	pendingScope   []vc.ItemSpec
	pendingCalled  bool
}

func (f *fakeQuerier) PendingChanges(_ context.Context, scope []vc.ItemSpec) ([]vc.PendingChange, error) {
	f.pendingCalled = true
	f.pendingScope = scope
	return f.pending, f.err
}

func (f *fakeQuerier) PendingChangesWithCandidates(_ context.Context, scope []vc.ItemSpec, cand Candidates) ([]vc.PendingChange, []vc.CandidateChange, error) {
	f.candidateScope = scope
	f.candidateOpts = cand
	return f.pending, f.candidates, f.err
}

func (f *fakeQuerier) IsUnchanged(_ context.Context, c vc.PendingChange) (bool, error) {
	return f.unchanged[c.ServerItem], nil
}

type countingAsker struct {
	answer bool
	calls  int
}

func (a *countingAsker) Ask(string) (bool, error) {
	a.calls++
	return a.answer, nil
}

func candidate(ct vc.ChangeType, local, server string) vc.CandidateChange {
	return vc.CandidateChange{PendingChange: vc.PendingChange{ChangeType: ct, LocalItem: local, ServerItem: server}}
}

func TestDetectAddFiltersCandidates(t *testing.T) {
	q := &fakeQuerier{candidates: []vc.CandidateChange{
		candidate(vc.ChangeAdd, "/ws/x.txt", "$/p/x.txt"),
		candidate(vc.ChangeDelete, "/ws/gone.txt", "$/p/gone.txt"),
		candidate(vc.ChangeEdit, "/ws/e.txt", "$/p/e.txt"),
		candidate(vc.ChangeAdd, "/ws/x.txt", "$/p/x.txt"),
	}}

	res, err := Reconcile(context.Background(), q, Request{Policy: DetectAdd, Root: "/ws"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Outcome != Targets {
		t.Fatalf("outcome = %v, want Targets", res.Outcome)
	}
	if len(res.Targets) != 1 || res.Targets[0].Path != "/ws/x.txt" || res.Targets[0].Recursion != vc.RecursionNone {
		t.Errorf("targets = %+v", res.Targets)
	}

	if len(q.candidateScope) != 1 || q.candidateScope[0].Path != "/ws" || q.candidateScope[0].Recursion != vc.RecursionFull {
		t.Errorf("default scope = %+v, want workspace root with full recursion", q.candidateScope)
	}
}

func TestDetectDeleteEmpty(t *testing.T) {
	q := &fakeQuerier{candidates: []vc.CandidateChange{candidate(vc.ChangeAdd, "/ws/new.txt", "")}}

	res, err := Reconcile(context.Background(), q, Request{Policy: DetectDelete, Root: "/ws"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Outcome != Empty || len(res.Targets) != 0 {
		t.Errorf("result = %+v, want Empty", res)
	}
}

func TestDetectUsesExplicitScope(t *testing.T) {
	q := &fakeQuerier{}
	scope := []vc.ItemSpec{{Path: "/ws/src", Recursion: vc.RecursionOneLevel}}
	if _, err := Reconcile(context.Background(), q, Request{Policy: DetectAdd, Root: "/ws", Scope: scope}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !reflect.DeepEqual(q.candidateScope, scope) {
		t.Errorf("scope = %+v, want %+v", q.candidateScope, scope)
	}
}

func TestDetectForwardsNoIgnore(t *testing.T) {
	for _, noIgnore := range []bool{false, true} {
		q := &fakeQuerier{}
		if _, err := Reconcile(context.Background(), q, Request{Policy: DetectAdd, Root: "/ws", NoIgnore: noIgnore}); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		want := Candidates{Include: true, NoIgnore: noIgnore}
		if q.candidateOpts != want {
			t.Errorf("NoIgnore=%v: query options = %+v, want %+v", noIgnore, q.candidateOpts, want)
		}
	}
}

func TestUndoUnchangedNoPrompt(t *testing.T) {
	q := &fakeQuerier{
		pending: []vc.PendingChange{
			{ChangeType: vc.ChangeEdit, ServerItem: "$/p/same.txt"},
			{ChangeType: vc.ChangeEdit, ServerItem: "$/p/diff.txt"},
		},
		unchanged: map[string]bool{"$/p/same.txt": true},
	}
	asker := &countingAsker{answer: false}

	res, err := Reconcile(context.Background(), q, Request{Policy: UndoUnchanged, NoPrompt: true, Asker: asker})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Outcome != Targets || len(res.Targets) != 1 || res.Targets[0].Path != "$/p/same.txt" {
		t.Errorf("result = %+v", res)
	}
	if asker.calls != 0 {
		t.Errorf("asker called %d times with noprompt", asker.calls)
	}
	if q.pendingScope != nil {
		t.Errorf("whole-workspace query expected, got scope %+v", q.pendingScope)
	}
}

func TestUndoUnchangedAsksOnce(t *testing.T) {
	q := &fakeQuerier{
		pending: []vc.PendingChange{
			{ChangeType: vc.ChangeEdit, ServerItem: "$/p/a.txt"},
			{ChangeType: vc.ChangeEdit, ServerItem: "$/p/b.txt"},
		},
		unchanged: map[string]bool{"$/p/a.txt": true, "$/p/b.txt": true},
	}

	yes := &countingAsker{answer: true}
	res, err := Reconcile(context.Background(), q, Request{Policy: UndoUnchanged, Asker: yes})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if yes.calls != 1 {
		t.Errorf("asker called %d times, want 1", yes.calls)
	}
	if res.Outcome != Targets || len(res.Targets) != 2 {
		t.Errorf("result = %+v", res)
	}

	no := &countingAsker{answer: false}
	res, err = Reconcile(context.Background(), q, Request{Policy: UndoUnchanged, Asker: no})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if no.calls != 1 || res.Outcome != Declined || len(res.Targets) != 0 {
		t.Errorf("declined result = %+v after %d calls", res, no.calls)
	}
}

func TestUndoUnchangedAllModified(t *testing.T) {
	q := &fakeQuerier{pending: []vc.PendingChange{{ChangeType: vc.ChangeEdit, ServerItem: "$/p/a.txt"}}}
	asker := &countingAsker{answer: true}

	res, err := Reconcile(context.Background(), q, Request{Policy: UndoUnchanged, Asker: asker})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Outcome != Empty {
		t.Errorf("outcome = %v, want Empty", res.Outcome)
	}
	if asker.calls != 0 {
		t.Error("asker must not be called when nothing is unchanged")
	}
}

func TestReconcilePropagatesQueryErrors(t *testing.T) {
	boom := errors.New("server unavailable")
	for _, p := range []Policy{DetectAdd, DetectDelete, UndoUnchanged} {
		_, err := Reconcile(context.Background(), &fakeQuerier{err: boom}, Request{Policy: p, NoPrompt: true})
		if !errors.Is(err, boom) {
			t.Errorf("%v: err = %v, want %v", p, err, boom)
		}
	}
}
