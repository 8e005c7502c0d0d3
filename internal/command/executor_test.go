package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"tfvc/internal/option"
	"tfvc/internal/reconcile"
	"tfvc/internal/vc"
	"tfvc/internal/workspace"
)

type call struct {
	op  string
	req workspace.Request
}

type fakeWorkspace struct {
	pending    []vc.PendingChange
	candidates []vc.CandidateChange
	unchanged  map[string]bool
	affected   int // -1 means len(req.Items)
	warn       string

	notify func(string)
	calls  []call
	cand   reconcile.Candidates
	closed bool
}

func (f *fakeWorkspace) record(op string, req workspace.Request) (int, error) {
	f.calls = append(f.calls, call{op: op, req: req})
	if f.warn != "" && f.notify != nil {
		f.notify(f.warn)
	}
	if f.affected < 0 {
		return len(req.Items), nil
	}
	return f.affected, nil
}

func (f *fakeWorkspace) Root() string { return "/ws" }

func (f *fakeWorkspace) PendingChanges(_ context.Context, scope []vc.ItemSpec) ([]vc.PendingChange, error) {
	return f.pending, nil
}

func (f *fakeWorkspace) PendingChangesWithCandidates(_ context.Context, _ []vc.ItemSpec, cand reconcile.Candidates) ([]vc.PendingChange, []vc.CandidateChange, error) {
	f.cand = cand
	if !cand.Include {
		return f.pending, nil, nil
	}
	return f.pending, f.candidates, nil
}

func (f *fakeWorkspace) IsUnchanged(_ context.Context, c vc.PendingChange) (bool, error) {
	return f.unchanged[c.ServerItem], nil
}

func (f *fakeWorkspace) PendAdd(_ context.Context, req workspace.Request) (int, error) {
	return f.record("add", req)
}

func (f *fakeWorkspace) PendDelete(_ context.Context, req workspace.Request) (int, error) {
	return f.record("delete", req)
}

func (f *fakeWorkspace) PendEdit(_ context.Context, req workspace.Request) (int, error) {
	return f.record("edit", req)
}

func (f *fakeWorkspace) PendRename(_ context.Context, req workspace.Request) (int, error) {
	return f.record("rename", req)
}

func (f *fakeWorkspace) PendUndelete(_ context.Context, req workspace.Request) (int, error) {
	return f.record("undelete", req)
}

func (f *fakeWorkspace) SetLock(_ context.Context, req workspace.Request) (int, error) {
	return f.record("lock", req)
}

func (f *fakeWorkspace) Undo(_ context.Context, req workspace.Request) (int, error) {
	return f.record("undo", req)
}

func (f *fakeWorkspace) Checkin(_ context.Context, req workspace.Request) (workspace.Changeset, error) {
	n, _ := f.record("checkin", req)
	return workspace.Changeset{Number: 7, Comment: req.Comment, Count: n}, nil
}

func (f *fakeWorkspace) Close() error {
	f.closed = true
	return nil
}

type countingAsker struct {
	answer bool
	calls  int
}

func (a *countingAsker) Ask(string) (bool, error) {
	a.calls++
	return a.answer, nil
}

type recordingReporter struct {
	info, errs []string
}

func (r *recordingReporter) Info(msg string)  { r.info = append(r.info, msg) }
func (r *recordingReporter) Error(msg string) { r.errs = append(r.errs, msg) }

type harness struct {
	ws     *fakeWorkspace
	asker  *countingAsker
	rep    *recordingReporter
	out    *bytes.Buffer
	opened int
	exec   *Executor
}

func newHarness(ws *fakeWorkspace) *harness {
	h := &harness{ws: ws, asker: &countingAsker{answer: true}, rep: &recordingReporter{}, out: &bytes.Buffer{}}
	h.exec = &Executor{
		Registry: DefaultRegistry(),
		Open: func(_ context.Context, notify func(string)) (workspace.Workspace, error) {
			h.opened++
			ws.notify = notify
			return ws, nil
		},
		Asker:    h.asker,
		Reporter: h.rep,
		Out:      h.out,
		WorkDir:  "/ws",
		Global:   []option.Kind{option.Verbose},
	}
	return h
}

func switches(kinds ...option.Kind) option.Set {
	opts := make([]option.Option, len(kinds))
	for i, k := range kinds {
		opts[i] = option.Option{Kind: k, Value: true}
	}
	return option.NewSet(opts...)
}

func (h *harness) hasInfo(s string) bool {
	for _, m := range h.rep.info {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

func TestScenarioAddDetectsUntracked(t *testing.T) {
	ws := &fakeWorkspace{affected: -1, candidates: []vc.CandidateChange{
		{PendingChange: vc.PendingChange{ChangeType: vc.ChangeAdd, LocalItem: "/ws/x.txt", ServerItem: "$/p/x.txt"}},
		{PendingChange: vc.PendingChange{ChangeType: vc.ChangeEdit, LocalItem: "/ws/e.txt", ServerItem: "$/p/e.txt"}},
	}}
	h := newHarness(ws)

	code, err := h.exec.Execute(context.Background(), "add", option.NewSet(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != ExitSuccess {
		t.Errorf("exit = %v, want success", code)
	}
	if len(ws.calls) != 1 || ws.calls[0].op != "add" {
		t.Fatalf("calls = %+v", ws.calls)
	}
	items := ws.calls[0].req.Items
	if len(items) != 1 || items[0].Path != "/ws/x.txt" {
		t.Errorf("pendAdd items = %+v", items)
	}
	if !ws.closed {
		t.Error("workspace not closed")
	}
}

func TestAddDetectEmptyNeverPends(t *testing.T) {
	h := newHarness(&fakeWorkspace{affected: -1})

	code, err := h.exec.Execute(context.Background(), "add", switches(option.Detect), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != ExitPartialSuccess {
		t.Errorf("exit = %v, want partial success", code)
	}
	if len(h.ws.calls) != 0 {
		t.Errorf("unexpected calls %+v", h.ws.calls)
	}
	if !h.hasInfo("No adds detected.") {
		t.Errorf("info = %v", h.rep.info)
	}
}

func TestAddDetectNoIgnore(t *testing.T) {
	ws := &fakeWorkspace{affected: -1, candidates: []vc.CandidateChange{
		{PendingChange: vc.PendingChange{ChangeType: vc.ChangeAdd, LocalItem: "/ws/x.tmp", ServerItem: "$/p/x.tmp"}},
	}}
	h := newHarness(ws)

	code, err := h.exec.Execute(context.Background(), "add", switches(option.Detect, option.NoIgnore), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != ExitSuccess {
		t.Errorf("exit = %v, want success", code)
	}
	if want := (reconcile.Candidates{Include: true, NoIgnore: true}); ws.cand != want {
		t.Errorf("candidate query = %+v, want %+v", ws.cand, want)
	}
	if len(ws.calls) != 1 || ws.calls[0].req.Pend != workspace.PendNoIgnore {
		t.Errorf("calls = %+v, want one add with PendNoIgnore", ws.calls)
	}
}

func TestScenarioDeleteDetectNothing(t *testing.T) {
	h := newHarness(&fakeWorkspace{affected: -1, candidates: []vc.CandidateChange{
		{PendingChange: vc.PendingChange{ChangeType: vc.ChangeAdd, LocalItem: "/ws/new.txt"}},
	}})

	code, err := h.exec.Execute(context.Background(), "delete", switches(option.Detect), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != ExitPartialSuccess {
		t.Errorf("exit = %v, want partial success", code)
	}
	if len(h.ws.calls) != 0 {
		t.Errorf("unexpected calls %+v", h.ws.calls)
	}
	if !h.hasInfo("No deletes detected.") {
		t.Errorf("info = %v", h.rep.info)
	}
}

func TestScenarioCheckoutWithoutArgs(t *testing.T) {
	h := newHarness(&fakeWorkspace{})

	code, err := h.exec.Execute(context.Background(), "checkout", option.NewSet(), nil)
	if code != ExitFailure {
		t.Errorf("exit = %v, want failure", code)
	}
	if Classify(err) != ClassArgument {
		t.Errorf("class = %v (%v), want argument error", Classify(err), err)
	}
	if h.opened != 0 {
		t.Error("workspace opened despite argument error")
	}
	if len(h.rep.errs) != 1 {
		t.Errorf("errors reported = %v", h.rep.errs)
	}
}

func TestScenarioLockMissingLevel(t *testing.T) {
	h := newHarness(&fakeWorkspace{})

	code, err := h.exec.Execute(context.Background(), "lock", switches(option.Recursive), []string{"a.txt"})
	if code != ExitFailure {
		t.Errorf("exit = %v, want failure", code)
	}
	var resErr *option.ResolutionError
	if !errors.As(err, &resErr) || resErr.Reason != option.MissingRequiredOption {
		t.Fatalf("err = %v, want missing required option", err)
	}
	if len(resErr.Options) != 1 || resErr.Options[0] != option.Lock {
		t.Errorf("missing = %v", resErr.Options)
	}
	if h.opened != 0 {
		t.Error("workspace opened despite option error")
	}
	if !h.hasInfo("Usage:") {
		t.Error("usage not reported")
	}
}

func TestScenarioUndoUnchangedNoPrompt(t *testing.T) {
	ws := &fakeWorkspace{
		affected: -1,
		pending: []vc.PendingChange{
			{ChangeType: vc.ChangeEdit, ServerItem: "$/p/same.txt"},
			{ChangeType: vc.ChangeEdit, ServerItem: "$/p/changed.txt"},
		},
		unchanged: map[string]bool{"$/p/same.txt": true},
	}
	h := newHarness(ws)

	code, err := h.exec.Execute(context.Background(), "undo", switches(option.Unchanged, option.NoPrompt), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != ExitSuccess {
		t.Errorf("exit = %v, want success", code)
	}
	if h.asker.calls != 0 {
		t.Errorf("asker called %d times", h.asker.calls)
	}
	if len(ws.calls) != 1 || ws.calls[0].op != "undo" {
		t.Fatalf("calls = %+v", ws.calls)
	}
	if items := ws.calls[0].req.Items; len(items) != 1 || items[0].Path != "$/p/same.txt" {
		t.Errorf("undo items = %+v", items)
	}
}

func TestUndoUnchangedAsksOnce(t *testing.T) {
	ws := &fakeWorkspace{
		affected:  -1,
		pending:   []vc.PendingChange{{ChangeType: vc.ChangeEdit, ServerItem: "$/p/same.txt"}},
		unchanged: map[string]bool{"$/p/same.txt": true},
	}
	h := newHarness(ws)
	h.asker.answer = false

	code, err := h.exec.Execute(context.Background(), "undo", switches(option.Unchanged), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if h.asker.calls != 1 {
		t.Errorf("asker called %d times, want 1", h.asker.calls)
	}
	if code != ExitSuccess || len(ws.calls) != 0 {
		t.Errorf("declined: exit %v, calls %+v", code, ws.calls)
	}
}

func TestUndoUnchangedConfiguredNoPrompt(t *testing.T) {
	ws := &fakeWorkspace{
		affected:  -1,
		pending:   []vc.PendingChange{{ChangeType: vc.ChangeEdit, ServerItem: "$/p/same.txt"}},
		unchanged: map[string]bool{"$/p/same.txt": true},
	}
	h := newHarness(ws)
	h.exec.NoPrompt = true

	if _, err := h.exec.Execute(context.Background(), "undo", switches(option.Unchanged), nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if h.asker.calls != 0 || len(ws.calls) != 1 {
		t.Errorf("asker calls %d, workspace calls %d", h.asker.calls, len(ws.calls))
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(&fakeWorkspace{})
	code, err := h.exec.Execute(context.Background(), "frobnicate", option.NewSet(), nil)
	if code != ExitUnrecognizedCommand || err == nil {
		t.Errorf("exit = %v, err = %v", code, err)
	}
}

func TestUnrecognizedOptionRegardlessOfArgs(t *testing.T) {
	for _, args := range [][]string{nil, {"a"}, {"a", "b", "c"}} {
		h := newHarness(&fakeWorkspace{})
		_, err := h.exec.Execute(context.Background(), "checkout", switches(option.Unchanged), args)
		var resErr *option.ResolutionError
		if !errors.As(err, &resErr) || resErr.Reason != option.UnrecognizedOption {
			t.Errorf("args %v: err = %v, want unrecognized option", args, err)
		}
	}
}

func TestGlobalOptionAccepted(t *testing.T) {
	h := newHarness(&fakeWorkspace{affected: -1})
	code, err := h.exec.Execute(context.Background(), "checkout", switches(option.Verbose), []string{"a.txt"})
	if err != nil || code != ExitSuccess {
		t.Fatalf("exit = %v, err = %v", code, err)
	}
	if got := h.ws.calls[0].req.Items[0].Path; got != "/ws/a.txt" {
		t.Errorf("item = %q", got)
	}
}

func TestZeroAffectedFails(t *testing.T) {
	h := newHarness(&fakeWorkspace{affected: 0})
	lock := option.NewSet(option.Option{Kind: option.Lock, Value: vc.LockCheckout})

	code, err := h.exec.Execute(context.Background(), "lock", lock, []string{"a.txt"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != ExitFailure {
		t.Errorf("exit = %v, want failure", code)
	}
	if h.ws.calls[0].req.Lock != vc.LockCheckout {
		t.Errorf("lock = %v", h.ws.calls[0].req.Lock)
	}
}

func TestWarningsDowngradeSuccess(t *testing.T) {
	h := newHarness(&fakeWorkspace{affected: -1, warn: "a.txt is already being edited"})

	code, err := h.exec.Execute(context.Background(), "checkout", option.NewSet(), []string{"a.txt", "b.txt"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != ExitPartialSuccess {
		t.Errorf("exit = %v, want partial success", code)
	}
	if !h.hasInfo("already being edited") {
		t.Errorf("warning not reported: %v", h.rep.info)
	}
}

func TestRenamePassesTarget(t *testing.T) {
	h := newHarness(&fakeWorkspace{affected: 1})

	code, err := h.exec.Execute(context.Background(), "move", option.NewSet(), []string{"old.txt", "$/p/new.txt"})
	if err != nil || code != ExitSuccess {
		t.Fatalf("exit = %v, err = %v", code, err)
	}
	req := h.ws.calls[0].req
	if len(req.Items) != 1 || req.Items[0].Path != "/ws/old.txt" || req.NewName != "$/p/new.txt" {
		t.Errorf("rename request = %+v", req)
	}

	h = newHarness(&fakeWorkspace{})
	_, err = h.exec.Execute(context.Background(), "rename", option.NewSet(), []string{"a*.txt", "b.txt"})
	if Classify(err) != ClassSpec {
		t.Errorf("wildcard rename: class = %v (%v)", Classify(err), err)
	}
}

func TestUndeleteNewNameNeedsOneItem(t *testing.T) {
	h := newHarness(&fakeWorkspace{})
	opts := option.NewSet(option.Option{Kind: option.NewName, Value: "restored.txt"})

	_, err := h.exec.Execute(context.Background(), "undelete", opts, []string{"a.txt;X3", "b.txt"})
	if Classify(err) != ClassArgument {
		t.Errorf("class = %v (%v)", Classify(err), err)
	}
	if h.opened != 0 {
		t.Error("workspace opened")
	}

	h = newHarness(&fakeWorkspace{affected: 1})
	opts = option.NewSet(option.Option{Kind: option.NewName, Value: "restored.txt"}, option.Option{Kind: option.NoGet, Value: true})
	if _, err := h.exec.Execute(context.Background(), "undelete", opts, []string{"a.txt;X3"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	req := h.ws.calls[0].req
	if req.NewName != "/ws/restored.txt" || req.Items[0].DeletionID != 3 || req.Get != workspace.GetNoDiskUpdate {
		t.Errorf("undelete request = %+v", req)
	}
}

func TestStatusWritesOutput(t *testing.T) {
	h := newHarness(&fakeWorkspace{pending: []vc.PendingChange{
		{ChangeType: vc.ChangeEdit, ServerItem: "$/p/a.txt", LocalItem: "/ws/a.txt"},
	}})
	opts := option.NewSet(option.Option{Kind: option.Format, Value: option.FormatBrief})

	code, err := h.exec.Execute(context.Background(), "status", opts, nil)
	if err != nil || code != ExitSuccess {
		t.Fatalf("exit = %v, err = %v", code, err)
	}
	if !strings.Contains(h.out.String(), "a.txt") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestCheckinReportsChangeset(t *testing.T) {
	h := newHarness(&fakeWorkspace{affected: 2})
	opts := option.NewSet(option.Option{Kind: option.Comment, Value: "fix"})

	code, err := h.exec.Execute(context.Background(), "checkin", opts, nil)
	if err != nil || code != ExitSuccess {
		t.Fatalf("exit = %v, err = %v", code, err)
	}
	if h.ws.calls[0].req.Comment != "fix" {
		t.Errorf("comment = %q", h.ws.calls[0].req.Comment)
	}
	if !h.hasInfo("Changeset #7 checked in.") {
		t.Errorf("info = %v", h.rep.info)
	}
}
