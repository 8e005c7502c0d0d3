package status

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"tfvc/internal/option"
	"tfvc/internal/vc"
)

func sampleResult() *Result {
	return &Result{
		Pending: []vc.PendingChange{
			{ServerItem: "$/proj/a.txt", LocalItem: "/w/a.txt", ChangeType: vc.ChangeEdit | vc.ChangeLock, LockLevel: vc.LockCheckout, ItemID: 3},
			{ServerItem: "$/proj/b.txt", LocalItem: "/w/b.txt", ChangeType: vc.ChangeRename, SourceServerItem: "$/proj/old.txt"},
		},
		Candidates: []vc.CandidateChange{
			{PendingChange: vc.PendingChange{ServerItem: "$/proj/new.txt", LocalItem: "/w/new.txt", ChangeType: vc.ChangeAdd}},
		},
		ShowCandidates: true,
	}
}

func TestWriteBrief(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOutput(&buf, sampleResult(), option.FormatBrief); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"File name", "a.txt", "edit, lock", "2 change(s)", "Detected changes:", "new.txt", "1 detected change(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("brief output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteBriefEmpty(t *testing.T) {
	var buf bytes.Buffer
	WriteOutput(&buf, &Result{}, option.FormatBrief)
	if !strings.Contains(buf.String(), "There are no pending changes.") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWriteDetailed(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOutput(&buf, sampleResult(), option.FormatDetailed); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"$/proj/a.txt", "Lock       : checkout", "Source item: $/proj/old.txt", "2 change(s), 1 detected change(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("detailed output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOutput(&buf, sampleResult(), option.FormatJSON); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}

	var got JSONOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Summary.PendingCount != 2 || got.Summary.CandidateCount != 1 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if got.Pending[0].Change != "edit, lock" || got.Pending[0].Lock != "checkout" {
		t.Errorf("first change = %+v", got.Pending[0])
	}
	if len(got.Candidates) != 1 || got.Candidates[0].Change != "add" {
		t.Errorf("candidates = %+v", got.Candidates)
	}
}
