package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tfvc/internal/itemspec"
	"tfvc/internal/option"
	"tfvc/internal/reconcile"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		cur, next, want ExitCode
	}{
		{ExitUnknown, ExitSuccess, ExitSuccess},
		{ExitUnknown, ExitFailure, ExitFailure},
		{ExitSuccess, ExitFailure, ExitFailure},
		{ExitSuccess, ExitPartialSuccess, ExitPartialSuccess},
		{ExitFailure, ExitSuccess, ExitPartialSuccess},
		{ExitPartialSuccess, ExitSuccess, ExitPartialSuccess},
		{ExitSuccess, ExitSuccess, ExitSuccess},
		{ExitFailure, ExitFailure, ExitFailure},
	}
	for _, tt := range tests {
		if got := tt.cur.Compose(tt.next); got != tt.want {
			t.Errorf("%v.Compose(%v) = %v, want %v", tt.cur, tt.next, got, tt.want)
		}
	}
}

func TestExitForTable(t *testing.T) {
	reg := DefaultRegistry()
	lookup := func(name string) *Command {
		c, ok := reg.Lookup(name)
		if !ok {
			t.Fatalf("command %q not registered", name)
		}
		return c
	}

	tests := []struct {
		cmd     string
		res     Result
		want    ExitCode
		wantMsg string
	}{
		{"add", Result{Outcome: Ran, Affected: 3}, ExitSuccess, ""},
		{"add", Result{Outcome: Ran}, ExitPartialSuccess, "No files were added."},
		{"add", Result{Outcome: Empty, Policy: reconcile.DetectAdd}, ExitPartialSuccess, "No adds detected."},
		{"delete", Result{Outcome: Ran}, ExitFailure, "No matching items found."},
		{"delete", Result{Outcome: Empty, Policy: reconcile.DetectDelete}, ExitPartialSuccess, "No deletes detected."},
		{"checkout", Result{Outcome: Ran}, ExitFailure, "No files were checked out."},
		{"edit", Result{Outcome: Ran, Affected: 1}, ExitSuccess, ""},
		{"lock", Result{Outcome: Ran}, ExitFailure, "No items were locked."},
		{"rename", Result{Outcome: Ran}, ExitFailure, "Nothing was renamed."},
		{"undelete", Result{Outcome: Ran}, ExitFailure, "No deleted items matched."},
		{"undo", Result{Outcome: Ran}, ExitFailure, "No pending changes were undone."},
		{"undo", Result{Outcome: Empty, Policy: reconcile.UndoUnchanged}, ExitSuccess, "All changes are modified."},
		{"undo", Result{Outcome: Declined, Policy: reconcile.UndoUnchanged}, ExitSuccess, ""},
		{"status", Result{Outcome: Ran}, ExitSuccess, ""},
		{"checkin", Result{Outcome: Ran}, ExitFailure, "There are no pending changes to check in."},
	}
	for _, tt := range tests {
		got, msg := ExitFor(lookup(tt.cmd), tt.res)
		if got != tt.want || msg != tt.wantMsg {
			t.Errorf("ExitFor(%s, %+v) = %v %q, want %v %q", tt.cmd, tt.res, got, msg, tt.want, tt.wantMsg)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{&UnknownCommandError{Name: "frob"}, ClassUnknownCommand},
		{&ArgumentError{Command: "undelete", Msg: "x"}, ClassArgument},
		{fmt.Errorf("checkout: %w", &option.ResolutionError{Reason: option.InvalidFreeArgumentCount}), ClassArgument},
		{&option.ResolutionError{Reason: option.MissingRequiredOption}, ClassOption},
		{&option.ResolutionError{Reason: option.UnrecognizedOption}, ClassOption},
		{&itemspec.SpecError{Reason: itemspec.WrongArgumentCount}, ClassArgument},
		{&itemspec.SpecError{Reason: itemspec.WildcardNotAllowed}, ClassSpec},
		{errors.New("disk on fire"), ClassUnderlying},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	if ExitForError(&UnknownCommandError{Name: "x"}) != ExitUnrecognizedCommand {
		t.Error("unknown command should exit 2")
	}
	if ExitForError(errors.New("x")) != ExitFailure {
		t.Error("underlying error should exit 100")
	}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{"add", "ADD", "edit", "move", "st", "ci"} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("Lookup(%q) failed", name)
		}
	}
	if _, ok := reg.Lookup("frob"); ok {
		t.Error("unexpected command frob")
	}

	err := NewRegistry().Register(&Command{Name: "x"})
	if err == nil {
		t.Error("expected error for command without runner")
	}

	run := func(context.Context, *Invocation) (Result, error) { return Result{}, nil }
	reg = NewRegistry()
	if err := reg.Register(&Command{Name: "one", Aliases: []string{"uno"}, Run: run}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(&Command{Name: "UNO", Run: run}); err == nil {
		t.Error("expected duplicate name error")
	}
}
