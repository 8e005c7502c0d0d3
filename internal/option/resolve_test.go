package option

import (
	"errors"
	"reflect"
	"testing"

	"tfvc/internal/vc"
)

var deleteSets = []AcceptedSet{
	{Optional: []Kind{Lock, Recursive}, MinArgs: 1, MaxArgs: Unbounded, Usage: "[-lock] [-recursive] itemspec..."},
	{Required: []Kind{Detect}, Optional: []Kind{NoIgnore}, MinArgs: 0, MaxArgs: Unbounded, Usage: "-detect [itemspec...]"},
}

var lockSets = []AcceptedSet{
	{Required: []Kind{Lock}, Optional: []Kind{Recursive, NoPrompt}, MinArgs: 1, MaxArgs: Unbounded, Usage: "-lock:level [-recursive] itemspec..."},
}

func switches(kinds ...Kind) Set {
	opts := make([]Option, len(kinds))
	for i, k := range kinds {
		opts[i] = Option{Kind: k, Value: true}
	}
	return NewSet(opts...)
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	return re.Reason
}

func TestResolveFirstMatchWins(t *testing.T) {
	sets := []AcceptedSet{
		{Optional: []Kind{Recursive}, MinArgs: 0, MaxArgs: Unbounded, Usage: "first"},
		{Optional: []Kind{Recursive}, MinArgs: 1, MaxArgs: 1, Usage: "more specific"},
	}
	got, err := Resolve(switches(Recursive), 1, sets, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Usage != "first" {
		t.Errorf("matched %q, want declaration order to win", got.Usage)
	}
}

func TestResolveSelectsShape(t *testing.T) {
	got, err := Resolve(switches(Detect), 0, deleteSets, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Usage != deleteSets[1].Usage {
		t.Errorf("matched %q", got.Usage)
	}

	got, err = Resolve(switches(Recursive), 2, deleteSets, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Usage != deleteSets[0].Usage {
		t.Errorf("matched %q", got.Usage)
	}
}

func TestResolveUnrecognizedRegardlessOfArgs(t *testing.T) {
	for _, n := range []int{0, 1, 5, 100} {
		_, err := Resolve(switches(Recursive, Unchanged), n, deleteSets, nil)
		if r := reasonOf(t, err); r != UnrecognizedOption {
			t.Errorf("args=%d: reason %v, want UnrecognizedOption", n, r)
		}
	}
}

func TestResolveMissingRequired(t *testing.T) {
	_, err := Resolve(switches(Recursive), 1, lockSets, nil)
	if r := reasonOf(t, err); r != MissingRequiredOption {
		t.Fatalf("reason %v, want MissingRequiredOption", r)
	}
	var re *ResolutionError
	errors.As(err, &re)
	if !reflect.DeepEqual(re.Options, []Kind{Lock}) {
		t.Errorf("missing options = %v", re.Options)
	}
}

func TestResolveIncompatible(t *testing.T) {
	_, err := Resolve(switches(Detect, Lock), 0, deleteSets, nil)
	if r := reasonOf(t, err); r != IncompatibleOptions {
		t.Fatalf("reason %v, want IncompatibleOptions", r)
	}
}

func TestResolveArgumentCount(t *testing.T) {
	_, err := Resolve(NewSet(), 0, deleteSets[:1], nil)
	if r := reasonOf(t, err); r != InvalidFreeArgumentCount {
		t.Fatalf("reason %v, want InvalidFreeArgumentCount", r)
	}
}

func TestResolveGlobalOptions(t *testing.T) {
	_, err := Resolve(switches(Verbose, Detect), 0, deleteSets, []Kind{Verbose})
	if err != nil {
		t.Fatalf("global option rejected: %v", err)
	}
}

func TestResolveDeterministic(t *testing.T) {
	supplied := NewSet(Option{Kind: Lock, Value: vc.LockCheckin}, Option{Kind: Recursive, Value: true})
	first, firstErr := Resolve(supplied, 3, deleteSets, nil)
	for i := 0; i < 20; i++ {
		got, err := Resolve(supplied, 3, deleteSets, nil)
		if !reflect.DeepEqual(got, first) || (err == nil) != (firstErr == nil) {
			t.Fatalf("iteration %d returned a different result", i)
		}
	}
}

func TestAcceptedSetValidate(t *testing.T) {
	bad := AcceptedSet{Required: []Kind{Lock}, Optional: []Kind{Lock}, MaxArgs: Unbounded, Usage: "bad"}
	if err := bad.Validate(); err == nil {
		t.Error("expected overlap error")
	}
	bounds := AcceptedSet{MinArgs: 2, MaxArgs: 1, Usage: "bounds"}
	if err := bounds.Validate(); err == nil {
		t.Error("expected bounds error")
	}
	for _, s := range deleteSets {
		if err := s.Validate(); err != nil {
			t.Errorf("Validate(%q): %v", s.Usage, err)
		}
	}
}
