package progress

import (
	"errors"
	"testing"
)

func TestNormalizeAppendsNewline(t *testing.T) {
	got := Normalize(Update{Message: "Iteration 1/10", AddNewLine: true})
	if got.Message != "Iteration 1/10\n" {
		t.Errorf("Message = %q, want trailing newline", got.Message)
	}

	got = Normalize(Update{Message: "already\n", AddNewLine: true})
	if got.Message != "already\n" {
		t.Errorf("Message = %q, newline must not be doubled", got.Message)
	}

	got = Normalize(Update{Message: "as-is"})
	if got.Message != "as-is" {
		t.Errorf("Message = %q, want unchanged without AddNewLine", got.Message)
	}
}

func TestDispatchNilCallback(t *testing.T) {
	if err := Dispatch(nil, Update{Message: "dropped"}); err != nil {
		t.Errorf("Dispatch(nil, ...) = %v, want nil", err)
	}
}

func TestMultiFansOutAndKeepsFlags(t *testing.T) {
	var first, second []Update
	cb := Multi(
		func(u Update) error { first = append(first, u); return nil },
		nil,
		func(u Update) error { second = append(second, u); return nil },
	)

	if err := Dispatch(cb, Update{Message: "retrying in 10s", AddNewLine: true, Ephemeral: true}); err != nil {
		t.Fatalf("Dispatch returned %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("Callbacks saw %d/%d updates, want 1/1", len(first), len(second))
	}
	if !first[0].Ephemeral || !second[0].Ephemeral {
		t.Error("Ephemeral flag must survive fan-out")
	}
}

func TestMultiReturnsFirstError(t *testing.T) {
	errFirst := errors.New("first")
	var reached bool
	cb := Multi(
		func(u Update) error { return errFirst },
		func(u Update) error { reached = true; return errors.New("second") },
	)

	if err := cb(Update{Message: "x"}); !errors.Is(err, errFirst) {
		t.Errorf("err = %v, want the first callback's error", err)
	}
	if !reached {
		t.Error("An erroring callback must not stop fan-out to the rest")
	}
}
