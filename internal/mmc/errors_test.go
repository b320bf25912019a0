package mmc

import (
	"errors"
	"testing"
)

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "nphoton", Reason: "must be > 0"}
	want := `mmc: config error on "nphoton": must be > 0`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestWorkerErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &WorkerError{WorkerID: 3, Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("WorkerError should unwrap to its inner error")
	}
}

func TestOverflowErrorMessage(t *testing.T) {
	err := &OverflowError{Dropped: 7}
	if err.Error() == "" {
		t.Fatalf("expected a non-empty message")
	}
}
