package main

import (
	"errors"
	"testing"

	"github.com/notepid/twilight_messenger/internal/session"
)

func TestParseDelayArg(t *testing.T) {
	for _, arg := range []string{"1", "3", " 5 "} {
		if _, err := parseDelayArg(arg); err != nil {
			t.Fatalf("%q: unexpected error %v", arg, err)
		}
	}
	for _, arg := range []string{"0", "2", "4", "10", "-1", "soon", ""} {
		if _, err := parseDelayArg(arg); !errors.Is(err, session.ErrInvalidDelay) {
			t.Fatalf("%q: expected ErrInvalidDelay, got %v", arg, err)
		}
	}
}

func TestAutodestructRejectsDelayBeforeLogin(t *testing.T) {
	// Args runs before RunE, so a bad delay never reaches bootstrap.
	err := autodestructCmd.Args(autodestructCmd, []string{"6f1c2a4e-8d3b-4c1e-9a57-2b0e6d9f1a10", "2"})
	if !errors.Is(err, session.ErrInvalidDelay) {
		t.Fatalf("expected ErrInvalidDelay, got %v", err)
	}
	if err := autodestructCmd.Args(autodestructCmd, []string{"6f1c2a4e-8d3b-4c1e-9a57-2b0e6d9f1a10", "3"}); err != nil {
		t.Fatalf("valid delay rejected: %v", err)
	}
}
