package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"migrate", "sweep", "verify", "cleanup"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %s not registered: %v", name, err)
		}
	}
}

func TestVerifyRequiresReference(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"verify"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "accepts 1 arg") {
		t.Fatalf("expected arg error, got %v", err)
	}
}

func TestCleanupDefaults(t *testing.T) {
	cmd := cleanupCmd()
	if got := cmd.Flags().Lookup("reason").DefValue; got != "user_abandoned" {
		t.Fatalf("default reason = %q", got)
	}
}
