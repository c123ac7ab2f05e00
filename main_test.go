package main

import (
	"errors"
	"path/filepath"
	"testing"

	"lead-harvester/storage"
)

func TestRunReturnsErrorsInsteadOfExiting(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TARGETS_FILE", filepath.Join(t.TempDir(), "targets.yaml"))

	tests := []struct {
		name    string
		args    []string
		wantErr error
		fails   bool
	}{
		{name: "reset", args: []string{"-reset"}},
		{name: "list empty queue", args: []string{"-list"}},
		{name: "unknown lead", args: []string{"-set-status", "7=Contacted"}, wantErr: storage.ErrLeadNotFound, fails: true},
		{name: "malformed status argument", args: []string{"-set-status", "Contacted"}, fails: true},
		{name: "unknown flag", args: []string{"-bogus"}, fails: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := run(tc.args)
			if (err != nil) != tc.fails {
				t.Fatalf("run(%v) = %v", tc.args, err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("run(%v) = %v, want %v", tc.args, err, tc.wantErr)
			}
		})
	}
}

func TestUpdateStatusArgument(t *testing.T) {
	ctx := t.Context()
	store := storage.NewMemoryStore()
	if err := updateStatus(ctx, store, "abc=New"); err == nil {
		t.Error("non-numeric id accepted")
	}
	if err := updateStatus(ctx, store, "3=Pending"); err == nil {
		t.Error("unknown status accepted")
	}
}
