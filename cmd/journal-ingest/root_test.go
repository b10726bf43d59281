package main

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
)

func TestExecute_TeardownOnFailedRun(t *testing.T) {
	var logClosed, traceFlushed int
	boom := errors.New("boom")

	cmd := &cobra.Command{
		Use:           "failing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			closeLog = func() error { logClosed++; return nil }
			shutdownTrace = func(context.Context) error { traceFlushed++; return nil }
			return boom
		},
	}
	cmd.SetArgs(nil)

	if err := execute(cmd); !errors.Is(err, boom) {
		t.Fatalf("execute() error = %v, want %v", err, boom)
	}
	if logClosed != 1 || traceFlushed != 1 {
		t.Errorf("teardown ran log=%d trace=%d times, want 1 each", logClosed, traceFlushed)
	}
	if closeLog != nil || shutdownTrace != nil {
		t.Error("teardown must reset the hooks")
	}

	// A second teardown is a no-op
	teardown()
	if logClosed != 1 || traceFlushed != 1 {
		t.Errorf("second teardown re-ran hooks: log=%d trace=%d", logClosed, traceFlushed)
	}
}
