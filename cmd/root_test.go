package cmd

import (
	"testing"
)

// TestVersionCommand tests that the command tree executes end to end,
// including the one-time configuration initializer.
func TestVersionCommand(t *testing.T) {
	RootCmd.SetArgs([]string{"version"})
	if err := RootCmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
}
