package cmd

import (
	"testing"
)

// saveAndRestoreDirFlag resets the global --dir flag value after a test.
func saveAndRestoreDirFlag(t *testing.T) {
	t.Helper()
	orig := dirFlag
	t.Cleanup(func() { dirFlag = orig })
}

func TestDataDir_FlagWins(t *testing.T) {
	saveAndRestoreDirFlag(t)
	t.Setenv("FIELDPOST_DIR", "/from/env")

	dirFlag = "/from/flag"
	if got := dataDir(); got != "/from/flag" {
		t.Errorf("dataDir() = %q, want flag value", got)
	}
}

func TestDataDir_EnvFallback(t *testing.T) {
	saveAndRestoreDirFlag(t)
	t.Setenv("FIELDPOST_DIR", "/from/env")

	dirFlag = ""
	if got := dataDir(); got != "/from/env" {
		t.Errorf("dataDir() = %q, want env value", got)
	}
}

func TestDataDir_Default(t *testing.T) {
	saveAndRestoreDirFlag(t)
	t.Setenv("FIELDPOST_DIR", "")

	dirFlag = ""
	if got := dataDir(); got != "./data" {
		t.Errorf("dataDir() = %q, want ./data", got)
	}
}
