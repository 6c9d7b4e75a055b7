package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".kountryeye", "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("profiles", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix profiles/test/LOCK", got)
	}
}

func TestDraftDBPath(t *testing.T) {
	got := DraftDBPath("test")
	if !strings.HasSuffix(got, filepath.Join("profiles", "test", "drafts.db")) {
		t.Errorf("DraftDBPath(test) = %q, want suffix profiles/test/drafts.db", got)
	}
}

func TestLogPath(t *testing.T) {
	got := LogPath("test")
	if !strings.HasSuffix(got, filepath.Join("profiles", "test", "logs", "eyechat.log")) {
		t.Errorf("LogPath(test) = %q, want suffix profiles/test/logs/eyechat.log", got)
	}
}
