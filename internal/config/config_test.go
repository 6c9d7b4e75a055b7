package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{
		DefaultProfile: "clinic",
		Profiles: map[string]Profile{
			"clinic": {
				APIBaseURL: "https://ops.example.com/api",
				PushURL:    "wss://ops.example.com",
				Token:      "tok-123",
				UserID:     42,
				UserName:   "Kwame",
				Role:       "manager",
			},
		},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "clinic" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "clinic")
	}
	p, ok := loaded.Profiles["clinic"]
	if !ok {
		t.Fatal("clinic profile missing after round trip")
	}
	if p.Token != "tok-123" || p.UserID != 42 || p.Role != "manager" {
		t.Errorf("profile = %+v", p)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestIntervalDefaults(t *testing.T) {
	var p Profile
	if got := p.ConversationPoll(); got != DefaultConversationPoll {
		t.Errorf("ConversationPoll() = %v, want %v", got, DefaultConversationPoll)
	}
	if got := p.MessagePoll(); got != DefaultMessagePoll {
		t.Errorf("MessagePoll() = %v, want %v", got, DefaultMessagePoll)
	}
	if got := p.TypingIdle(); got != DefaultTypingIdle {
		t.Errorf("TypingIdle() = %v, want %v", got, DefaultTypingIdle)
	}

	p.MessagePollSeconds = 3
	if got := p.MessagePoll(); got != 3*time.Second {
		t.Errorf("MessagePoll() = %v, want 3s", got)
	}
}
