// Package config loads and saves the global ~/.kountryeye/config.toml.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults for the cache poll cycle and typing debounce.
const (
	DefaultConversationPoll = 5 * time.Second
	DefaultMessagePoll      = 3 * time.Second
	DefaultTypingIdle       = 2 * time.Second
)

// Profile holds the connection settings for one backend account.
type Profile struct {
	APIBaseURL string `toml:"api_base_url"`
	PushURL    string `toml:"push_url"`
	Token      string `toml:"token"`
	UserID     int64  `toml:"user_id"`
	UserName   string `toml:"user_name"`
	Role       string `toml:"role"`

	// Zero means use the package default.
	ConversationPollSeconds int `toml:"conversation_poll_seconds"`
	MessagePollSeconds      int `toml:"message_poll_seconds"`
	TypingIdleSeconds       int `toml:"typing_idle_seconds"`
}

// ConversationPoll returns the conversation poll interval.
func (p Profile) ConversationPoll() time.Duration {
	if p.ConversationPollSeconds > 0 {
		return time.Duration(p.ConversationPollSeconds) * time.Second
	}
	return DefaultConversationPoll
}

// MessagePoll returns the open-conversation poll interval.
func (p Profile) MessagePoll() time.Duration {
	if p.MessagePollSeconds > 0 {
		return time.Duration(p.MessagePollSeconds) * time.Second
	}
	return DefaultMessagePoll
}

// TypingIdle returns the keystroke idle window before typing stops.
func (p Profile) TypingIdle() time.Duration {
	if p.TypingIdleSeconds > 0 {
		return time.Duration(p.TypingIdleSeconds) * time.Second
	}
	return DefaultTypingIdle
}

// Config represents the global config file.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	Profiles       map[string]Profile `toml:"profiles"`
}

// Load reads config from the given path. Returns an error if the file
// is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
// The file carries the auth token, hence 0600.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
