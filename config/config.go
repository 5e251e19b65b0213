// Package config holds the two durable records of the agent: the structured
// configuration file and the flat list of authorized user IDs. Both are
// rewritten in full on every mutation; the last full write wins.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Config is the mutable runtime configuration record. It is persisted as a
// single JSON document and reloaded at process start.
type Config struct {
	APIToken       string `json:"wb_token"`
	TokenIssued    string `json:"wb_token_creation_date"` // YYYY-MM-DD
	TokenValidDays int    `json:"wb_token_expiry_days"`
	PrinterName    string `json:"printer_name"`
	AutoPrint      bool   `json:"auto_print_enabled"`
	AutoStart      bool   `json:"auto_start_enabled"`
	GroupChatID    int64  `json:"group_id"`
	AdminUserID    int64  `json:"admin_user_id"`
}

// Store owns the config file. All reads and writes go through it; the file is
// rewritten whole on every Update.
type Store struct {
	mu     sync.RWMutex
	path   string
	cfg    Config
	Logger *slog.Logger
}

// NewStore seeds a store from the bootstrap environment and, when the config
// file exists, overlays the persisted record on top of it.
func NewStore(path string, e Env) (*Store, error) {
	s := &Store{
		path: path,
		cfg: Config{
			APIToken:       e.APIToken,
			TokenIssued:    e.TokenIssued,
			TokenValidDays: e.TokenValidDays,
			PrinterName:    e.PrinterName,
			AutoPrint:      e.AutoPrint,
			AutoStart:      e.AutoStart,
			GroupChatID:    e.GroupChatID,
			AdminUserID:    e.AdminUserID,
		},
		Logger: slog.Default(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &s.cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", s.path, err)
	}
	s.Logger.Info("configuration loaded", "path", s.path)
	return nil
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies fn to the configuration and rewrites the file in full.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	s.Logger.Info("configuration saved", "path", s.path)
	return nil
}

// SetAPIToken replaces the marketplace credential and resets its issue date
// to today.
func (s *Store) SetAPIToken(token string, now time.Time) error {
	return s.Update(func(c *Config) {
		c.APIToken = token
		c.TokenIssued = now.Format("2006-01-02")
	})
}

// TokenDaysLeft reports how many whole days remain before the marketplace
// credential expires. A parse failure of the issue date returns an error; the
// caller treats that as unknown rather than expired.
func (c Config) TokenDaysLeft(now time.Time) (int, error) {
	issued, err := time.Parse("2006-01-02", c.TokenIssued)
	if err != nil {
		return 0, fmt.Errorf("invalid token issue date %q: %w", c.TokenIssued, err)
	}
	expiry := issued.AddDate(0, 0, c.TokenValidDays)
	return int(expiry.Sub(now).Hours() / 24), nil
}
