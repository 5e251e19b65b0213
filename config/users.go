package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Users is the authorization set: the user IDs permitted to issue commands.
// The administrator is always implicitly a member. The set is backed by a
// flat file with one ID per line, rewritten in full on every mutation.
type Users struct {
	mu     sync.RWMutex
	path   string
	admin  int64
	ids    map[int64]struct{}
	Logger *slog.Logger
}

// LoadUsers reads the authorized-user file. A missing file yields an empty
// set; malformed lines are skipped with a warning.
func LoadUsers(path string, admin int64) (*Users, error) {
	u := &Users{
		path:   path,
		admin:  admin,
		ids:    make(map[int64]struct{}),
		Logger: slog.Default(),
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return u, nil
		}
		return nil, fmt.Errorf("failed to open authorized users file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			u.Logger.Warn("skipping malformed authorized user line", "line", line)
			continue
		}
		u.ids[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read authorized users file: %w", err)
	}

	u.Logger.Info("authorized users loaded", "count", len(u.ids))
	return u, nil
}

// IsAuthorized reports whether id may issue commands.
func (u *Users) IsAuthorized(id int64) bool {
	if id == u.admin {
		return true
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.ids[id]
	return ok
}

// IsAdmin reports whether id is the administrator.
func (u *Users) IsAdmin(id int64) bool {
	return id == u.admin
}

// Allow adds id to the set and persists it.
func (u *Users) Allow(id int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ids[id] = struct{}{}
	return u.save()
}

// Deny removes id from the set and persists it. Removing an absent ID is a
// no-op that still rewrites the file.
func (u *Users) Deny(id int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.ids, id)
	return u.save()
}

// List returns the authorized IDs in ascending order, admin excluded.
func (u *Users) List() []int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]int64, 0, len(u.ids))
	for id := range u.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (u *Users) save() error {
	var b strings.Builder
	ids := make([]int64, 0, len(u.ids))
	for id := range u.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(&b, "%d\n", id)
	}
	if err := os.WriteFile(u.path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write authorized users file: %w", err)
	}
	return nil
}
