// Package session holds the process-wide login state: the scheduler
// credential, the user name and the selected ecosystem. State is hydrated
// from the credential file by Init and cleared by Teardown; nothing else
// mutates it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/me/schedctl/internal/config"
	"github.com/me/schedctl/internal/logging"
	"github.com/me/schedctl/pkg/model"
)

// Credentials is the persisted session.
type Credentials struct {
	Token     string `json:"token"`
	Username  string `json:"username,omitempty"`
	Ecosystem string `json:"ecosystem,omitempty"`
}

// Manager owns the session. Commands use Default and point it at the
// configured credential file with Configure; tests may use NewManager.
type Manager struct {
	mu       sync.RWMutex
	path     string
	logger   *slog.Logger
	redirect func(reason string)
	creds    Credentials
	// live is true between a login (or a hydrate that found a token) and
	// the following teardown.
	live bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithRedirect sets the hook run once when a live session is torn down,
// e.g. to send the user back to the login prompt.
func WithRedirect(fn func(reason string)) Option {
	return func(m *Manager) { m.redirect = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.Component(l, "session") }
}

// NewManager creates a manager persisting to path.
func NewManager(path string, opts ...Option) *Manager {
	m := &Manager{
		path:   path,
		logger: logging.Component(nil, "session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// Default returns the process-wide manager backed by
// ~/.schedctl/credentials.json.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultMgr = NewManager(DefaultPath(), WithLogger(slog.Default()))
	})
	return defaultMgr
}

// DefaultPath returns the default credential file location.
func DefaultPath() string {
	return config.DefaultClientConfig().CredentialsPath
}

// Configure points m at path, applies opts and drops any hydrated state.
// Call Init afterwards.
func (m *Manager) Configure(path string, opts ...Option) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.path = path
	m.redirect = nil
	for _, opt := range opts {
		opt(m)
	}
	m.creds = Credentials{}
	m.live = false
}

// Path returns the credential file location.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

func (m *Manager) log() *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger
}

// Init hydrates the session from the credential file. A missing file means
// logged out.
func (m *Manager) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	creds, err := m.read()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.creds = creds
	m.live = creds.Token != ""
	m.mu.Unlock()
	m.log().Debug("session hydrated", "authenticated", creds.Token != "", "user", creds.Username)
	return nil
}

// Login stores a new credential.
func (m *Manager) Login(token, username string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.NewValidationError("login", "token cannot be empty")
	}
	m.mu.Lock()
	creds := m.creds
	creds.Token = token
	creds.Username = strings.TrimSpace(username)
	if err := m.write(creds); err != nil {
		m.mu.Unlock()
		return err
	}
	m.creds = creds
	m.live = true
	m.mu.Unlock()
	m.log().Info("logged in", "user", creds.Username)
	return nil
}

// SelectEcosystem records the ecosystem the user works in.
func (m *Manager) SelectEcosystem(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.NewValidationError("select ecosystem", "ecosystem name cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	creds := m.creds
	creds.Ecosystem = name
	if err := m.write(creds); err != nil {
		return err
	}
	m.creds = creds
	return nil
}

// Teardown clears the session in memory and on disk. The redirect hook runs
// only for the first teardown of a live session.
func (m *Manager) Teardown(reason string) error {
	m.mu.Lock()
	wasLive := m.live
	redirect := m.redirect
	m.live = false
	m.creds = Credentials{}
	err := os.Remove(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		err = nil
	}
	m.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("remove credentials: %w", err)
	}
	if !wasLive {
		return err
	}
	m.log().Info("session ended", "reason", reason)
	if redirect != nil {
		redirect(reason)
	}
	return err
}

// HandleAuthError tears the session down when err is an auth failure.
func (m *Manager) HandleAuthError(err error) {
	if !model.IsAuth(err) {
		return
	}
	if terr := m.Teardown(model.UserMessage(err)); terr != nil {
		m.log().Warn("teardown failed", "error", terr)
	}
}

// Token returns the credential, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.Token
}

// Username returns the logged-in user's name.
func (m *Manager) Username() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.Username
}

// Ecosystem returns the selected ecosystem.
func (m *Manager) Ecosystem() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.Ecosystem
}

// Authenticated reports whether a credential is held.
func (m *Manager) Authenticated() bool {
	return m.Token() != ""
}

// Watch re-hydrates the session whenever the credential file changes, so a
// login or logout in another process is picked up. It blocks until ctx is
// done.
func (m *Manager) Watch(ctx context.Context) error {
	path := m.Path()
	dir := filepath.Dir(path)
	file := filepath.Base(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	m.log().Debug("credential watcher started", "dir", dir)

	// Debounce to avoid reading partial writes.
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(100*time.Millisecond, m.rehydrate)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) == file &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log().Warn("credential watch error", "error", err)
		}
	}
}

// rehydrate reloads the file after an external change. A credential that
// disappeared ends the session.
func (m *Manager) rehydrate() {
	creds, err := m.read()
	if err != nil {
		m.log().Warn("reload credentials failed", "error", err)
		return
	}
	if creds.Token == "" {
		if m.Authenticated() {
			if err := m.Teardown("logged out"); err != nil {
				m.log().Warn("teardown failed", "error", err)
			}
		}
		return
	}
	m.mu.Lock()
	m.creds = creds
	m.live = true
	m.mu.Unlock()
	m.log().Debug("credentials reloaded", "user", creds.Username)
}

func (m *Manager) read() (Credentials, error) {
	var creds Credentials
	path := m.Path()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return creds, nil
	}
	if err != nil {
		return creds, fmt.Errorf("read credentials: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return creds, nil
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return creds, nil
}

// write persists creds. The caller must hold m.mu.
func (m *Manager) write(creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
