// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPrefix is prepended to every generated session id.
const DefaultPrefix = "session_"

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager tracks the session identity and activity. The id is fixed at
// construction; everything else is bookkeeping for presentation and logs.
type Manager struct {
	// Immutable after NewManager.
	sessionID string
	startTime time.Time

	mu           sync.Mutex
	lastActivity time.Time
	exchanges    int
}

// Config holds configuration for the session manager.
type Config struct {
	// Prefix is prepended to the generated UUID (default: "session_").
	Prefix string
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{Prefix: DefaultPrefix}
}

// NewManager creates a session manager with a freshly generated id.
func NewManager(cfg Config) *Manager {
	now := time.Now()
	return &Manager{
		sessionID:    NewID(cfg.Prefix),
		startTime:    now,
		lastActivity: now,
	}
}

// NewID returns prefix followed by a random (version 4) UUID, which carries
// 122 bits of entropy.
func NewID(prefix string) string {
	return prefix + uuid.NewString()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// SessionID returns the session id. It never changes.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// StartTime returns when the session started.
func (m *Manager) StartTime() time.Time {
	return m.startTime
}

// Duration returns how long the session has been active.
func (m *Manager) Duration() time.Duration {
	return time.Since(m.startTime)
}

// IdleTime returns how long since last activity.
func (m *Manager) IdleTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastActivity)
}

// Exchanges returns the number of requests sent in this session.
func (m *Manager) Exchanges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchanges
}

// =============================================================================
// ACTIVITY TRACKING
// =============================================================================

// RecordActivity updates the last activity timestamp.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
}

// RecordExchange counts a request sent to the chat service.
func (m *Manager) RecordExchange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges++
	m.lastActivity = time.Now()
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status represents the current session status.
type Status struct {
	SessionID string
	StartTime time.Time
	Duration  time.Duration
	IdleTime  time.Duration
	Exchanges int
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	return Status{
		SessionID: m.sessionID,
		StartTime: m.startTime,
		Duration:  now.Sub(m.startTime),
		IdleTime:  now.Sub(m.lastActivity),
		Exchanges: m.exchanges,
	}
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return strconv.Itoa(int(d.Seconds())) + "s"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return strconv.Itoa(mins) + "m"
	}
	return strconv.Itoa(mins) + "m " + strconv.Itoa(secs) + "s"
}
