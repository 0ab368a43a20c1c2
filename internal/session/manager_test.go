// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, "session_", DefaultConfig().Prefix)
}

func TestNewID_Format(t *testing.T) {
	id := NewID(DefaultPrefix)

	require.True(t, strings.HasPrefix(id, "session_"), "got %q", id)
	parsed, err := uuid.Parse(strings.TrimPrefix(id, "session_"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID(DefaultPrefix)
		require.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}

func TestManager_SessionIDStable(t *testing.T) {
	m := NewManager(DefaultConfig())
	first := m.SessionID()

	for i := 0; i < 10; i++ {
		m.RecordActivity()
		m.RecordExchange()
		assert.Equal(t, first, m.SessionID())
	}
	assert.Equal(t, first, m.GetStatus().SessionID)
}

func TestManager_DistinctAcrossInstances(t *testing.T) {
	a := NewManager(DefaultConfig())
	b := NewManager(DefaultConfig())
	assert.NotEqual(t, a.SessionID(), b.SessionID())
}

func TestManager_CustomPrefix(t *testing.T) {
	m := NewManager(Config{Prefix: "medibot-"})
	assert.True(t, strings.HasPrefix(m.SessionID(), "medibot-"))
}

func TestManager_IdleTime(t *testing.T) {
	m := NewManager(DefaultConfig())
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, m.IdleTime(), 10*time.Millisecond)

	m.RecordActivity()
	assert.Less(t, m.IdleTime(), 10*time.Millisecond)
}

func TestManager_Exchanges(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.RecordExchange()
	m.RecordExchange()

	assert.Equal(t, 2, m.Exchanges())
	assert.Equal(t, 2, m.GetStatus().Exchanges)
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(DefaultConfig())
	id := m.SessionID()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.RecordExchange()
				_ = m.GetStatus()
				assert.Equal(t, id, m.SessionID())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, m.Exchanges())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m 30s"},
		{15 * time.Minute, "15m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}
