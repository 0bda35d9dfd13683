// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import "sync"

// Manager holds per-session view state and serializes access to it.
//
// The view state is not safe for concurrent mutation, so no two turns
// for the same session may be in flight at once; Acquire blocks a
// second turn until the first releases.
//
// Thread Safety: safe for concurrent use across sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	turnLock sync.Mutex
	state    State
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*entry)}
}

func (m *Manager) get(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{state: NewState()}
		m.sessions[id] = e
	}
	return e
}

// Acquire locks the session for one turn and returns its current
// state plus a release function. The caller must call release exactly
// once, after any Update.
func (m *Manager) Acquire(id string) (State, func()) {
	e := m.get(id)
	e.turnLock.Lock()
	return e.state, e.turnLock.Unlock
}

// Update stores the new state for a session. Caller must hold the
// session's turn lock via Acquire.
func (m *Manager) Update(id string, s State) {
	m.get(id).state = s
}
