package srv

import (
	"sort"

	"spire/server/protocol"
)

// Player is the ephemeral per-connection record. Username is the unique
// key while connected.
type Player struct {
	c        *client
	Username string
	Status   Status
	RoomID   string
	X, Y     float64
	Class    string
	Health   int
	MaxHealth int

	// TowerFloorProgress is the highest floor cleared; a solo re-entry
	// resumes at the next one.
	TowerFloorProgress int
}

// Room is a party's shared state container: the hub training dummy, the
// threat bookkeeping around it, and at most one tower instance.
type Room struct {
	ID     string
	Leader string

	DummyHealth   int
	threat        *threatTable
	CurrentTarget string // "" when nobody holds positive threat
	targetedBy    map[string]struct{}

	respawnTask    *Task
	regenDelayTask *Task
	regenTask      *Task
	decayTasks     map[string]*Task

	Tower *TowerInstance
	ready map[string]struct{}
}

func newRoom(id string) *Room {
	return &Room{
		ID:          id,
		Leader:      id,
		DummyHealth: DummyMaxHealth,
		threat:      newThreatTable(),
		targetedBy:  make(map[string]struct{}),
		decayTasks:  make(map[string]*Task),
		ready:       make(map[string]struct{}),
	}
}

// respawnPending reports whether the dummy is in its dead window.
func (r *Room) respawnPending() bool {
	return r.respawnTask != nil
}

// stopAllTimers cancels every timer the room owns. Callers hold the hub
// lock; this must run before the room is dropped so no callback fires
// against deleted state.
func (r *Room) stopAllTimers() {
	r.respawnTask.Stop()
	r.respawnTask = nil
	r.regenDelayTask.Stop()
	r.regenDelayTask = nil
	r.regenTask.Stop()
	r.regenTask = nil
	for name, t := range r.decayTasks {
		t.Stop()
		delete(r.decayTasks, name)
	}
}

// World owns the global player and room registries. It is constructed once
// at startup and mutated only under the hub lock, so handlers and the AI
// tick never observe a half-applied change.
type World struct {
	players map[string]*Player
	rooms   map[string]*Room
}

func newWorld() *World {
	return &World{
		players: make(map[string]*Player),
		rooms:   make(map[string]*Room),
	}
}

// createSoloRoom registers a fresh self-room for username and returns it.
func (w *World) createSoloRoom(username string) *Room {
	r := newRoom(username)
	w.rooms[username] = r
	return r
}

// membersOf returns the room's players in username order, for deterministic
// iteration.
func (w *World) membersOf(roomID string) []*Player {
	var members []*Player
	for _, p := range w.players {
		if p.RoomID == roomID {
			members = append(members, p)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
	return members
}

// hubMembersOf returns the room members currently in the hub.
func (w *World) hubMembersOf(roomID string) []*Player {
	var members []*Player
	for _, p := range w.membersOf(roomID) {
		if p.Status != StatusInTower {
			members = append(members, p)
		}
	}
	return members
}

// towerMembersOf returns the room members currently inside the tower.
func (w *World) towerMembersOf(roomID string) []*Player {
	var members []*Player
	for _, p := range w.membersOf(roomID) {
		if p.Status == StatusInTower {
			members = append(members, p)
		}
	}
	return members
}

// rosterInfo snapshots every online player for the roster broadcast.
func (w *World) rosterInfo() []protocol.PlayerInfo {
	names := make([]string, 0, len(w.players))
	for name := range w.players {
		names = append(names, name)
	}
	sort.Strings(names)
	info := make([]protocol.PlayerInfo, 0, len(names))
	for _, name := range names {
		info = append(info, protocol.PlayerInfo{
			Username: name,
			Status:   string(w.players[name].Status),
		})
	}
	return info
}

// hubStates snapshots the given players for party/hub payloads.
func hubStates(players []*Player) []protocol.HubPlayerState {
	states := make([]protocol.HubPlayerState, 0, len(players))
	for _, p := range players {
		states = append(states, hubState(p))
	}
	return states
}

func hubState(p *Player) protocol.HubPlayerState {
	return protocol.HubPlayerState{
		ID:          p.Username,
		X:           p.X,
		Y:           p.Y,
		PlayerClass: p.Class,
		Health:      p.Health,
		MaxHealth:   p.MaxHealth,
	}
}

// currentTargetRef returns the aggro target as a nullable reference for
// payloads that serialize "no target" as null.
func (r *Room) currentTargetRef() *string {
	if r.CurrentTarget == "" {
		return nil
	}
	t := r.CurrentTarget
	return &t
}

// deleteRoom tears a room down: all timers stopped, then the registry
// entry removed.
func (w *World) deleteRoom(roomID string) {
	r := w.rooms[roomID]
	if r == nil {
		return
	}
	r.stopAllTimers()
	delete(w.rooms, roomID)
}
