package srv

import (
	"fmt"

	"spire/server/protocol"
)

// roomAlive reports whether room is still the registered instance for its
// ID. Timer callbacks check this before touching room state, since a room
// can be deleted and recreated under the same ID between fires.
func (h *Hub) roomAlive(room *Room) bool {
	return h.world.rooms[room.ID] == room
}

// handleDummyHit applies one deterministic hit to the room's training dummy
// and credits the attacker with matching threat.
func (h *Hub) handleDummyHit(p *Player) {
	room := h.world.rooms[p.RoomID]
	if p.Class == "Cleric" || p.Status == StatusInTower || room == nil || room.respawnPending() {
		return
	}

	h.stopDummyHealing(room)

	damage := ClassDamage[p.Class]
	if damage == 0 {
		damage = 5
	}
	room.threat.Add(p.Username, damage)
	h.reevaluateAggro(room)

	h.broadcast(AudienceRoomHub, room.ID, protocol.TypeCombatEvent, protocol.CombatEvent{
		EntityID: "dummy",
		Text:     fmt.Sprintf("-%d", damage),
		Color:    colorDamage,
	}, nil)

	room.DummyHealth -= damage
	update := protocol.DummyHealthUpdate{Health: room.DummyHealth}

	if room.DummyHealth <= 0 {
		room.DummyHealth = 0
		update = protocol.DummyHealthUpdate{Health: 0, IsDead: true}

		room.threat.Clear()
		room.CurrentTarget = ""
		h.broadcast(AudienceRoomHub, room.ID, protocol.TypeAggroUpdate,
			protocol.AggroUpdate{TargetID: nil}, nil)

		room.respawnTask = h.After(DummyRespawnDelay, func() { h.respawnDummy(room) })
	}

	h.broadcast(AudienceRoomHub, room.ID, protocol.TypeDummyHealthUpdate, update, nil)
}

// respawnDummy restores the dummy after its death window.
func (h *Hub) respawnDummy(room *Room) {
	if !h.roomAlive(room) {
		return
	}
	room.DummyHealth = DummyMaxHealth
	room.respawnTask = nil
	h.broadcast(AudienceRoomHub, room.ID, protocol.TypeDummyHealthUpdate,
		protocol.DummyHealthUpdate{Health: DummyMaxHealth}, nil)
}

// reevaluateAggro re-derives the dummy's target from the threat table and
// broadcasts only when it changed. Highest positive threat wins; ties go to
// whoever was credited first. No-op while the dummy is dead.
func (h *Hub) reevaluateAggro(room *Room) {
	if room.respawnPending() {
		return
	}
	newTarget, _ := room.threat.Top(nil)
	if newTarget == room.CurrentTarget {
		return
	}
	room.CurrentTarget = newTarget
	h.broadcast(AudienceRoomHub, room.ID, protocol.TypeAggroUpdate,
		protocol.AggroUpdate{TargetID: room.currentTargetRef()}, nil)
}

// stopDummyHealing cancels both the quiet-period delay and any running
// regen ticker.
func (h *Hub) stopDummyHealing(room *Room) {
	room.regenDelayTask.Stop()
	room.regenDelayTask = nil
	room.regenTask.Stop()
	room.regenTask = nil
}

// startDummyHealing arms the regen sequence: after a quiet period with no
// one targeting the dummy, it heals a fixed fraction every second. Callers
// decide whether regen is wanted; this only guards against double-arming.
func (h *Hub) startDummyHealing(room *Room) {
	if room.respawnPending() || room.regenDelayTask != nil || room.regenTask != nil {
		return
	}
	room.regenDelayTask = h.After(RegenQuietDelay, func() {
		room.regenDelayTask = nil
		if !h.roomAlive(room) || room.respawnPending() || len(room.targetedBy) > 0 {
			return
		}
		room.regenTask.Stop()
		room.regenTask = h.Every(RegenInterval, func() { h.regenTick(room) })
	})
}

// regenTick is one regen pulse. It stops itself the moment regen conditions
// no longer hold.
func (h *Hub) regenTick(room *Room) {
	if !h.roomAlive(room) || room.respawnPending() ||
		room.DummyHealth >= DummyMaxHealth || len(room.targetedBy) > 0 {
		room.regenTask.Stop()
		room.regenTask = nil
		return
	}
	room.DummyHealth = min(DummyMaxHealth, room.DummyHealth+RegenPerTick)
	h.broadcast(AudienceRoomHub, room.ID, protocol.TypeDummyHealthUpdate,
		protocol.DummyHealthUpdate{Health: room.DummyHealth}, nil)
}

// handleHealPlayer lets a Cleric heal a room member. Self-heal is only
// allowed inside the tower.
func (h *Hub) handleHealPlayer(p *Player, m *protocol.HealPlayer) {
	if p.Class != "Cleric" {
		return
	}
	target := h.world.players[m.TargetID]
	if target == nil || target.RoomID != p.RoomID {
		sendTo(p, protocol.TypeError, "Heal target is not in your party.")
		return
	}
	if target.Status != StatusInTower && target == p {
		return
	}
	if target.Health >= target.MaxHealth {
		sendTo(p, protocol.TypeStatusUpdate, "Target is at full health")
		return
	}

	target.Health = min(target.MaxHealth, target.Health+HealAmount)

	healed := protocol.PlayerHealed{
		TargetID:  target.Username,
		HealerID:  p.Username,
		NewHealth: target.Health,
	}
	if target.Status == StatusInTower {
		h.broadcast(AudienceRoomTower, p.RoomID, protocol.TypePlayerHealed, healed, nil)
	} else {
		h.broadcast(AudienceRoomHub, p.RoomID, protocol.TypePlayerHealed, healed, nil)
	}
}

// handleHealDummy lets a Cleric top the dummy up, restarting the regen
// sequence if nobody is targeting it.
func (h *Hub) handleHealDummy(p *Player) {
	room := h.world.rooms[p.RoomID]
	if p.Class != "Cleric" || p.Status == StatusInTower || room == nil || room.respawnPending() {
		return
	}
	if room.DummyHealth >= DummyMaxHealth {
		sendTo(p, protocol.TypeStatusUpdate, "Target is at full health")
		return
	}

	room.DummyHealth = min(DummyMaxHealth, room.DummyHealth+HealAmount)

	h.stopDummyHealing(room)
	if len(room.targetedBy) == 0 {
		h.startDummyHealing(room)
	}

	h.broadcast(AudienceRoomHub, room.ID, protocol.TypeDummyHealthUpdate,
		protocol.DummyHealthUpdate{Health: room.DummyHealth}, nil)
	h.broadcast(AudienceRoomHub, room.ID, protocol.TypeCombatEvent, protocol.CombatEvent{
		EntityID: "dummy",
		Text:     fmt.Sprintf("+%d", HealAmount),
		Color:    colorHeal,
	}, nil)
}

// handleSetTarget tracks who is actively targeting the dummy. Targeting
// suspends regen and the player's threat decay; untargeting arms decay on
// any positive threat the player still holds.
func (h *Hub) handleSetTarget(p *Player, m *protocol.SetTarget) {
	room := h.world.rooms[p.RoomID]
	if room == nil || p.Status == StatusInTower {
		return
	}

	switch {
	case m.TargetID != nil && *m.TargetID == "dummy":
		room.targetedBy[p.Username] = struct{}{}
		h.stopDummyHealing(room)
		if t := room.decayTasks[p.Username]; t != nil {
			t.Stop()
			delete(room.decayTasks, p.Username)
		}
		h.reevaluateAggro(room)

	case m.TargetID == nil:
		username := p.Username
		if _, wasTargeting := room.targetedBy[username]; wasTargeting {
			delete(room.targetedBy, username)
			h.reevaluateAggro(room)
		}
		if len(room.targetedBy) == 0 {
			h.startDummyHealing(room)
		}
		if room.threat.Get(username) > 0 {
			room.decayTasks[username].Stop()
			room.decayTasks[username] = h.Every(ThreatDecayInterval, func() {
				h.decayThreatTick(room, username)
			})
		}
	}
}

// decayThreatTick bleeds one decay step off a disengaged player's threat,
// removing the entry and its ticker once it reaches zero.
func (h *Hub) decayThreatTick(room *Room, username string) {
	stop := func() {
		if t := room.decayTasks[username]; t != nil {
			t.Stop()
			delete(room.decayTasks, username)
		}
	}
	if !h.roomAlive(room) || !room.threat.Has(username) {
		stop()
		return
	}
	room.threat.Add(username, -ThreatDecayPerTick)
	if room.threat.Get(username) <= 0 {
		room.threat.Remove(username)
		stop()
	}
	h.reevaluateAggro(room)
}
