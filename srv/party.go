package srv

import (
	"fmt"

	"spire/server/logger"
	"spire/server/protocol"
)

func (h *Hub) handleClassSelected(p *Player, m *protocol.ClassSelected) {
	health, ok := ClassHealth[m.PlayerClass]
	if !ok {
		sendTo(p, protocol.TypeError, "Invalid class selection.")
		return
	}
	p.Class = m.PlayerClass
	p.Health = health
	p.MaxHealth = health
	logger.Infof("player %q selected class %s (%d hp)", p.Username, m.PlayerClass, health)
}

// handleInvite forwards a party invite. Only solo players in the hub can be
// invited.
func (h *Hub) handleInvite(p *Player, m *protocol.Invite) {
	invitee := h.world.players[m.To]
	if invitee == nil || invitee.Status != StatusSolo {
		sendTo(p, protocol.TypeError, "Player is not available for an invite.")
		return
	}
	sendTo(invitee, protocol.TypeReceiveInvite, protocol.ReceiveInvite{From: p.Username})
	sendTo(p, protocol.TypeStatusUpdate, fmt.Sprintf("Invite sent to %s.", m.To))
}

// handleAcceptInvite merges the accepter into the inviter's room. The
// accepter's old self-room is torn down, timers included, before the move.
func (h *Hub) handleAcceptInvite(p *Player, m *protocol.AcceptInvite) {
	inviter := h.world.players[m.From]
	if inviter == nil {
		sendTo(p, protocol.TypeStatusUpdate, "Could not join party. Player not found.")
		return
	}
	partyRoom := h.world.rooms[inviter.RoomID]

	// A room with a live tower instance cannot absorb new members, even
	// when the inviter themselves is waiting in the hub.
	if inviter.Status == StatusInTower || (partyRoom != nil && partyRoom.Tower != nil) {
		sendTo(p, protocol.TypeStatusUpdate, "Cannot join: The party is currently in the tower.")
		sendTo(inviter, protocol.TypeStatusUpdate,
			fmt.Sprintf("%s cannot join while you are in the tower.", p.Username))
		return
	}

	if p.Status != StatusSolo {
		sendTo(p, protocol.TypeStatusUpdate, "Could not join party. Player may no longer be available.")
		return
	}

	partyRoomID := inviter.RoomID
	if partyRoom == nil {
		sendTo(p, protocol.TypeError, "The party room no longer exists.")
		return
	}

	h.world.deleteRoom(p.RoomID)

	if inviter.Status == StatusSolo {
		inviter.Status = StatusPartied
	}
	p.Status = StatusPartied
	p.RoomID = partyRoomID

	inHub := h.world.hubMembersOf(partyRoomID)
	state := protocol.PartyState{
		Room:          partyRoomID,
		Leader:        partyRoom.Leader,
		Players:       hubStates(inHub),
		DummyHealth:   partyRoom.DummyHealth,
		CurrentTarget: partyRoom.currentTargetRef(),
	}
	for _, member := range inHub {
		typ := protocol.TypePartyUpdated
		if member == p {
			typ = protocol.TypeForceJoinRoom
		}
		sendTo(member, typ, state)
	}
	h.broadcastRoster()
	logger.Infof("player %q joined party %q", p.Username, partyRoomID)
}

func (h *Hub) handleDeclineInvite(p *Player, m *protocol.DeclineInvite) {
	if inviter := h.world.players[m.From]; inviter != nil {
		sendTo(inviter, protocol.TypeStatusUpdate,
			fmt.Sprintf("%s declined your invite.", p.Username))
	}
}

// movementAudience is where a player's position/combat cosmetics go: tower
// members see tower players, hub members see hub players.
func (h *Hub) movementAudience(p *Player) Audience {
	if p.Status == StatusInTower {
		return AudienceRoomTower
	}
	return AudienceRoomHub
}

func (h *Hub) handleMove(p *Player, m *protocol.Move) {
	p.X = m.X
	p.Y = m.Y
	h.broadcast(h.movementAudience(p), p.RoomID, protocol.TypeMove, protocol.MoveUpdate{
		ID: p.Username,
		X:  m.X,
		Y:  m.Y,
	}, p)
}

// handleShoot relays a ranged attack visual. Clerics cannot attack.
func (h *Hub) handleShoot(p *Player, m *protocol.Shoot) {
	if p.Class == "Cleric" {
		return
	}
	h.broadcast(h.movementAudience(p), p.RoomID, protocol.TypeProjectileFired, protocol.ProjectileFired{
		ID:          p.Username,
		PlayerClass: p.Class,
		X:           m.X,
		Y:           m.Y,
		VelocityX:   m.VelocityX,
		VelocityY:   m.VelocityY,
		Rotation:    m.Rotation,
	}, p)
}

func (h *Hub) handleMeleeAnimation(p *Player, m *protocol.MeleeAnimation) {
	if p.Class == "Cleric" {
		return
	}
	h.broadcast(h.movementAudience(p), p.RoomID, protocol.TypeMeleeAnimation, protocol.MeleeSwing{
		ID:    p.Username,
		Angle: m.Angle,
	}, p)
}
