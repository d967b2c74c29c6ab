package srv

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"spire/server/config"
	"spire/server/logger"
	"spire/server/protocol"
)

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	username string
	isGuest  bool
	authed   bool
}

// Hub owns the world and serializes every mutation: message handlers, timer
// callbacks and the AI tick all run under mu, so the simulation keeps the
// single-event-loop semantics the protocol assumes.
type Hub struct {
	mu    sync.Mutex
	world *World
	cfg   *config.Config
}

func NewHub(cfg *config.Config) *Hub {
	return &Hub{
		world: newWorld(),
		cfg:   cfg,
	}
}

// Run drives the enemy simulation at the configured tick rate. Blocks; run
// it in its own goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.tickInterval())
	defer ticker.Stop()
	for now := range ticker.C {
		h.mu.Lock()
		h.aiTick(now)
		h.mu.Unlock()
	}
}

func (h *Hub) tickInterval() time.Duration {
	hz := h.cfg.Game.TickHz
	if hz <= 0 {
		hz = 5
	}
	return time.Second / time.Duration(hz)
}

// HandleWS takes ownership of an upgraded connection. username/isGuest come
// from cookie resolution at upgrade time; the client still has to send an
// auth message before anything else.
func (h *Hub) HandleWS(conn *websocket.Conn, username string, isGuest bool) {
	if h.cfg.WebSocket.MaxMessageSize > 0 {
		conn.SetReadLimit(h.cfg.WebSocket.MaxMessageSize)
	}
	c := &client{
		conn:     conn,
		send:     make(chan []byte, 64),
		username: username,
		isGuest:  isGuest,
	}
	go c.writer()
	c.reader(h)
}

func (c *client) writer() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) reader(h *Hub) {
	defer func() {
		c.conn.Close()
		h.dropClient(c)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warnf("closing %q: malformed message: %v", c.username, err)
			return
		}

		// Anything before a successful auth other than auth itself is a
		// protocol violation.
		if !c.authed && env.Type != protocol.TypeAuth {
			logger.Warnf("closing connection: %q before auth", env.Type)
			return
		}

		msg, err := protocol.Decode(env)
		if err != nil {
			sendJSON(c, protocol.TypeError, err.Error())
			continue
		}

		if _, ok := msg.(*protocol.Auth); ok {
			h.mu.Lock()
			ok := h.handleAuth(c)
			h.mu.Unlock()
			if !ok {
				return
			}
			continue
		}

		h.mu.Lock()
		p := h.world.players[c.username]
		if p == nil {
			h.mu.Unlock()
			return
		}
		h.dispatch(p, msg)
		h.mu.Unlock()
	}
}

// dispatch routes one authenticated message. The switch over the closed
// Inbound set is the single place a new message type gets wired.
func (h *Hub) dispatch(p *Player, msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.ClassSelected:
		h.handleClassSelected(p, m)
	case *protocol.Invite:
		h.handleInvite(p, m)
	case *protocol.AcceptInvite:
		h.handleAcceptInvite(p, m)
	case *protocol.DeclineInvite:
		h.handleDeclineInvite(p, m)
	case *protocol.Move:
		h.handleMove(p, m)
	case *protocol.Shoot:
		h.handleShoot(p, m)
	case *protocol.MeleeAnimation:
		h.handleMeleeAnimation(p, m)
	case *protocol.DummyHit:
		h.handleDummyHit(p)
	case *protocol.HealPlayer:
		h.handleHealPlayer(p, m)
	case *protocol.HealDummy:
		h.handleHealDummy(p)
	case *protocol.SetTarget:
		h.handleSetTarget(p, m)
	case *protocol.StartTowerRun:
		h.handleStartTowerRun(p)
	case *protocol.LeaveTower:
		h.handleLeaveTower(p)
	case *protocol.HitTowerEntity:
		h.handleHitTowerEntity(p, m)
	case *protocol.RequestNextFloor:
		h.handleRequestNextFloor(p)
	case *protocol.Auth:
		// handled before dispatch; a repeat auth is ignored
	}
}

// handleAuth registers the player and their self-room. Returns false when
// the connection must be closed.
func (h *Hub) handleAuth(c *client) bool {
	if c.authed {
		return true
	}

	username := c.username
	if c.isGuest {
		name, ok := h.guestName()
		if !ok {
			sendJSON(c, protocol.TypeError, "Could not assign a guest name. Please try again.")
			return false
		}
		username = name
	} else if username == "" || h.world.players[username] != nil {
		sendJSON(c, protocol.TypeError, "Account is already logged in.")
		return false
	}

	c.username = username
	c.authed = true

	h.world.players[username] = &Player{
		c:        c,
		Username: username,
		Status:   StatusSolo,
		RoomID:   username,
		X:        EntryX,
		Y:        EntryY,
	}
	h.world.createSoloRoom(username)

	sendJSON(c, protocol.TypeAuthSuccess, protocol.AuthSuccess{
		ID:            username,
		Room:          username,
		Leader:        username,
		OnlinePlayers: h.world.rosterInfo(),
	})
	h.broadcastRoster()
	logger.Infof("player %q authenticated (guest=%v)", username, c.isGuest)
	return true
}

// guestName synthesizes a display name not held by any active player,
// giving up after a bounded number of attempts.
func (h *Hub) guestName() (string, bool) {
	for i := 0; i < maxGuestNameAttempts; i++ {
		name := fmt.Sprintf("Guest_%d", 1000+rand.Intn(9000))
		if h.world.players[name] == nil {
			return name, true
		}
	}
	return "", false
}

// dropClient runs the disconnect protocol and closes the send channel so
// the writer goroutine drains and exits. The close happens under the hub
// lock, after the player is unregistered, so no broadcast can enqueue to a
// closed channel.
func (h *Hub) dropClient(c *client) {
	h.mu.Lock()
	h.handleDisconnect(c)
	close(c.send)
	h.mu.Unlock()
}

// handleDisconnect runs the full leave protocol for a dropped connection:
// timer cleanup and aggro re-evaluation first, then the audience-correct
// leave broadcast, then room resizing.
func (h *Hub) handleDisconnect(c *client) {
	if !c.authed {
		return
	}
	p := h.world.players[c.username]
	if p == nil || p.c != c {
		return
	}

	roomID := p.RoomID
	room := h.world.rooms[roomID]
	wasInTower := p.Status == StatusInTower

	if room != nil {
		if t := room.decayTasks[p.Username]; t != nil {
			t.Stop()
			delete(room.decayTasks, p.Username)
		}
		if _, ok := room.targetedBy[p.Username]; ok {
			delete(room.targetedBy, p.Username)
			if len(room.targetedBy) == 0 {
				h.startDummyHealing(room)
			}
		}
		delete(room.ready, p.Username)
		h.reevaluateAggro(room)
	}

	delete(h.world.players, p.Username)

	leave := protocol.Leave{ID: p.Username}
	if wasInTower {
		h.broadcast(AudienceRoomTower, roomID, protocol.TypeLeave, leave, nil)
	} else {
		h.broadcast(AudienceRoomHub, roomID, protocol.TypeLeave, leave, nil)
	}

	remaining := h.world.membersOf(roomID)

	if room != nil && wasInTower {
		h.resolveTowerDeparture(room)
	}

	switch {
	case len(remaining) == 0:
		h.world.deleteRoom(roomID)
	case len(remaining) == 1 && remaining[0].Status != StatusInTower:
		h.collapseToSoloRoom(remaining[0], roomID)
	default:
		if room != nil && room.Leader == p.Username {
			newLeader := remaining[0].Username
			room.Leader = newLeader
			h.broadcast(AudienceRoom, roomID, protocol.TypeStatusUpdate,
				fmt.Sprintf("%s is the new party leader.", newLeader), nil)
		}
	}

	h.broadcastRoster()
	logger.Infof("player %q disconnected", p.Username)
}

// collapseToSoloRoom tears down a party room whose last remaining member is
// in the hub and gives them a fresh self-room.
func (h *Hub) collapseToSoloRoom(last *Player, oldRoomID string) {
	last.Status = StatusSolo
	last.RoomID = last.Username
	h.world.deleteRoom(oldRoomID)
	h.world.createSoloRoom(last.Username)
}

// resolveTowerDeparture clears an empty tower instance, or re-derives the
// ready threshold for the remaining members. A departure can be the event
// that satisfies the threshold, so it may trigger the floor advance itself.
func (h *Hub) resolveTowerDeparture(room *Room) {
	if room.Tower == nil {
		return
	}
	inTower := h.world.towerMembersOf(room.ID)
	if len(inTower) == 0 {
		room.Tower = nil
		room.ready = make(map[string]struct{})
		return
	}
	if room.Tower.ExitActive && len(room.ready) >= len(inTower) {
		h.broadcast(AudienceRoomTower, room.ID, protocol.TypePlayerReadyUpdate, protocol.PlayerReadyUpdate{
			ReadyCount: len(room.ready),
			TotalCount: len(inTower),
		}, nil)
		h.advanceFloor(room)
	}
}

// Audience selects the recipient set for a broadcast.
type Audience int

const (
	AudienceAll Audience = iota
	AudienceRoom
	AudienceRoomHub
	AudienceRoomTower
)

// broadcast fans payload out to the audience, optionally excluding one
// player (typically the originator of the event being echoed).
func (h *Hub) broadcast(aud Audience, roomID string, typ string, payload any, exclude *Player) {
	room := ""
	if aud != AudienceAll {
		room = roomID
	}
	data := encodeEnvelope(typ, payload, room)
	for _, p := range h.world.players {
		if p == exclude || p.c == nil {
			continue
		}
		switch aud {
		case AudienceAll:
		case AudienceRoom:
			if p.RoomID != roomID {
				continue
			}
		case AudienceRoomHub:
			if p.RoomID != roomID || p.Status == StatusInTower {
				continue
			}
		case AudienceRoomTower:
			if p.RoomID != roomID || p.Status != StatusInTower {
				continue
			}
		}
		p.c.enqueue(data)
	}
}

// broadcastRoster pushes the online-player list to everyone.
func (h *Hub) broadcastRoster() {
	h.broadcast(AudienceAll, "", protocol.TypeOnlinePlayers, h.world.rosterInfo(), nil)
}

func encodeEnvelope(typ string, payload any, room string) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("marshal %s payload: %v", typ, err)
		return nil
	}
	out, _ := json.Marshal(protocol.Envelope{Type: typ, Payload: raw, Room: room})
	return out
}

func sendJSON(c *client, typ string, payload any) {
	if c == nil {
		return
	}
	c.enqueue(encodeEnvelope(typ, payload, ""))
}

// sendTo is sendJSON addressed by player.
func sendTo(p *Player, typ string, payload any) {
	if p != nil {
		sendJSON(p.c, typ, payload)
	}
}

// enqueue never blocks; a slow client drops messages rather than stalling
// the simulation.
func (c *client) enqueue(b []byte) {
	if b == nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}
