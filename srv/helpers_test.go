package srv

import (
	"encoding/json"
	"testing"

	"spire/server/config"
	"spire/server/protocol"
)

func newTestHub() *Hub {
	return NewHub(config.Default())
}

// join authenticates a fresh connectionless client and returns its player.
func join(t *testing.T, h *Hub, name string, class string) *Player {
	t.Helper()
	c := &client{send: make(chan []byte, 256), username: name}
	if !h.handleAuth(c) {
		t.Fatalf("auth failed for %s", name)
	}
	p := h.world.players[name]
	if p == nil {
		t.Fatalf("player %s not registered", name)
	}
	if class != "" {
		h.handleClassSelected(p, &protocol.ClassSelected{PlayerClass: class})
	}
	drain(p)
	return p
}

// party merges b into a's room via the invite flow.
func party(t *testing.T, h *Hub, a, b *Player) {
	t.Helper()
	h.handleInvite(a, &protocol.Invite{To: b.Username})
	h.handleAcceptInvite(b, &protocol.AcceptInvite{From: a.Username})
	if b.RoomID != a.RoomID {
		t.Fatalf("party failed: %s in room %s, want %s", b.Username, b.RoomID, a.RoomID)
	}
	drain(a)
	drain(b)
}

func drain(p *Player) {
	for {
		select {
		case <-p.c.send:
		default:
			return
		}
	}
}

// queued returns everything currently buffered for p.
func queued(t *testing.T, p *Player) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		select {
		case raw := <-p.c.send:
			var env protocol.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("bad envelope: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

// lastOfType scans p's queue and returns the last message of the given
// type, or fails.
func lastOfType(t *testing.T, p *Player, typ string) json.RawMessage {
	t.Helper()
	var found json.RawMessage
	for _, env := range queued(t, p) {
		if env.Type == typ {
			found = env.Payload
		}
	}
	if found == nil {
		t.Fatalf("no %q message queued for %s", typ, p.Username)
	}
	return found
}

// countOfType drains p's queue and counts messages of the given type.
func countOfType(t *testing.T, p *Player, typ string) int {
	t.Helper()
	n := 0
	for _, env := range queued(t, p) {
		if env.Type == typ {
			n++
		}
	}
	return n
}

func decodeInto(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}
