// Package protocol defines the wire format shared by the Spire server and
// its clients: a JSON envelope, the closed set of client messages, and the
// payloads the server pushes back.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope wraps every message in both directions. Room is only set on
// server pushes that are scoped to a party room.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Room    string          `json:"room,omitempty"`
}

// ================= C -> S =================

// Inbound is the closed set of client message variants. Decode returns one
// of these; the hub type-switches over them so an unhandled variant is
// caught by the compiler rather than silently dropped.
type Inbound interface{ inbound() }

type Auth struct{}

type ClassSelected struct {
	PlayerClass string `json:"playerClass"`
}

type Invite struct {
	To string `json:"to"`
}

type AcceptInvite struct {
	From string `json:"from"`
}

type DeclineInvite struct {
	From string `json:"from"`
}

type Move struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Shoot struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
	Rotation  float64 `json:"rotation"`
}

type MeleeAnimation struct {
	Angle float64 `json:"angle"`
}

type DummyHit struct{}

type HealPlayer struct {
	TargetID string `json:"targetId"`
}

type HealDummy struct{}

// SetTarget carries "dummy" to start targeting or null to stop.
type SetTarget struct {
	TargetID *string `json:"targetId"`
}

type StartTowerRun struct{}

type LeaveTower struct{}

type HitTowerEntity struct {
	EntityID string `json:"entityId"`
}

type RequestNextFloor struct{}

func (Auth) inbound()             {}
func (ClassSelected) inbound()    {}
func (Invite) inbound()           {}
func (AcceptInvite) inbound()     {}
func (DeclineInvite) inbound()    {}
func (Move) inbound()             {}
func (Shoot) inbound()            {}
func (MeleeAnimation) inbound()   {}
func (DummyHit) inbound()         {}
func (HealPlayer) inbound()       {}
func (HealDummy) inbound()        {}
func (SetTarget) inbound()        {}
func (StartTowerRun) inbound()    {}
func (LeaveTower) inbound()       {}
func (HitTowerEntity) inbound()   {}
func (RequestNextFloor) inbound() {}

// Inbound type strings.
const (
	TypeAuth             = "auth"
	TypeClassSelected    = "class_selected"
	TypeInvite           = "invite"
	TypeAcceptInvite     = "accept_invite"
	TypeDeclineInvite    = "decline_invite"
	TypeMove             = "move"
	TypeShoot            = "shoot"
	TypeMeleeAnimation   = "melee_animation"
	TypeDummyHit         = "dummy_hit"
	TypeHealPlayer       = "heal_player"
	TypeHealDummy        = "heal_dummy"
	TypeSetTarget        = "set_target"
	TypeStartTowerRun    = "start_tower_run"
	TypeLeaveTower       = "leave_tower"
	TypeHitTowerEntity   = "hit_tower_entity"
	TypeRequestNextFloor = "request_next_floor"
)

// ErrUnknownType reports an envelope type outside the inbound set.
type ErrUnknownType struct{ Type string }

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// Decode parses an envelope's payload into its typed inbound variant.
func Decode(env Envelope) (Inbound, error) {
	unmarshal := func(v Inbound) (Inbound, error) {
		if len(env.Payload) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return v, nil
	}

	switch env.Type {
	case TypeAuth:
		return unmarshal(&Auth{})
	case TypeClassSelected:
		return unmarshal(&ClassSelected{})
	case TypeInvite:
		return unmarshal(&Invite{})
	case TypeAcceptInvite:
		return unmarshal(&AcceptInvite{})
	case TypeDeclineInvite:
		return unmarshal(&DeclineInvite{})
	case TypeMove:
		return unmarshal(&Move{})
	case TypeShoot:
		return unmarshal(&Shoot{})
	case TypeMeleeAnimation:
		return unmarshal(&MeleeAnimation{})
	case TypeDummyHit:
		return unmarshal(&DummyHit{})
	case TypeHealPlayer:
		return unmarshal(&HealPlayer{})
	case TypeHealDummy:
		return unmarshal(&HealDummy{})
	case TypeSetTarget:
		return unmarshal(&SetTarget{})
	case TypeStartTowerRun:
		return unmarshal(&StartTowerRun{})
	case TypeLeaveTower:
		return unmarshal(&LeaveTower{})
	case TypeHitTowerEntity:
		return unmarshal(&HitTowerEntity{})
	case TypeRequestNextFloor:
		return unmarshal(&RequestNextFloor{})
	default:
		return nil, &ErrUnknownType{Type: env.Type}
	}
}
