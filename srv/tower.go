package srv

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"spire/server/protocol"
)

// TowerInstance is one party's active run: the current floor's enemies,
// live boss projectiles, and whether the exit portal is open.
type TowerInstance struct {
	CurrentFloor int
	Enemies      []*Enemy
	Boss         *Enemy
	Projectiles  []*Projectile
	ExitActive   bool
}

// Enemy is a minion or boss. Threat is tracked per entity; TargetID is the
// resolved aggro target, empty when idle.
type Enemy struct {
	ID        string
	Kind      string
	X, Y      float64
	Health    int
	MaxHealth int
	IsDead    bool

	threat   *threatTable
	TargetID string

	// AttackCooldownUntil gates the next attack; TelegraphEndsAt is the
	// zero time when no telegraph is in flight.
	AttackCooldownUntil time.Time
	TelegraphEndsAt     time.Time
	AttackCounter       int
}

// Projectile is a boss shot in flight.
type Projectile struct {
	ID     string
	Owner  string
	X, Y   float64
	VX, VY float64
}

const (
	enemyKindMinion = "minion"
	enemyKindBoss   = "boss"
)

// generateFloor builds floor's enemy layout: the boss at the top-center,
// minions on a ~120 degree arc in front of it with jittered spacing.
func generateFloor(floor int) *TowerInstance {
	bossX := WorldWidth / 2
	minionCount := 2 + floor/2

	minions := make([]*Enemy, 0, minionCount)
	for i := 0; i < minionCount; i++ {
		step := math.Pi / 3
		if minionCount > 1 {
			step = (math.Pi / 3) / float64(minionCount-1)
		}
		angle := math.Pi/3 + float64(i)*step + (rand.Float64()*0.2 - 0.1)
		radius := MinionSpawnRadius + (rand.Float64()*50 - 25)

		minions = append(minions, &Enemy{
			ID:        fmt.Sprintf("m_%d_%d", floor, i),
			Kind:      enemyKindMinion,
			X:         bossX + math.Cos(angle)*radius,
			Y:         BossSpawnY + math.Sin(angle)*radius,
			Health:    100 * floor,
			MaxHealth: 100 * floor,
			threat:    newThreatTable(),
		})
	}

	bossHealth := 500 * floor * 3 / 2
	return &TowerInstance{
		CurrentFloor: floor,
		Enemies:      minions,
		Boss: &Enemy{
			ID:        fmt.Sprintf("b_%d", floor),
			Kind:      enemyKindBoss,
			X:         bossX,
			Y:         BossSpawnY,
			Health:    bossHealth,
			MaxHealth: bossHealth,
			threat:    newThreatTable(),
		},
	}
}

// findEntity looks an enemy up by ID, boss included.
func (t *TowerInstance) findEntity(id string) *Enemy {
	for _, e := range t.Enemies {
		if e.ID == id {
			return e
		}
	}
	if t.Boss != nil && t.Boss.ID == id {
		return t.Boss
	}
	return nil
}

// cleared reports whether every enemy on the floor is dead.
func (t *TowerInstance) cleared() bool {
	if t.Boss == nil || !t.Boss.IsDead {
		return false
	}
	for _, e := range t.Enemies {
		if !e.IsDead {
			return false
		}
	}
	return true
}

func (e *Enemy) targetRef() *string {
	if e.TargetID == "" {
		return nil
	}
	t := e.TargetID
	return &t
}

func enemyView(e *Enemy) protocol.EnemyState {
	return protocol.EnemyState{
		ID:            e.ID,
		Kind:          e.Kind,
		X:             e.X,
		Y:             e.Y,
		Health:        e.Health,
		MaxHealth:     e.MaxHealth,
		IsDead:        e.IsDead,
		AggroTargetID: e.targetRef(),
	}
}

// towerView snapshots the instance for floor-load payloads.
func towerView(t *TowerInstance) protocol.TowerState {
	enemies := make([]protocol.EnemyState, 0, len(t.Enemies))
	for _, e := range t.Enemies {
		enemies = append(enemies, enemyView(e))
	}
	projectiles := make([]protocol.ProjectileState, 0, len(t.Projectiles))
	for _, p := range t.Projectiles {
		projectiles = append(projectiles, protocol.ProjectileState{
			ID: p.ID, Owner: p.Owner, X: p.X, Y: p.Y, VX: p.VX, VY: p.VY,
		})
	}
	return protocol.TowerState{
		CurrentFloor: t.CurrentFloor,
		Enemies:      enemies,
		Boss:         enemyView(t.Boss),
		Projectiles:  projectiles,
		ExitActive:   t.ExitActive,
	}
}

// handleStartTowerRun moves the player from the hub into the party's tower
// instance, lazily creating one starting at the floor after their saved
// progress.
func (h *Hub) handleStartTowerRun(p *Player) {
	room := h.world.rooms[p.RoomID]
	if room == nil || p.Status == StatusInTower {
		return
	}

	if room.Tower == nil {
		start := p.TowerFloorProgress + 1
		if start < 1 {
			start = 1
		}
		room.Tower = generateFloor(start)
	}

	h.broadcast(AudienceRoomHub, room.ID, protocol.TypeLeave,
		protocol.Leave{ID: p.Username}, p)

	alreadyInTower := h.world.towerMembersOf(room.ID)

	p.X = EntryX
	p.Y = EntryY
	entrant := hubState(p)
	for _, member := range alreadyInTower {
		sendTo(member, protocol.TypePlayerJoinedTowerInstance, entrant)
	}

	p.Status = StatusInTower

	towerPlayers := hubStates(alreadyInTower)
	towerPlayers = append(towerPlayers, entrant)
	sendTo(p, protocol.TypeTowerStart, protocol.TowerStart{
		TowerState: towerView(room.Tower),
		Players:    towerPlayers,
	})

	h.broadcastRoster()
}

// handleLeaveTower returns the player to the hub, saving their floor
// progress. Works after tower completion too, when the instance is already
// gone.
func (h *Hub) handleLeaveTower(p *Player) {
	room := h.world.rooms[p.RoomID]
	if room == nil || p.Status != StatusInTower {
		return
	}

	if room.Tower != nil {
		p.TowerFloorProgress = room.Tower.CurrentFloor - 1
		if p.TowerFloorProgress < 0 {
			p.TowerFloorProgress = 0
		}
	}
	delete(room.ready, p.Username)

	h.broadcast(AudienceRoomTower, room.ID, protocol.TypeLeave,
		protocol.Leave{ID: p.Username}, p)

	if len(h.world.membersOf(room.ID)) > 1 {
		p.Status = StatusPartied
	} else {
		p.Status = StatusSolo
	}
	p.X = EntryX
	p.Y = EntryY

	h.broadcast(AudienceRoomHub, room.ID, protocol.TypePlayerRejoinedHub, hubState(p), p)

	sendTo(p, protocol.TypeReturnToHub, protocol.ReturnToHub{
		Players:       hubStates(h.world.hubMembersOf(room.ID)),
		DummyHealth:   room.DummyHealth,
		CurrentTarget: room.currentTargetRef(),
		Leader:        room.Leader,
		OnlinePlayers: h.world.rosterInfo(),
	})

	h.resolveTowerDeparture(room)
	h.broadcastRoster()
}

// handleHitTowerEntity applies one hit to a tower enemy, re-resolves its
// aggro, and opens the exit if this kill cleared the floor.
func (h *Hub) handleHitTowerEntity(p *Player, m *protocol.HitTowerEntity) {
	room := h.world.rooms[p.RoomID]
	if p.Status != StatusInTower || p.Class == "Cleric" || room == nil || room.Tower == nil {
		return
	}
	tower := room.Tower
	entity := tower.findEntity(m.EntityID)
	if entity == nil || entity.IsDead {
		return
	}

	damage := ClassDamage[p.Class]
	if damage == 0 {
		damage = 5
	}
	entity.threat.Add(p.Username, damage)
	entity.Health -= damage

	entity.TargetID = h.resolveEnemyAggro(entity)

	h.broadcast(AudienceRoomTower, room.ID, protocol.TypeCombatEvent, protocol.CombatEvent{
		EntityID: entity.ID,
		Text:     fmt.Sprintf("-%d", damage),
		Color:    colorDamage,
	}, nil)

	if entity.Health <= 0 {
		entity.Health = 0
		entity.IsDead = true
		entity.TargetID = ""
	}

	health := entity.Health
	isDead := entity.IsDead
	h.broadcast(AudienceRoomTower, room.ID, protocol.TypeTowerEntityUpdate, protocol.TowerEntityUpdate{
		ID:            entity.ID,
		Health:        &health,
		IsDead:        &isDead,
		AggroTargetID: entity.targetRef(),
	}, nil)

	if !tower.ExitActive && tower.cleared() {
		tower.ExitActive = true
		h.broadcast(AudienceRoomTower, room.ID, protocol.TypeTowerFloorCleared, struct{}{}, nil)
	}
}

// resolveEnemyAggro picks the enemy's target: highest positive threat among
// players who are in the tower and outside the safe zone, first credited
// winning ties.
func (h *Hub) resolveEnemyAggro(e *Enemy) string {
	target, _ := e.threat.Top(func(name string) bool {
		p := h.world.players[name]
		return p != nil && p.Status == StatusInTower && !inSafeZone(p)
	})
	return target
}

func inSafeZone(p *Player) bool {
	return p.Y >= SafeZoneTop
}

// handleRequestNextFloor records a ready signal while the exit is open and
// advances the floor once every tower member has signalled.
func (h *Hub) handleRequestNextFloor(p *Player) {
	room := h.world.rooms[p.RoomID]
	if p.Status != StatusInTower || room == nil || room.Tower == nil || !room.Tower.ExitActive {
		return
	}

	room.ready[p.Username] = struct{}{}

	inTower := h.world.towerMembersOf(room.ID)
	player := p.Username
	h.broadcast(AudienceRoomTower, room.ID, protocol.TypePlayerReadyUpdate, protocol.PlayerReadyUpdate{
		ReadyCount: len(room.ready),
		TotalCount: len(inTower),
		Player:     &player,
	}, nil)

	if len(room.ready) >= len(inTower) {
		h.advanceFloor(room)
	}
}

// advanceFloor consumes a satisfied ready threshold: either regenerate the
// next floor and reposition the party on an evenly spaced row, or finish
// the run after the final floor.
func (h *Hub) advanceFloor(room *Room) {
	if room.Tower == nil {
		return
	}
	room.ready = make(map[string]struct{})
	room.Tower.ExitActive = false
	floor := room.Tower.CurrentFloor

	if floor >= FinalFloor {
		h.broadcast(AudienceRoomTower, room.ID, protocol.TypeTowerComplete, struct{}{}, nil)
		room.Tower = nil
		return
	}

	room.Tower = generateFloor(floor + 1)

	inTower := h.world.towerMembersOf(room.ID)
	startX := WorldWidth/2 - float64(len(inTower)-1)*FloorSpawnSpacing/2
	positions := make([]protocol.PlayerPosition, 0, len(inTower))
	for i, member := range inTower {
		member.X = startX + float64(i)*FloorSpawnSpacing
		member.Y = EntryY
		positions = append(positions, protocol.PlayerPosition{
			ID: member.Username, X: member.X, Y: member.Y,
		})
	}

	h.broadcast(AudienceRoomTower, room.ID, protocol.TypeTowerLoadNextFloor, protocol.TowerLoadNextFloor{
		TowerState:      towerView(room.Tower),
		PlayerPositions: positions,
	}, nil)
}
