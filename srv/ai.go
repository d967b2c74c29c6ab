package srv

import (
	"math"
	"time"

	"github.com/google/uuid"

	"spire/server/protocol"
)

// aiTick advances every active tower instance by one simulation step.
// Caller holds the hub lock.
func (h *Hub) aiTick(now time.Time) {
	dt := h.tickInterval().Seconds()
	for _, room := range h.world.rooms {
		if room.Tower == nil {
			continue
		}
		h.tickTower(room, now, dt)
	}
}

func (h *Hub) tickTower(room *Room, now time.Time, dt float64) {
	tower := room.Tower
	inTower := h.world.towerMembersOf(room.ID)

	for _, e := range tower.Enemies {
		h.tickEnemy(room, e, inTower, now, dt)
	}
	h.tickEnemy(room, tower.Boss, inTower, now, dt)

	h.tickProjectiles(room, inTower, dt)
}

func (h *Hub) tickEnemy(room *Room, e *Enemy, inTower []*Player, now time.Time, dt float64) {
	if e == nil || e.IsDead {
		return
	}

	target := h.resolveEnemyAggro(e)

	// No threat target: fall back to the nearest exposed player in
	// detection range, seeding a sliver of threat so the lock sticks.
	if target == "" {
		minDist := DetectionRadius
		for _, p := range inTower {
			if inSafeZone(p) {
				continue
			}
			if d := math.Hypot(e.X-p.X, e.Y-p.Y); d < minDist {
				minDist = d
				target = p.Username
			}
		}
		if target != "" {
			e.threat.Add(target, 1)
		}
	}

	e.TargetID = target
	// The target is pushed every tick, even unchanged, so late joiners and
	// lossy clients converge.
	h.broadcast(AudienceRoomTower, room.ID, protocol.TypeTowerEntityUpdate, protocol.TowerEntityUpdate{
		ID:            e.ID,
		AggroTargetID: e.targetRef(),
	}, nil)

	targetPlayer := h.world.players[target]
	if targetPlayer == nil {
		return
	}

	switch e.Kind {
	case enemyKindMinion:
		h.tickMinion(room, e, targetPlayer, now, dt)
	case enemyKindBoss:
		h.tickBoss(room, e, targetPlayer, now)
	}
}

// tickMinion runs the melee state machine: resolve a finished telegraph,
// otherwise chase, otherwise start a telegraph when in range and off
// cooldown.
func (h *Hub) tickMinion(room *Room, e *Enemy, target *Player, now time.Time, dt float64) {
	dist := math.Hypot(e.X-target.X, e.Y-target.Y)

	switch {
	case !e.TelegraphEndsAt.IsZero() && !now.Before(e.TelegraphEndsAt):
		e.TelegraphEndsAt = time.Time{}
		e.AttackCooldownUntil = now.Add(MinionAttackCooldown)

		// The swing lands on whoever holds aggro at resolution time, and
		// only if they are still close enough.
		victim := h.world.players[e.TargetID]
		if victim == nil {
			return
		}
		if math.Hypot(e.X-victim.X, e.Y-victim.Y) > MeleeRange+MeleeForgiveness {
			return
		}
		victim.Health = max(0, victim.Health-MinionDamage)
		h.broadcast(AudienceRoomTower, room.ID, protocol.TypeEnemyAttack, protocol.EnemyAttack{
			ID:       e.ID,
			TargetID: victim.Username,
		}, nil)
		h.broadcast(AudienceRoomTower, room.ID, protocol.TypePlayerDamaged, protocol.PlayerDamaged{
			ID:        victim.Username,
			NewHealth: victim.Health,
		}, nil)

	case dist > MeleeRange && e.TelegraphEndsAt.IsZero():
		angle := math.Atan2(target.Y-e.Y, target.X-e.X)
		e.X += math.Cos(angle) * MinionSpeed * dt
		e.Y += math.Sin(angle) * MinionSpeed * dt
		h.broadcast(AudienceRoomTower, room.ID, protocol.TypeEnemyMove, protocol.EnemyMove{
			ID:       e.ID,
			X:        e.X,
			Y:        e.Y,
			TargetID: e.targetRef(),
		}, nil)

	case dist <= MeleeRange && now.After(e.AttackCooldownUntil) && e.TelegraphEndsAt.IsZero():
		e.TelegraphEndsAt = now.Add(MinionTelegraphTime)
		angle := math.Atan2(target.Y-e.Y, target.X-e.X)
		h.broadcast(AudienceRoomTower, room.ID, protocol.TypeEnemyTelegraphAttack, protocol.EnemyTelegraphAttack{
			ID:    e.ID,
			X:     e.X + math.Cos(angle)*TelegraphReach,
			Y:     e.Y + math.Sin(angle)*TelegraphReach,
			Angle: angle,
		}, nil)
	}
}

// tickBoss fires at the aggro target whenever the cooldown lapses; every
// third volley is a three-shot spread.
func (h *Hub) tickBoss(room *Room, e *Enemy, target *Player, now time.Time) {
	if !now.After(e.AttackCooldownUntil) {
		return
	}
	e.AttackCooldownUntil = now.Add(BossAttackCooldown)
	e.AttackCounter++

	angle := math.Atan2(target.Y-e.Y, target.X-e.X)
	angles := []float64{angle}
	if e.AttackCounter%BossSpreadEvery == 0 {
		angles = []float64{angle - BossSpreadAngle, angle, angle + BossSpreadAngle}
	}

	for _, shotAngle := range angles {
		proj := &Projectile{
			ID:    uuid.NewString(),
			Owner: e.ID,
			X:     e.X,
			Y:     e.Y,
			VX:    math.Cos(shotAngle) * BossProjectileSpeed,
			VY:    math.Sin(shotAngle) * BossProjectileSpeed,
		}
		room.Tower.Projectiles = append(room.Tower.Projectiles, proj)
		h.broadcast(AudienceRoomTower, room.ID, protocol.TypeEnemyProjectileFired, protocol.ProjectileState{
			ID: proj.ID, Owner: proj.Owner, X: proj.X, Y: proj.Y, VX: proj.VX, VY: proj.VY,
		}, nil)
	}
}

// tickProjectiles integrates boss shots, dropping each on its first hit or
// when it leaves the world. The safe zone shields players from hits.
func (h *Hub) tickProjectiles(room *Room, inTower []*Player, dt float64) {
	tower := room.Tower
	kept := tower.Projectiles[:0]
	for _, proj := range tower.Projectiles {
		proj.X += proj.VX * dt
		proj.Y += proj.VY * dt

		if proj.X < 0 || proj.X > WorldWidth || proj.Y < 0 || proj.Y > WorldHeight {
			continue
		}

		hit := false
		for _, p := range inTower {
			if inSafeZone(p) {
				continue
			}
			if math.Hypot(proj.X-p.X, proj.Y-p.Y) < ProjectileHitRadius {
				p.Health = max(0, p.Health-ProjectileDamage)
				h.broadcast(AudienceRoomTower, room.ID, protocol.TypePlayerDamaged, protocol.PlayerDamaged{
					ID:        p.Username,
					NewHealth: p.Health,
				}, nil)
				hit = true
				break
			}
		}
		if hit {
			continue
		}
		kept = append(kept, proj)
	}
	tower.Projectiles = kept
}
