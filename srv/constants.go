package srv

import "time"

// World and combat tuning. Positions are in world units; the hub and every
// tower floor share one coordinate space.
const (
	WorldWidth  = 3200.0
	WorldHeight = 2000.0

	// Entry point: players spawn here in the hub and when entering a floor.
	EntryX = WorldWidth / 2
	EntryY = WorldHeight - 100

	// Safe zone: tower enemies cannot target or damage players at or below
	// this line (players spawn centered, so the Y check suffices).
	SafeZoneTop = WorldHeight - 200

	DummyMaxHealth    = 10000
	DummyRespawnDelay = 2000 * time.Millisecond

	// Regeneration: after a quiet delay, 5% of max health per second.
	RegenQuietDelay = 3 * time.Second
	RegenInterval   = time.Second
	RegenPerTick    = DummyMaxHealth / 20

	// Threat decay while not targeting: 5% of dummy max health per second.
	ThreatDecayInterval = time.Second
	ThreatDecayPerTick  = DummyMaxHealth / 20

	HealAmount = 30

	DetectionRadius = 500.0

	MeleeRange           = 70.0
	MeleeForgiveness     = 20.0
	MinionSpeed          = 150.0 // units per second
	MinionAttackCooldown = 2500 * time.Millisecond
	MinionTelegraphTime  = 500 * time.Millisecond
	MinionDamage         = 10
	TelegraphReach       = 40.0

	BossAttackCooldown  = 3 * time.Second
	BossProjectileSpeed = 400.0
	BossSpreadEvery     = 3
	BossSpreadAngle     = 0.25

	ProjectileHitRadius = 32.0
	ProjectileDamage    = 25

	FinalFloor        = 10
	FloorSpawnSpacing = 100.0
	BossSpawnY        = 300.0
	MinionSpawnRadius = 150.0

	maxGuestNameAttempts = 100
)

// Classes. Cleric is the support class: it deals no damage and is the only
// class allowed to heal.
var (
	ClassHealth = map[string]int{
		"Paladin": 150,
		"Fighter": 100,
		"Cleric":  80,
		"Ranger":  100,
	}
	ClassDamage = map[string]int{
		"Paladin": 4,
		"Fighter": 6,
		"Ranger":  6,
		"Cleric":  0,
	}
)

// Status is a player's location/grouping state as seen on the roster.
type Status string

const (
	StatusSolo    Status = "online_solo"
	StatusPartied Status = "in_party"
	StatusInTower Status = "in_tower"
)

const (
	colorDamage = "#ffdd57"
	colorHeal   = "#22c55e"
)
