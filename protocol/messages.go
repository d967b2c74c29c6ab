package protocol

// ================= S -> C =================

// Outbound type strings. Error and status_update payloads are plain strings.
const (
	TypeAuthSuccess               = "auth_success"
	TypeError                     = "error"
	TypeOnlinePlayers             = "online_players"
	TypeReceiveInvite             = "receive_invite"
	TypeStatusUpdate              = "status_update"
	TypePartyUpdated              = "party_updated"
	TypeForceJoinRoom             = "force_join_room"
	TypePlayerRejoinedHub         = "player_rejoined_hub"
	TypeTowerStart                = "tower_start"
	TypeProjectileFired           = "projectile_fired"
	TypeDummyHealthUpdate         = "dummy_health_update"
	TypeAggroUpdate               = "aggro_update"
	TypePlayerHealed              = "player_healed"
	TypeCombatEvent               = "combat_event"
	TypeLeave                     = "leave"
	TypePlayerJoinedTowerInstance = "player_joined_tower_instance"
	TypeTowerEntityUpdate         = "tower_entity_update"
	TypeTowerFloorCleared         = "tower_floor_cleared"
	TypePlayerReadyUpdate         = "player_ready_update"
	TypeTowerLoadNextFloor        = "tower_load_next_floor"
	TypeTowerComplete             = "tower_complete"
	TypeReturnToHub               = "return_to_hub"
	TypeEnemyMove                 = "enemy_move"
	TypeEnemyAttack               = "enemy_attack"
	TypeEnemyTelegraphAttack      = "enemy_telegraph_attack"
	TypePlayerDamaged             = "player_damaged"
	TypeEnemyProjectileFired      = "enemy_projectile_fired"
)

// PlayerInfo is one row of the online roster.
type PlayerInfo struct {
	Username string `json:"username"`
	Status   string `json:"status"`
}

type AuthSuccess struct {
	ID            string       `json:"id"`
	Room          string       `json:"room"`
	Leader        string       `json:"leader"`
	OnlinePlayers []PlayerInfo `json:"onlinePlayers"`
}

type ReceiveInvite struct {
	From string `json:"from"`
}

// HubPlayerState is the per-player stat snapshot used by party and
// hub/tower transition payloads.
type HubPlayerState struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	PlayerClass string  `json:"playerClass,omitempty"`
	Health      int     `json:"health"`
	MaxHealth   int     `json:"maxHealth"`
}

// PartyState is sent as party_updated to sitting members and as
// force_join_room to the player who just joined.
type PartyState struct {
	Room          string           `json:"room"`
	Leader        string           `json:"leader"`
	Players       []HubPlayerState `json:"players"`
	DummyHealth   int              `json:"dummyHealth"`
	CurrentTarget *string          `json:"currentTarget"`
}

type MoveUpdate struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type ProjectileFired struct {
	ID          string  `json:"id"`
	PlayerClass string  `json:"playerClass"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	VelocityX   float64 `json:"velocityX"`
	VelocityY   float64 `json:"velocityY"`
	Rotation    float64 `json:"rotation"`
}

type MeleeSwing struct {
	ID    string  `json:"id"`
	Angle float64 `json:"angle"`
}

type DummyHealthUpdate struct {
	Health int  `json:"health"`
	IsDead bool `json:"isDead"`
}

// AggroUpdate carries null when no one holds positive threat.
type AggroUpdate struct {
	TargetID *string `json:"targetId"`
}

type PlayerHealed struct {
	TargetID  string `json:"targetId"`
	HealerID  string `json:"healerId"`
	NewHealth int    `json:"newHealth"`
}

// CombatEvent is a floating-combat-text cue, e.g. "-6" in yellow.
type CombatEvent struct {
	EntityID string `json:"entityId"`
	Text     string `json:"text"`
	Color    string `json:"color"`
}

type Leave struct {
	ID string `json:"id"`
}

// EnemyState is the client view of a minion or boss.
type EnemyState struct {
	ID            string  `json:"id"`
	Kind          string  `json:"type"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Health        int     `json:"health"`
	MaxHealth     int     `json:"maxHealth"`
	IsDead        bool    `json:"isDead"`
	AggroTargetID *string `json:"aggroTargetId"`
}

type ProjectileState struct {
	ID    string  `json:"id"`
	Owner string  `json:"owner"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
}

type TowerState struct {
	CurrentFloor int               `json:"currentFloor"`
	Enemies      []EnemyState      `json:"enemies"`
	Boss         EnemyState        `json:"boss"`
	Projectiles  []ProjectileState `json:"projectiles"`
	ExitActive   bool              `json:"exitActive"`
}

type TowerStart struct {
	TowerState TowerState       `json:"towerState"`
	Players    []HubPlayerState `json:"players"`
}

// TowerEntityUpdate is sent in two shapes: the AI tick pushes only the
// aggro target, hit resolution pushes health and death state as well.
type TowerEntityUpdate struct {
	ID            string  `json:"id"`
	Health        *int    `json:"health,omitempty"`
	IsDead        *bool   `json:"isDead,omitempty"`
	AggroTargetID *string `json:"aggroTargetId"`
}

// PlayerReadyUpdate's Player is null when the tally changed because of a
// departure rather than an explicit ready signal.
type PlayerReadyUpdate struct {
	ReadyCount int     `json:"readyCount"`
	TotalCount int     `json:"totalCount"`
	Player     *string `json:"player"`
}

type PlayerPosition struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type TowerLoadNextFloor struct {
	TowerState      TowerState       `json:"towerState"`
	PlayerPositions []PlayerPosition `json:"playerPositions"`
}

type ReturnToHub struct {
	Players       []HubPlayerState `json:"players"`
	DummyHealth   int              `json:"dummyHealth"`
	CurrentTarget *string          `json:"currentTarget"`
	Leader        string           `json:"leader"`
	OnlinePlayers []PlayerInfo     `json:"onlinePlayers"`
}

type EnemyMove struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	TargetID *string `json:"targetId"`
}

type EnemyAttack struct {
	ID       string `json:"id"`
	TargetID string `json:"targetId"`
}

type EnemyTelegraphAttack struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

type PlayerDamaged struct {
	ID        string `json:"id"`
	NewHealth int    `json:"newHealth"`
}
