package srv

import (
	"fmt"
	"testing"

	"spire/server/protocol"
)

func TestGenerateFloorScaling(t *testing.T) {
	for _, tc := range []struct {
		floor    int
		minions  int
		minionHP int
		bossHP   int
	}{
		{1, 2, 100, 750},
		{4, 4, 400, 3000},
		{10, 7, 1000, 7500},
	} {
		tower := generateFloor(tc.floor)
		if len(tower.Enemies) != tc.minions {
			t.Errorf("floor %d: %d minions, want %d", tc.floor, len(tower.Enemies), tc.minions)
		}
		for i, e := range tower.Enemies {
			if e.Health != tc.minionHP || e.MaxHealth != tc.minionHP {
				t.Errorf("floor %d minion hp = %d, want %d", tc.floor, e.Health, tc.minionHP)
			}
			if want := fmt.Sprintf("m_%d_%d", tc.floor, i); e.ID != want {
				t.Errorf("minion id = %q, want %q", e.ID, want)
			}
		}
		if tower.Boss.Health != tc.bossHP {
			t.Errorf("floor %d boss hp = %d, want %d", tc.floor, tower.Boss.Health, tc.bossHP)
		}
		if want := fmt.Sprintf("b_%d", tc.floor); tower.Boss.ID != want {
			t.Errorf("boss id = %q, want %q", tower.Boss.ID, want)
		}
		if tower.ExitActive {
			t.Errorf("floor %d spawned with exit open", tc.floor)
		}
	}
}

func TestStartTowerRunCreatesInstanceAtProgress(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	alice.TowerFloorProgress = 3

	h.handleStartTowerRun(alice)

	room := h.world.rooms[alice.RoomID]
	if room.Tower == nil || room.Tower.CurrentFloor != 4 {
		t.Fatalf("tower floor = %v, want 4", room.Tower)
	}
	if alice.Status != StatusInTower || alice.X != EntryX || alice.Y != EntryY {
		t.Fatalf("entrant state = %s at (%v, %v)", alice.Status, alice.X, alice.Y)
	}

	var start protocol.TowerStart
	decodeInto(t, lastOfType(t, alice, protocol.TypeTowerStart), &start)
	if start.TowerState.CurrentFloor != 4 || len(start.Players) != 1 {
		t.Fatalf("tower_start = %+v", start)
	}
}

func TestStartTowerRunJoinsExistingInstance(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	bob := join(t, h, "bob", "Ranger")
	party(t, h, alice, bob)

	h.handleStartTowerRun(alice)
	drain(alice)
	h.handleStartTowerRun(bob)

	room := h.world.rooms[alice.RoomID]
	if room.Tower == nil || room.Tower.CurrentFloor != 1 {
		t.Fatal("second entrant regenerated the instance")
	}

	var joined protocol.HubPlayerState
	decodeInto(t, lastOfType(t, alice, protocol.TypePlayerJoinedTowerInstance), &joined)
	if joined.ID != "bob" {
		t.Fatalf("joined = %+v", joined)
	}
	var start protocol.TowerStart
	decodeInto(t, lastOfType(t, bob, protocol.TypeTowerStart), &start)
	if len(start.Players) != 2 {
		t.Fatalf("tower_start lists %d players, want 2", len(start.Players))
	}
}

func TestHitTowerEntityOpensExitOnce(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	h.handleStartTowerRun(alice)
	room := h.world.rooms[alice.RoomID]
	tower := room.Tower

	// Leave each enemy one hit from death.
	for _, e := range tower.Enemies {
		e.Health = 1
	}
	tower.Boss.Health = 1
	drain(alice)

	for _, e := range tower.Enemies {
		h.handleHitTowerEntity(alice, &protocol.HitTowerEntity{EntityID: e.ID})
		if !e.IsDead {
			t.Fatalf("enemy %s survived a lethal hit", e.ID)
		}
	}
	if tower.ExitActive {
		t.Fatal("exit opened before the boss died")
	}

	h.handleHitTowerEntity(alice, &protocol.HitTowerEntity{EntityID: tower.Boss.ID})
	if !tower.ExitActive {
		t.Fatal("exit not opened after full clear")
	}
	if n := countOfType(t, alice, protocol.TypeTowerFloorCleared); n != 1 {
		t.Fatalf("tower_floor_cleared broadcast %d times, want 1", n)
	}

	// Hitting a corpse does nothing.
	h.handleHitTowerEntity(alice, &protocol.HitTowerEntity{EntityID: tower.Boss.ID})
	if tower.Boss.Health != 0 {
		t.Fatal("dead boss took damage")
	}
}

func TestHitTowerEntityBuildsThreatAndAggro(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	h.handleStartTowerRun(alice)
	alice.Y = 500 // out of the safe zone
	room := h.world.rooms[alice.RoomID]
	target := room.Tower.Enemies[0]
	drain(alice)

	h.handleHitTowerEntity(alice, &protocol.HitTowerEntity{EntityID: target.ID})

	if target.Health != target.MaxHealth-6 {
		t.Fatalf("health = %d", target.Health)
	}
	if target.TargetID != "alice" {
		t.Fatalf("aggro = %q, want alice", target.TargetID)
	}
	var update protocol.TowerEntityUpdate
	decodeInto(t, lastOfType(t, alice, protocol.TypeTowerEntityUpdate), &update)
	if update.Health == nil || *update.Health != target.MaxHealth-6 || update.AggroTargetID == nil {
		t.Fatalf("tower_entity_update = %+v", update)
	}
}

func TestSafeZonePlayersCannotHoldAggro(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	h.handleStartTowerRun(alice)
	room := h.world.rooms[alice.RoomID]
	target := room.Tower.Enemies[0]

	// Entry point is inside the safe zone.
	h.handleHitTowerEntity(alice, &protocol.HitTowerEntity{EntityID: target.ID})

	if target.TargetID != "" {
		t.Fatalf("aggro = %q, want none while attacker is safe", target.TargetID)
	}
	if target.threat.Get("alice") != 6 {
		t.Fatal("threat should accrue even from the safe zone")
	}
}

func TestRequestNextFloorAdvancesWhenAllReady(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	bob := join(t, h, "bob", "Ranger")
	party(t, h, alice, bob)
	h.handleStartTowerRun(alice)
	h.handleStartTowerRun(bob)
	room := h.world.rooms[alice.RoomID]
	room.Tower.ExitActive = true
	drain(alice)
	drain(bob)

	h.handleRequestNextFloor(alice)

	var tally protocol.PlayerReadyUpdate
	decodeInto(t, lastOfType(t, bob, protocol.TypePlayerReadyUpdate), &tally)
	if tally.ReadyCount != 1 || tally.TotalCount != 2 || tally.Player == nil || *tally.Player != "alice" {
		t.Fatalf("tally = %+v", tally)
	}
	if room.Tower.CurrentFloor != 1 {
		t.Fatal("advanced before everyone was ready")
	}

	h.handleRequestNextFloor(bob)

	if room.Tower.CurrentFloor != 2 {
		t.Fatalf("floor = %d, want 2", room.Tower.CurrentFloor)
	}
	if len(room.ready) != 0 || room.Tower.ExitActive {
		t.Fatal("ready set / exit not reset on advance")
	}

	var load protocol.TowerLoadNextFloor
	decodeInto(t, lastOfType(t, alice, protocol.TypeTowerLoadNextFloor), &load)
	if load.TowerState.CurrentFloor != 2 || len(load.PlayerPositions) != 2 {
		t.Fatalf("tower_load_next_floor = %+v", load)
	}
	// Two players straddle the world midpoint at fixed spacing.
	if load.PlayerPositions[0].X != WorldWidth/2-FloorSpawnSpacing/2 ||
		load.PlayerPositions[1].X != WorldWidth/2+FloorSpawnSpacing/2 {
		t.Fatalf("spawn row = %+v", load.PlayerPositions)
	}
}

func TestRequestNextFloorRequiresOpenExit(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	h.handleStartTowerRun(alice)
	room := h.world.rooms[alice.RoomID]

	h.handleRequestNextFloor(alice)
	if room.Tower.CurrentFloor != 1 || len(room.ready) != 0 {
		t.Fatal("ready accepted while exit closed")
	}
}

func TestFinalFloorCompletesTower(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	h.handleStartTowerRun(alice)
	room := h.world.rooms[alice.RoomID]
	room.Tower = generateFloor(FinalFloor)
	room.Tower.ExitActive = true
	drain(alice)

	h.handleRequestNextFloor(alice)

	if room.Tower != nil {
		t.Fatal("instance not torn down after completion")
	}
	if n := countOfType(t, alice, protocol.TypeTowerComplete); n != 1 {
		t.Fatalf("tower_complete broadcast %d times", n)
	}
}

func TestLeaveTowerSavesProgressAndRestoresHubState(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	h.handleStartTowerRun(alice)
	room := h.world.rooms[alice.RoomID]
	room.Tower = generateFloor(3)
	drain(alice)

	h.handleLeaveTower(alice)

	if alice.TowerFloorProgress != 2 {
		t.Fatalf("progress = %d, want 2", alice.TowerFloorProgress)
	}
	if alice.Status != StatusSolo || alice.X != EntryX || alice.Y != EntryY {
		t.Fatalf("returned state = %s at (%v, %v)", alice.Status, alice.X, alice.Y)
	}
	if room.Tower != nil {
		t.Fatal("empty instance not cleared")
	}

	var back protocol.ReturnToHub
	decodeInto(t, lastOfType(t, alice, protocol.TypeReturnToHub), &back)
	if back.Leader != "alice" || back.DummyHealth != DummyMaxHealth {
		t.Fatalf("return_to_hub = %+v", back)
	}
}

func TestLeaveTowerAfterCompletionStillReturnsHome(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	h.handleStartTowerRun(alice)
	room := h.world.rooms[alice.RoomID]
	room.Tower = nil // completed run
	alice.TowerFloorProgress = 5
	drain(alice)

	h.handleLeaveTower(alice)

	if alice.Status != StatusSolo {
		t.Fatalf("status = %s, want solo", alice.Status)
	}
	if alice.TowerFloorProgress != 5 {
		t.Fatal("progress overwritten with no active instance")
	}
}

func TestDepartureCanSatisfyReadyThreshold(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	bob := join(t, h, "bob", "Ranger")
	party(t, h, alice, bob)
	h.handleStartTowerRun(alice)
	h.handleStartTowerRun(bob)
	room := h.world.rooms[alice.RoomID]
	room.Tower.ExitActive = true
	h.handleRequestNextFloor(alice)
	drain(alice)
	drain(bob)

	// Bob leaves without signalling ready; alice alone now meets the
	// threshold and the floor advances.
	h.handleLeaveTower(bob)

	if room.Tower == nil || room.Tower.CurrentFloor != 2 {
		t.Fatalf("floor = %+v, want advance to 2", room.Tower)
	}
	var tally protocol.PlayerReadyUpdate
	decodeInto(t, lastOfType(t, alice, protocol.TypePlayerReadyUpdate), &tally)
	if tally.Player != nil {
		t.Fatal("departure tally should carry a null player")
	}
}

func TestTowerClearedOnLastDisconnect(t *testing.T) {
	h := newTestHub()
	alice := join(t, h, "alice", "Fighter")
	bob := join(t, h, "bob", "Ranger")
	party(t, h, alice, bob)
	h.handleStartTowerRun(alice)
	room := h.world.rooms[alice.RoomID]

	h.handleDisconnect(alice.c)

	if room.Tower != nil {
		t.Fatal("instance survived its last member")
	}
	if bob.Status != StatusSolo || bob.RoomID != "bob" {
		t.Fatalf("bob = %s in %s, want solo self-room", bob.Status, bob.RoomID)
	}
}
