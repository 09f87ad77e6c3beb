package realtime

import (
	"sync"
	"testing"

	"ridehail/internal/models"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConnectAndLookup(t *testing.T) {
	reg := NewRegistry()
	userID := primitive.NewObjectID()

	replaced, err := reg.Connect(models.ActorKindUser, userID, "s1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if replaced != "" {
		t.Fatalf("replaced = %q, want empty", replaced)
	}

	got, ok := reg.Lookup(models.ActorKindUser, userID)
	if !ok || got != "s1" {
		t.Fatalf("lookup = %q, %v; want s1, true", got, ok)
	}
	if _, ok := reg.Lookup(models.ActorKindRider, userID); ok {
		t.Fatal("lookup with other actor kind should miss")
	}
}

func TestConnectRejectsInvalidInput(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Connect("driver", primitive.NewObjectID(), "s1"); !utils.IsKind(err, utils.KindValidation) {
		t.Fatalf("invalid kind: got %v, want validation error", err)
	}
	if _, err := reg.Connect(models.ActorKindUser, primitive.NewObjectID(), ""); !utils.IsKind(err, utils.KindValidation) {
		t.Fatalf("empty session: got %v, want validation error", err)
	}
}

func TestConnectLastWriterWins(t *testing.T) {
	reg := NewRegistry()
	riderID := primitive.NewObjectID()

	mustConnect(t, reg, models.ActorKindRider, riderID, "old")
	if err := reg.SetAvailable(riderID, "old", true, models.GenderMale); err != nil {
		t.Fatalf("set available: %v", err)
	}

	replaced, err := reg.Connect(models.ActorKindRider, riderID, "new")
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if replaced != "old" {
		t.Fatalf("replaced = %q, want old", replaced)
	}

	got, _ := reg.Lookup(models.ActorKindRider, riderID)
	if got != "new" {
		t.Fatalf("lookup = %q, want new", got)
	}
	if _, ok := reg.Session("old"); ok {
		t.Fatal("replaced session still registered")
	}
	if len(reg.Members(AvailablePool())) != 0 {
		t.Fatal("replaced session still in available pool")
	}

	// the late disconnect of the replaced session must not evict the new one
	if _, ok := reg.Disconnect("old"); ok {
		t.Fatal("disconnect of replaced session reported a removal")
	}
	if got, ok := reg.Lookup(models.ActorKindRider, riderID); !ok || got != "new" {
		t.Fatalf("lookup after stale disconnect = %q, %v; want new, true", got, ok)
	}
}

func TestDisconnectCleansUpEverything(t *testing.T) {
	reg := NewRegistry()
	riderID := primitive.NewObjectID()
	rideID := primitive.NewObjectID()

	mustConnect(t, reg, models.ActorKindRider, riderID, "s1")
	if err := reg.SetAvailable(riderID, "s1", true, models.GenderFemale); err != nil {
		t.Fatalf("set available: %v", err)
	}
	if err := reg.Join("s1", RideChannel(rideID)); err != nil {
		t.Fatalf("join: %v", err)
	}

	s, ok := reg.Disconnect("s1")
	if !ok {
		t.Fatal("disconnect reported no session")
	}
	if s.ActorID != riderID || s.Kind != models.ActorKindRider {
		t.Fatalf("disconnect returned %+v", s)
	}

	if _, ok := reg.Lookup(models.ActorKindRider, riderID); ok {
		t.Fatal("lookup should miss after disconnect")
	}
	for _, g := range []GroupID{AvailablePool(), GenderPool(models.GenderFemale), RideChannel(rideID)} {
		if reg.IsMember("s1", g) {
			t.Errorf("session still member of %s", g)
		}
		if n := len(reg.Members(g)); n != 0 {
			t.Errorf("group %s has %d members, want 0", g, n)
		}
	}

	if _, ok := reg.Disconnect("s1"); ok {
		t.Fatal("second disconnect should be a no-op")
	}
}

func TestJoinUnknownSession(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Join("ghost", AvailablePool()); !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("join unknown session: got %v, want not found", err)
	}
}

func TestMembersExclude(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		riderID := primitive.NewObjectID()
		mustConnect(t, reg, models.ActorKindRider, riderID, id)
		if err := reg.Join(id, AvailablePool()); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	members := reg.Members(AvailablePool(), "b")
	if len(members) != 2 {
		t.Fatalf("members = %v, want 2 entries", members)
	}
	for _, m := range members {
		if m == "b" {
			t.Fatal("excluded session returned")
		}
	}
}

func TestDrain(t *testing.T) {
	reg := NewRegistry()
	mustConnect(t, reg, models.ActorKindUser, primitive.NewObjectID(), "u1")
	mustConnect(t, reg, models.ActorKindRider, primitive.NewObjectID(), "r1")

	ids := reg.Drain()
	if len(ids) != 2 {
		t.Fatalf("drained %d sessions, want 2", len(ids))
	}
	if reg.SessionCount() != 0 {
		t.Fatalf("session count = %d after drain", reg.SessionCount())
	}
}

func TestConcurrentReconnectAndDisconnect(t *testing.T) {
	reg := NewRegistry()
	riderID := primitive.NewObjectID()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		sessionID := primitive.NewObjectID().Hex()
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, _ = reg.Connect(models.ActorKindRider, riderID, sessionID)
		}()
		go func() {
			defer wg.Done()
			<-start
			reg.Disconnect(sessionID)
		}()
	}
	close(start)
	wg.Wait()

	// whatever the interleaving, the actor maps to at most one live session
	// and that session maps back to the actor
	sessionID, ok := reg.Lookup(models.ActorKindRider, riderID)
	if !ok {
		if reg.SessionCount() != 0 {
			t.Fatalf("no actor mapping but %d sessions registered", reg.SessionCount())
		}
		return
	}
	s, found := reg.Session(sessionID)
	if !found || s.ActorID != riderID {
		t.Fatalf("session %s does not map back to rider", sessionID)
	}
	if reg.SessionCount() != 1 {
		t.Fatalf("session count = %d, want 1", reg.SessionCount())
	}
}

func mustConnect(t *testing.T, reg *Registry, kind models.ActorKind, actorID primitive.ObjectID, sessionID string) {
	t.Helper()
	if _, err := reg.Connect(kind, actorID, sessionID); err != nil {
		t.Fatalf("connect %s: %v", sessionID, err)
	}
}
