package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustGet(t *testing.T, db *DB, member, chat int64) *ActivityRecord {
	t.Helper()
	rec, err := db.Get(context.Background(), member, chat)
	if err != nil {
		t.Fatalf("Get(%d, %d): %v", member, chat, err)
	}
	if rec == nil {
		t.Fatalf("Get(%d, %d): record not found", member, chat)
	}
	return rec
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	in := time.Date(2024, 3, 2, 3, 30, 0, 0, loc) // 2024-03-01 18:30 UTC
	got := Day(in)
	if !got.Equal(day0) {
		t.Errorf("Day = %v, want %v", got, day0)
	}
	if got.Location() != time.UTC {
		t.Errorf("Day location = %v, want UTC", got.Location())
	}
}

func TestUpsertActivityCreates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	err := db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, DisplayName: "alice", LastActive: day0.Add(15 * time.Hour)})
	if err != nil {
		t.Fatalf("UpsertActivity: %v", err)
	}

	rec := mustGet(t, db, 1, -100)
	if !rec.LastActive.Equal(day0) {
		t.Errorf("LastActive = %v, want %v", rec.LastActive, day0)
	}
	if rec.Warned {
		t.Error("Warned = true, want false")
	}
	if rec.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want alice", rec.DisplayName)
	}
}

func TestUpsertActivityRefreshClearsWarned(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, LastActive: day0})
	hit, err := db.MarkWarned(ctx, 1, -100, day0)
	if err != nil || !hit {
		t.Fatalf("MarkWarned = %v, %v; want true, nil", hit, err)
	}

	later := day0.AddDate(0, 0, 4)
	if err := db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, LastActive: later}); err != nil {
		t.Fatalf("UpsertActivity: %v", err)
	}

	rec := mustGet(t, db, 1, -100)
	if rec.Warned {
		t.Error("Warned = true after refresh, want false")
	}
	if !rec.LastActive.Equal(later) {
		t.Errorf("LastActive = %v, want %v", rec.LastActive, later)
	}
}

func TestUpsertActivityIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, DisplayName: "alice", LastActive: day0}); err != nil {
			t.Fatalf("UpsertActivity #%d: %v", i, err)
		}
	}

	recs, err := db.ListMembers(ctx, -100)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(ListMembers) = %d, want 1", len(recs))
	}
}

func TestUpsertActivityNeverMovesBackward(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	later := day0.AddDate(0, 0, 2)
	db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, LastActive: later})
	db.MarkWarned(ctx, 1, -100, later)

	if err := db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, LastActive: day0}); err != nil {
		t.Fatalf("UpsertActivity: %v", err)
	}

	rec := mustGet(t, db, 1, -100)
	if !rec.LastActive.Equal(later) {
		t.Errorf("LastActive = %v, want %v", rec.LastActive, later)
	}
	if !rec.Warned {
		t.Error("stale update cleared Warned")
	}
}

func TestUpsertActivityKeepsNameWhenEmpty(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, DisplayName: "alice", LastActive: day0})
	db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, LastActive: day0.AddDate(0, 0, 1)})

	if rec := mustGet(t, db, 1, -100); rec.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want alice", rec.DisplayName)
	}
}

func TestMarkWarnedMiss(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	hit, err := db.MarkWarned(ctx, 42, -100, day0)
	if err != nil {
		t.Fatalf("MarkWarned: %v", err)
	}
	if hit {
		t.Error("MarkWarned on missing record reported a hit")
	}
}

func TestMarkWarnedStaleSnapshot(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, LastActive: day0})
	// The member posts after the sweep took its snapshot.
	db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, LastActive: day0.AddDate(0, 0, 4)})

	hit, err := db.MarkWarned(ctx, 1, -100, day0)
	if err != nil {
		t.Fatalf("MarkWarned: %v", err)
	}
	if hit {
		t.Error("MarkWarned with stale last_active reported a hit")
	}
	if rec := mustGet(t, db, 1, -100); rec.Warned {
		t.Error("Warned = true, want false")
	}
}

func TestRemove(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -100, LastActive: day0})

	hit, err := db.Remove(ctx, 1, -100)
	if err != nil || !hit {
		t.Fatalf("Remove = %v, %v; want true, nil", hit, err)
	}

	rec, err := db.Get(ctx, 1, -100)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Errorf("record still present after Remove: %+v", rec)
	}

	hit, err = db.Remove(ctx, 1, -100)
	if err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if hit {
		t.Error("second Remove reported a hit")
	}
}

func TestListConversationsAndMembers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	db.UpsertActivity(ctx, ActivityRecord{MemberID: 1, ConversationID: -200, LastActive: day0})
	db.UpsertActivity(ctx, ActivityRecord{MemberID: 2, ConversationID: -100, LastActive: day0.AddDate(0, 0, 1)})
	db.UpsertActivity(ctx, ActivityRecord{MemberID: 3, ConversationID: -100, LastActive: day0})

	chats, err := db.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(chats) != 2 || chats[0] != -200 || chats[1] != -100 {
		t.Errorf("ListConversations = %v, want [-200 -100]", chats)
	}

	recs, err := db.ListMembers(ctx, -100)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(ListMembers) = %d, want 2", len(recs))
	}
	if recs[0].MemberID != 3 || recs[1].MemberID != 2 {
		t.Errorf("ListMembers order = [%d %d], want [3 2]", recs[0].MemberID, recs[1].MemberID)
	}

	empty, err := db.ListMembers(ctx, -999)
	if err != nil {
		t.Fatalf("ListMembers(empty): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListMembers(empty) = %v, want none", empty)
	}
}

func TestConcurrentUpserts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			member := int64(i % 4)
			day := day0.AddDate(0, 0, i%3)
			if err := db.UpsertActivity(ctx, ActivityRecord{MemberID: member, ConversationID: -100, LastActive: day}); err != nil {
				t.Errorf("UpsertActivity: %v", err)
			}
		}(i)
	}
	wg.Wait()

	recs, err := db.ListMembers(ctx, -100)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("len(ListMembers) = %d, want 4", len(recs))
	}
	for _, r := range recs {
		if !r.LastActive.Equal(day0.AddDate(0, 0, 2)) {
			t.Errorf("member %d LastActive = %v, want latest day", r.MemberID, r.LastActive)
		}
	}
}
