package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/models"
)

func TestGetOrCreateIsSymmetric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ab, err := env.chats.GetOrCreate(ctx, "u2", "u1")
	if err != nil {
		t.Fatal(err)
	}
	ba, err := env.chats.GetOrCreate(ctx, "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}
	if ab.ID != "u1_u2" || ba.ID != ab.ID || !ab.CreatedAt.Equal(ba.CreatedAt) {
		t.Fatalf("ab = %+v ba = %+v", ab, ba)
	}
	if _, err := env.chats.GetOrCreate(ctx, "u1", "u1"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("self chat: %v", err)
	}
}

func TestSendUpdatesChatAndSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chat, err := env.chats.GetOrCreate(ctx, "a", "b")
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		env.chats.now = func() time.Time { return at }
		if _, err := env.chats.Send(ctx, chat.ID, "a", fmt.Sprintf("m%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := env.chats.Messages(ctx, chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].Text != "m0" || msgs[2].Text != "m2" {
		t.Fatalf("snapshot = %+v", msgs)
	}

	got, err := env.chats.Get(ctx, "b", chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMessageText != "m2" || got.LastMessageSenderID != "a" || got.LastMessageAt == nil {
		t.Fatalf("last message fields = %+v", got)
	}

	if _, err := env.chats.Send(ctx, chat.ID, "mallory", "hi"); !errors.Is(err, apperr.ErrNotParticipant) {
		t.Fatalf("outsider send: %v", err)
	}
	if _, err := env.chats.Send(ctx, "x_y", "x", "hi"); !errors.Is(err, apperr.ErrChatNotFound) {
		t.Fatalf("missing chat: %v", err)
	}
}

func TestSnapshotKeepsNewestMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chat, err := env.chats.GetOrCreate(ctx, "a", "b")
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]models.Message, SnapshotLimit+5)
	for i := range rows {
		rows[i] = models.Message{ChatID: chat.ID, SenderID: "a", Text: fmt.Sprint(i), CreatedAt: base.Add(time.Duration(i) * time.Second)}
	}
	if err := env.chats.db.CreateInBatches(rows, 50).Error; err != nil {
		t.Fatal(err)
	}

	msgs, err := env.chats.Messages(ctx, chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != SnapshotLimit || msgs[0].Text != "5" || msgs[len(msgs)-1].Text != fmt.Sprint(SnapshotLimit+4) {
		t.Fatalf("len = %d first = %q last = %q", len(msgs), msgs[0].Text, msgs[len(msgs)-1].Text)
	}
}

func waitSnapshot(t *testing.T, ch <-chan []models.Message, want int) []models.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msgs := <-ch:
			if len(msgs) == want {
				return msgs
			}
		case <-deadline:
			t.Fatalf("no snapshot with %d messages", want)
			return nil
		}
	}
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chat, err := env.chats.GetOrCreate(ctx, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.chats.Send(ctx, chat.ID, "a", "first"); err != nil {
		t.Fatal(err)
	}

	if _, err := env.chats.Subscribe(ctx, "mallory", chat.ID, func([]models.Message) {}); !errors.Is(err, apperr.ErrNotParticipant) {
		t.Fatalf("outsider subscribe: %v", err)
	}

	snapshots := make(chan []models.Message, 16)
	stop, err := env.chats.Subscribe(ctx, "b", chat.ID, func(msgs []models.Message) { snapshots <- msgs })
	if err != nil {
		t.Fatal(err)
	}

	if got := waitSnapshot(t, snapshots, 1); got[0].Text != "first" {
		t.Fatalf("initial snapshot = %+v", got)
	}

	if _, err := env.chats.Send(ctx, chat.ID, "b", "second"); err != nil {
		t.Fatal(err)
	}
	got := waitSnapshot(t, snapshots, 2)
	if got[0].Text != "first" || got[1].Text != "second" {
		t.Fatalf("snapshot after send = %+v", got)
	}

	stop()
	stop()
	deadline := time.Now().Add(time.Second)
	for env.hub.Subscribers(chat.ID) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListOrdersByActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saveProfile(t, env, "b", "Drums", nil, 40.7, -74)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env.chats.now = func() time.Time { return base }
	quiet, err := env.chats.GetOrCreate(ctx, "a", "c")
	if err != nil {
		t.Fatal(err)
	}
	env.chats.now = func() time.Time { return base.Add(time.Minute) }
	busy, err := env.chats.GetOrCreate(ctx, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	env.chats.now = func() time.Time { return base.Add(time.Hour) }
	if _, err := env.chats.Send(ctx, quiet.ID, "c", "late"); err != nil {
		t.Fatal(err)
	}

	list, err := env.chats.List(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Chat.ID != quiet.ID || list[1].Chat.ID != busy.ID {
		t.Fatalf("list = %+v", list)
	}
	if list[1].PartnerID != "b" || list[1].Partner == nil || list[0].Partner != nil {
		t.Fatalf("partners = %+v / %+v", list[0], list[1])
	}
}
