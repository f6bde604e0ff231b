package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/hub"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
)

// SnapshotLimit is how many of the most recent messages a snapshot carries.
const SnapshotLimit = 200

// ChangeNotifier announces that a chat's messages changed. The local hub
// and the redis bus both implement it.
type ChangeNotifier interface {
	NotifyChanged(ctx context.Context, chatID string) error
}

// ChatSummary is a chat as listed for one participant.
type ChatSummary struct {
	Chat      models.Chat
	PartnerID string
	Partner   *models.Profile
}

type ChatService struct {
	db       *gorm.DB
	log      *logger.Logger
	hub      *hub.Hub
	notifier ChangeNotifier
	profiles *ProfileService
	now      clock
}

// NewChatService wires the chat store to h. notifier may be nil, in which
// case changes are announced on h directly.
func NewChatService(db *gorm.DB, log *logger.Logger, h *hub.Hub, notifier ChangeNotifier, profiles *ProfileService) *ChatService {
	if notifier == nil {
		notifier = h
	}
	return &ChatService{
		db:       db,
		log:      log.With("service", "ChatService"),
		hub:      h,
		notifier: notifier,
		profiles: profiles,
		now:      utcNow,
	}
}

// GetOrCreate returns the chat of the unordered pair, creating it if needed.
// Concurrent callers converge on one record.
func (s *ChatService) GetOrCreate(ctx context.Context, userA, userB string) (*models.Chat, error) {
	return s.getOrCreate(s.db.WithContext(ctx), userA, userB, nil)
}

func (s *ChatService) getOrCreate(tx *gorm.DB, userA, userB string, matchID *string) (*models.Chat, error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" || userA == userB {
		return nil, invalid("a chat needs two distinct participants")
	}
	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}

	chat := models.Chat{
		ID:           models.ChatID(lo, hi),
		ParticipantA: lo,
		ParticipantB: hi,
		MatchID:      matchID,
		CreatedAt:    s.now(),
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&chat).Error; err != nil {
		return nil, backendErr(err, nil)
	}
	if matchID != nil {
		err := tx.Model(&models.Chat{}).
			Where("id = ? AND match_id IS NULL", chat.ID).
			Update("match_id", *matchID).Error
		if err != nil {
			return nil, backendErr(err, nil)
		}
	}

	var stored models.Chat
	if err := tx.Where("id = ?", chat.ID).First(&stored).Error; err != nil {
		return nil, backendErr(err, nil)
	}
	return &stored, nil
}

// Get loads a chat that userID participates in.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	var chat models.Chat
	if err := s.db.WithContext(ctx).Where("id = ?", chatID).First(&chat).Error; err != nil {
		return nil, backendErr(err, apperr.ErrChatNotFound)
	}
	if !chat.HasParticipant(userID) {
		return nil, apperr.ErrNotParticipant
	}
	return &chat, nil
}

// Send appends a message and updates the chat's last-message fields in the
// same transaction, then announces the change. Blank text is the caller's
// concern and is stored as given.
func (s *ChatService) Send(ctx context.Context, chatID, senderID, text string) (*models.Message, error) {
	msg := models.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: s.now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.Where("id = ?", chatID).First(&chat).Error; err != nil {
			return backendErr(err, apperr.ErrChatNotFound)
		}
		if !chat.HasParticipant(senderID) {
			return apperr.ErrNotParticipant
		}
		if err := tx.Create(&msg).Error; err != nil {
			return backendErr(err, nil)
		}
		err := tx.Model(&models.Chat{}).Where("id = ?", chatID).Updates(map[string]interface{}{
			"last_message_text":      msg.Text,
			"last_message_sender_id": msg.SenderID,
			"last_message_at":        msg.CreatedAt,
		}).Error
		return backendErr(err, nil)
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyChanged(context.WithoutCancel(ctx), chatID); err != nil {
		s.log.Warn("chat change notification failed", "chat_id", chatID, "error", err)
	}
	return &msg, nil
}

// Messages returns the current snapshot: the SnapshotLimit most recent
// messages in ascending order.
func (s *ChatService) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").Order("id DESC").
		Limit(SnapshotLimit).
		Find(&msgs).Error
	if err != nil {
		return nil, backendErr(err, nil)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// HistoryQuery is the full message history of chatID in ascending order,
// for paginated reads.
func (s *ChatService) HistoryQuery(ctx context.Context, chatID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").Order("id ASC")
}

// List returns the chats of userID, most recently active first, each with
// the partner's profile. Profile lookups run concurrently.
func (s *ChatService) List(ctx context.Context, userID string) ([]ChatSummary, error) {
	var chats []models.Chat
	err := s.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Find(&chats).Error
	if err != nil {
		return nil, backendErr(err, nil)
	}

	activity := func(c models.Chat) int64 {
		if c.LastMessageAt != nil {
			return c.LastMessageAt.UnixNano()
		}
		return c.CreatedAt.UnixNano()
	}
	sort.SliceStable(chats, func(i, j int) bool { return activity(chats[i]) > activity(chats[j]) })

	out := make([]ChatSummary, len(chats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range chats {
		i := i
		out[i] = ChatSummary{Chat: chats[i], PartnerID: chats[i].Partner(userID)}
		g.Go(func() error {
			p, err := s.profiles.Get(gctx, out[i].PartnerID)
			if errors.Is(err, apperr.ErrProfileNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			out[i].Partner = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe delivers the current snapshot of chatID to onChange right away
// and again after every change, until the returned function is called or
// ctx ends. Each delivery is the full snapshot; a subscriber that falls
// behind skips straight to the newest one. onChange runs on one goroutine
// and is never called concurrently with itself.
func (s *ChatService) Subscribe(ctx context.Context, viewerID, chatID string, onChange func([]models.Message)) (func(), error) {
	if _, err := s.Get(ctx, viewerID, chatID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	client := s.hub.Subscribe(chatID)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			s.hub.Unsubscribe(chatID, client)
		})
	}

	deliver := func() {
		msgs, err := s.Messages(ctx, chatID)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("chat snapshot load failed", "chat_id", chatID, "error", err)
			}
			return
		}
		if ctx.Err() == nil {
			onChange(msgs)
		}
	}

	go func() {
		defer stop()
		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-client:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	return stop, nil
}
