package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
)

// InboxLimit caps the inbound request list.
const InboxLimit = 50

// RequestWithProfile pairs a request with the profile of the other side.
type RequestWithProfile struct {
	Request       models.ConnectionRequest
	Counterpart   *models.Profile
	CounterpartID string
}

type RequestService struct {
	db       *gorm.DB
	log      *logger.Logger
	profiles *ProfileService
	chats    *ChatService
}

func NewRequestService(db *gorm.DB, log *logger.Logger, profiles *ProfileService, chats *ChatService) *RequestService {
	return &RequestService{
		db:       db,
		log:      log.With("service", "RequestService"),
		profiles: profiles,
		chats:    chats,
	}
}

// Send creates a pending request from requester to a visible receiver. Any existing
// request for the ordered pair, whatever its status, makes this fail with
// apperr.ErrDuplicateRequest. The unique index on the pair closes the
// window between the check and the insert.
func (s *RequestService) Send(ctx context.Context, requesterID, receiverID string) (*models.ConnectionRequest, error) {
	requesterID, receiverID = strings.TrimSpace(requesterID), strings.TrimSpace(receiverID)
	if requesterID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if receiverID == "" {
		return nil, invalid("receiver is required")
	}
	if requesterID == receiverID {
		return nil, apperr.ErrSelfRequest
	}

	// hidden profiles look absent, as they do on the public profile view
	receiver, err := s.profiles.Get(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !receiver.Visibility {
		return nil, apperr.ErrProfileNotFound
	}

	db := s.db.WithContext(ctx)
	var n int64
	err = db.Model(&models.ConnectionRequest{}).
		Where("requester_id = ? AND receiver_id = ?", requesterID, receiverID).
		Count(&n).Error
	if err != nil {
		return nil, backendErr(err, nil)
	}
	if n > 0 {
		return nil, apperr.ErrDuplicateRequest
	}

	req := models.ConnectionRequest{
		RequesterID: requesterID,
		ReceiverID:  receiverID,
		Status:      models.StatusPending,
	}
	if err := db.Create(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.ErrDuplicateRequest
		}
		return nil, backendErr(err, nil)
	}
	s.log.Info("connection request sent", "request_id", req.ID)
	return &req, nil
}

// Get loads a request visible to userID (requester or receiver).
func (s *RequestService) Get(ctx context.Context, userID, requestID string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	if err := s.db.WithContext(ctx).Where("id = ?", requestID).First(&req).Error; err != nil {
		return nil, backendErr(err, apperr.ErrRequestNotFound)
	}
	if req.RequesterID != userID && req.ReceiverID != userID {
		return nil, apperr.ErrRequestNotFound
	}
	return &req, nil
}

// Accept moves a pending request to accepted and provisions the pair's chat
// in the same transaction. It returns the updated request and the chat id.
func (s *RequestService) Accept(ctx context.Context, actorID, requestID string) (*models.ConnectionRequest, string, error) {
	var (
		req    models.ConnectionRequest
		chatID string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(tx, actorID, requestID, models.StatusAccepted, &req); err != nil {
			return err
		}
		matchID := req.ID
		chat, err := s.chats.getOrCreate(tx, req.RequesterID, req.ReceiverID, &matchID)
		if err != nil {
			return err
		}
		chatID = chat.ID
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	s.log.Info("connection request accepted", "request_id", req.ID, "chat_id", chatID)
	return &req, chatID, nil
}

// Decline moves a pending request to declined.
func (s *RequestService) Decline(ctx context.Context, actorID, requestID string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, actorID, requestID, models.StatusDeclined, &req)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("connection request declined", "request_id", req.ID)
	return &req, nil
}

// transition applies pending -> to. Only the receiver may answer.
func (s *RequestService) transition(tx *gorm.DB, actorID, requestID string, to models.RequestStatus, req *models.ConnectionRequest) error {
	if err := tx.Where("id = ?", requestID).First(req).Error; err != nil {
		return backendErr(err, apperr.ErrRequestNotFound)
	}
	if req.ReceiverID != actorID {
		return apperr.ErrNotParticipant
	}
	if req.Status != models.StatusPending {
		return apperr.ErrInvalidTransition
	}

	res := tx.Model(&models.ConnectionRequest{}).
		Where("id = ? AND status = ?", requestID, models.StatusPending).
		Update("status", to)
	if res.Error != nil {
		return backendErr(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrInvalidTransition
	}
	req.Status = to
	return nil
}

// Inbound returns pending requests received by userID, newest first, at most InboxLimit.
func (s *RequestService) Inbound(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	out, err := s.list(ctx, "receiver_id = ? AND status = ?", userID, models.StatusPending)
	if err != nil {
		return nil, err
	}
	if len(out) > InboxLimit {
		out = out[:InboxLimit]
	}
	return out, nil
}

// Accepted returns accepted requests where userID is either side, newest first.
func (s *RequestService) Accepted(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	return s.list(ctx, "(receiver_id = ? OR requester_id = ?) AND status = ?", userID, userID, models.StatusAccepted)
}

// OutboundPending returns pending requests sent by userID, newest first.
func (s *RequestService) OutboundPending(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	return s.list(ctx, "requester_id = ? AND status = ?", userID, models.StatusPending)
}

// RequestedReceivers is the set of users userID has ever sent a request to.
func (s *RequestService) RequestedReceivers(ctx context.Context, userID string) (map[string]bool, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.ConnectionRequest{}).
		Where("requester_id = ?", userID).
		Pluck("receiver_id", &ids).Error
	if err != nil {
		return nil, backendErr(err, nil)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// Connected reports whether an accepted request exists between a and b in either direction.
func (s *RequestService) Connected(ctx context.Context, a, b string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ConnectionRequest{}).
		Where("status = ?", models.StatusAccepted).
		Where("(requester_id = ? AND receiver_id = ?) OR (requester_id = ? AND receiver_id = ?)", a, b, b, a).
		Count(&n).Error
	if err != nil {
		return false, backendErr(err, nil)
	}
	return n > 0, nil
}

// Relation is the pair of request statuses between a viewer and another user.
// A nil status means no request in that direction.
type Relation struct {
	ViewerToOwner *models.RequestStatus
	OwnerToViewer *models.RequestStatus
}

// Relation looks up the requests between viewerID and ownerID in both directions.
func (s *RequestService) Relation(ctx context.Context, viewerID, ownerID string) (Relation, error) {
	var rel Relation
	if viewerID == "" || viewerID == ownerID {
		return rel, nil
	}
	var reqs []models.ConnectionRequest
	err := s.db.WithContext(ctx).
		Where("(requester_id = ? AND receiver_id = ?) OR (requester_id = ? AND receiver_id = ?)", viewerID, ownerID, ownerID, viewerID).
		Find(&reqs).Error
	if err != nil {
		return rel, backendErr(err, nil)
	}
	for i := range reqs {
		status := reqs[i].Status
		if reqs[i].RequesterID == viewerID {
			rel.ViewerToOwner = &status
		} else {
			rel.OwnerToViewer = &status
		}
	}
	return rel, nil
}

// list runs an unordered query and sorts newest first in memory.
func (s *RequestService) list(ctx context.Context, where string, args ...interface{}) ([]models.ConnectionRequest, error) {
	var out []models.ConnectionRequest
	if err := s.db.WithContext(ctx).Where(where, args...).Find(&out).Error; err != nil {
		return nil, backendErr(err, nil)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// WithProfiles attaches the counterpart profile of viewerID to each request.
// Lookups run concurrently; a missing profile leaves Counterpart nil.
func (s *RequestService) WithProfiles(ctx context.Context, viewerID string, reqs []models.ConnectionRequest) ([]RequestWithProfile, error) {
	out := make([]RequestWithProfile, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range reqs {
		i := i
		other := reqs[i].RequesterID
		if other == viewerID {
			other = reqs[i].ReceiverID
		}
		out[i] = RequestWithProfile{Request: reqs[i], CounterpartID: other}
		g.Go(func() error {
			p, err := s.profiles.Get(gctx, other)
			if errors.Is(err, apperr.ErrProfileNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			out[i].Counterpart = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
