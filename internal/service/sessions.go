package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"classfit/internal/cache"
	"classfit/internal/database"
	apperrors "classfit/internal/errors"
	"classfit/internal/logger"
	"classfit/internal/messaging"
	"classfit/internal/models"
	"classfit/internal/repository"
	"classfit/internal/search"
)

type SessionService struct {
	db          *database.DB
	repos       *repository.Repositories
	bookings    *BookingService
	natsClient  *messaging.NATSClient
	cacheClient *cache.ValkeyClient
	esClient    *search.ElasticsearchClient
	lockTimeout time.Duration
}

func NewSessionService(db *database.DB, repos *repository.Repositories, bookings *BookingService,
	natsClient *messaging.NATSClient, cacheClient *cache.ValkeyClient,
	esClient *search.ElasticsearchClient, lockTimeout time.Duration) *SessionService {
	return &SessionService{
		db:          db,
		repos:       repos,
		bookings:    bookings,
		natsClient:  natsClient,
		cacheClient: cacheClient,
		esClient:    esClient,
		lockTimeout: lockTimeout,
	}
}

// Create persists a new scheduled session. Sessions arrive from the
// scheduling system; the engine only needs them to exist.
func (s *SessionService) Create(ctx context.Context, orgID uuid.UUID, session *models.ClassSession) error {
	class, err := s.repos.Classes.GetByID(ctx, orgID, session.ClassID)
	if err != nil {
		return err
	}

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.OrgID = orgID
	if session.MaxCapacity == 0 {
		session.MaxCapacity = class.MaxCapacity
	}
	session.Status = models.SessionScheduled

	if err := s.repos.Sessions.Create(ctx, session); err != nil {
		return err
	}

	s.index(ctx, session, class)
	return nil
}

func (s *SessionService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.ClassSession, error) {
	return s.repos.Sessions.GetByID(ctx, orgID, id)
}

// Start moves a session to IN_PROGRESS. Check-ins stay open; new
// bookings and waitlist joins stop.
func (s *SessionService) Start(ctx context.Context, orgID, id uuid.UUID) (*models.ClassSession, error) {
	var session *models.ClassSession
	err := s.db.WithTx(ctx, s.lockTimeout, func(tx *sql.Tx) error {
		locked, err := s.repos.Sessions.GetForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if locked.Status != models.SessionScheduled {
			return &apperrors.InvalidTransitionError{From: string(locked.Status), To: string(models.SessionInProgress)}
		}
		locked.Status = models.SessionInProgress
		session = locked
		return s.repos.Sessions.SaveCounters(ctx, tx, locked)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID)
	s.reindex(ctx, session)
	return session, nil
}

// Complete closes a session: checked-in bookings complete, confirmed
// bookings that never checked in become no-shows with their credit
// refunded, and leftover waitlist entries are cancelled.
func (s *SessionService) Complete(ctx context.Context, orgID, id uuid.UUID) (*models.ClassSession, error) {
	now := time.Now().UTC()

	var session *models.ClassSession
	var result txResult

	err := s.db.WithTx(ctx, s.lockTimeout, func(tx *sql.Tx) error {
		locked, err := s.repos.Sessions.GetForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if locked.Status != models.SessionScheduled && locked.Status != models.SessionInProgress {
			return &apperrors.InvalidTransitionError{From: string(locked.Status), To: string(models.SessionCompleted)}
		}

		active, err := s.repos.Bookings.ListActiveBySessionForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, b := range active {
			switch b.Status {
			case models.BookingCheckedIn:
				if err := b.Complete(); err != nil {
					return err
				}
			case models.BookingConfirmed:
				if err := b.MarkNoShow(); err != nil {
					return err
				}
				if err := s.bookings.refund(ctx, tx, b, "no_show", &result); err != nil {
					return err
				}
				result.event(models.EventBookingNoShow, bookingEvent(b, "missed completed session", now))
			case models.BookingWaitlisted:
				if err := b.Cancel("session completed", now); err != nil {
					return err
				}
				result.event(models.EventBookingCancelled, bookingEvent(b, "session completed", now))
			}
			if err := s.repos.Bookings.Update(ctx, tx, b); err != nil {
				return err
			}
		}

		locked.Status = models.SessionCompleted
		session = locked
		result.event(models.EventSessionCompleted, models.SessionEvent{SessionID: id, OrgID: orgID, Timestamp: now})
		return s.repos.Sessions.SaveCounters(ctx, tx, locked)
	})
	if err != nil {
		return nil, s.bookings.mapTxError(ctx, err, id, "complete_session")
	}

	s.finish(ctx, orgID, &result)
	s.reindex(ctx, session)
	return session, nil
}

// Cancel cancels a whole session. Every live booking is cancelled and
// every debited credit is refunded; the late-cancellation deadline does
// not apply when the club cancels.
func (s *SessionService) Cancel(ctx context.Context, orgID, id uuid.UUID, reason string) (*models.ClassSession, error) {
	now := time.Now().UTC()

	var session *models.ClassSession
	var result txResult

	err := s.db.WithTx(ctx, s.lockTimeout, func(tx *sql.Tx) error {
		locked, err := s.repos.Sessions.GetForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if locked.Status != models.SessionScheduled && locked.Status != models.SessionInProgress {
			return &apperrors.InvalidTransitionError{From: string(locked.Status), To: string(models.SessionCancelled)}
		}

		active, err := s.repos.Bookings.ListActiveBySessionForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, b := range active {
			switch b.Status {
			case models.BookingCheckedIn:
				// Attendance already happened; close it out rather
				// than cancelling a class the member took.
				if err := b.Complete(); err != nil {
					return err
				}
			default:
				if err := b.Cancel(reason, now); err != nil {
					return err
				}
				if err := s.bookings.refund(ctx, tx, b, "session_cancelled", &result); err != nil {
					return err
				}
				result.event(models.EventBookingCancelled, bookingEvent(b, reason, now))
			}
			if err := s.repos.Bookings.Update(ctx, tx, b); err != nil {
				return err
			}
		}

		locked.Status = models.SessionCancelled
		locked.CurrentBookings = 0
		locked.WaitlistCount = 0
		if reason != "" {
			locked.CancelReason = &reason
		}
		session = locked
		result.event(models.EventSessionCancelled, models.SessionEvent{SessionID: id, OrgID: orgID, Reason: reason, Timestamp: now})
		return s.repos.Sessions.SaveCounters(ctx, tx, locked)
	})
	if err != nil {
		return nil, s.bookings.mapTxError(ctx, err, id, "cancel_session")
	}

	s.finish(ctx, orgID, &result)
	s.deindex(ctx, id)
	return session, nil
}

// List serves the schedule browse. Hot pages come from the Valkey
// cache; text searches go to Elasticsearch; everything else falls
// through to Postgres.
func (s *SessionService) List(ctx context.Context, orgID uuid.UUID, q models.ListSessionsQuery) (models.ListSessionsResponse, error) {
	var cacheKey string
	if s.cacheClient != nil {
		key, err := s.cacheClient.ScheduleKey(ctx, orgID, q.Date, q.Query, q.Page, q.PageSize)
		if err == nil {
			cacheKey = key
			if raw, ok, err := s.cacheClient.GetSchedule(ctx, key); err == nil && ok {
				var resp models.ListSessionsResponse
				if json.Unmarshal(raw, &resp) == nil {
					return resp, nil
				}
			}
		}
	}

	var resp models.ListSessionsResponse
	var err error
	if q.Query != "" && s.esClient != nil {
		resp, err = s.listFromSearch(ctx, orgID, q)
	} else {
		resp, err = s.listFromDB(ctx, orgID, q)
	}
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if raw, err := json.Marshal(resp); err == nil {
			if err := s.cacheClient.SetSchedule(ctx, cacheKey, raw); err != nil {
				logger.Get().Warn("Schedule cache store failed", "error", err)
			}
		}
	}

	return resp, nil
}

func (s *SessionService) listFromDB(ctx context.Context, orgID uuid.UUID, q models.ListSessionsQuery) (models.ListSessionsResponse, error) {
	items, err := s.repos.Sessions.List(ctx, orgID, q.Date, q.Page, q.PageSize)
	if err != nil {
		return nil, err
	}

	resp := make(models.ListSessionsResponse, 0, len(items))
	for _, it := range items {
		sess := it.Session
		resp = append(resp, models.ListSessionsResponseItem{
			ID:             sess.ID,
			ClassID:        sess.ClassID,
			ClassName:      it.ClassName,
			StartsAt:       sess.StartsAt,
			EndsAt:         sess.EndsAt,
			Status:         sess.Status,
			SpotsLeft:      sess.MaxCapacity - sess.CurrentBookings,
			WaitlistOpen:   it.Waitlist && sess.WaitlistCount < it.MaxWait,
			WaitlistLength: sess.WaitlistCount,
		})
	}
	return resp, nil
}

func (s *SessionService) listFromSearch(ctx context.Context, orgID uuid.UUID, q models.ListSessionsQuery) (models.ListSessionsResponse, error) {
	docs, err := s.esClient.Search(ctx, orgID, q.Query, q.Date, q.Page, q.PageSize)
	if err != nil {
		logger.Get().Warn("Search failed, falling back to database", "error", err)
		return s.listFromDB(ctx, orgID, q)
	}

	resp := make(models.ListSessionsResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, models.ListSessionsResponseItem{
			ID:             d.ID,
			ClassID:        d.ClassID,
			ClassName:      d.ClassName,
			StartsAt:       d.StartsAt,
			EndsAt:         d.EndsAt,
			Status:         models.SessionStatus(d.Status),
			SpotsLeft:      d.SpotsLeft,
			WaitlistOpen:   d.WaitlistOpen,
			WaitlistLength: d.WaitlistLength,
		})
	}
	return resp, nil
}

// CompleteDue closes out sessions whose end time has passed. Called by
// the sweeper on a timer.
func (s *SessionService) CompleteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repos.Sessions.ListDueForCompletion(ctx, now)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, sess := range due {
		if _, err := s.Complete(ctx, sess.OrgID, sess.ID); err != nil {
			logger.Get().Error("Failed to auto-complete session", "session_id", sess.ID, "error", err)
			continue
		}
		completed++
	}
	return completed, nil
}

func (s *SessionService) finish(ctx context.Context, orgID uuid.UUID, result *txResult) {
	s.bookings.finish(ctx, orgID, result)
}

func (s *SessionService) invalidate(ctx context.Context, orgID uuid.UUID) {
	if s.cacheClient == nil {
		return
	}
	if err := s.cacheClient.Invalidate(ctx, orgID); err != nil {
		logger.Get().Warn("Schedule cache invalidation failed", "org_id", orgID, "error", err)
	}
}

func (s *SessionService) index(ctx context.Context, session *models.ClassSession, class *models.GymClass) {
	if s.esClient == nil {
		return
	}
	doc := &search.SessionDocument{
		ID:             session.ID,
		OrgID:          session.OrgID,
		ClassID:        class.ID,
		ClassName:      class.Name,
		ClassType:      class.ClassType,
		TrainerID:      session.TrainerID,
		StartsAt:       session.StartsAt,
		EndsAt:         session.EndsAt,
		Status:         string(session.Status),
		SpotsLeft:      session.MaxCapacity - session.CurrentBookings,
		WaitlistOpen:   class.WaitlistEnabled && session.WaitlistCount < class.MaxWaitlistSize,
		WaitlistLength: session.WaitlistCount,
	}
	if err := s.esClient.IndexSession(ctx, doc); err != nil {
		logger.Get().Warn("Session indexing failed", "session_id", session.ID, "error", err)
	}
}

// deindex removes a cancelled session from the browse index.
func (s *SessionService) deindex(ctx context.Context, id uuid.UUID) {
	if s.esClient == nil {
		return
	}
	if err := s.esClient.DeleteSession(ctx, id); err != nil {
		logger.Get().Warn("Session deindex failed", "session_id", id, "error", err)
	}
}

// reindex refreshes the search document after a lifecycle change.
func (s *SessionService) reindex(ctx context.Context, session *models.ClassSession) {
	if s.esClient == nil || session == nil {
		return
	}
	class, err := s.repos.Classes.GetByID(ctx, session.OrgID, session.ClassID)
	if err != nil {
		logger.Get().Warn("Session reindex skipped", "session_id", session.ID, "error", err)
		return
	}
	s.index(ctx, session, class)
}
