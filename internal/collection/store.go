// Package collection keeps a signed-in user's cards in memory, mirrors them from the
// record service and derives collection totals.
//
// Mutations reach the local list only after the record service confirms them, so the
// list is always the last known-good remote state. Concurrent Refresh, AddRecord and
// DeleteRecord calls for the same user are not sequenced: whichever call resolves last
// decides the final list. Results that belong to a previous user, or that arrive after
// Close, are dropped.
package collection

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codyseavey/cardvault/internal/metrics"
	"github.com/codyseavey/cardvault/internal/models"
)

// ChangeFunc is notified after every change to the record list.
type ChangeFunc func(records []models.CardRecord, totals models.CollectionTotals)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, which stamps image paths and sold dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithOnChange registers a listener for list changes.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Store) { s.onChange = append(s.onChange, fn) }
}

// Store is the owner-scoped, in-memory mirror of a user's cards.
type Store struct {
	svc      RecordService
	logger   *zap.SugaredLogger
	now      func() time.Time
	onChange []ChangeFunc

	mu         sync.RWMutex
	records    []models.CardRecord
	totals     models.CollectionTotals
	ownerID    string
	generation uint64
	closed     bool

	sub    Subscription
	ctx    context.Context
	cancel context.CancelFunc
}

// NewStore creates a store over svc. Call Initialize before use and Close when done.
func NewStore(svc RecordService, logger *zap.SugaredLogger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Store{
		svc:    svc,
		logger: logger,
		now:    time.Now,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize subscribes to session changes and loads the cards of the current session, if any.
// A failed initial load leaves the list empty; the error is logged and returned. Calling it
// again is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.sub != nil || s.closed {
		s.mu.Unlock()
		return nil
	}
	// Notification-driven reloads outlive the caller's ctx; they stop on Close.
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()

	sub := s.svc.OnAuthStateChange(s.handleAuthEvent)
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	session, err := s.svc.GetSession(ctx)
	if err != nil {
		s.logger.Errorw("collection: failed to read session", "error", err)
		s.switchOwner("")
		return &RemoteReadError{Message: remoteMessage(err), Err: err}
	}

	uid := session.UserID()
	s.switchOwner(uid)
	if uid == "" {
		return nil
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Errorw("collection: initial load failed", "user_id", uid, "error", err)
		return err
	}
	return nil
}

// Close unsubscribes from session changes. Results of calls still in flight are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	cancel := s.cancel
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}

func (s *Store) handleAuthEvent(event models.AuthEvent, session *models.Session) {
	s.mu.RLock()
	closed, ctx := s.closed, s.ctx
	s.mu.RUnlock()
	if closed {
		return
	}

	uid := session.UserID()
	s.logger.Debugw("collection: auth state changed", "event", event, "user_id", uid)
	if event == models.AuthEventUserUpdated && uid != "" && uid == s.OwnerID() {
		return
	}
	s.switchOwner(uid)
	if uid == "" {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warnw("collection: reload after auth change failed", "event", event, "error", err)
	}
}

// switchOwner clears the list when the identity changes. It is a no-op for the same owner.
// It returns the generation that belongs to uid, read under the same lock as the switch.
func (s *Store) switchOwner(uid string) uint64 {
	s.mu.Lock()
	if s.ownerID == uid && (uid != "" || len(s.records) == 0) {
		gen := s.generation
		s.mu.Unlock()
		return gen
	}
	s.ownerID = uid
	s.generation++
	gen := s.generation
	s.setRecordsLocked(nil)
	records, totals := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(records, totals)
	return gen
}

// Refresh replaces the list with every card the current user owns, newest first.
// Without a signed-in user the list is emptied and the record service is not queried.
func (s *Store) Refresh(ctx context.Context) error {
	user, err := s.svc.GetUser(ctx)
	if err != nil {
		metrics.StoreOperationsTotal.WithLabelValues("refresh", "error").Inc()
		s.logger.Errorw("collection: refresh could not resolve user", "error", err)
		return &RemoteReadError{Message: remoteMessage(err), Err: err}
	}
	if user == nil || user.ID == "" {
		s.switchOwner("")
		metrics.StoreOperationsTotal.WithLabelValues("refresh", "anonymous").Inc()
		return nil
	}

	gen := s.switchOwner(user.ID)

	cards, err := s.svc.SelectCards(ctx, user.ID, models.OrderCreatedAtDesc)
	if err != nil {
		s.logger.Warnw("collection: created_at ordering rejected, falling back to id",
			"user_id", user.ID, "error", err)
		cards, err = s.svc.SelectCards(ctx, user.ID, models.OrderIDDesc)
		if err != nil {
			metrics.StoreOperationsTotal.WithLabelValues("refresh", "error").Inc()
			s.logger.Errorw("collection: refresh failed", "user_id", user.ID, "error", err)
			return &RemoteReadError{Message: remoteMessage(err), Err: err}
		}
	}

	owned := cards[:0:0]
	for _, c := range cards {
		if c.OwnerID != user.ID {
			s.logger.Warnw("collection: dropping card owned by another user", "card_id", c.ID)
			continue
		}
		owned = append(owned, c)
	}

	s.replace(gen, user.ID, owned)
	metrics.StoreOperationsTotal.WithLabelValues("refresh", "ok").Inc()
	return nil
}

// AddRecord stores a new card for the current user and prepends the stored row.
// An image, when given, is uploaded first and the card references its public URL.
// On failure the local list is left untouched.
func (s *Store) AddRecord(ctx context.Context, in models.NewCardRecord) (models.CardRecord, error) {
	session, err := s.requireSession(ctx)
	if err != nil {
		metrics.StoreOperationsTotal.WithLabelValues("add", "unauthenticated").Inc()
		return models.CardRecord{}, err
	}
	ownerID := session.UserID()
	gen := s.currentGeneration()
	now := s.now()

	var contentType string
	if in.Image != nil {
		if contentType, err = validateImage(in.Image); err != nil {
			metrics.StoreOperationsTotal.WithLabelValues("add", "invalid_image").Inc()
			return models.CardRecord{}, err
		}
	}

	payload := buildPayload(ownerID, in, now)

	if in.Image != nil {
		path := ImageObjectPath(ownerID, in.Image.FileName, now)
		if err := s.svc.UploadObject(ctx, models.CardImagesBucket, path, contentType, in.Image.Data); err != nil {
			metrics.StoreOperationsTotal.WithLabelValues("add", "upload_error").Inc()
			s.logger.Errorw("collection: image upload failed", "path", path, "error", err)
			return models.CardRecord{}, &ImageUploadError{Reason: "storage rejected the file", Err: err}
		}
		url := s.svc.PublicURL(models.CardImagesBucket, path)
		payload.ImageURL = &url
	}

	created, err := s.svc.InsertCard(ctx, payload)
	if err != nil {
		metrics.StoreOperationsTotal.WithLabelValues("add", "error").Inc()
		s.logger.Errorw("collection: add card failed", "user_id", ownerID, "error", err)
		return models.CardRecord{}, &RemoteWriteError{Op: "insert", Message: remoteMessage(err), Err: err}
	}

	s.mutate(gen, ownerID, func(records []models.CardRecord) []models.CardRecord {
		if created.OwnerID != ownerID {
			return records
		}
		out := make([]models.CardRecord, 0, len(records)+1)
		out = append(out, created)
		return append(out, records...)
	})
	metrics.StoreOperationsTotal.WithLabelValues("add", "ok").Inc()
	return created, nil
}

// DeleteRecord deletes one of the current user's cards and removes it from the list.
// On failure the local list is left untouched.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	session, err := s.requireSession(ctx)
	if err != nil {
		metrics.StoreOperationsTotal.WithLabelValues("delete", "unauthenticated").Inc()
		return err
	}
	ownerID := session.UserID()
	gen := s.currentGeneration()

	if err := s.svc.DeleteCard(ctx, id, ownerID); err != nil {
		metrics.StoreOperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Errorw("collection: delete card failed", "card_id", id, "error", err)
		return &RemoteWriteError{Op: "delete", Message: remoteMessage(err), Err: err}
	}

	s.mutate(gen, ownerID, func(records []models.CardRecord) []models.CardRecord {
		out := make([]models.CardRecord, 0, len(records))
		for _, c := range records {
			if c.ID != id {
				out = append(out, c)
			}
		}
		return out
	})
	metrics.StoreOperationsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Records returns a copy of the current list, newest first.
func (s *Store) Records() []models.CardRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CardRecord(nil), s.records...)
}

// Totals returns the totals computed for the current list.
func (s *Store) Totals() models.CollectionTotals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals
}

// OwnerID returns the user whose cards are loaded, or "" when signed out.
func (s *Store) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerID
}

// Search filters the current list by a free-text query.
func (s *Store) Search(query string) []models.CardRecord {
	return FilterRecords(s.Records(), query)
}

// SuggestPlayers fuzzy-matches query against the players already in the collection.
func (s *Store) SuggestPlayers(query string, n int) []string {
	return MatchPlayers(s.Records(), query, n)
}

// TopPlayers ranks the collection's players by value.
func (s *Store) TopPlayers(n int) []models.PlayerValue {
	return TopPlayersByValue(s.Records(), n)
}

// Find returns the card with id from the current list.
func (s *Store) Find(id string) (models.CardRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.records {
		if c.ID == id {
			return c, true
		}
	}
	return models.CardRecord{}, false
}

func (s *Store) requireSession(ctx context.Context) (*models.Session, error) {
	session, err := s.svc.GetSession(ctx)
	if err != nil || session.UserID() == "" || session.Expired(s.now()) {
		return nil, ErrAuthRequired
	}
	return session, nil
}

func (s *Store) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) replace(gen uint64, ownerID string, records []models.CardRecord) {
	s.mutate(gen, ownerID, func([]models.CardRecord) []models.CardRecord { return records })
}

// mutate applies fn to the list unless the store closed, the owner changed since gen was
// read, or the list no longer belongs to ownerID.
func (s *Store) mutate(gen uint64, ownerID string, fn func([]models.CardRecord) []models.CardRecord) {
	s.mu.Lock()
	if s.closed || s.generation != gen || s.ownerID != ownerID {
		s.mu.Unlock()
		s.logger.Debugw("collection: discarding stale result", "generation", gen, "user_id", ownerID)
		return
	}
	s.setRecordsLocked(fn(s.records))
	records, totals := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(records, totals)
}

func (s *Store) setRecordsLocked(records []models.CardRecord) {
	s.records = records
	s.totals = ComputeTotals(records)
	metrics.StoreRecords.Set(float64(len(records)))
}

func (s *Store) snapshotLocked() ([]models.CardRecord, models.CollectionTotals) {
	return append([]models.CardRecord(nil), s.records...), s.totals
}

func (s *Store) notify(records []models.CardRecord, totals models.CollectionTotals) {
	for _, fn := range s.onChange {
		fn(records, totals)
	}
}
