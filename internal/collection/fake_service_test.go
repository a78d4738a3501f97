package collection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codyseavey/cardvault/internal/models"
)

// fakeService is an in-memory RecordService that records every remote call.
type fakeService struct {
	mu        sync.Mutex
	session   *models.Session
	rows      []models.CardRecord
	nextID    int
	base      time.Time
	listeners map[int]AuthStateListener
	nextSub   int
	uploads   map[string][]byte

	selectErr map[string]error
	userErr   error
	insertErr error
	deleteErr error
	uploadErr error
	onSelect  func(ownerID string)

	calls []string
}

func newFakeService() *fakeService {
	return &fakeService{
		base:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		listeners: make(map[int]AuthStateListener),
		uploads:   make(map[string][]byte),
		selectErr: make(map[string]error),
	}
}

type fakeSubscription struct {
	svc *fakeService
	id  int
}

func (s fakeSubscription) Unsubscribe() {
	s.svc.mu.Lock()
	defer s.svc.mu.Unlock()
	delete(s.svc.listeners, s.id)
}

func (f *fakeService) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeService) GetSession(ctx context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeService) GetUser(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_user")
	if f.userErr != nil {
		return nil, f.userErr
	}
	if f.session == nil {
		return nil, nil
	}
	u := *f.session.User
	return &u, nil
}

func (f *fakeService) OnAuthStateChange(listener AuthStateListener) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	f.listeners[f.nextSub] = listener
	return fakeSubscription{svc: f, id: f.nextSub}
}

func (f *fakeService) SelectCards(ctx context.Context, ownerID string, order models.Ordering) ([]models.CardRecord, error) {
	f.mu.Lock()
	f.record("select:" + order.String())
	hook := f.onSelect
	f.onSelect = nil
	f.mu.Unlock()

	if hook != nil {
		hook(ownerID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.selectErr[order.Column]; err != nil {
		return nil, err
	}
	var out []models.CardRecord
	for _, c := range f.rows {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order.Column == "id" {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeService) InsertCard(ctx context.Context, card models.CardRecord) (models.CardRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("insert")
	if f.insertErr != nil {
		return models.CardRecord{}, f.insertErr
	}
	f.nextID++
	card.ID = fmt.Sprintf("card-%03d", f.nextID)
	card.CreatedAt = f.base.Add(time.Duration(f.nextID) * time.Minute)
	f.rows = append(f.rows, card)
	return card, nil
}

func (f *fakeService) DeleteCard(ctx context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete:" + id + ":" + ownerID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.rows[:0]
	for _, c := range f.rows {
		if c.ID == id && c.OwnerID == ownerID {
			continue
		}
		kept = append(kept, c)
	}
	f.rows = kept
	return nil
}

func (f *fakeService) UploadObject(ctx context.Context, bucket, path, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upload:" + bucket + "/" + path)
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads[bucket+"/"+path] = data
	return nil
}

func (f *fakeService) PublicURL(bucket, path string) string {
	return "https://files.example/" + bucket + "/" + path
}

// seed stores a card directly, as if another client had inserted it.
func (f *fakeService) seed(ownerID, player string) models.CardRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := models.CardRecord{
		ID:        fmt.Sprintf("card-%03d", f.nextID),
		OwnerID:   ownerID,
		Player:    player,
		Status:    models.StatusInCollection,
		CreatedAt: f.base.Add(time.Duration(f.nextID) * time.Minute),
	}
	f.rows = append(f.rows, c)
	return c
}

// setSession changes the session without notifying listeners.
func (f *fakeService) setSession(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = sessionFor(userID, f.base)
}

// signIn changes the session and notifies listeners, the way a real client does.
func (f *fakeService) signIn(userID string) {
	f.setSession(userID)
	f.emit(models.AuthEventSignedIn)
}

func (f *fakeService) signOut() {
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()
	f.emit(models.AuthEventSignedOut)
}

func (f *fakeService) emit(event models.AuthEvent) {
	f.mu.Lock()
	session := f.session
	listeners := make([]AuthStateListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()
	for _, l := range listeners {
		l(event, session)
	}
}

func (f *fakeService) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func sessionFor(userID string, now time.Time) *models.Session {
	if userID == "" {
		return nil
	}
	return &models.Session{
		AccessToken: "token-" + userID,
		ExpiresAt:   now.Add(time.Hour),
		User:        &models.User{ID: userID, Email: strings.ToLower(userID) + "@example.com"},
	}
}
