package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/cardvault/internal/api"
	"github.com/codyseavey/cardvault/internal/auth"
	"github.com/codyseavey/cardvault/internal/collection"
	"github.com/codyseavey/cardvault/internal/database"
	"github.com/codyseavey/cardvault/internal/models"
	"github.com/codyseavey/cardvault/internal/services"
	"github.com/codyseavey/cardvault/internal/storage"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1}

// newBackend starts the real record service on a temp sqlite database.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	db, err := database.Open("sqlite", filepath.Join(dir, "test.db"), logger.Silent, nil)
	require.NoError(t, err)
	authSvc, err := auth.NewService(db, "test-secret", time.Hour, 64, nil)
	require.NoError(t, err)
	objects, err := storage.NewDiskStore(filepath.Join(dir, "objects"))
	require.NoError(t, err)

	srv := httptest.NewServer(api.SetupRouter(api.Dependencies{
		DB:        db,
		Auth:      authSvc,
		Objects:   objects,
		Snapshots: services.NewSnapshotService(db, nil, 23, 1),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, tokenFile string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL, TokenFile: tokenFile, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

type recordedEvent struct {
	event  models.AuthEvent
	userID string
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "://nope"})
	assert.Error(t, err)
}

func TestShared_ReturnsSameInstance(t *testing.T) {
	a, err := Shared(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	b, err := Shared(Config{BaseURL: "http://localhost:2"})
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestClient_AuthLifecycle(t *testing.T) {
	srv := newBackend(t)
	c := newTestClient(t, srv, "")
	ctx := context.Background()

	var mu sync.Mutex
	var events []recordedEvent
	sub := c.OnAuthStateChange(func(e models.AuthEvent, s *models.Session) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, recordedEvent{e, s.UserID()})
	})

	user, err := c.GetUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	session, err := c.SignUp(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	uid := session.User.ID

	user, err = c.GetUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, uid, user.ID)

	refreshed, err := c.RefreshSession(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, session.AccessToken, refreshed.AccessToken)

	require.NoError(t, c.SignOut(ctx))
	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = c.SignIn(ctx, "alice@example.com", "wrong-pass")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid email or password", apiErr.Message)

	sub.Unsubscribe()
	_, err = c.SignIn(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []recordedEvent{
		{models.AuthEventSignedIn, uid},
		{models.AuthEventTokenRefreshed, uid},
		{models.AuthEventSignedOut, ""},
	}, events)
}

func TestClient_SessionPersistsAcrossClients(t *testing.T) {
	srv := newBackend(t)
	tokenFile := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	first := newTestClient(t, srv, tokenFile)
	session, err := first.SignUp(ctx, "bob@example.com", "hunter22")
	require.NoError(t, err)

	info, err := os.Stat(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second := newTestClient(t, srv, tokenFile)
	restored, err := second.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, session.AccessToken, restored.AccessToken)

	user, err := second.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)

	require.NoError(t, second.SignOut(ctx))
	_, err = os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(err))

	// the first client's token was revoked by the sign-out
	user, err = first.GetUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestClient_UpdatePassword(t *testing.T) {
	srv := newBackend(t)
	ctx := context.Background()
	c := newTestClient(t, srv, "")
	other := newTestClient(t, srv, "")

	_, err := c.UpdatePassword(ctx, "new-secret")
	assert.ErrorIs(t, err, collection.ErrAuthRequired)

	session, err := c.SignUp(ctx, "erin@example.com", "hunter22")
	require.NoError(t, err)
	_, err = other.SignIn(ctx, "erin@example.com", "hunter22")
	require.NoError(t, err)

	var events []models.AuthEvent
	sub := c.OnAuthStateChange(func(e models.AuthEvent, s *models.Session) {
		events = append(events, e)
		require.NotNil(t, s)
		assert.Equal(t, session.User.ID, s.UserID())
	})
	defer sub.Unsubscribe()

	user, err := c.UpdatePassword(ctx, "new-secret")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)
	assert.Equal(t, []models.AuthEvent{models.AuthEventUserUpdated}, events)

	// This client stays signed in; the other session was revoked.
	user, err = c.GetUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	user, err = other.GetUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = other.SignIn(ctx, "erin@example.com", "new-secret")
	assert.NoError(t, err)
}

func TestClient_CardsAndStorage(t *testing.T) {
	srv := newBackend(t)
	c := newTestClient(t, srv, "")
	ctx := context.Background()

	_, err := c.SelectCards(ctx, "someone", models.OrderCreatedAtDesc)
	assert.ErrorIs(t, err, collection.ErrAuthRequired)

	session, err := c.SignUp(ctx, "carol@example.com", "hunter22")
	require.NoError(t, err)
	uid := session.User.ID

	created, err := c.InsertCard(ctx, models.CardRecord{OwnerID: uid, Player: "Pedri", Status: models.StatusInCollection})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = c.InsertCard(ctx, models.CardRecord{OwnerID: "other", Player: "Gavi"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	cards, err := c.SelectCards(ctx, uid, models.OrderIDDesc)
	require.NoError(t, err)
	require.Len(t, cards, 1)

	_, err = c.SelectCards(ctx, uid, models.Ordering{Column: "nonsense", Descending: true})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	require.NoError(t, c.DeleteCard(ctx, created.ID, uid))
	require.NoError(t, c.DeleteCard(ctx, created.ID, uid), "deleting a missing card is not an error")

	objectPath := uid + "/1700000000000_card.png"
	require.NoError(t, c.UploadObject(ctx, models.CardImagesBucket, objectPath, "image/png", pngBytes))
	err = c.UploadObject(ctx, models.CardImagesBucket, objectPath, "image/png", pngBytes)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	resp, err := srv.Client().Get(c.PublicURL(models.CardImagesBucket, objectPath))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

// encodedWithoutServerFields is the JSON form of c with only the server-assigned id and created_at cleared.
func encodedWithoutServerFields(t *testing.T, c models.CardRecord) string {
	t.Helper()
	c.ID = ""
	c.CreatedAt = time.Time{}
	b, err := json.Marshal(c)
	require.NoError(t, err)
	return string(b)
}

func TestStoreRoundTripThroughBackend(t *testing.T) {
	srv := newBackend(t)
	c := newTestClient(t, srv, "")
	ctx := context.Background()

	_, err := c.SignUp(ctx, "dana@example.com", "hunter22")
	require.NoError(t, err)

	store := collection.NewStore(c, nil)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()
	assert.Empty(t, store.Records())

	ask, sold := 60.0, 75.0
	inputs := []models.NewCardRecord{
		{Player: "Lamine Yamal", Team: "Barcelona", Year: 2024, Brand: "Topps", Set: "Chrome", Variant: "Gold /50",
			Rarity: models.RarityUltraRare, Condition: "Mint", Paid: 120, Value: 400, Status: models.StatusInCollection,
			Image: &models.ImageUpload{FileName: "yamal gold.png", ContentType: "image/png", Data: pngBytes}},
		{Player: "Jude Bellingham", Team: "Real Madrid", Paid: 20, Value: 35, Status: models.StatusForSale, AskingPrice: &ask},
		{Player: "Erling Haaland", Paid: 25, Value: 30, Status: models.StatusSold, SoldPrice: &sold},
	}
	for _, in := range inputs {
		require.NoError(t, collection.ApplyFormDefaults(&in))
		_, err := store.AddRecord(ctx, in)
		require.NoError(t, err)
	}

	added := store.Records()
	require.Len(t, added, 3)
	require.NotNil(t, added[2].ImageURL)
	assert.Contains(t, *added[2].ImageURL, "/storage/v1/object/public/card-images/")

	require.NoError(t, store.Refresh(ctx))
	reloaded := store.Records()
	require.Len(t, reloaded, 3)
	for i := range added {
		assert.Equal(t, added[i].ID, reloaded[i].ID)
		assert.Equal(t, encodedWithoutServerFields(t, added[i]), encodedWithoutServerFields(t, reloaded[i]))
	}

	totals := store.Totals()
	assert.Equal(t, 3, totals.TotalCards)
	assert.Equal(t, 1, totals.ForSaleCount)
	assert.Equal(t, 60.0, totals.ForSaleAskTotal)
	assert.Equal(t, 50.0, totals.RealisedProfit)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, totals, stats.Totals)

	require.NoError(t, store.DeleteRecord(ctx, reloaded[1].ID))
	assert.Len(t, store.Records(), 2)

	require.NoError(t, c.SignOut(ctx))
	assert.Empty(t, store.Records())
	assert.Empty(t, store.OwnerID())
}
