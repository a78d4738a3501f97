package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/cardvault/internal/api"
	"github.com/codyseavey/cardvault/internal/auth"
	"github.com/codyseavey/cardvault/internal/database"
	"github.com/codyseavey/cardvault/internal/models"
	"github.com/codyseavey/cardvault/internal/remote"
	"github.com/codyseavey/cardvault/internal/services"
	"github.com/codyseavey/cardvault/internal/storage"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1}

type harness struct {
	t         *testing.T
	srv       *httptest.Server
	tokenFile string
}

func newHarness(t *testing.T) *harness {
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
	return &harness{t: t, srv: srv, tokenFile: filepath.Join(dir, "session.json")}
}

// run executes one cardctl invocation with a fresh client, the way separate processes would.
func (h *harness) run(args ...string) (int, string) {
	h.t.Helper()
	client, err := remote.New(remote.Config{BaseURL: h.srv.URL, TokenFile: h.tokenFile, HTTPClient: h.srv.Client()})
	require.NoError(h.t, err)

	var buf bytes.Buffer
	prev := Out
	Out = &buf
	defer func() { Out = prev }()

	app := NewApp(client, nil)
	defer app.Close()
	code := Dispatch(context.Background(), app, args)
	return code, buf.String()
}

func TestDispatch_HelpAndUnknown(t *testing.T) {
	h := newHarness(t)

	code, out := h.run()
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "Commands:")

	code, out = h.run("help")
	assert.Equal(t, 0, code)
	for _, name := range []string{"signup", "login", "logout", "whoami", "passwd", "list", "add", "delete", "comps", "totals", "top", "suggest", "history", "snapshot"} {
		assert.Contains(t, out, name)
	}

	code, out = h.run("help", "delete")
	assert.Equal(t, 0, code)
	assert.Equal(t, "Usage: delete <id>\n", out)

	code, out = h.run("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "Unknown command: frobnicate")
}

func TestDispatch_UsageErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"login", "only-email"}, "Usage: login <email> <password>"},
		{[]string{"delete"}, "Usage: delete <id>"},
		{[]string{"passwd"}, "Usage: passwd <new-password>"},
		{[]string{"top", "zero"}, "Usage: top [n]"},
		{[]string{"suggest"}, "Usage: suggest <query>"},
		{[]string{"add", "-nope"}, "Usage: add -player"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			code, out := h.run(tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestCommands_RequireSignIn(t *testing.T) {
	h := newHarness(t)

	for _, name := range []string{"list", "totals", "whoami"} {
		code, out := h.run(name)
		assert.Equal(t, 1, code, name)
		assert.Contains(t, out, "you must be signed in", name)
	}
}

func TestCommands_CollectionWorkflow(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("signup", "Collector@Example.com", "hunter22")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Signed up as collector@example.com")

	code, out = h.run("whoami")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "collector@example.com")

	img := filepath.Join(t.TempDir(), "yamal.png")
	require.NoError(t, os.WriteFile(img, pngBytes, 0o600))

	code, out = h.run("add", "-player", "Lamine Yamal", "-brand", "Topps", "-set", "Chrome", "-variant", "Gold",
		"-year", "2024", "-rarity", "ultra-rare", "-paid", "10", "-value", "30", "-image", img)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Added Lamine Yamal")

	code, out = h.run("add", "-player", "Jude Bellingham", "-paid", "5", "-value", "25", "-status", "for sale", "-ask", "40")
	require.Equal(t, 0, code, out)

	code, out = h.run("add", "-team", "Arsenal")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "add error: player name is required")

	code, out = h.run("add", "-player", "Nobody", "-status", "lost")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, `unknown status "lost"`)

	code, out = h.run("list")
	require.Equal(t, 0, code, out)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "PLAYER")
	assert.Contains(t, lines[1], "Jude Bellingham")
	assert.Contains(t, lines[1], "For Sale (£40.00)")
	assert.Contains(t, lines[2], "Lamine Yamal")
	assert.Contains(t, lines[2], "Ultra Rare")

	code, out = h.run("list", "topps")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Lamine Yamal")
	assert.NotContains(t, out, "Jude Bellingham")

	code, out = h.run("totals")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "£15.00")
	assert.Contains(t, out, "£55.00")
	assert.Contains(t, out, "1 (asking £40.00)")

	code, out = h.run("top", "1")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Lamine Yamal")
	assert.NotContains(t, out, "Jude Bellingham")

	code, out = h.run("suggest", "yam")
	require.Equal(t, 0, code, out)
	assert.Equal(t, "Lamine Yamal\n", out)

	id := cardID(t, h, "Lamine Yamal")
	code, out = h.run("comps", id)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "https://www.ebay.co.uk/sch/i.html?_nkw=Lamine+Yamal+Topps+Chrome+Gold&LH_Complete=1&LH_Sold=1")
	assert.Contains(t, out, "https://130point.com/sales?q=Lamine+Yamal+Topps+Chrome+Gold")

	code, out = h.run("snapshot")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "2 cards, value £55.00")

	code, out = h.run("history", "week")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, time.Now().UTC().Format(time.DateOnly))

	code, out = h.run("delete", id)
	require.Equal(t, 0, code, out)
	code, out = h.run("list")
	require.Equal(t, 0, code, out)
	assert.NotContains(t, out, "Lamine Yamal")

	code, out = h.run("logout")
	require.Equal(t, 0, code, out)
	code, _ = h.run("list")
	assert.Equal(t, 1, code)
}

func TestCommands_LoginAfterSignup(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("signup", "a@example.com", "pw-123456")
	require.Equal(t, 0, code, out)
	code, _ = h.run("logout")
	require.Equal(t, 0, code)

	code, out = h.run("login", "a@example.com", "wrong")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "login error:")

	code, out = h.run("login", "a@example.com", "pw-123456")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Signed in as a@example.com")

	code, out = h.run("list")
	require.Equal(t, 0, code, out)
	assert.Equal(t, "No cards found\n", out)

	code, out = h.run("passwd", "new-secret")
	require.Equal(t, 0, code, out)
	assert.Equal(t, "Password updated for a@example.com\n", out)
	code, _ = h.run("whoami")
	assert.Equal(t, 0, code, "the session that changed the password stays signed in")

	code, _ = h.run("logout")
	require.Equal(t, 0, code)
	code, _ = h.run("login", "a@example.com", "pw-123456")
	assert.Equal(t, 1, code)
	code, out = h.run("login", "a@example.com", "new-secret")
	assert.Equal(t, 0, code, out)
}

func cardID(t *testing.T, h *harness, player string) string {
	t.Helper()
	client, err := remote.New(remote.Config{BaseURL: h.srv.URL, TokenFile: h.tokenFile, HTTPClient: h.srv.Client()})
	require.NoError(t, err)
	session, err := client.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	cards, err := client.SelectCards(context.Background(), session.UserID(), models.OrderCreatedAtDesc)
	require.NoError(t, err)
	for _, c := range cards {
		if c.Player == player {
			return c.ID
		}
	}
	t.Fatalf("no card for %s", player)
	return ""
}

func TestParseChoices(t *testing.T) {
	tests := []struct {
		in   string
		want models.CardStatus
		ok   bool
	}{
		{"In Collection", models.StatusInCollection, true},
		{"for-sale", models.StatusForSale, true},
		{"  SOLD ", models.StatusSold, true},
		{"for_sale", models.StatusForSale, true},
		{"gone", "", false},
	}
	for _, tt := range tests {
		got, ok := parseStatus(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	r, ok := parseRarity("ultra_rare")
	assert.True(t, ok)
	assert.Equal(t, models.RarityUltraRare, r)
	_, ok = parseRarity("mythic")
	assert.False(t, ok)
}
