// Package remote is the HTTP client for the cardvault record service. It implements
// collection.RecordService: sessions, the cards table and object storage.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/codyseavey/cardvault/internal/collection"
	"github.com/codyseavey/cardvault/internal/metrics"
	"github.com/codyseavey/cardvault/internal/models"
)

var _ collection.RecordService = (*Client)(nil)

// Config configures a Client.
type Config struct {
	BaseURL string
	// TokenFile persists the session between runs; empty keeps it in memory only.
	TokenFile         string
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *zap.SugaredLogger
}

// APIError is a non-2xx response from the record service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Client talks to one record service. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	logger    *zap.SugaredLogger
	tokenFile string

	mu        sync.RWMutex
	session   *models.Session
	listeners map[int]collection.AuthStateListener
	nextSub   int
}

var shared struct {
	once   sync.Once
	client *Client
	err    error
}

// Shared returns the process-wide client, constructing it from cfg on the first call.
// Later calls return the same instance and ignore cfg.
func Shared(cfg Config) (*Client, error) {
	shared.once.Do(func() {
		shared.client, shared.err = New(cfg)
	})
	return shared.client, shared.err
}

// New builds a client and restores a saved session from cfg.TokenFile when one exists.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit, burst := rate.Inf, 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	c := &Client{
		baseURL:   base,
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
		tokenFile: cfg.TokenFile,
		listeners: make(map[int]collection.AuthStateListener),
	}

	if c.tokenFile != "" {
		session, err := loadSession(c.tokenFile)
		switch {
		case err != nil:
			c.logger.Warnw("ignoring unreadable session file", "path", c.tokenFile, "error", err)
		case session != nil && !session.Expired(time.Now()):
			c.session = session
		}
	}
	return c, nil
}

// SignUp creates an account and signs in as it.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	return c.authenticate(ctx, "/api/auth/signup", email, password)
}

// SignIn starts a session for an existing account.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	return c.authenticate(ctx, "/api/auth/signin", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*models.Session, error) {
	var session models.Session
	err := c.doJSON(ctx, http.MethodPost, path, path, models.Credentials{Email: email, Password: password}, "", &session)
	if err != nil {
		return nil, err
	}
	c.setSession(&session, models.AuthEventSignedIn)
	return &session, nil
}

// RefreshSession exchanges the current token for a new one.
func (c *Client) RefreshSession(ctx context.Context) (*models.Session, error) {
	token := c.token()
	if token == "" {
		return nil, collection.ErrAuthRequired
	}
	var session models.Session
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/refresh", "/api/auth/refresh", nil, token, &session)
	if isUnauthorized(err) {
		c.setSession(nil, models.AuthEventSignedOut)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	c.setSession(&session, models.AuthEventTokenRefreshed)
	return &session, nil
}

// UpdatePassword changes the signed-in user's password. The server signs out the user's
// other sessions; this one stays valid and listeners receive USER_UPDATED.
func (c *Client) UpdatePassword(ctx context.Context, password string) (*models.User, error) {
	token := c.token()
	if token == "" {
		return nil, collection.ErrAuthRequired
	}
	var user models.User
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/password", "/api/auth/password", models.PasswordUpdate{Password: password}, token, &user)
	if isUnauthorized(err) {
		c.setSession(nil, models.AuthEventSignedOut)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()
	if current != nil && current.AccessToken == token {
		updated := *current
		updated.User = &user
		c.setSession(&updated, models.AuthEventUserUpdated)
	}
	return &user, nil
}

// SignOut revokes the session on the server and forgets it locally. The local session is
// dropped even when the server cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.token()
	if token == "" {
		return nil
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/signout", "/api/auth/signout", nil, token, nil)
	c.setSession(nil, models.AuthEventSignedOut)
	if isUnauthorized(err) {
		return nil
	}
	return err
}

// GetSession returns the locally held session without contacting the server.
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, nil
	}
	s := *c.session
	return &s, nil
}

// GetUser asks the server who the current token belongs to. A rejected token ends the
// local session and yields a nil user.
func (c *Client) GetUser(ctx context.Context) (*models.User, error) {
	token := c.token()
	if token == "" {
		return nil, nil
	}
	var user models.User
	err := c.doJSON(ctx, http.MethodGet, "/api/auth/user", "/api/auth/user", nil, token, &user)
	if isUnauthorized(err) {
		c.setSession(nil, models.AuthEventSignedOut)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type subscription struct {
	c  *Client
	id int
}

func (s subscription) Unsubscribe() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	delete(s.c.listeners, s.id)
}

// OnAuthStateChange registers listener for sign-in, sign-out and token refresh events.
// Listeners run synchronously on the goroutine that changed the session.
func (c *Client) OnAuthStateChange(listener collection.AuthStateListener) collection.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	c.listeners[c.nextSub] = listener
	return subscription{c: c, id: c.nextSub}
}

// SelectCards lists the caller's cards. The server scopes rows by token; ownerID must match it.
func (c *Client) SelectCards(ctx context.Context, ownerID string, order models.Ordering) ([]models.CardRecord, error) {
	token, err := c.tokenFor(ownerID)
	if err != nil {
		return nil, err
	}
	path := "/api/cards?order=" + url.QueryEscape(order.String())
	var cards []models.CardRecord
	if err := c.doJSON(ctx, http.MethodGet, path, "/api/cards", nil, token, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// InsertCard stores one card and returns the row as the server saved it.
func (c *Client) InsertCard(ctx context.Context, card models.CardRecord) (models.CardRecord, error) {
	token, err := c.tokenFor(card.OwnerID)
	if err != nil {
		return models.CardRecord{}, err
	}
	var created models.CardRecord
	if err := c.doJSON(ctx, http.MethodPost, "/api/cards", "/api/cards", card, token, &created); err != nil {
		return models.CardRecord{}, err
	}
	return created, nil
}

// DeleteCard removes a card by id for ownerID. Deleting a card that no longer exists succeeds.
func (c *Client) DeleteCard(ctx context.Context, id, ownerID string) error {
	token, err := c.tokenFor(ownerID)
	if err != nil {
		return err
	}
	err = c.doJSON(ctx, http.MethodDelete, "/api/cards/"+url.PathEscape(id), "/api/cards/:id", nil, token, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// UploadObject stores data at bucket/path. Existing objects are never replaced.
func (c *Client) UploadObject(ctx context.Context, bucket, path, contentType string, data []byte) error {
	token := c.token()
	if token == "" {
		return collection.ErrAuthRequired
	}

	body, formType, err := multipartFile(path, contentType, data)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/storage/v1/object/"+bucket+"/"+escapePath(path),
		"/storage/v1/object/:bucket/*path", body, formType, token, nil)
}

// PublicURL is where anyone can read bucket/path.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL.String() + "/storage/v1/object/public/" + bucket + "/" + escapePath(path)
}

// Stats returns the caller's collection totals and top players, computed by the server.
func (c *Client) Stats(ctx context.Context) (*models.CollectionStats, error) {
	var stats models.CollectionStats
	if err := c.doJSON(ctx, http.MethodGet, "/api/collection/stats", "/api/collection/stats", nil, c.token(), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ValueHistory returns the caller's daily snapshots for period (week, month, 3month, year, all).
func (c *Client) ValueHistory(ctx context.Context, period string) (*models.ValueHistoryResponse, error) {
	path := "/api/collection/history?period=" + url.QueryEscape(period)
	var history models.ValueHistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, path, "/api/collection/history", nil, c.token(), &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// TakeSnapshot records today's snapshot for the caller.
func (c *Client) TakeSnapshot(ctx context.Context) (*models.CollectionValueSnapshot, error) {
	var snap models.CollectionValueSnapshot
	if err := c.doJSON(ctx, http.MethodPost, "/api/collection/snapshot", "/api/collection/snapshot", nil, c.token(), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) tokenFor(ownerID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return "", collection.ErrAuthRequired
	}
	if ownerID != "" && ownerID != c.session.UserID() {
		return "", &APIError{StatusCode: http.StatusForbidden, Message: "owner does not match the signed-in user"}
	}
	return c.session.AccessToken, nil
}

// setSession swaps the session, persists it and notifies listeners.
func (c *Client) setSession(session *models.Session, event models.AuthEvent) {
	c.mu.Lock()
	c.session = session
	listeners := make([]collection.AuthStateListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	if c.tokenFile != "" {
		if err := saveSession(c.tokenFile, session); err != nil {
			c.logger.Warnw("failed to persist session", "path", c.tokenFile, "error", err)
		}
	}

	c.logger.Debugw("auth state changed", "event", event, "user_id", session.UserID())
	for _, l := range listeners {
		l(event, session)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path, route string, in any, token string, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, route, body, contentType, token, out)
}

func (c *Client) do(ctx context.Context, method, path, route string, body io.Reader, contentType, token string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RemoteRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, route, err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: status, Message: msg}
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
