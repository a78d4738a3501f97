package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/codyseavey/cardvault/internal/collection"
	"github.com/codyseavey/cardvault/internal/remote"
)

// App is what commands run against: the record service client and a lazily loaded store.
type App struct {
	Client *remote.Client
	Logger *zap.SugaredLogger

	store *collection.Store
}

// NewApp wraps client for the commands.
func NewApp(client *remote.Client, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{Client: client, Logger: logger}
}

// Store returns the collection store, loading the signed-in user's cards on first use.
// It fails with collection.ErrAuthRequired when nobody is signed in.
func (a *App) Store(ctx context.Context) (*collection.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s := collection.NewStore(a.Client, a.Logger.Named("store"))
	if err := s.Initialize(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if s.OwnerID() == "" {
		s.Close()
		return nil, collection.ErrAuthRequired
	}
	a.store = s
	return s, nil
}

// Close releases the store, if one was opened.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}
