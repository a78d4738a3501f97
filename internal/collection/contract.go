package collection

import (
	"context"

	"github.com/codyseavey/cardvault/internal/models"
)

// Subscription is returned by OnAuthStateChange; Unsubscribe stops further notifications.
type Subscription interface {
	Unsubscribe()
}

// AuthStateListener receives session lifecycle transitions. session is nil after sign-out.
type AuthStateListener func(event models.AuthEvent, session *models.Session)

// SessionSource is the authentication side of the record service.
// GetSession must not touch the network; GetUser may.
type SessionSource interface {
	GetSession(ctx context.Context) (*models.Session, error)
	GetUser(ctx context.Context) (*models.User, error)
	OnAuthStateChange(listener AuthStateListener) Subscription
}

// CardTable is owner-scoped CRUD over the cards collection.
type CardTable interface {
	SelectCards(ctx context.Context, ownerID string, order models.Ordering) ([]models.CardRecord, error)
	InsertCard(ctx context.Context, card models.CardRecord) (models.CardRecord, error)
	DeleteCard(ctx context.Context, id, ownerID string) error
}

// ObjectStorage stores uploaded files in named buckets.
type ObjectStorage interface {
	UploadObject(ctx context.Context, bucket, path, contentType string, data []byte) error
	PublicURL(bucket, path string) string
}

// RecordService is everything the store needs from the remote backend.
type RecordService interface {
	SessionSource
	CardTable
	ObjectStorage
}
