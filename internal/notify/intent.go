// Package notify queues manager notifications and delivers them by e-mail.
//
// The listing service only enqueues intents; a separate worker process pops
// them from Redis, resolves the recipient and sends the mail. Delivery is
// at-least-once.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind tells the worker how to route and render an intent.
type Kind string

const (
	// KindCatalogGap goes to one randomly chosen manager.
	KindCatalogGap Kind = "catalog_gap"
	// KindProfanity goes to the manager named in the intent.
	KindProfanity Kind = "profanity"
)

// Intent is one queued notification.
type Intent struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"kind"`
	Requester   string    `json:"requester"`
	BrandName   string    `json:"brand_name,omitempty"`
	ModelName   *string   `json:"model_name,omitempty"`
	Description string    `json:"description,omitempty"`
	ManagerID   uuid.UUID `json:"manager_id"`
	Attempt     int       `json:"attempt"`
	CreatedAt   time.Time `json:"created_at"`
}

// Dispatcher is what the listing pipeline calls. Implementations must not
// block on delivery.
type Dispatcher interface {
	NotifyCatalogGap(ctx context.Context, brandName string, modelName *string, requester string) error
	NotifyProfanity(ctx context.Context, description, requester string, managerID uuid.UUID) error
}

// CatalogGap builds a catalog-gap intent.
func CatalogGap(brandName string, modelName *string, requester string) Intent {
	return Intent{
		ID:        uuid.New(),
		Kind:      KindCatalogGap,
		Requester: requester,
		BrandName: brandName,
		ModelName: modelName,
		CreatedAt: time.Now().UTC(),
	}
}

// Profanity builds a profanity intent addressed to one manager.
func Profanity(description, requester string, managerID uuid.UUID) Intent {
	return Intent{
		ID:          uuid.New(),
		Kind:        KindProfanity,
		Requester:   requester,
		Description: description,
		ManagerID:   managerID,
		CreatedAt:   time.Now().UTC(),
	}
}
