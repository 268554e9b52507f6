package entity

import (
	"time"

	"github.com/gofrs/uuid"
)

// App is an installed workspace application (bot or incoming-webhook
// integration). CallbackURL is where outbox deliveries are POSTed; a nil
// callback makes every delivery terminally failed.
type App struct {
	ID          uuid.UUID `db:"id"`
	WorkspaceID uuid.UUID `db:"workspace_id"`
	Name        string    `db:"name"`
	CallbackURL *string   `db:"callback_url"`
	ManifestURL *string   `db:"manifest_url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// AppManifest is the document fetched from App.ManifestURL on (re)install.
type AppManifest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	CallbackURL string `json:"callback_url" validate:"omitempty,url"`
}
