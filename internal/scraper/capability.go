package scraper

import (
	"context"

	"github.com/insight-scraper/internal/models"
)

// Capability is the external scrape client. Implementations wrap the
// actual network client; the coordinator only needs these three
// operations and treats every failure as input to the penalty policy.
type Capability interface {
	Login(ctx context.Context, username, password, email string) error
	Profile(ctx context.Context, handle string) (*models.Profile, error)
	Timeline(ctx context.Context, handle string, limit int) ([]models.Tweet, error)
}

// PasswordDeriver derives an account's password from its credentials.
// Must be pure and deterministic.
type PasswordDeriver func(username, email string) (string, error)
