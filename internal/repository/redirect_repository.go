package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	customerrors "github.com/301redirect/redirector/internal/errors"
	"github.com/301redirect/redirector/internal/models"
)

// RedirectRepository is the subset of the redirect store the resolution path needs.
type RedirectRepository interface {
	Available() bool
	FindBySubdomain(ctx context.Context, subdomain string) (*models.Redirect, error)
	IncrementHits(ctx context.Context, subdomain string) error
	ListRedirects(ctx context.Context) ([]models.Redirect, error)
}

// GormRedirectRepository implements RedirectRepository with GORM.
// A nil db means the process started without a store connection.
type GormRedirectRepository struct {
	db *gorm.DB
}

// NewRedirectRepository creates a repository on top of db, which may be nil.
func NewRedirectRepository(db *gorm.DB) *GormRedirectRepository {
	return &GormRedirectRepository{db: db}
}

// Available reports whether a store connection was established at startup.
func (r *GormRedirectRepository) Available() bool {
	return r != nil && r.db != nil
}

// FindBySubdomain returns the record registered for subdomain.
func (r *GormRedirectRepository) FindBySubdomain(ctx context.Context, subdomain string) (*models.Redirect, error) {
	if !r.Available() {
		return nil, customerrors.ErrStoreUnavailable
	}

	var redirect models.Redirect
	if err := r.db.WithContext(ctx).Where("subdomain = ?", subdomain).First(&redirect).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, customerrors.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find redirect %q: %w", subdomain, err)
	}
	return &redirect, nil
}

// IncrementHits adds one to the hit counter of subdomain in a single UPDATE,
// so concurrent increments are never lost.
func (r *GormRedirectRepository) IncrementHits(ctx context.Context, subdomain string) error {
	if !r.Available() {
		return customerrors.ErrStoreUnavailable
	}

	res := r.db.WithContext(ctx).
		Model(&models.Redirect{}).
		Where("subdomain = ?", subdomain).
		UpdateColumn("hits", gorm.Expr("hits + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment hits for %q: %w", subdomain, res.Error)
	}
	if res.RowsAffected == 0 {
		return customerrors.ErrRecordNotFound
	}
	return nil
}

// ListRedirects returns every record, for the target monitor.
func (r *GormRedirectRepository) ListRedirects(ctx context.Context) ([]models.Redirect, error) {
	if !r.Available() {
		return nil, customerrors.ErrStoreUnavailable
	}

	var redirects []models.Redirect
	if err := r.db.WithContext(ctx).Order("id").Find(&redirects).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve redirects: %w", err)
	}
	return redirects, nil
}
