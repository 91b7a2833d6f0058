// Package store exposes the Data Store facade consumed by the conversation
// engine. It wraps the repo layer with request-token idempotency: every
// write takes a caller-supplied token and records its outcome in the same
// transaction as the side effect, so a retried call replays the recorded
// result instead of appending twice. Reads pass straight through; the
// engine layers its TTL cache on top.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/repo"
)

// ErrNotOwned indicates a product referenced a location that does not
// belong to the owning supplier.
var ErrNotOwned = errors.New("location not owned by supplier")

// LocationDraft carries the fields of a not-yet-persisted location.
type LocationDraft struct {
	MarketName     string
	PavilionNumber string
	Phones         []string
}

// Profile bundles everything known about a supplier for read paths.
type Profile struct {
	Supplier     *domain.Supplier  `json:"supplier"`
	Locations    []domain.Location `json:"locations"`
	ProductCount int64             `json:"product_count"`
}

// Store is the single source of truth for persisted records. All writes go
// through; reads are cached by callers, never here.
type Store struct {
	db       *gorm.DB
	tokenTTL time.Duration
}

// New returns a store over db. tokenTTL bounds how long a request token
// can replay its recorded outcome.
func New(db *gorm.DB, tokenTTL time.Duration) *Store {
	return &Store{db: db, tokenTTL: tokenTTL}
}

// AppendSupplier persists a supplier together with all of its draft
// locations in one transaction. Retrying with the same token returns the
// originally created supplier without writing again.
func (s *Store) AppendSupplier(ctx context.Context, token string, chatID int64, displayName, contactName string, locs []LocationDraft) (*domain.Supplier, error) {
	if rec, err := repo.GetRequestToken(ctx, s.db, token, time.Now().UTC()); err == nil {
		return repo.GetSupplier(ctx, s.db, rec.RefID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	var sup *domain.Supplier
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateSupplier(ctx, tx, chatID, displayName, contactName)
		if err != nil {
			return err
		}
		for _, l := range locs {
			if _, err := repo.CreateLocation(ctx, tx, created.ID, l.MarketName, l.PavilionNumber, l.Phones); err != nil {
				return err
			}
		}
		if _, err := repo.CreateRequestToken(ctx, tx, token, domain.TokenScopeSupplier, created.ID, true, "", s.tokenTTL); err != nil {
			return err
		}
		sup = created
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost a race against a concurrent retry; replay its outcome.
		rec, terr := repo.GetRequestToken(ctx, s.db, token, time.Now().UTC())
		if terr != nil {
			return nil, err
		}
		return repo.GetSupplier(ctx, s.db, rec.RefID)
	}
	if err != nil {
		return nil, err
	}
	return sup, nil
}

// AppendLocation persists one additional location for an existing supplier,
// idempotent under the token.
func (s *Store) AppendLocation(ctx context.Context, token, supplierID string, draft LocationDraft) (*domain.Location, error) {
	if rec, err := repo.GetRequestToken(ctx, s.db, token, time.Now().UTC()); err == nil {
		return repo.GetLocation(ctx, s.db, rec.RefID, supplierID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	var loc *domain.Location
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateLocation(ctx, tx, supplierID, draft.MarketName, draft.PavilionNumber, draft.Phones)
		if err != nil {
			return err
		}
		if _, err := repo.CreateRequestToken(ctx, tx, token, domain.TokenScopeLocation, created.ID, true, "", s.tokenTTL); err != nil {
			return err
		}
		loc = created
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		rec, terr := repo.GetRequestToken(ctx, s.db, token, time.Now().UTC())
		if terr != nil {
			return nil, err
		}
		return repo.GetLocation(ctx, s.db, rec.RefID, supplierID)
	}
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// AppendProduct persists a recognized product. The product's location must
// belong to the same supplier; ErrNotOwned otherwise. Idempotent under the
// token.
func (s *Store) AppendProduct(ctx context.Context, token string, p *domain.Product) (*domain.Product, error) {
	if rec, err := repo.GetRequestToken(ctx, s.db, token, time.Now().UTC()); err == nil {
		return repo.GetProduct(ctx, s.db, rec.RefID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	var out *domain.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetLocation(ctx, tx, p.LocationID, p.SupplierID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotOwned
			}
			return err
		}
		created, err := repo.CreateProduct(ctx, tx, p)
		if err != nil {
			return err
		}
		if _, err := repo.CreateRequestToken(ctx, tx, token, domain.TokenScopeProduct, created.ID, true, "", s.tokenTTL); err != nil {
			return err
		}
		out = created
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		rec, terr := repo.GetRequestToken(ctx, s.db, token, time.Now().UTC())
		if terr != nil {
			return nil, err
		}
		return repo.GetProduct(ctx, s.db, rec.RefID)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryBySupplierID loads the supplier identified by the external chat id
// together with its locations and product count. repo.ErrNotFound when no
// supplier exists for the chat id.
func (s *Store) QueryBySupplierID(ctx context.Context, chatID int64) (*Profile, error) {
	sup, err := repo.GetSupplierByChatID(ctx, s.db, chatID)
	if err != nil {
		return nil, err
	}
	locs, err := repo.ListLocations(ctx, s.db, sup.ID)
	if err != nil {
		return nil, err
	}
	n, err := repo.CountProducts(ctx, s.db, sup.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{Supplier: sup, Locations: locs, ProductCount: n}, nil
}

// Locations lists a supplier's locations in creation order.
func (s *Store) Locations(ctx context.Context, supplierID string) ([]domain.Location, error) {
	return repo.ListLocations(ctx, s.db, supplierID)
}

// IncrementUsage performs the atomic check-and-increment for a daily quota.
// The counter only moves while it is below limit; allowed reports whether
// the action may proceed. A retried call carrying the same token replays
// the recorded verdict without touching the counter again.
func (s *Store) IncrementUsage(ctx context.Context, token string, userID int64, feature, day string, limit int) (allowed bool, err error) {
	if rec, err := repo.GetRequestToken(ctx, s.db, token, time.Now().UTC()); err == nil {
		return rec.Allowed, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return false, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.EnsureUsageRow(ctx, tx, userID, feature, day); err != nil {
			return err
		}
		ok, err := repo.IncrementUsageBelow(ctx, tx, userID, feature, day, limit)
		if err != nil {
			return err
		}
		allowed = ok
		_, err = repo.CreateRequestToken(ctx, tx, token, domain.TokenScopeUsage, feature, ok, "", s.tokenTTL)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		rec, terr := repo.GetRequestToken(ctx, s.db, token, time.Now().UTC())
		if terr != nil {
			return false, err
		}
		return rec.Allowed, nil
	}
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// UsageCount reads the current counter for (userID, feature, day); missing
// rows read as zero.
func (s *Store) UsageCount(ctx context.Context, userID int64, feature, day string) (int, error) {
	return repo.GetUsageCount(ctx, s.db, userID, feature, day)
}

// RecentProducts lists the supplier's newest products, at most limit.
func (s *Store) RecentProducts(ctx context.Context, supplierID string, limit int) ([]domain.Product, error) {
	return repo.ListProductsPage(ctx, s.db, supplierID, 0, limit)
}

// UpdateProductEnhancement fills the enhancement fields of an already
// persisted product. Called from the background enhancement task; failures
// there never roll back the product itself.
func (s *Store) UpdateProductEnhancement(ctx context.Context, productID, imageURL, description string) error {
	return repo.UpdateProductEnhancement(ctx, s.db, productID, imageURL, description)
}
