package schema

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/apperrors"
)

// Catalog serves table descriptors for the configured allow-list, refreshing
// them from the database when the cached snapshot goes stale.
type Catalog struct {
	introspector Introspector
	tables       []string
	ttl          time.Duration
	now          func() time.Time
	logger       *zap.Logger

	mu        sync.RWMutex
	snapshot  []Descriptor
	expiresAt time.Time
}

// NewCatalog builds a catalog over the allow-listed tables. A zero ttl
// disables caching, so every Snapshot call introspects.
func NewCatalog(introspector Introspector, tables []string, ttl time.Duration, logger *zap.Logger) *Catalog {
	return &Catalog{
		introspector: introspector,
		tables:       tables,
		ttl:          ttl,
		now:          time.Now,
		logger:       logger.Named("schema"),
	}
}

// Snapshot returns the current descriptors, refreshing from the database if
// the cache has expired. Tables that fail introspection are logged and
// skipped; only a fully empty refresh is an error, and in that case a stale
// cached snapshot is preferred over failing the caller.
//
// Refresh is check-then-set: the rebuild runs without the lock, concurrent
// refreshes are tolerated and the last writer wins. A rebuild is pure, so
// duplicated work is cheaper than serializing requests behind one.
func (c *Catalog) Snapshot(ctx context.Context) ([]Descriptor, error) {
	c.mu.RLock()
	snapshot, expiresAt := c.snapshot, c.expiresAt
	c.mu.RUnlock()

	if snapshot != nil && c.now().Before(expiresAt) {
		return snapshot, nil
	}

	descriptors, err := c.refresh(ctx)
	if err != nil {
		if snapshot != nil {
			c.logger.Warn("schema refresh failed, serving stale snapshot", zap.Error(err))
			return snapshot, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = descriptors
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()
	return descriptors, nil
}

// Describe returns the descriptor for one table from the current snapshot.
func (c *Catalog) Describe(ctx context.Context, table string) (Descriptor, error) {
	descriptors, err := c.Snapshot(ctx)
	if err != nil {
		return Descriptor{}, err
	}
	for _, d := range descriptors {
		if d.Table == table {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("table %q: %w", table, apperrors.ErrNotFound)
}

// Invalidate drops the cached snapshot so the next Snapshot call refreshes.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	c.expiresAt = time.Time{}
}

func (c *Catalog) refresh(ctx context.Context) ([]Descriptor, error) {
	fks, err := c.introspector.ForeignKeys(ctx, c.tables)
	if err != nil {
		c.logger.Warn("foreign key introspection failed", zap.Error(err))
		fks = nil
	}

	descriptors := make([]Descriptor, 0, len(c.tables))
	for _, table := range c.tables {
		columns, err := c.introspector.Columns(ctx, table)
		if err != nil {
			c.logger.Warn("table introspection failed",
				zap.String("table", table),
				zap.Error(err))
			continue
		}
		if len(columns) == 0 {
			c.logger.Warn("allow-listed table not found in database",
				zap.String("table", table))
			continue
		}
		descriptors = append(descriptors, Descriptor{
			Table:       table,
			Columns:     columns,
			ForeignKeys: fks[table],
		})
	}

	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no allow-listed tables could be introspected: %w", apperrors.ErrSchemaUnavailable)
	}

	c.logger.Debug("schema snapshot refreshed",
		zap.Int("tables", len(descriptors)))
	return descriptors, nil
}
