// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"habersin/internal/cache"
	"habersin/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PageSize is the default number of items per cursor page.
const PageSize = 20

// MaxPageSize caps caller supplied limits.
const MaxPageSize = 100

// ErrDuplicate is returned when a unique key already exists.
var ErrDuplicate = errors.New("record already exists")

// DocumentStore groups the per-collection repositories that share one
// database handle.
type DocumentStore interface {
	Users() UserRepository
	Posts() PostRepository
	Reactions() ReactionRepository
	Comments() CommentRepository
	Reports() ReportRepository
	Notifications() NotificationRepository
	Views() ViewRepository

	// Atomic runs fn in a transaction. Repositories obtained from the store
	// passed to fn take part in it; fn's error rolls everything back.
	Atomic(ctx context.Context, fn func(tx DocumentStore) error) error
}

// Store is the gorm implementation of DocumentStore.
type Store struct {
	db *gorm.DB
	// staleKeys is set inside Atomic. Cache keys collected there are
	// dropped only after the outermost transaction commits.
	staleKeys *[]string
}

// NewStore returns a DocumentStore backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Users() UserRepository {
	return &userRepository{db: s.db, invalidate: s.invalidate}
}
func (s *Store) Posts() PostRepository {
	return &postRepository{db: s.db, invalidate: s.invalidate}
}
func (s *Store) Reactions() ReactionRepository         { return &reactionRepository{db: s.db} }
func (s *Store) Comments() CommentRepository           { return &commentRepository{db: s.db} }
func (s *Store) Reports() ReportRepository             { return &reportRepository{db: s.db} }
func (s *Store) Notifications() NotificationRepository { return &notificationRepository{db: s.db} }
func (s *Store) Views() ViewRepository                 { return &viewRepository{db: s.db} }

// invalidate drops cache keys now, or at commit when s is transactional.
func (s *Store) invalidate(ctx context.Context, keys ...string) {
	if s.staleKeys != nil {
		*s.staleKeys = append(*s.staleKeys, keys...)
		return
	}
	cache.Invalidate(ctx, keys...)
}

func (s *Store) Atomic(ctx context.Context, fn func(tx DocumentStore) error) error {
	outermost := s.staleKeys == nil
	staleKeys := s.staleKeys
	if outermost {
		staleKeys = &[]string{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, staleKeys: staleKeys})
	})
	if err == nil {
		if outermost {
			cache.Invalidate(ctx, *staleKeys...)
		}
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) || errors.Is(err, ErrDuplicate) {
		return err
	}
	return classify(err, "transaction", "")
}

// classify maps a gorm error onto the application error taxonomy.
func classify(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w", resource, ErrDuplicate)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w", resource, ErrDuplicate)
		}
		if isPermanentPgCode(pgErr.Code) {
			return models.NewInternalError(err)
		}
		return models.NewTransientStoreError(err)
	}

	return models.NewTransientStoreError(err)
}

// isPermanentPgCode reports SQLSTATE classes a retry cannot fix: data
// exceptions, integrity violations and syntax or access errors.
func isPermanentPgCode(code string) bool {
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case "22", "23", "42":
		return true
	}
	return false
}

// Cursor marks the last item of a page in created_at DESC, id DESC order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode renders the cursor as an opaque token.
func (c Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Encode. An empty token yields nil.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, models.NewValidationError("invalid cursor")
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, models.NewValidationError("invalid cursor")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, models.NewValidationError("invalid cursor")
	}
	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

// Page is one slice of an ordered listing.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return PageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// paginate applies the cursor predicate, ordering and a limit one larger
// than requested so the caller can tell whether another page exists.
func paginate(q *gorm.DB, table string, cursor *Cursor, limit int) *gorm.DB {
	if cursor != nil {
		q = q.Where(
			fmt.Sprintf("(%[1]s.created_at < ? OR (%[1]s.created_at = ? AND %[1]s.id < ?))", table),
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	return q.Order(table + ".created_at DESC").Order(table + ".id DESC").Limit(limit + 1)
}

func buildPage[T any](items []T, limit int, cursorOf func(T) Cursor) Page[T] {
	if len(items) <= limit {
		return Page[T]{Items: items}
	}
	items = items[:limit]
	return Page[T]{Items: items, NextCursor: cursorOf(items[len(items)-1]).Encode()}
}
