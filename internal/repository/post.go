package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"habersin/internal/cache"
	"habersin/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counter columns that may be adjusted atomically.
const (
	CounterLikes    = "likes"
	CounterDislikes = "dislikes"
	CounterViews    = "views"
)

// Decision is the set of audit fields written by a moderation transition.
type Decision struct {
	Status      models.PostStatus
	Note        string
	ModeratedBy string
	ModeratedAt time.Time
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// GetForUpdate reads the post and row-locks it until the surrounding
	// transaction ends. Without a transaction the lock is released at once.
	GetForUpdate(ctx context.Context, id string) (*models.Post, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Update writes the named columns of post.
	Update(ctx context.Context, post *models.Post, columns ...string) error
	Delete(ctx context.Context, id string) error

	ListPublished(ctx context.Context, cursor *Cursor, limit int) (Page[models.Post], error)
	ListByAuthor(ctx context.Context, authorID string, cursor *Cursor, limit int) (Page[models.Post], error)
	ListByStatus(ctx context.Context, status models.PostStatus, limit int) ([]models.Post, error)
	Search(ctx context.Context, tokens []string, limit int) ([]models.Post, error)

	// Transition moves a post from one status to another only if it is still
	// in from. It reports whether a row changed.
	Transition(ctx context.Context, id string, from models.PostStatus, d Decision) (bool, error)
	// AdjustCounters adds deltas to counter columns in one statement.
	// Decrements stop at zero.
	AdjustCounters(ctx context.Context, id string, deltas map[string]int64) error
}

type postRepository struct {
	db         *gorm.DB
	invalidate func(ctx context.Context, keys ...string)
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return classify(r.db.WithContext(ctx).Create(post).Error, "Post", post.ID)
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, classify(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetForUpdate(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, classify(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, classify(err, "Post", id)
	}
	return count > 0, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post, columns ...string) error {
	res := r.db.WithContext(ctx).Model(post).Select(columns).Updates(post)
	if res.Error != nil {
		return classify(res.Error, "Post", post.ID)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	r.invalidate(ctx, cache.PostKey(post.ID))
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return classify(res.Error, "Post", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.invalidate(ctx, cache.PostKey(id))
	return nil
}

func postCursor(p models.Post) Cursor {
	return Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

func (r *postRepository) ListPublished(ctx context.Context, cursor *Cursor, limit int) (Page[models.Post], error) {
	limit = clampLimit(limit)
	var posts []models.Post
	q := r.db.WithContext(ctx).Model(&models.Post{}).Where("posts.status IN ?", models.PublishedStatuses)
	if err := paginate(q, "posts", cursor, limit).Find(&posts).Error; err != nil {
		return Page[models.Post]{}, classify(err, "Post", "")
	}
	return buildPage(posts, limit, postCursor), nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string, cursor *Cursor, limit int) (Page[models.Post], error) {
	limit = clampLimit(limit)
	var posts []models.Post
	q := r.db.WithContext(ctx).Model(&models.Post{}).Where("posts.author_id = ?", authorID)
	if err := paginate(q, "posts", cursor, limit).Find(&posts).Error; err != nil {
		return Page[models.Post]{}, classify(err, "Post", "")
	}
	return buildPage(posts, limit, postCursor), nil
}

func (r *postRepository) ListByStatus(ctx context.Context, status models.PostStatus, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&posts).Error
	return posts, classify(err, "Post", "")
}

// tokenPattern matches one element of the JSON encoded search_tokens array.
func tokenPattern(token string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `"`, "")
	return `%"` + r.Replace(token) + `"%`
}

func (r *postRepository) Search(ctx context.Context, tokens []string, limit int) ([]models.Post, error) {
	if len(tokens) == 0 {
		return []models.Post{}, nil
	}
	q := r.db.WithContext(ctx).Where("status IN ?", models.PublishedStatuses)
	for _, tok := range tokens {
		q = q.Where(`search_tokens LIKE ? ESCAPE '\'`, tokenPattern(tok))
	}
	var posts []models.Post
	err := q.Order("created_at DESC").Order("id DESC").Limit(clampLimit(limit)).Find(&posts).Error
	return posts, classify(err, "Post", "")
}

func (r *postRepository) Transition(ctx context.Context, id string, from models.PostStatus, d Decision) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":          d.Status,
			"moderation_note": d.Note,
			"moderated_by":    d.ModeratedBy,
			"moderated_at":    d.ModeratedAt,
			"updated_at":      d.ModeratedAt,
		})
	if res.Error != nil {
		return false, classify(res.Error, "Post", id)
	}
	if res.RowsAffected > 0 {
		r.invalidate(ctx, cache.PostKey(id))
	}
	return res.RowsAffected > 0, nil
}

func counterExpr(column string, delta int64) (interface{}, error) {
	switch column {
	case CounterLikes, CounterDislikes, CounterViews:
	default:
		return nil, fmt.Errorf("unknown counter column %q", column)
	}
	if delta >= 0 {
		return gorm.Expr(column+" + ?", delta), nil
	}
	return gorm.Expr(fmt.Sprintf("CASE WHEN %[1]s >= ? THEN %[1]s - ? ELSE 0 END", column), -delta, -delta), nil
}

func (r *postRepository) AdjustCounters(ctx context.Context, id string, deltas map[string]int64) error {
	updates := make(map[string]interface{}, len(deltas))
	for column, delta := range deltas {
		if delta == 0 {
			continue
		}
		expr, err := counterExpr(column, delta)
		if err != nil {
			return models.NewInternalError(err)
		}
		updates[column] = expr
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return classify(res.Error, "Post", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.invalidate(ctx, cache.PostKey(id))
	return nil
}
