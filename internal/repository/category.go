package repository

import (
	"context"
	"database/sql"

	"agora_go/internal/model"
)

// CategoryRepository Category data access interface
type CategoryRepository interface {
	GetByID(ctx context.Context, cid int) (*model.Category, error)
	GetBySlug(ctx context.Context, slug string) (*model.Category, error)
	GetAll(ctx context.Context, includeHidden bool) ([]*model.Category, error)
	Slugs(ctx context.Context) ([]string, error)
	Create(ctx context.Context, cat *model.Category) (int, error)
	Update(ctx context.Context, cat *model.Category) error
	Delete(ctx context.Context, cid int) error
}

type categoryRepository struct {
	db Queryer
}

// NewCategoryRepository creates a CategoryRepository
func NewCategoryRepository(db Queryer) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetByID(ctx context.Context, cid int) (*model.Category, error) {
	var cat model.Category
	err := r.db.GetContext(ctx, &cat,
		"SELECT cid, name, slug, hidden, position, created_at, updated_at FROM category WHERE cid = ?", cid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &cat, nil
}

func (r *categoryRepository) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var cat model.Category
	err := r.db.GetContext(ctx, &cat,
		"SELECT cid, name, slug, hidden, position, created_at, updated_at FROM category WHERE slug = ?", slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &cat, nil
}

func (r *categoryRepository) GetAll(ctx context.Context, includeHidden bool) ([]*model.Category, error) {
	var cats []*model.Category
	q := "SELECT cid, name, slug, hidden, position, created_at, updated_at FROM category"
	if !includeHidden {
		q += " WHERE hidden = 0"
	}
	q += " ORDER BY position ASC, cid ASC"
	if err := r.db.SelectContext(ctx, &cats, q); err != nil {
		return nil, err
	}
	return cats, nil
}

// Slugs returns every taken category slug; the allocation scope is global.
func (r *categoryRepository) Slugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := r.db.SelectContext(ctx, &slugs, "SELECT slug FROM category"); err != nil {
		return nil, err
	}
	return slugs, nil
}

func (r *categoryRepository) Create(ctx context.Context, cat *model.Category) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO category (name, slug, hidden, position) VALUES (?, ?, ?, ?)",
		cat.Name, cat.Slug, cat.Hidden, cat.Position)
	if err != nil {
		return 0, err
	}
	id, _ := result.LastInsertId()
	return int(id), nil
}

func (r *categoryRepository) Update(ctx context.Context, cat *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE category SET name = ?, slug = ?, hidden = ?, position = ? WHERE cid = ?",
		cat.Name, cat.Slug, cat.Hidden, cat.Position, cat.Cid)
	return err
}

func (r *categoryRepository) Delete(ctx context.Context, cid int) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM category WHERE cid = ?", cid)
	return err
}
