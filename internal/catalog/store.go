package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/db"
)

// Category groups services.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BookableService is a service customers can book.
type BookableService struct {
	ID              int64     `json:"id"`
	CategoryID      *int64    `json:"category_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Price           float64   `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ServiceFilter narrows service listings.
type ServiceFilter struct {
	CategoryID int64
	ActiveOnly bool
	Query      string
}

// Store is the persistence contract for the catalog.
type Store interface {
	ListCategories(ctx context.Context, p common.ListParams) ([]Category, int64, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListServices(ctx context.Context, f ServiceFilter, p common.ListParams) ([]BookableService, int64, error)
	GetService(ctx context.Context, id int64) (BookableService, error)
	CreateService(ctx context.Context, s BookableService) (BookableService, error)
	UpdateService(ctx context.Context, s BookableService) (BookableService, error)
	DeleteService(ctx context.Context, id int64) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	DB db.DBTX
}

const (
	categoryColumns = `id, name, description, created_at, updated_at`
	serviceColumns  = `id, category_id, name, description, price::float8, duration_minutes, is_active, created_at, updated_at`
)

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanService(row pgx.Row) (BookableService, error) {
	var s BookableService
	err := row.Scan(&s.ID, &s.CategoryID, &s.Name, &s.Description, &s.Price, &s.DurationMinutes, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFoundError(what + " not found")
	}
	if common.IsUniqueViolation(err) {
		return common.ConflictError(what + " already exists")
	}
	return err
}

// ListCategories implements Store.
func (s PGStore) ListCategories(ctx context.Context, p common.ListParams) ([]Category, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM categories`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.DB.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY `+p.OrderBy()+` LIMIT $1 OFFSET $2`, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// GetCategory implements Store.
func (s PGStore) GetCategory(ctx context.Context, id int64) (Category, error) {
	c, err := scanCategory(s.DB.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	return c, notFound(err, "category")
}

// CreateCategory implements Store.
func (s PGStore) CreateCategory(ctx context.Context, c Category) (Category, error) {
	out, err := scanCategory(s.DB.QueryRow(ctx, `
		INSERT INTO categories (name, description) VALUES ($1, $2)
		RETURNING `+categoryColumns, c.Name, c.Description))
	return out, notFound(err, "category")
}

// UpdateCategory implements Store.
func (s PGStore) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	out, err := scanCategory(s.DB.QueryRow(ctx, `
		UPDATE categories SET name = $2, description = $3, updated_at = now()
		WHERE id = $1 RETURNING `+categoryColumns, c.ID, c.Name, c.Description))
	return out, notFound(err, "category")
}

// DeleteCategory implements Store.
func (s PGStore) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundError("category not found")
	}
	return nil
}

func (f ServiceFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if f.CategoryID > 0 {
		add("category_id = $%d", f.CategoryID)
	}
	if f.ActiveOnly {
		clauses = append(clauses, "is_active")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("name ILIKE '%%' || $%d || '%%'", q)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListServices implements Store.
func (s PGStore) ListServices(ctx context.Context, f ServiceFilter, p common.ListParams) ([]BookableService, int64, error) {
	where, args := f.where()
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM services`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM services%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		serviceColumns, where, p.OrderBy(), len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]BookableService, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, svc)
	}
	return out, total, rows.Err()
}

// GetService implements Store.
func (s PGStore) GetService(ctx context.Context, id int64) (BookableService, error) {
	svc, err := scanService(s.DB.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	return svc, notFound(err, "service")
}

// CreateService implements Store.
func (s PGStore) CreateService(ctx context.Context, svc BookableService) (BookableService, error) {
	out, err := scanService(s.DB.QueryRow(ctx, `
		INSERT INTO services (category_id, name, description, price, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+serviceColumns,
		svc.CategoryID, svc.Name, svc.Description, svc.Price, svc.DurationMinutes, svc.IsActive))
	return out, notFound(err, "service")
}

// UpdateService implements Store.
func (s PGStore) UpdateService(ctx context.Context, svc BookableService) (BookableService, error) {
	out, err := scanService(s.DB.QueryRow(ctx, `
		UPDATE services SET category_id = $2, name = $3, description = $4, price = $5,
			duration_minutes = $6, is_active = $7, updated_at = now()
		WHERE id = $1 RETURNING `+serviceColumns,
		svc.ID, svc.CategoryID, svc.Name, svc.Description, svc.Price, svc.DurationMinutes, svc.IsActive))
	return out, notFound(err, "service")
}

// DeleteService implements Store.
func (s PGStore) DeleteService(ctx context.Context, id int64) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundError("service not found")
	}
	return nil
}
