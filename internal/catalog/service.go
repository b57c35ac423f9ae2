// Package catalog manages the categories and services customers book.
package catalog

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-booking/internal/common"
)

const (
	keyPublicServices   = "catalog:services:public"
	keyPublicCategories = "catalog:categories:public"
	publicListLimit     = 500
)

// CategorySort whitelists category ordering.
var CategorySort = common.SortSpec{
	Columns: map[string]string{"id": "id", "name": "name", "created_at": "created_at"},
	Default: "name",
}

// ServiceSort whitelists service ordering.
var ServiceSort = common.SortSpec{
	Columns: map[string]string{
		"id":         "id",
		"name":       "name",
		"price":      "price",
		"duration":   "duration_minutes",
		"created_at": "created_at",
	},
	Default: "name",
}

// Service orchestrates catalog queries and caching of the public listings.
type Service struct {
	store  Store
	cache  *Cache
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  Store
	Cache  *Cache
	Logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{store: cfg.Store, cache: cfg.Cache, logger: cfg.Logger}
}

// CategoryInput is the admin payload for categories.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

// ServiceInput is the admin payload for services.
type ServiceInput struct {
	CategoryID      *int64  `json:"category_id" validate:"omitempty,gt=0"`
	Name            string  `json:"name" validate:"required,max=200"`
	Description     string  `json:"description" validate:"max=5000"`
	Price           float64 `json:"price" validate:"gte=0"`
	DurationMinutes int     `json:"duration_minutes" validate:"gte=5,lte=1440"`
	IsActive        *bool   `json:"is_active"`
}

// PublicCategories returns every category, served from cache when possible.
func (s *Service) PublicCategories(ctx context.Context) ([]Category, error) {
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, keyPublicCategories, &cached); err == nil && ok {
		return cached, nil
	}
	rows, _, err := s.store.ListCategories(ctx, common.ListParams{Page: 1, Limit: publicListLimit, Column: "name"})
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, keyPublicCategories, rows); err != nil {
		s.logger.Warn().Err(err).Msg("cache public categories")
	}
	return rows, nil
}

// PublicServices returns active services, served from cache when possible.
func (s *Service) PublicServices(ctx context.Context) ([]BookableService, error) {
	var cached []BookableService
	if ok, err := s.cache.GetJSON(ctx, keyPublicServices, &cached); err == nil && ok {
		return cached, nil
	}
	rows, _, err := s.store.ListServices(ctx, ServiceFilter{ActiveOnly: true}, common.ListParams{Page: 1, Limit: publicListLimit, Column: "name"})
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, keyPublicServices, rows); err != nil {
		s.logger.Warn().Err(err).Msg("cache public services")
	}
	return rows, nil
}

// ServiceName returns the display name used on checkout line items.
func (s *Service) ServiceName(ctx context.Context, id int64) (string, error) {
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return "", err
	}
	return svc.Name, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, keyPublicCategories, keyPublicServices); err != nil {
		s.logger.Warn().Err(err).Msg("invalidate catalog cache")
	}
}

// ListCategories returns a page of categories.
func (s *Service) ListCategories(ctx context.Context, p common.ListParams) ([]Category, int64, error) {
	return s.store.ListCategories(ctx, p)
}

// GetCategory returns one category.
func (s *Service) GetCategory(ctx context.Context, id int64) (Category, error) {
	return s.store.GetCategory(ctx, id)
}

// CreateCategory validates and inserts a category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := common.ValidateStruct(in); err != nil {
		return Category{}, err
	}
	out, err := s.store.CreateCategory(ctx, Category{Name: in.Name, Description: in.Description})
	if err == nil {
		s.invalidate(ctx)
	}
	return out, err
}

// UpdateCategory validates and replaces a category.
func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := common.ValidateStruct(in); err != nil {
		return Category{}, err
	}
	out, err := s.store.UpdateCategory(ctx, Category{ID: id, Name: in.Name, Description: in.Description})
	if err == nil {
		s.invalidate(ctx)
	}
	return out, err
}

// DeleteCategory removes a category; its services keep existing uncategorised.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	err := s.store.DeleteCategory(ctx, id)
	if err == nil {
		s.invalidate(ctx)
	}
	return err
}

// ListServices returns a page of services.
func (s *Service) ListServices(ctx context.Context, f ServiceFilter, p common.ListParams) ([]BookableService, int64, error) {
	return s.store.ListServices(ctx, f, p)
}

// GetService returns one service.
func (s *Service) GetService(ctx context.Context, id int64) (BookableService, error) {
	return s.store.GetService(ctx, id)
}

func (in ServiceInput) toModel(id int64) BookableService {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return BookableService{
		ID:              id,
		CategoryID:      in.CategoryID,
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		Price:           in.Price,
		DurationMinutes: in.DurationMinutes,
		IsActive:        active,
	}
}

// CreateService validates and inserts a service.
func (s *Service) CreateService(ctx context.Context, in ServiceInput) (BookableService, error) {
	if in.DurationMinutes == 0 {
		in.DurationMinutes = 60
	}
	if err := common.ValidateStruct(in); err != nil {
		return BookableService{}, err
	}
	out, err := s.store.CreateService(ctx, in.toModel(0))
	if err == nil {
		s.invalidate(ctx)
	}
	return out, err
}

// UpdateService validates and replaces a service.
func (s *Service) UpdateService(ctx context.Context, id int64, in ServiceInput) (BookableService, error) {
	if in.DurationMinutes == 0 {
		in.DurationMinutes = 60
	}
	if err := common.ValidateStruct(in); err != nil {
		return BookableService{}, err
	}
	out, err := s.store.UpdateService(ctx, in.toModel(id))
	if err == nil {
		s.invalidate(ctx)
	}
	return out, err
}

// DeleteService removes a service.
func (s *Service) DeleteService(ctx context.Context, id int64) error {
	err := s.store.DeleteService(ctx, id)
	if err == nil {
		s.invalidate(ctx)
	}
	return err
}
