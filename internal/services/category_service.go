package services

import (
	"context"
	"fmt"
	"time"

	"expenseflow/internal/cache"
	"expenseflow/internal/core"
	"expenseflow/internal/log"
)

const forestKey = "forest"

// CategoryService manages the two-level category forest. Reads are served
// from a TTL cache that every mutation invalidates.
type CategoryService struct {
	store  CategoryStore
	lru    *cache.LRUCache[[]*core.CategoryNode]
	forest *cache.LoadingCache[[]*core.CategoryNode]
	logger *log.Logger
}

func NewCategoryService(store CategoryStore, ttl time.Duration) *CategoryService {
	lru := cache.NewLRUCache[[]*core.CategoryNode](1, ttl)
	return &CategoryService{
		store:  store,
		lru:    lru,
		forest: cache.NewLoadingCache[[]*core.CategoryNode](lru),
		logger: log.Default(log.ComponentCategory),
	}
}

// Cache exposes the forest cache so it can be registered for periodic cleanup.
func (s *CategoryService) Cache() cache.Cleaner { return s.lru }

// List returns the category forest, alphabetical at every level. Callers must
// not mutate the returned nodes; they are shared with the cache.
func (s *CategoryService) List(ctx context.Context) ([]*core.CategoryNode, error) {
	return s.forest.GetOrLoad(ctx, forestKey, func(ctx context.Context) ([]*core.CategoryNode, error) {
		cats, err := s.store.ListCategories(ctx)
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		s.logger.DebugContext(ctx, "Category forest loaded", "categories", len(cats))
		return core.BuildCategoryForest(cats), nil
	})
}

func (s *CategoryService) Get(ctx context.Context, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *CategoryService) Create(ctx context.Context, actor core.Actor, in core.CategoryInput) (core.Category, error) {
	if err := core.RequireRole(actor, core.RoleAdmin); err != nil {
		return core.Category{}, err
	}
	in, err := in.Normalize()
	if err != nil {
		return core.Category{}, err
	}
	if err := s.checkParent(ctx, 0, in.ParentID); err != nil {
		return core.Category{}, err
	}
	c, err := s.store.CreateCategory(ctx, in)
	if err != nil {
		return core.Category{}, err
	}
	s.forest.Invalidate()
	s.logger.InfoContext(ctx, "Category created",
		log.FieldCategoryID, c.ID, log.FieldActorID, actor.ID)
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, actor core.Actor, id int64, p core.CategoryPatch) (core.Category, error) {
	if err := core.RequireRole(actor, core.RoleAdmin); err != nil {
		return core.Category{}, err
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if err := c.Apply(p); err != nil {
		return core.Category{}, err
	}
	if err := s.checkParent(ctx, id, c.ParentID); err != nil {
		return core.Category{}, err
	}
	if c.ParentID != nil {
		if err := s.checkNoChildren(ctx, id); err != nil {
			return core.Category{}, err
		}
	}
	updated, err := s.store.UpdateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.forest.Invalidate()
	s.logger.InfoContext(ctx, "Category updated",
		log.FieldCategoryID, id, log.FieldActorID, actor.ID)
	return updated, nil
}

func (s *CategoryService) Delete(ctx context.Context, actor core.Actor, id int64) error {
	if err := core.RequireRole(actor, core.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.forest.Invalidate()
	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldCategoryID, id, log.FieldActorID, actor.ID)
	return nil
}

// FindOrCreate resolves a category by name, case-insensitively, creating it
// with the default color when missing. Used by import, which has already
// checked the actor.
func (s *CategoryService) FindOrCreate(ctx context.Context, name string) (core.Category, bool, error) {
	c, err := s.store.FindCategoryByName(ctx, name)
	if err == nil {
		return c, false, nil
	}
	if !core.IsNotFound(err) {
		return core.Category{}, false, err
	}
	in, err := core.CategoryInput{Name: name, Description: "Auto-created during import"}.Normalize()
	if err != nil {
		return core.Category{}, false, err
	}
	c, err = s.store.CreateCategory(ctx, in)
	if err != nil {
		return core.Category{}, false, err
	}
	s.forest.Invalidate()
	return c, true, nil
}

// checkParent enforces the two-level shape: the parent must exist, must not
// be the category itself and must be top level.
func (s *CategoryService) checkParent(ctx context.Context, id int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	if *parentID == id {
		return core.NewValidationError("invalid category", fmt.Errorf("a category cannot be its own parent"))
	}
	parent, err := s.store.GetCategory(ctx, *parentID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NotFound("parent category", *parentID)
		}
		return err
	}
	if parent.ParentID != nil {
		return core.NewValidationError("invalid category", fmt.Errorf("parent %q is itself a subcategory", parent.Name))
	}
	return nil
}

// checkNoChildren stops a category with subcategories from becoming a child.
func (s *CategoryService) checkNoChildren(ctx context.Context, id int64) error {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		if c.ParentID != nil && *c.ParentID == id {
			return core.NewValidationError("invalid category", fmt.Errorf("a category with subcategories cannot have a parent"))
		}
	}
	return nil
}
