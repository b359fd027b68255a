package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"expenseflow/internal/core"

	"github.com/BurntSushi/toml"
)

// CategorySeed is the TOML layout of a category seed file:
//
//	[[category]]
//	name = "Travel"
//	color = "#2563eb"
//
//	  [[category.subcategory]]
//	  name = "Flights"
type CategorySeed struct {
	Categories []SeedCategory `toml:"category"`
}

type SeedCategory struct {
	Name          string         `toml:"name"`
	Description   string         `toml:"description"`
	Color         string         `toml:"color"`
	Subcategories []SeedCategory `toml:"subcategory"`
}

// LoadCategorySeed decodes a seed file and rejects unknown keys.
func LoadCategorySeed(path string) (CategorySeed, error) {
	var seed CategorySeed
	md, err := toml.DecodeFile(path, &seed)
	if err != nil {
		return CategorySeed{}, fmt.Errorf("decode category seed %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return CategorySeed{}, fmt.Errorf("category seed %s: unknown keys %v", path, undecoded)
	}
	return seed, nil
}

// SeedCategories inserts the seed when the categories table is empty and
// reports how many categories were created. Subcategories deeper than one
// level are ignored.
func (r *Repository) SeedCategories(ctx context.Context, seed CategorySeed) (int, error) {
	created := 0
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&existing); err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		if existing > 0 {
			return nil
		}
		for _, top := range seed.Categories {
			parent, err := r.seedOne(ctx, tx, top, nil)
			if err != nil {
				return err
			}
			created++
			for _, sub := range top.Subcategories {
				if _, err := r.seedOne(ctx, tx, sub, &parent.ID); err != nil {
					return err
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		slog.InfoContext(ctx, "Seeded categories", "count", created)
	}
	return created, nil
}

func (r *Repository) seedOne(ctx context.Context, tx *sql.Tx, s SeedCategory, parentID *int64) (core.Category, error) {
	in, err := core.CategoryInput{Name: s.Name, Description: s.Description, Color: s.Color, ParentID: parentID}.Normalize()
	if err != nil {
		return core.Category{}, fmt.Errorf("seed category %q: %w", s.Name, err)
	}
	return r.createCategory(ctx, tx, in)
}
