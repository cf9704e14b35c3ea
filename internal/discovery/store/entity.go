package store

import (
	"context"
	"errors"
	"slices"

	"gorm.io/gorm"

	"github.com/kart-io/discovery-search/internal/model"
)

const activeColumn = "active_2026"

type entities struct {
	db *gorm.DB
}

func newEntities(db *gorm.DB) *entities {
	return &entities{db}
}

func (e *entities) active(ctx context.Context) *gorm.DB {
	return e.db.WithContext(ctx).Model(&model.Entity{}).Where(activeColumn+" = ?", true)
}

// ListActive returns every active entity ordered by id.
func (e *entities) ListActive(ctx context.Context) ([]*model.Entity, error) {
	var list []*model.Entity
	if err := e.active(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Get retrieves an entity by id, active or not.
func (e *entities) Get(ctx context.Context, id string) (*model.Entity, error) {
	var entity model.Entity
	if err := e.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entity, nil
}

// ListLinks returns both directions of links for id.
func (e *entities) ListLinks(ctx context.Context, id string) ([]*Connection, error) {
	db := e.db.WithContext(ctx)
	if !db.Migrator().HasTable(&model.EntityLink{}) {
		return nil, ErrLinksUnavailable
	}

	var links []model.EntityLink
	err := db.Where("from_entity_id = ? OR to_entity_id = ?", id, id).
		Order("id").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []*Connection{}, nil
	}

	otherIDs := make([]string, 0, len(links))
	for _, l := range links {
		other := otherSide(l, id)
		if !slices.Contains(otherIDs, other) {
			otherIDs = append(otherIDs, other)
		}
	}

	var others []model.Entity
	err = db.Select("id", "name", "entity_type").
		Where("id IN ?", otherIDs).
		Find(&others).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Entity, len(others))
	for _, o := range others {
		byID[o.ID] = o
	}

	conns := make([]*Connection, 0, len(links))
	for _, l := range links {
		other, ok := byID[otherSide(l, id)]
		if !ok {
			continue
		}
		conns = append(conns, &Connection{
			Link:      l,
			OtherID:   other.ID,
			OtherName: other.Name,
			OtherType: other.EntityType,
		})
	}
	return conns, nil
}

func otherSide(l model.EntityLink, id string) string {
	if l.FromEntityID == id {
		return l.ToEntityID
	}
	return l.FromEntityID
}

// Industries returns the distinct industries of active entities, sorted.
// Industries are stored as a JSON array, so the set is built here.
func (e *entities) Industries(ctx context.Context) ([]string, error) {
	var rows []model.Entity
	if err := e.active(ctx).Select("industries").Find(&rows).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range rows {
		for _, ind := range r.Industries {
			if ind == "" {
				continue
			}
			if _, ok := seen[ind]; ok {
				continue
			}
			seen[ind] = struct{}{}
			out = append(out, ind)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Countries returns the distinct countries of active entities, sorted.
func (e *entities) Countries(ctx context.Context) ([]string, error) {
	return e.distinct(ctx, "country")
}

// Stages returns the distinct stages of active entities, sorted.
func (e *entities) Stages(ctx context.Context) ([]string, error) {
	return e.distinct(ctx, "stage")
}

func (e *entities) distinct(ctx context.Context, column string) ([]string, error) {
	out := []string{}
	err := e.active(ctx).
		Where(column + " IS NOT NULL").
		Distinct().
		Order(column).
		Pluck(column, &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
