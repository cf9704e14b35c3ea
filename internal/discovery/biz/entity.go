package biz

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/kart-io/discovery-search/internal/discovery/store"
	"github.com/kart-io/discovery-search/internal/model"
	errs "github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/infra/logger"
)

// EntityView is the public shape of an entity.
type EntityView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	EntityType  string   `json:"entity_type"`
	Description *string  `json:"description"`
	Country     *string  `json:"country"`
	Location    *string  `json:"location"`
	Industries  []string `json:"industries"`
	Topics      []string `json:"topics"`
	Stage       *string  `json:"stage"`
	RoleTitle   *string  `json:"role_title"`
	CompanyName *string  `json:"company_name"`
	EventType   *string  `json:"event_type"`
	Speakers    []string `json:"speakers"`
}

// Connection is a related entity seen from the detail page.
type Connection struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	EntityType string  `json:"entity_type,omitempty"`
	Type       string  `json:"type"`
	Role       *string `json:"role"`
	Context    *string `json:"context"`
}

// Connections groups the links of an entity. A link may appear in more than
// one group.
type Connections struct {
	Team      []Connection `json:"team"`
	Investors []Connection `json:"investors"`
	Portfolio []Connection `json:"portfolio"`
	Events    []Connection `json:"events"`
	Speakers  []Connection `json:"speakers"`
	Related   []Connection `json:"related"`
}

// EntityDetail is returned by GET /v1/entity/:id.
type EntityDetail struct {
	Entity      EntityView  `json:"entity"`
	Connections Connections `json:"connections"`
}

// EntityService serves entity detail views.
type EntityService struct {
	entities store.EntityStore
}

// NewEntityService creates an EntityService.
func NewEntityService(entities store.EntityStore) *EntityService {
	return &EntityService{entities: entities}
}

// Get returns the entity with its grouped connections. When the link table
// does not exist the groups are empty.
func (s *EntityService) Get(ctx context.Context, id string) (*EntityDetail, error) {
	e, err := s.entities.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.ErrEntityNotFound
		}
		return nil, errs.ErrEntityLoadFailed.WithCause(err)
	}

	detail := &EntityDetail{Entity: toView(e), Connections: emptyConnections()}

	conns, err := s.entities.ListLinks(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrLinksUnavailable) {
			logger.GetLogger(ctx).Warnw("entity_links table missing, returning entity without connections", "id", id)
			return detail, nil
		}
		return nil, errs.ErrEntityLoadFailed.WithCause(err)
	}

	detail.Connections = GroupConnections(e, conns)
	return detail, nil
}

func toView(e *model.Entity) EntityView {
	orEmpty := func(v []string) []string {
		if v == nil {
			return []string{}
		}
		return v
	}
	return EntityView{
		ID:          e.ID,
		Name:        e.Name,
		EntityType:  e.EntityType,
		Description: e.Description,
		Country:     e.Country,
		Location:    e.Location,
		Industries:  orEmpty(e.Industries),
		Topics:      orEmpty(e.Topics),
		Stage:       e.Stage,
		RoleTitle:   e.RoleTitle,
		CompanyName: e.CompanyName,
		EventType:   e.EventType,
		Speakers:    orEmpty(e.Speakers),
	}
}

func emptyConnections() Connections {
	return Connections{
		Team:      []Connection{},
		Investors: []Connection{},
		Portfolio: []Connection{},
		Events:    []Connection{},
		Speakers:  []Connection{},
		Related:   []Connection{},
	}
}

// GroupConnections buckets the links of base into display groups, each
// sorted by the other entity's name.
func GroupConnections(base *model.Entity, conns []*store.Connection) Connections {
	out := emptyConnections()

	for _, c := range conns {
		item := Connection{
			ID:      c.OtherID,
			Name:    c.OtherName,
			Type:    c.Link.Type,
			Role:    c.Link.RoleTitle,
			Context: c.Link.Context,
		}
		typed := item
		typed.EntityType = c.OtherType

		inbound := c.Link.ToEntityID == base.ID
		outbound := c.Link.FromEntityID == base.ID

		if c.OtherType == model.EntityPerson && inbound &&
			oneOf(c.Link.Type, model.LinkWorksAt, model.LinkFounded, model.LinkPartnerAt) {
			out.Team = append(out.Team, item)
		}
		if base.EntityType == model.EntityStartup && c.OtherType == model.EntityInvestor &&
			c.Link.Type == model.LinkInvestsIn && inbound {
			out.Investors = append(out.Investors, item)
		}
		if base.EntityType == model.EntityInvestor && c.OtherType == model.EntityStartup &&
			c.Link.Type == model.LinkInvestsIn && outbound {
			out.Portfolio = append(out.Portfolio, item)
		}
		if c.OtherType == model.EntityEvent &&
			oneOf(c.Link.Type, model.LinkSpeaksAt, model.LinkOrganizes, model.LinkAttends, model.LinkVolunteersAt) {
			out.Events = append(out.Events, item)
		}
		if base.EntityType == model.EntityEvent && inbound &&
			oneOf(c.Link.Type, model.LinkSpeaksAt, model.LinkOrganizes) {
			out.Speakers = append(out.Speakers, typed)
		}
		if c.Link.Type == model.LinkRelated {
			out.Related = append(out.Related, typed)
		}
	}

	for _, group := range []*[]Connection{
		&out.Team, &out.Investors, &out.Portfolio, &out.Events, &out.Speakers, &out.Related,
	} {
		slices.SortStableFunc(*group, func(a, b Connection) int {
			return strings.Compare(a.Name, b.Name)
		})
	}
	return out
}

func oneOf(v string, set ...string) bool {
	return slices.Contains(set, v)
}
