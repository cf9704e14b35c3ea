// Package model provides data models for the discovery search service.
package model

import (
	"time"
)

// Entity categories.
const (
	EntityStartup  = "startup"
	EntityInvestor = "investor"
	EntityPerson   = "person"
	EntityEvent    = "event"
)

// EntityTypes lists every entity category in display order.
var EntityTypes = []string{EntityStartup, EntityInvestor, EntityPerson, EntityEvent}

// Entity is a record of the system of record. The service only reads it.
type Entity struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EntityType  string    `json:"entity_type" gorm:"type:varchar(16);index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description *string   `json:"description" gorm:"type:text"`
	Country     *string   `json:"country" gorm:"type:varchar(8);index"`
	Location    *string   `json:"location" gorm:"type:varchar(255)"`
	Industries  []string  `json:"industries" gorm:"type:text;serializer:json"`
	Topics      []string  `json:"topics" gorm:"type:text;serializer:json"`
	Stage       *string   `json:"stage" gorm:"type:varchar(32);index"`
	RoleTitle   *string   `json:"role_title" gorm:"type:varchar(255)"`
	CompanyName *string   `json:"company_name" gorm:"type:varchar(255)"`
	EventType   *string   `json:"event_type" gorm:"type:varchar(64)"`
	Speakers    []string  `json:"speakers" gorm:"type:text;serializer:json"`
	Active      bool      `json:"active_2026" gorm:"column:active_2026;index;default:true"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Entity.
func (Entity) TableName() string {
	return "entities"
}

// Link types of the entity graph.
const (
	LinkWorksAt      = "works_at"
	LinkFounded      = "founded"
	LinkPartnerAt    = "partner_at"
	LinkInvestsIn    = "invests_in"
	LinkSpeaksAt     = "speaks_at"
	LinkOrganizes    = "organizes"
	LinkAttends      = "attends"
	LinkVolunteersAt = "volunteers_at"
	LinkRelated      = "related"
)

// EntityLink is a directed edge between two entities.
type EntityLink struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	FromEntityID string    `json:"from_entity_id" gorm:"type:varchar(36);index;not null"`
	ToEntityID   string    `json:"to_entity_id" gorm:"type:varchar(36);index;not null"`
	Type         string    `json:"type" gorm:"column:type;type:varchar(32);not null"`
	RoleTitle    *string   `json:"role_title" gorm:"type:varchar(255)"`
	Context      *string   `json:"context" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for EntityLink.
func (EntityLink) TableName() string {
	return "entity_links"
}

// StringValue dereferences an optional column.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
