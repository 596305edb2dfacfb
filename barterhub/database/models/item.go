package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ItemKind string

const (
	ItemKindWant  ItemKind = "want"
	ItemKindOffer ItemKind = "offer"
)

type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID          int64    `bun:"id,pk,autoincrement"`
	ItemID      string   `bun:"item_id,notnull,unique"`
	OwnerID     string   `bun:"owner_id,notnull"`
	Kind        ItemKind `bun:"kind,notnull"`
	Category    string   `bun:"category,notnull"`
	Description string   `bun:"description,notnull"`
	Value       int64    `bun:"value,notnull,default:0"`

	// Days the exchange is valid for; 0 means a permanent swap
	DurationDays int  `bun:"duration_days,notnull,default:0"`
	Active       bool `bun:"active,notnull,default:true"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	Owner *User `bun:"rel:belongs-to,join:owner_id=user_id"`
}
