package models

import (
	"time"

	"github.com/uptrace/bun"
)

type MatchStatus string

const (
	MatchProposed  MatchStatus = "proposed"
	MatchConfirmed MatchStatus = "confirmed"
	MatchExpired   MatchStatus = "expired"
)

// Terminal reports whether no further status transition is allowed.
func (s MatchStatus) Terminal() bool {
	return s == MatchConfirmed || s == MatchExpired
}

// Match is a reciprocal two-party trade: owner A gives ItemA satisfying B's
// want listing WantB, and owner B gives ItemB satisfying A's want WantA.
// The score is the weaker of the two directional scores.
type Match struct {
	bun.BaseModel `bun:"table:matches,alias:m"`

	ID       int64       `bun:"id,pk,autoincrement"`
	MatchID  string      `bun:"match_id,notnull,unique"`
	ItemAID  int64       `bun:"item_a_id,notnull"`
	ItemBID  int64       `bun:"item_b_id,notnull"`
	WantAID  int64       `bun:"want_a_id,notnull"`
	WantBID  int64       `bun:"want_b_id,notnull"`
	OwnerAID string      `bun:"owner_a_id,notnull"`
	OwnerBID string      `bun:"owner_b_id,notnull"`
	Category string      `bun:"category,notnull"`
	Score    float64     `bun:"score,notnull"`
	Status   MatchStatus `bun:"status,notnull"`

	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	ItemA *Item `bun:"rel:belongs-to,join:item_a_id=id"`
	ItemB *Item `bun:"rel:belongs-to,join:item_b_id=id"`
}

// ItemIDs returns every item the match reserves: both offered items and both
// satisfied want listings.
func (m *Match) ItemIDs() []int64 {
	return []int64{m.ItemAID, m.ItemBID, m.WantAID, m.WantBID}
}
