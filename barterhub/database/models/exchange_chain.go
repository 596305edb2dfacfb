package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ChainStatus string

const (
	ChainPending   ChainStatus = "pending"
	ChainConfirmed ChainStatus = "confirmed"
	ChainExpired   ChainStatus = "expired"
)

func (s ChainStatus) Terminal() bool {
	return s == ChainConfirmed || s == ChainExpired
}

// ExchangeChain is a rotating multi-party exchange: each owner's offer
// satisfies the next owner's want, closing back to the first.
type ExchangeChain struct {
	bun.BaseModel `bun:"table:exchange_chains,alias:ec"`

	ID      int64  `bun:"id,pk,autoincrement"`
	ChainID string `bun:"chain_id,notnull,unique"`

	// Every participating item in rotation order, stored as JSONB. The
	// full set is persisted so reservation checks cover want listings too.
	ItemIDs  []int64  `bun:"item_ids,type:jsonb"`
	OwnerIDs []string `bun:"owner_ids,type:jsonb"`

	// Minimum of the constituent edge scores: one weak link vetoes the chain
	Score  float64     `bun:"score,notnull"`
	Status ChainStatus `bun:"status,notnull"`

	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Length returns the number of participants in the chain.
func (c *ExchangeChain) Length() int {
	return len(c.OwnerIDs)
}
