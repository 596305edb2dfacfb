package models

import (
	"time"

	"github.com/uptrace/bun"
)

type FeedbackLabel string

const (
	FeedbackConfirmed FeedbackLabel = "confirmed"
	FeedbackRejected  FeedbackLabel = "rejected"
	FeedbackPending   FeedbackLabel = "pending"
)

// Terminal reports whether the label can no longer be superseded.
func (l FeedbackLabel) Terminal() bool {
	return l == FeedbackConfirmed || l == FeedbackRejected
}

// FeedbackRecord is a user's verdict on a proposed pairing, keyed by pair id.
// Resubmission for the same pair overwrites until a terminal label lands.
type FeedbackRecord struct {
	bun.BaseModel `bun:"table:feedback_records,alias:fr"`

	ID      int64  `bun:"id,pk,autoincrement"`
	PairID  string `bun:"pair_id,notnull,unique"`
	ItemAID int64  `bun:"item_a_id,notnull"`
	ItemBID int64  `bun:"item_b_id,notnull"`

	Features       []float64     `bun:"features,type:jsonb"`
	PredictedScore float64       `bun:"predicted_score,notnull"`
	Label          FeedbackLabel `bun:"label,notnull"`
	LabeledBy      string        `bun:"labeled_by"`

	// Set once the record has been merged into the training corpus
	Committed bool `bun:"committed,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// TrainingPair is a row of the persistent training corpus.
type TrainingPair struct {
	bun.BaseModel `bun:"table:training_pairs,alias:tp"`

	ID       int64     `bun:"id,pk,autoincrement"`
	PairID   string    `bun:"pair_id,notnull,unique"`
	Features []float64 `bun:"features,type:jsonb"`
	Label    bool      `bun:"label,notnull"`

	// feedback | legacy
	Source    string    `bun:"source,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
