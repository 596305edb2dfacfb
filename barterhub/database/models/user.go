package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     string    `bun:"user_id,notnull,unique"`
	TelegramID string    `bun:"telegram_id,notnull,unique"`
	Username   string    `bun:"username,notnull"`

	// Declared trade locations, stored as JSONB
	Locations []string `bun:"locations,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// SharesLocation reports whether two users declared at least one common location.
func SharesLocation(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, loc := range a {
		set[loc] = struct{}{}
	}
	for _, loc := range b {
		if _, ok := set[loc]; ok {
			return true
		}
	}
	return false
}
