package store

import "time"

// MatchRecord holds the latest persisted snapshot of a match plus the
// columns reporting queries filter on.
type MatchRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	Status     string `gorm:"size:16;index;not null"`
	Version    int    `gorm:"not null"`
	Innings    int    `gorm:"not null;default:0"`
	Reason     string `gorm:"size:32"`
	ResultKind string `gorm:"size:16"`
	Winner     string `gorm:"size:128"`
	Snapshot   []byte `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ScorerGrant allows a user to record balls for a match.
type ScorerGrant struct {
	MatchID   string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"primaryKey;size:64;index"`
	Role      string `gorm:"size:16;not null"`
	CreatedAt time.Time
}
