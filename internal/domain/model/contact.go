package model

import "time"

// Contact is an identity passively collected from observed messages and joins.
// The bot API cannot enumerate chat members, so contacts seen in updates are
// the only source of bulk-operation targets.
type Contact struct {
	ID         string
	TelegramID int64
	Username   string
	FirstName  string
	IsBot      bool
	OptedOut   bool
	Blocked    bool // target blocked the bot; permanent for this contact
	Inactive   bool // account deactivated or otherwise unreachable
	FirstSeen  time.Time
	LastSeen   time.Time
}

// Target is one identity a job must attempt to process. Ephemeral:
// materialized per job run, never persisted beyond aggregate counts.
type Target struct {
	ContactID   string
	TelegramID  int64
	DisplayName string
}

// Group is a chat the bot participates in, addressed by an operator-facing ref
// (the @username or the numeric chat id as text).
type Group struct {
	ID        string
	ChatID    int64
	Ref       string
	Title     string
	FirstSeen time.Time
}
