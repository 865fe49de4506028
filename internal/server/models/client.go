package models

import "time"

// Client is a registered device of a user. PushToken is the address used for
// wake-up notifications. LockExpire is nil when the client holds no lease.
type Client struct {
	ID             int64
	UserID         int64
	PushToken      string
	LastSync       time.Time
	LockExpire     *time.Time
	ChangesPending bool
}
