package client

import "github.com/google/uuid"

// newClientMessageID yields the idempotency key for one logical message.
// SessionCache mints one per turn and holds it across failed attempts, so
// the server dedups a retried submit onto the original user row.
func newClientMessageID() string {
	return uuid.NewString()
}
