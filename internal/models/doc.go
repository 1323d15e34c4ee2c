// Package models holds the records persisted by the store: users, receipts
// and the small value types they are built from.
package models
