// Package domain contains the core data types for the medication schedule
// tracker. This package has zero external dependencies and is imported by
// every other internal package (tz, repo, service, handler).
package domain

import "time"

// Recipient is a person receiving care. A recipient owns zero or more
// medications. Timezone is an IANA zone name fixed at creation time: every
// materialized dose instant was computed against it.
type Recipient struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
