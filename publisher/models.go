package publisher

import (
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/types"
)

type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
)

// Publisher owns or represents websites and sells offerings on them.
// A shadow publisher is an unclaimed placeholder created before the real
// owner signs up.
type Publisher struct {
	types.Entity
	ID                 id.PublisherID     `json:"id"`
	Email              string             `json:"email"`
	Name               string             `json:"name"`
	AccountStatus      AccountStatus      `json:"account_status"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	IsShadow           bool               `json:"is_shadow"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
}

// IsActive reports whether the publisher account can take work.
func (p *Publisher) IsActive() bool {
	return p.AccountStatus == AccountActive
}
