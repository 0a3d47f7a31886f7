package models

import "time"

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationCancelled InvitationStatus = "cancelled"
	InvitationExpired   InvitationStatus = "expired"
)

// Terminal reports whether no further transition is possible from s.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationCancelled || s == InvitationExpired
}

// Invitation is a single-use, time-bounded offer of membership sent to an
// email address.
type Invitation struct {
	ID        string           `json:"id" db:"id"`
	ProjectID string           `json:"project_id" db:"project_id"`
	Email     string           `json:"email" db:"email"`
	Role      Role             `json:"role" db:"role"`
	Token     string           `json:"token,omitempty" db:"token"`
	Status    InvitationStatus `json:"status" db:"status"`
	InvitedBy string           `json:"invited_by,omitempty" db:"invited_by"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	ExpiresAt time.Time        `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the invitation is past its expiry at now.
func (inv *Invitation) Expired(now time.Time) bool {
	return now.After(inv.ExpiresAt)
}

// EffectiveStatus derives the status seen by readers. Expiry is never
// persisted: a stored pending invitation past expires_at reads as expired.
func (inv *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if inv.Status == InvitationPending && inv.Expired(now) {
		return InvitationExpired
	}
	return inv.Status
}

// InvitationPreview is what an unauthenticated visitor of /invite/{token}
// may learn about an invitation.
type InvitationPreview struct {
	ProjectID   string           `json:"project_id"`
	ProjectName string           `json:"project_name"`
	Role        Role             `json:"role"`
	Status      InvitationStatus `json:"status"`
	ExpiresAt   time.Time        `json:"expires_at"`
}
