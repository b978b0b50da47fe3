package audit

import (
	"github.com/fundwit/go-commons/types"
)

// Entry is an immutable historical record of one applied transition.
// Entries are append-only: nothing in the service updates or deletes them.
type Entry struct {
	ID types.ID `json:"id"`

	MemberID  types.ID `json:"memberId"`
	Action    string   `json:"action"`
	ActorID   types.ID `json:"actorId"`
	ActorRole string   `json:"actorRole"`
	FromStage string   `json:"fromStage"`
	ToStage   string   `json:"toStage"`

	// display name of the actor, resolved at read time for trail views
	ActorName string `json:"actorName" gorm:"-"`

	OccurredAt types.Timestamp `json:"occurredAt" sql:"type:DATETIME(6) NOT NULL"`
	Notes      string          `json:"notes"`
}

func (e *Entry) TableName() string {
	return "audit_entries"
}
