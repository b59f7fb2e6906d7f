package data

import "time"

// EventRecord is one committed engine event.
type EventRecord struct {
	ID         uint64    `gorm:"primaryKey"`
	Kind       string    `gorm:"size:32;index;not null"`
	ProposalID string    `gorm:"size:66;index"`
	Account    string    `gorm:"size:42;index;not null"`
	Choice     string    `gorm:"size:16"`
	Relayed    bool      `gorm:"default:false"`
	Status     string    `gorm:"size:16"`
	Error      string    `gorm:"type:text"`
	At         time.Time `gorm:"index;not null"`
}

func (EventRecord) TableName() string { return "dao_events" }

// ProposalRecord is the latest known state of a proposal. Status is the
// status at its last event; a voting window closing emits nothing, so
// readers that need the live status ask the engine.
type ProposalRecord struct {
	ID            string    `gorm:"primaryKey;size:66"`
	Proposer      string    `gorm:"size:42;index;not null"`
	ProposedAt    time.Time `gorm:"index;not null"`
	EligibleCount int       `gorm:"not null"`
	VotesFor      uint64    `gorm:"default:0"`
	VotesAgainst  uint64    `gorm:"default:0"`
	VotesAbstain  uint64    `gorm:"default:0"`
	Status        string    `gorm:"size:16;index"`
	UpdatedAt     time.Time
}

func (ProposalRecord) TableName() string { return "dao_proposals" }

// MemberRecord is a member and when it joined.
type MemberRecord struct {
	Address  string    `gorm:"primaryKey;size:42"`
	JoinedAt time.Time `gorm:"not null"`
}

func (MemberRecord) TableName() string { return "dao_members" }

var allModels = []interface{}{
	&EventRecord{}, &ProposalRecord{}, &MemberRecord{},
}
