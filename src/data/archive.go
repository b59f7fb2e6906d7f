package data

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/membership-dao/src/dao"
)

// Archive persists engine events and keeps a queryable copy of proposals
// and members. It is a dao.Observer.
type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

// Migrate creates or updates the archive tables. A failed migration is
// returned as is; archived history is never dropped to make room.
func (a *Archive) Migrate() error {
	if err := a.db.AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

func (a *Archive) Observe(ctx context.Context, ev dao.Event) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(eventRecord(ev)).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		switch {
		case ev.Kind == dao.EventMemberJoined:
			member := MemberRecord{Address: ev.Account.Hex(), JoinedAt: ev.At}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
				return fmt.Errorf("insert member: %w", err)
			}
		case !ev.ProposalID.IsZero():
			record := proposalRecord(ev)
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"votes_for", "votes_against", "votes_abstain", "status", "updated_at",
				}),
			}).Create(&record).Error; err != nil {
				return fmt.Errorf("upsert proposal: %w", err)
			}
		}
		return nil
	})
}

func eventRecord(ev dao.Event) *EventRecord {
	rec := &EventRecord{
		Kind:    string(ev.Kind),
		Account: ev.Account.Hex(),
		Relayed: ev.Relayed,
		Error:   ev.Error,
		At:      ev.At,
	}
	if !ev.ProposalID.IsZero() {
		rec.ProposalID = ev.ProposalID.Hex()
		rec.Status = ev.Status.String()
	}
	if ev.Choice.Valid() {
		rec.Choice = ev.Choice.String()
	}
	return rec
}

func proposalRecord(ev dao.Event) ProposalRecord {
	return ProposalRecord{
		ID:            ev.ProposalID.Hex(),
		Proposer:      ev.Proposer.Hex(),
		ProposedAt:    ev.CreatedAt,
		EligibleCount: ev.EligibleCount,
		VotesFor:      ev.Votes.For,
		VotesAgainst:  ev.Votes.Against,
		VotesAbstain:  ev.Votes.Abstain,
		Status:        ev.Status.String(),
	}
}

// Proposal returns the archived copy of id.
func (a *Archive) Proposal(ctx context.Context, id dao.ProposalID) (ProposalRecord, error) {
	var rec ProposalRecord
	err := a.db.WithContext(ctx).First(&rec, "id = ?", id.Hex()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("%s: %w", id, dao.ErrNotFound)
	}
	return rec, err
}

// RecentProposals lists proposals, newest first.
func (a *Archive) RecentProposals(ctx context.Context, limit int) ([]ProposalRecord, error) {
	var out []ProposalRecord
	err := a.db.WithContext(ctx).Order("proposed_at DESC").Order("id").Limit(clampLimit(limit)).Find(&out).Error
	return out, err
}

// ProposalEvents lists the history of id in commit order.
func (a *Archive) ProposalEvents(ctx context.Context, id dao.ProposalID, limit int) ([]EventRecord, error) {
	var out []EventRecord
	err := a.db.WithContext(ctx).
		Where("proposal_id = ?", id.Hex()).
		Order("id").
		Limit(clampLimit(limit)).
		Find(&out).Error
	return out, err
}

// Members lists archived members by join time.
func (a *Archive) Members(ctx context.Context) ([]MemberRecord, error) {
	var out []MemberRecord
	err := a.db.WithContext(ctx).Order("joined_at").Order("address").Find(&out).Error
	return out, err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}
