package dao

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Member is an account that bought a membership.
type Member struct {
	Account  common.Address
	JoinedAt time.Time
}

// Registry records members. Membership is acquired once and never revoked.
// The engine serializes access.
type Registry struct {
	members map[common.Address]Member
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[common.Address]Member)}
}

func (r *Registry) add(account common.Address, at time.Time) error {
	if _, ok := r.members[account]; ok {
		return ErrAlreadyMember
	}
	r.members[account] = Member{Account: account, JoinedAt: at}
	return nil
}

// IsMember reports whether account has joined at any time.
func (r *Registry) IsMember(account common.Address) bool {
	_, ok := r.members[account]
	return ok
}

// IsMemberAsOf reports whether account joined strictly before ts.
func (r *Registry) IsMemberAsOf(account common.Address, ts time.Time) bool {
	m, ok := r.members[account]
	return ok && m.JoinedAt.Before(ts)
}

// Get returns the member record of account.
func (r *Registry) Get(account common.Address) (Member, bool) {
	m, ok := r.members[account]
	return m, ok
}

// Count is the current number of members.
func (r *Registry) Count() int {
	return len(r.members)
}
