package models

import (
	"time"
)

// Vote is one member of a vote set in the relational store. A row with
// Value 1 puts the user in the upvoters set, -1 in the downvoters set; no row
// means no vote.
type Vote struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TargetType TargetType `gorm:"size:10;not null;uniqueIndex:idx_vote_target_user" json:"target_type"`
	TargetID   int64      `gorm:"not null;uniqueIndex:idx_vote_target_user" json:"target_id,string"`
	UserID     int64      `gorm:"not null;uniqueIndex:idx_vote_target_user;index" json:"user_id,string"`
	Value      int        `gorm:"not null" json:"value"` // 1 or -1
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// VotableFromVotes rebuilds the vote sets of one entity from its rows.
func VotableFromVotes(votes []Vote) Votable {
	v := Votable{Upvoters: VoteSet{}, Downvoters: VoteSet{}}
	for _, vote := range votes {
		if vote.Value > 0 {
			v.Upvoters[vote.UserID] = struct{}{}
		} else if vote.Value < 0 {
			v.Downvoters[vote.UserID] = struct{}{}
		}
	}
	v.RecomputeScore()
	return v
}
