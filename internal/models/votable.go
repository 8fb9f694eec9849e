package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TargetType identifies which kind of votable entity a vote applies to.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

// ParseTargetType accepts the path segment used by the vote routes.
func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetPost, TargetComment:
		return TargetType(s), nil
	}
	return "", fmt.Errorf("unknown vote target %q", s)
}

type Direction int

const (
	Up   Direction = 1
	Down Direction = -1
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// VoteState is the relation between one user and one votable entity.
type VoteState string

const (
	VoteNone      VoteState = "none"
	VoteUpvoted   VoteState = "upvoted"
	VoteDownvoted VoteState = "downvoted"
)

// VoteSet is a set of user ids. Order never matters.
type VoteSet map[int64]struct{}

func NewVoteSet(ids ...int64) VoteSet {
	s := make(VoteSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s VoteSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s VoteSet) Len() int { return len(s) }

// IDs returns the members in ascending order.
func (s VoteSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s VoteSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *VoteSet) UnmarshalJSON(data []byte) error {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewVoteSet(ids...)
	return nil
}

// Votable holds the two vote sets of a post or comment and the score derived
// from them. Upvoters and Downvoters are always disjoint and
// Score == len(Upvoters) - len(Downvoters) after every mutation.
type Votable struct {
	Upvoters   VoteSet `gorm:"-" json:"-"`
	Downvoters VoteSet `gorm:"-" json:"-"`
	Score      int     `gorm:"not null;default:0;index" json:"score"`
}

// StateOf reports how userID currently votes on the entity.
func (v *Votable) StateOf(userID int64) VoteState {
	switch {
	case v.Upvoters.Has(userID):
		return VoteUpvoted
	case v.Downvoters.Has(userID):
		return VoteDownvoted
	}
	return VoteNone
}

// ApplyVote runs the toggle-vote transition for userID and returns the new
// state. Voting in the opposite direction switches sides, voting the same
// direction again cancels the vote.
func (v *Votable) ApplyVote(userID int64, dir Direction) VoteState {
	if v.Upvoters == nil {
		v.Upvoters = VoteSet{}
	}
	if v.Downvoters == nil {
		v.Downvoters = VoteSet{}
	}

	same, opposite := v.Upvoters, v.Downvoters
	if dir == Down {
		same, opposite = v.Downvoters, v.Upvoters
	}

	delete(opposite, userID)
	if same.Has(userID) {
		delete(same, userID)
	} else {
		same[userID] = struct{}{}
	}

	v.RecomputeScore()
	return v.StateOf(userID)
}

func (v *Votable) RecomputeScore() {
	v.Score = v.Upvoters.Len() - v.Downvoters.Len()
}

// VoteResult is what a vote operation reports back to its caller.
type VoteResult struct {
	Target    TargetType `json:"target"`
	TargetID  int64      `json:"target_id,string"`
	Score     int        `json:"score"`
	Upvotes   int        `json:"upvotes"`
	Downvotes int        `json:"downvotes"`
	State     VoteState  `json:"state"`
	Previous  VoteState  `json:"previous"`
}
