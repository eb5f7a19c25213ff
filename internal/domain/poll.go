package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Poll keeps per-option counters consistent with a map of each voter's
// single current choice: Votes[i] always equals the number of voters
// whose recorded choice is i.
type Poll struct {
	ID       string                `json:"id"`
	Question string                `json:"question"`
	Options  []string              `json:"options"`
	Votes    []int                 `json:"votes"`
	Voters   map[ParticipantID]int `json:"voters"`
}

func NewPoll(question string, options []string) *Poll {
	return &Poll{
		ID:       uuid.NewString(),
		Question: question,
		Options:  slices.Clone(options),
		Votes:    make([]int, len(options)),
		Voters:   make(map[ParticipantID]int),
	}
}

// Record moves the voter's tally to option. A participant has at most one
// recorded vote at a time; revoting the same option is a no-op.
func (p *Poll) Record(voter ParticipantID, option int) error {
	if option < 0 || option >= len(p.Options) {
		return ErrOptionOutOfRange
	}
	if prev, ok := p.Voters[voter]; ok {
		if prev == option {
			return nil
		}
		p.Votes[prev]--
	}
	p.Votes[option]++
	p.Voters[voter] = option
	return nil
}

// Clone returns a deep copy safe to hand out of a room's boundary.
func (p *Poll) Clone() *Poll {
	out := &Poll{
		ID:       p.ID,
		Question: p.Question,
		Options:  slices.Clone(p.Options),
		Votes:    slices.Clone(p.Votes),
		Voters:   make(map[ParticipantID]int, len(p.Voters)),
	}
	for k, v := range p.Voters {
		out.Voters[k] = v
	}
	return out
}
