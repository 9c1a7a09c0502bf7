package model

import "time"

// IsActive reports whether votes are still accepted at now.
func (p *Poll) IsActive(now time.Time) bool {
	if p.DaysToVote <= 0 {
		return true
	}
	return !now.After(p.CreatedAt.Add(time.Duration(p.DaysToVote) * 24 * time.Hour))
}

func (p *Poll) AllowsMultipleChoices() bool {
	return p.MaxChoicesPerUser != 1
}

// Percentage truncates towards zero, like the legacy templates did.
func Percentage(optionVotes, totalVotes int64) int {
	if totalVotes == 0 {
		return 0
	}
	return int(float64(optionVotes) / float64(totalVotes) * 100)
}

// BarLength is the width in pixels of the result bar for a percentage.
func BarLength(percentage int) int {
	if percentage == 0 {
		return 0
	}
	p := float64(percentage)
	return int(2*p + 0.05*2*p)
}

// OptionResult is one row of a poll tally.
type OptionResult struct {
	Option     *PollOption `json:"option"`
	Votes      int64       `json:"votes"`
	Percentage int         `json:"percentage"`
	BarLength  int         `json:"barLength"`
}

// Tally turns per-option vote counts into results, keeping the option order.
func Tally(options []*PollOption, votes map[int64]int64) (results []*OptionResult, total int64) {
	for _, o := range options {
		total += votes[o.ID]
	}
	results = make([]*OptionResult, 0, len(options))
	for _, o := range options {
		pct := Percentage(votes[o.ID], total)
		results = append(results, &OptionResult{
			Option:     o,
			Votes:      votes[o.ID],
			Percentage: pct,
			BarLength:  BarLength(pct),
		})
	}
	return results, total
}
