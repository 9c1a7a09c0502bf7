package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	DefaultGroupColor = "#FFFFFF"
	// groups above this priority, and the Outsider group, never move with message counts
	SpecialGroupPriority = 75
	OutsiderGroupName    = "Outsider"
)

// SortGroups orders groups by descending priority.
func SortGroups(groups []*Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Priority > groups[j].Priority
	})
}

// PickTopGroup returns the highest-priority held group, or fallback when nothing is held.
func PickTopGroup(held []*Group, fallback *Group) *Group {
	var top *Group
	for _, g := range held {
		if top == nil || g.Priority > top.Priority {
			top = g
		}
	}
	if top == nil {
		return fallback
	}
	return top
}

// QualifyingGroups lists the messages groups not yet held whose threshold is reached,
// highest priority first.
func QualifyingGroups(all []*Group, held map[int64]bool, messagesCount int64) []*Group {
	res := make([]*Group, 0)
	for _, g := range all {
		if !g.IsMessagesGroup || held[g.ID] {
			continue
		}
		if messagesCount >= g.MinimumMessages {
			res = append(res, g)
		}
	}
	SortGroups(res)
	return res
}

// IsSpecial reports whether a group is assigned by hand rather than earned by posting.
func (g *Group) IsSpecial() bool {
	return g.Name == OutsiderGroupName || g.Priority > SpecialGroupPriority
}

// PastGroup picks the group a member had at a past instant given their message count then.
// messagesGroups must be ordered by descending priority.
func PastGroup(current *Group, messagesGroups []*Group, pastMessages int64) *Group {
	if current == nil || current.IsSpecial() {
		return current
	}
	for _, g := range messagesGroups {
		if g.IsMessagesGroup && g.MinimumMessages <= pastMessages {
			return g
		}
	}
	return current
}

// Age in whole years at now, 0 for unknown or future birthdates.
func (p *Profile) Age(now time.Time) int {
	b := time.Time(p.Birthdate)
	if b.IsZero() || b.Year() < 1 {
		return 0
	}
	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// GroupColor is the name color shown for the member.
func (p *Profile) GroupColor() string {
	if p.TopGroup != nil && p.TopGroup.Color != "" {
		return p.TopGroup.Color
	}
	if p.NameColor != "" {
		return p.NameColor
	}
	return DefaultGroupColor
}

// SharePercentage is small/big*100 rounded to two decimals, 0 when big is 0.
func SharePercentage(small, big int64) float64 {
	if big == 0 {
		return 0
	}
	return math.Abs(math.Round(float64(small)/float64(big)*100*100) / 100)
}

// MessageFrequency renders "N mess. tous les D jours" for a member.
func MessageFrequency(messageCount int64, dateJoined, now time.Time) string {
	days := int64(now.Sub(dateJoined).Hours() / 24)
	if days < 0 {
		return "0 mess. tous les 0 jours"
	}
	if days == 0 {
		return fmt.Sprintf("%d mess. tous les 1 jours", messageCount)
	}
	if messageCount <= 0 {
		return "0 mess. tous les 1 jours"
	}
	dayNumber := int64(math.RoundToEven(float64(days) / float64(messageCount)))
	if dayNumber < 1 {
		dayNumber = 1
	}
	n := messageCount / (days / dayNumber)
	if n < 1 {
		n = 1
	}
	return fmt.Sprintf("%d mess. tous les %d jours", n, dayNumber)
}
