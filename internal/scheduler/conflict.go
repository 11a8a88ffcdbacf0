package scheduler

import (
	"sort"
	"time"
)

// Slot is a meeting occupying a concrete time range.
type Slot struct {
	MeetingID    string
	Participants []string
	Venue        string
	Start        time.Time
	End          time.Time
}

// ConflictType describes the type of conflict detected between meetings.
type ConflictType string

const (
	// ConflictTypeParticipant indicates a participant is double-booked.
	ConflictTypeParticipant ConflictType = "participant"
	// ConflictTypeVenue indicates a venue is double-booked.
	ConflictTypeVenue ConflictType = "venue"
)

// Conflict details an overlapping meeting relation that callers can present to users.
type Conflict struct {
	WithMeetingID string
	Type          ConflictType
	Participant   string
	Venue         string
}

// Overlaps reports whether the half-open ranges of a and b intersect.
func Overlaps(a, b Slot) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// DetectConflicts identifies conflicts for the candidate against existing
// slots. One conflict is reported per shared participant, plus one when both
// slots name the same non-empty venue. Results are ordered by meeting ID,
// type and participant.
func DetectConflicts(existing []Slot, candidate Slot) []Conflict {
	if !candidate.Start.Before(candidate.End) {
		return nil
	}

	participants := make(map[string]struct{}, len(candidate.Participants))
	for _, p := range candidate.Participants {
		if p != "" {
			participants[p] = struct{}{}
		}
	}

	var conflicts []Conflict
	for _, other := range existing {
		if other.MeetingID == candidate.MeetingID || !Overlaps(candidate, other) {
			continue
		}
		seen := make(map[string]struct{})
		for _, p := range other.Participants {
			if _, ok := participants[p]; !ok {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			conflicts = append(conflicts, Conflict{
				WithMeetingID: other.MeetingID,
				Type:          ConflictTypeParticipant,
				Participant:   p,
			})
		}
		if candidate.Venue != "" && candidate.Venue == other.Venue {
			conflicts = append(conflicts, Conflict{
				WithMeetingID: other.MeetingID,
				Type:          ConflictTypeVenue,
				Venue:         other.Venue,
			})
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.WithMeetingID != b.WithMeetingID {
			return a.WithMeetingID < b.WithMeetingID
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Participant < b.Participant
	})
	return conflicts
}

// Pair is a conflict between two slots, with MeetingID < Conflict.WithMeetingID.
type Pair struct {
	MeetingID string
	Conflict
}

// FindAll reports every conflicting pair within slots exactly once.
func FindAll(slots []Slot) []Pair {
	ordered := make([]Slot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].MeetingID < ordered[j].MeetingID })

	var pairs []Pair
	for i, slot := range ordered {
		for _, c := range DetectConflicts(ordered[i+1:], slot) {
			pairs = append(pairs, Pair{MeetingID: slot.MeetingID, Conflict: c})
		}
	}
	return pairs
}
