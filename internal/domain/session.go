package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxCandidateIDLen = 64
	MaxTitleLen       = 256
	MaxArtworkRefLen  = 512
)

type CandidateID string

// Like is one participant's preference for one candidate.
type Like struct {
	CandidateID   CandidateID `json:"movieId"`
	ParticipantID UserID      `json:"userId"`
}

// Match carries the metadata captured from the like that completed it.
// Title and artwork are a snapshot at match time and are never refreshed
// from the catalog, so historical matches stay as the group saw them.
type Match struct {
	CandidateID CandidateID `json:"movieId"`
	Title       string      `json:"title"`
	ArtworkRef  string      `json:"artworkRef,omitempty"`
}

// Candidate is what a like event carries about the swiped title.
type Candidate struct {
	ID         CandidateID
	Title      string
	ArtworkRef string
}

const UnknownTitle = "Unknown Title"

// NewCandidate validates an incoming candidate. A missing title falls back
// to UnknownTitle.
func NewCandidate(id, title, artworkRef string) (Candidate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Candidate{}, fmt.Errorf("%w: candidate id is required", ErrValidation)
	}
	if len(id) > MaxCandidateIDLen {
		return Candidate{}, fmt.Errorf("%w: candidate id too long", ErrValidation)
	}
	if hasControl(id) || !utf8.ValidString(id) {
		return Candidate{}, fmt.Errorf("%w: candidate id has invalid characters", ErrValidation)
	}
	title = truncate(strings.TrimSpace(title), MaxTitleLen)
	if title == "" {
		title = UnknownTitle
	}
	artworkRef = strings.TrimSpace(artworkRef)
	if len(artworkRef) > MaxArtworkRefLen {
		return Candidate{}, fmt.Errorf("%w: artwork reference too long", ErrValidation)
	}
	return Candidate{ID: CandidateID(id), Title: title, ArtworkRef: artworkRef}, nil
}

func (c Candidate) Match() Match {
	return Match{CandidateID: c.ID, Title: c.Title, ArtworkRef: c.ArtworkRef}
}

// Session is the shared swiping context.
type Session struct {
	Code         JoinCode      `json:"joinCode"`
	Host         Participant   `json:"host"`
	Participants []Participant `json:"participants"`
	Likes        []Like        `json:"likes"`
	Matches      []Match       `json:"matches"`
	FilterTag    string        `json:"filterTag,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// NewSession builds a fresh session whose only participant is the host.
func NewSession(code JoinCode, host Participant, filterTag string, now time.Time) Session {
	now = now.UTC()
	return Session{
		Code:         code,
		Host:         host,
		Participants: []Participant{host},
		Likes:        []Like{},
		Matches:      []Match{},
		FilterTag:    strings.TrimSpace(filterTag),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s Session) HasParticipant(id UserID) bool {
	return slices.ContainsFunc(s.Participants, func(p Participant) bool { return p.ID == id })
}

func (s Session) ParticipantIDs() []UserID {
	out := make([]UserID, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, p.ID)
	}
	return out
}

func (s Session) HasLike(candidate CandidateID, participant UserID) bool {
	return slices.Contains(s.Likes, Like{CandidateID: candidate, ParticipantID: participant})
}

// LikersOf lists the participants that liked candidate.
func (s Session) LikersOf(candidate CandidateID) []UserID {
	var out []UserID
	for _, l := range s.Likes {
		if l.CandidateID == candidate {
			out = append(out, l.ParticipantID)
		}
	}
	return out
}

func (s Session) HasMatch(candidate CandidateID) bool {
	return slices.ContainsFunc(s.Matches, func(m Match) bool { return m.CandidateID == candidate })
}

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	s.Participants = slices.Clone(s.Participants)
	s.Likes = slices.Clone(s.Likes)
	s.Matches = slices.Clone(s.Matches)
	if s.Participants == nil {
		s.Participants = []Participant{}
	}
	if s.Likes == nil {
		s.Likes = []Like{}
	}
	if s.Matches == nil {
		s.Matches = []Match{}
	}
	return s
}
