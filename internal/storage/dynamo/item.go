package dynamo

import (
	"strconv"
	"time"

	"github.com/dkeye/CineMatch/internal/domain"
)

type participantItem struct {
	ID   string `dynamodbav:"id"`
	Name string `dynamodbav:"name"`
}

type likeItem struct {
	MovieID string `dynamodbav:"movieId"`
	UserID  string `dynamodbav:"userId"`
}

type matchItem struct {
	MovieID    string `dynamodbav:"movieId"`
	Title      string `dynamodbav:"title"`
	PosterPath string `dynamodbav:"poster_path,omitempty"`
}

// sessionItem is the stored shape. The *Ids / likeKeys string sets mirror
// the lists and exist only so conditions can use contains().
type sessionItem struct {
	JoinCode       string            `dynamodbav:"joinCode"`
	Host           participantItem   `dynamodbav:"host"`
	Participants   []participantItem `dynamodbav:"participants"`
	ParticipantIDs []string          `dynamodbav:"participantIds,stringset,omitempty"`
	Likes          []likeItem        `dynamodbav:"likes"`
	LikeKeys       []string          `dynamodbav:"likeKeys,stringset,omitempty"`
	Matches        []matchItem       `dynamodbav:"matches"`
	MatchIDs       []string          `dynamodbav:"matchIds,stringset,omitempty"`
	GenreID        string            `dynamodbav:"genreId,omitempty"`
	CreatedAt      int64             `dynamodbav:"createdAt"`
	UpdatedAt      int64             `dynamodbav:"updatedAt"`
}

// likeKey prefixes the candidate id with its length so that no two pairs
// share a key, whatever bytes the ids hold.
func likeKey(l domain.Like) string {
	return strconv.Itoa(len(l.CandidateID)) + ":" + string(l.CandidateID) + string(l.ParticipantID)
}

func toItem(sess domain.Session) sessionItem {
	rec := sessionItem{
		JoinCode:     string(sess.Code),
		Host:         participantItem{ID: string(sess.Host.ID), Name: sess.Host.Name},
		Participants: make([]participantItem, 0, len(sess.Participants)),
		Likes:        make([]likeItem, 0, len(sess.Likes)),
		Matches:      make([]matchItem, 0, len(sess.Matches)),
		GenreID:      sess.FilterTag,
		CreatedAt:    sess.CreatedAt.UTC().UnixMilli(),
		UpdatedAt:    sess.UpdatedAt.UTC().UnixMilli(),
	}
	for _, p := range sess.Participants {
		rec.Participants = append(rec.Participants, participantItem{ID: string(p.ID), Name: p.Name})
		rec.ParticipantIDs = append(rec.ParticipantIDs, string(p.ID))
	}
	for _, l := range sess.Likes {
		rec.Likes = append(rec.Likes, likeItem{MovieID: string(l.CandidateID), UserID: string(l.ParticipantID)})
		rec.LikeKeys = append(rec.LikeKeys, likeKey(l))
	}
	for _, m := range sess.Matches {
		rec.Matches = append(rec.Matches, matchItem{MovieID: string(m.CandidateID), Title: m.Title, PosterPath: m.ArtworkRef})
		rec.MatchIDs = append(rec.MatchIDs, string(m.CandidateID))
	}
	return rec
}

func fromItem(rec sessionItem) domain.Session {
	sess := domain.Session{
		Code:         domain.JoinCode(rec.JoinCode),
		Host:         domain.Participant{ID: domain.UserID(rec.Host.ID), Name: rec.Host.Name},
		Participants: make([]domain.Participant, 0, len(rec.Participants)),
		Likes:        make([]domain.Like, 0, len(rec.Likes)),
		Matches:      make([]domain.Match, 0, len(rec.Matches)),
		FilterTag:    rec.GenreID,
		CreatedAt:    time.UnixMilli(rec.CreatedAt).UTC(),
		UpdatedAt:    time.UnixMilli(rec.UpdatedAt).UTC(),
	}
	for _, p := range rec.Participants {
		sess.Participants = append(sess.Participants, domain.Participant{ID: domain.UserID(p.ID), Name: p.Name})
	}
	for _, l := range rec.Likes {
		sess.Likes = append(sess.Likes, domain.Like{CandidateID: domain.CandidateID(l.MovieID), ParticipantID: domain.UserID(l.UserID)})
	}
	for _, m := range rec.Matches {
		sess.Matches = append(sess.Matches, domain.Match{CandidateID: domain.CandidateID(m.MovieID), Title: m.Title, ArtworkRef: m.PosterPath})
	}
	return sess
}
