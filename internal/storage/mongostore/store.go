// Package mongostore stores one document per session in MongoDB. Appends are
// conditional single-document updates, which MongoDB applies atomically.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dkeye/CineMatch/internal/domain"
	"github.com/dkeye/CineMatch/internal/storage"
)

const collectionName = "sessions"

type participantDoc struct {
	ID   string `bson:"id"`
	Name string `bson:"name"`
}

type likeDoc struct {
	MovieID string `bson:"movieId"`
	UserID  string `bson:"userId"`
}

type matchDoc struct {
	MovieID    string `bson:"movieId"`
	Title      string `bson:"title"`
	PosterPath string `bson:"poster_path,omitempty"`
}

type sessionDoc struct {
	JoinCode     string           `bson:"joinCode"`
	Host         participantDoc   `bson:"host"`
	Participants []participantDoc `bson:"participants"`
	Likes        []likeDoc        `bson:"likes"`
	Matches      []matchDoc       `bson:"matches"`
	GenreID      string           `bson:"genreId,omitempty"`
	CreatedAt    time.Time        `bson:"createdAt"`
	UpdatedAt    time.Time        `bson:"updatedAt"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// Open connects, pings and ensures the unique joinCode index.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if strings.TrimSpace(database) == "" {
		return nil, fmt.Errorf("mongo database is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	coll := client.Database(database).Collection(collectionName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "joinCode", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("joinCode_unique"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure joinCode index: %w", err)
	}
	return &Store{client: client, coll: coll, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	_, err := s.coll.InsertOne(ctx, toDoc(sess))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, code domain.JoinCode) (domain.Session, error) {
	var doc sessionDoc
	err := s.coll.FindOne(ctx, bson.M{"joinCode": string(code)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("find session: %w", err)
	}
	return fromDoc(doc), nil
}

func (s *Store) AddParticipant(ctx context.Context, code domain.JoinCode, p domain.Participant) (domain.Session, bool, error) {
	return s.pushIfAbsent(ctx, code, "add participant",
		participantAbsent(code, p.ID),
		"participants", participantDoc{ID: string(p.ID), Name: p.Name},
	)
}

func (s *Store) RecordLike(ctx context.Context, code domain.JoinCode, like domain.Like) (domain.Session, bool, error) {
	return s.pushIfAbsent(ctx, code, "record like",
		likeAbsent(code, like),
		"likes", likeDoc{MovieID: string(like.CandidateID), UserID: string(like.ParticipantID)},
	)
}

func (s *Store) RecordMatch(ctx context.Context, code domain.JoinCode, match domain.Match) (domain.Session, bool, error) {
	return s.pushIfAbsent(ctx, code, "record match",
		matchAbsent(code, match.CandidateID),
		"matches", matchDoc{MovieID: string(match.CandidateID), Title: match.Title, PosterPath: match.ArtworkRef},
	)
}

// pushIfAbsent appends value to field when filter still matches. A filter
// miss means either the session is gone or the entry exists; a follow-up read
// tells them apart.
func (s *Store) pushIfAbsent(ctx context.Context, code domain.JoinCode, op string, filter bson.M, field string, value any) (domain.Session, bool, error) {
	update := bson.M{
		"$push": bson.M{field: value},
		"$set":  bson.M{"updatedAt": s.now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc sessionDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return fromDoc(doc), true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Session{}, false, fmt.Errorf("%s: %w", op, err)
	}
	sess, err := s.GetSession(ctx, code)
	if err != nil {
		return domain.Session{}, false, err
	}
	return sess, false, nil
}

func participantAbsent(code domain.JoinCode, id domain.UserID) bson.M {
	return bson.M{
		"joinCode":        string(code),
		"participants.id": bson.M{"$ne": string(id)},
	}
}

func likeAbsent(code domain.JoinCode, like domain.Like) bson.M {
	return bson.M{
		"joinCode": string(code),
		"likes": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"movieId": string(like.CandidateID),
			"userId":  string(like.ParticipantID),
		}}},
	}
}

func matchAbsent(code domain.JoinCode, id domain.CandidateID) bson.M {
	return bson.M{
		"joinCode":        string(code),
		"matches.movieId": bson.M{"$ne": string(id)},
	}
}

func toDoc(sess domain.Session) sessionDoc {
	doc := sessionDoc{
		JoinCode:     string(sess.Code),
		Host:         participantDoc{ID: string(sess.Host.ID), Name: sess.Host.Name},
		Participants: make([]participantDoc, 0, len(sess.Participants)),
		Likes:        make([]likeDoc, 0, len(sess.Likes)),
		Matches:      make([]matchDoc, 0, len(sess.Matches)),
		GenreID:      sess.FilterTag,
		CreatedAt:    sess.CreatedAt.UTC(),
		UpdatedAt:    sess.UpdatedAt.UTC(),
	}
	for _, p := range sess.Participants {
		doc.Participants = append(doc.Participants, participantDoc{ID: string(p.ID), Name: p.Name})
	}
	for _, l := range sess.Likes {
		doc.Likes = append(doc.Likes, likeDoc{MovieID: string(l.CandidateID), UserID: string(l.ParticipantID)})
	}
	for _, m := range sess.Matches {
		doc.Matches = append(doc.Matches, matchDoc{MovieID: string(m.CandidateID), Title: m.Title, PosterPath: m.ArtworkRef})
	}
	return doc
}

func fromDoc(doc sessionDoc) domain.Session {
	sess := domain.Session{
		Code:         domain.JoinCode(doc.JoinCode),
		Host:         domain.Participant{ID: domain.UserID(doc.Host.ID), Name: doc.Host.Name},
		Participants: make([]domain.Participant, 0, len(doc.Participants)),
		Likes:        make([]domain.Like, 0, len(doc.Likes)),
		Matches:      make([]domain.Match, 0, len(doc.Matches)),
		FilterTag:    doc.GenreID,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
	}
	for _, p := range doc.Participants {
		sess.Participants = append(sess.Participants, domain.Participant{ID: domain.UserID(p.ID), Name: p.Name})
	}
	for _, l := range doc.Likes {
		sess.Likes = append(sess.Likes, domain.Like{CandidateID: domain.CandidateID(l.MovieID), ParticipantID: domain.UserID(l.UserID)})
	}
	for _, m := range doc.Matches {
		sess.Matches = append(sess.Matches, domain.Match{CandidateID: domain.CandidateID(m.MovieID), Title: m.Title, ArtworkRef: m.PosterPath})
	}
	return sess
}

var _ storage.SessionStore = (*Store)(nil)
