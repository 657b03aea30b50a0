// Package dynamo stores one item per session in DynamoDB. Every append is an
// UpdateItem guarded by a condition on a companion string set, so the check
// and the write happen in one request.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/domain"
	"github.com/dkeye/CineMatch/internal/storage"
)

// API is the subset of *dynamodb.Client the store calls.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type Options struct {
	Table    string
	Region   string
	Endpoint string // local DynamoDB, empty for AWS
}

type Store struct {
	api   API
	table string
	now   func() time.Time
}

// Open loads the default AWS config chain and builds a client.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Table) == "" {
		return nil, fmt.Errorf("dynamo table is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	log.Info().Str("module", "storage.dynamo").Str("table", opts.Table).Str("region", opts.Region).Msg("dynamodb client ready")
	return New(client, opts.Table), nil
}

func New(api API, table string) *Store {
	return &Store{api: api, table: table, now: time.Now}
}

func (s *Store) Close() error { return nil }

func (s *Store) key(code domain.JoinCode) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"joinCode": &types.AttributeValueMemberS{Value: string(code)},
	}
}

func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	item, err := attributevalue.MarshalMap(toItem(sess))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(joinCode)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put session in table '%s': %w", s.table, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, code domain.JoinCode) (domain.Session, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(code),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session from table '%s': %w", s.table, err)
	}
	if out.Item == nil {
		return domain.Session{}, domain.ErrNotFound
	}
	return decode(out.Item)
}

func (s *Store) AddParticipant(ctx context.Context, code domain.JoinCode, p domain.Participant) (domain.Session, bool, error) {
	return s.appendIfAbsent(ctx, code, "add participant",
		"participants", "participantIds", string(p.ID),
		participantItem{ID: string(p.ID), Name: p.Name},
	)
}

func (s *Store) RecordLike(ctx context.Context, code domain.JoinCode, like domain.Like) (domain.Session, bool, error) {
	return s.appendIfAbsent(ctx, code, "record like",
		"likes", "likeKeys", likeKey(like),
		likeItem{MovieID: string(like.CandidateID), UserID: string(like.ParticipantID)},
	)
}

func (s *Store) RecordMatch(ctx context.Context, code domain.JoinCode, match domain.Match) (domain.Session, bool, error) {
	return s.appendIfAbsent(ctx, code, "record match",
		"matches", "matchIds", string(match.CandidateID),
		matchItem{MovieID: string(match.CandidateID), Title: match.Title, PosterPath: match.ArtworkRef},
	)
}

// appendIfAbsent appends value to listAttr and key to setAttr unless setAttr
// already holds key. A failed condition is resolved with a consistent read.
func (s *Store) appendIfAbsent(ctx context.Context, code domain.JoinCode, op, listAttr, setAttr, key string, value any) (domain.Session, bool, error) {
	entry, err := attributevalue.Marshal(value)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("%s: marshal: %w", op, err)
	}
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(code),
		UpdateExpression:    aws.String("SET #list = list_append(if_not_exists(#list, :empty), :entry), updatedAt = :now ADD #set :keyset"),
		ConditionExpression: aws.String("attribute_exists(joinCode) AND NOT contains(#set, :key)"),
		ExpressionAttributeNames: map[string]string{
			"#list": listAttr,
			"#set":  setAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty":  &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":entry":  &types.AttributeValueMemberL{Value: []types.AttributeValue{entry}},
			":now":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", s.now().UTC().UnixMilli())},
			":keyset": &types.AttributeValueMemberSS{Value: []string{key}},
			":key":    &types.AttributeValueMemberS{Value: key},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if !isConditionFailed(err) {
			return domain.Session{}, false, fmt.Errorf("%s in table '%s': %w", op, s.table, err)
		}
		sess, err := s.GetSession(ctx, code)
		if err != nil {
			return domain.Session{}, false, err
		}
		return sess, false, nil
	}
	sess, err := decode(out.Attributes)
	if err != nil {
		return domain.Session{}, false, err
	}
	return sess, true, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func decode(item map[string]types.AttributeValue) (domain.Session, error) {
	var rec sessionItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return fromItem(rec), nil
}

var _ storage.SessionStore = (*Store)(nil)
