// Package dynamostore keeps member activity records in a DynamoDB table.
//
// Each record is one item with PK "CHAT#<chat id>" and SK "MEMBER#<member id>",
// so a chat's members are a single Query. Condition expressions stand in for
// the SQLite store's upsert and compare-and-swap statements.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/lazypower/rollcall/internal/store"
)

const (
	pkPrefix = "CHAT#"
	skPrefix = "MEMBER#"
)

// dynamodbAPI is the minimal DynamoDB interface required by Store.
// *dynamodb.Client satisfies it.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Store is a member store backed by one DynamoDB table.
type Store struct {
	api   dynamodbAPI
	table string
}

// New creates a Store over the named table.
func New(api dynamodbAPI, table string) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamostore: api must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("dynamostore: table name must not be empty")
	}
	return &Store{api: api, table: table}, nil
}

func chatPK(chatID int64) string {
	return pkPrefix + strconv.FormatInt(chatID, 10)
}

func memberSK(memberID int64) string {
	return skPrefix + strconv.FormatInt(memberID, 10)
}

func key(memberID, chatID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: chatPK(chatID)},
		"SK": &types.AttributeValueMemberS{Value: memberSK(memberID)},
	}
}

func num(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func date(t time.Time) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: store.Day(t).Format(store.DateLayout)}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// UpsertActivity creates the record or advances last_active, clearing
// warned. ISO dates compare correctly as strings, so the condition keeps
// last_active from moving backward; a rejected older date is not an error.
func (s *Store) UpsertActivity(ctx context.Context, rec store.ActivityRecord) error {
	values := map[string]types.AttributeValue{
		":m": num(rec.MemberID),
		":c": num(rec.ConversationID),
		":d": date(rec.LastActive),
		":f": &types.AttributeValueMemberBOOL{Value: false},
	}
	update := "SET member_id = :m, chat_id = :c, last_active = :d, warned = :f"
	if rec.DisplayName != "" {
		update += ", display_name = :n"
		values[":n"] = &types.AttributeValueMemberS{Value: rec.DisplayName}
	}

	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key(rec.MemberID, rec.ConversationID),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("attribute_not_exists(PK) OR last_active <= :d"),
		ExpressionAttributeValues: values,
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("dynamostore: upsert activity: %w", err)
	}
	return nil
}

// MarkWarned sets warned only if the record still has the given last_active.
func (s *Store) MarkWarned(ctx context.Context, memberID, chatID int64, lastActive time.Time) (bool, error) {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 key(memberID, chatID),
		UpdateExpression:    aws.String("SET warned = :t"),
		ConditionExpression: aws.String("attribute_exists(PK) AND last_active = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":d": date(lastActive),
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dynamostore: mark warned: %w", err)
	}
	return true, nil
}

// Remove deletes the record and reports whether it existed.
func (s *Store) Remove(ctx context.Context, memberID, chatID int64) (bool, error) {
	out, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.table),
		Key:          key(memberID, chatID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("dynamostore: remove: %w", err)
	}
	return out != nil && len(out.Attributes) > 0, nil
}

// Get returns one record, or nil if there is none.
func (s *Store) Get(ctx context.Context, memberID, chatID int64) (*store.ActivityRecord, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(memberID, chatID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamostore: get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	rec, err := itemToRecord(out.Item)
	if err != nil {
		return nil, fmt.Errorf("dynamostore: get: %w", err)
	}
	return &rec, nil
}

// ListConversations scans the table for distinct chat ids, in ascending order.
func (s *Store) ListConversations(ctx context.Context) ([]int64, error) {
	seen := map[int64]struct{}{}
	in := &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("chat_id"),
		ConsistentRead:       aws.Bool(true),
	}
	for {
		out, err := s.api.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("dynamostore: list conversations: %w", err)
		}
		for _, item := range out.Items {
			id, err := intAttr(item, "chat_id")
			if err != nil {
				return nil, fmt.Errorf("dynamostore: list conversations: %w", err)
			}
			seen[id] = struct{}{}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// ListMembers returns every record in a chat, oldest activity first.
func (s *Store) ListMembers(ctx context.Context, chatID int64) ([]store.ActivityRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: chatPK(chatID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
		ConsistentRead: aws.Bool(true),
	}

	var recs []store.ActivityRecord
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("dynamostore: list members: %w", err)
		}
		for _, item := range out.Items {
			rec, err := itemToRecord(item)
			if err != nil {
				return nil, fmt.Errorf("dynamostore: list members: %w", err)
			}
			recs = append(recs, rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	slices.SortFunc(recs, func(a, b store.ActivityRecord) int {
		if c := a.LastActive.Compare(b.LastActive); c != 0 {
			return c
		}
		switch {
		case a.MemberID < b.MemberID:
			return -1
		case a.MemberID > b.MemberID:
			return 1
		}
		return 0
	})
	return recs, nil
}

// Ping checks that the table exists and is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return fmt.Errorf("dynamostore: ping: %w", err)
	}
	return nil
}

func itemToRecord(item map[string]types.AttributeValue) (store.ActivityRecord, error) {
	member, err := intAttr(item, "member_id")
	if err != nil {
		return store.ActivityRecord{}, err
	}
	chat, err := intAttr(item, "chat_id")
	if err != nil {
		return store.ActivityRecord{}, err
	}
	raw, err := strAttr(item, "last_active")
	if err != nil {
		return store.ActivityRecord{}, err
	}
	last, err := store.ParseDay(raw)
	if err != nil {
		return store.ActivityRecord{}, fmt.Errorf("parse last_active: %w", err)
	}
	name, _ := strAttr(item, "display_name") // may be absent

	var warned bool
	if v, ok := item["warned"].(*types.AttributeValueMemberBOOL); ok {
		warned = v.Value
	}

	return store.ActivityRecord{
		MemberID:       member,
		ConversationID: chat,
		DisplayName:    name,
		LastActive:     last,
		Warned:         warned,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
