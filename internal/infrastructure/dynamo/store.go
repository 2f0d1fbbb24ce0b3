package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/travel-otp-api/internal/domain"
)

const (
	ttlAttribute = "ttl"
	tableWait    = 30 * time.Second
)

// API is the part of *dynamodb.Client the OTP store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// OTPStore keeps one item per email.
// PK: email. The ttl attribute carries the record's retention horizon in epoch seconds.
type OTPStore struct {
	client    API
	tableName string
	cooldown  time.Duration
}

func NewOTPStore(client API, tableName string, cooldown time.Duration) *OTPStore {
	return &OTPStore{client: client, tableName: tableName, cooldown: cooldown}
}

func (r *OTPStore) Get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("email", email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get otp record: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record %q: %w", email, domain.ErrNotFound)
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp record: %w", err)
	}
	return &rec, nil
}

func (r *OTPStore) Put(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	item[ttlAttribute] = epochSeconds(rec.RetainUntil(r.cooldown))
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put otp record: %w", err)
	}
	return nil
}

func (r *OTPStore) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	if err != nil {
		return fmt.Errorf("delete otp record: %w", err)
	}
	return nil
}

// Ping checks that the table is reachable.
func (r *OTPStore) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)})
	if err != nil {
		return fmt.Errorf("describe otp table: %w", err)
	}
	return nil
}
