package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Client wraps the stages and votes DynamoDB tables.
type Client struct {
	api         dynamodbAPI
	stagesTable string
	votesTable  string
}

// New creates a repository Client.
func New(api dynamodbAPI, stagesTable, votesTable string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(stagesTable) == "" {
		return nil, errors.New("repository: stages table name must not be empty")
	}
	if strings.TrimSpace(votesTable) == "" {
		return nil, errors.New("repository: votes table name must not be empty")
	}
	return &Client{api: api, stagesTable: stagesTable, votesTable: votesTable}, nil
}

func hostKey(hostID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"hostId": &types.AttributeValueMemberS{Value: hostID},
	}
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// projectionExpression builds a ProjectionExpression with aliased names so
// reserved words like "status" and "mode" are safe to project.
func projectionExpression(attrs []string, names map[string]string) *string {
	if len(attrs) == 0 {
		return nil
	}
	aliased := make([]string, len(attrs))
	for i, attr := range attrs {
		alias := "#" + attr
		names[alias] = attr
		aliased[i] = alias
	}
	return aws.String(strings.Join(aliased, ","))
}
