package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"live-stages/internal/domain"
)

// CreateVotes persists a votes record. Tally keys are fixed from this point
// on; AddVote only ever increments existing keys.
func (c *Client) CreateVotes(ctx context.Context, rec domain.VotesRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("repository: CreateVotes marshal: %w", err)
	}
	if _, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.votesTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("repository: CreateVotes: %w", err)
	}
	return nil
}

// GetVotes returns the votes record for hostID, or nil if none exists. An
// optional projection restricts the returned attributes.
func (c *Client) GetVotes(ctx context.Context, hostID string, projection []string) (*domain.VotesRecord, error) {
	names := map[string]string{}
	in := &dynamodb.GetItemInput{
		TableName:            aws.String(c.votesTable),
		Key:                  hostKey(hostID),
		ProjectionExpression: projectionExpression(projection, names),
	}
	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}

	out, err := c.api.GetItem(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetVotes: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	var rec domain.VotesRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("repository: GetVotes unmarshal: %w", err)
	}
	return &rec, nil
}

// DeleteVotes removes the votes record for hostID. Deleting an absent record
// is a no-op.
func (c *Client) DeleteVotes(ctx context.Context, hostID string) error {
	if _, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.votesTable),
		Key:       hostKey(hostID),
	}); err != nil {
		return fmt.Errorf("repository: DeleteVotes: %w", err)
	}
	return nil
}

// AddVote increments the tally for candidateID by one. The single conditional
// write is the sole admission check: it requires the votes record to exist
// and candidateID to already be a tally key, and returns
// domain.ErrConditionFailed
// otherwise without touching any state.
func (c *Client) AddVote(ctx context.Context, hostID, candidateID string) (map[string]int, error) {
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.votesTable),
		Key:                 hostKey(hostID),
		UpdateExpression:    aws.String("ADD #tally.#candidate :count"),
		ConditionExpression: aws.String("attribute_exists(#hostId) AND attribute_exists(#tally.#candidate)"),
		ExpressionAttributeNames: map[string]string{
			"#hostId":    "hostId",
			"#tally":     "tally",
			"#candidate": candidateID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":count": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		if isConditionFailure(err) {
			return nil, fmt.Errorf("repository: AddVote %q/%q: %w", hostID, candidateID, domain.ErrConditionFailed)
		}
		return nil, fmt.Errorf("repository: AddVote: %w", err)
	}

	var updated struct {
		Tally map[string]int `dynamodbav:"tally"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return nil, fmt.Errorf("repository: AddVote unmarshal: %w", err)
	}
	return updated.Tally, nil
}
