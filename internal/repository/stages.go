package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"live-stages/internal/domain"
)

// enumFilterKeys are filter attributes whose values are stored uppercased.
var enumFilterKeys = map[string]bool{"mode": true, "status": true, "type": true}

// GetStage returns the stage record for hostID, or nil if none exists.
func (c *Client) GetStage(ctx context.Context, hostID string) (*domain.StageRecord, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.stagesTable),
		Key:       hostKey(hostID),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetStage: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	var rec domain.StageRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("repository: GetStage unmarshal: %w", err)
	}
	return &rec, nil
}

// PutStage persists a full stage record.
func (c *Client) PutStage(ctx context.Context, rec domain.StageRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("repository: PutStage marshal: %w", err)
	}
	if _, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.stagesTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("repository: PutStage: %w", err)
	}
	return nil
}

// DeleteStage removes the stage record for hostID.
func (c *Client) DeleteStage(ctx context.Context, hostID string) error {
	if _, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.stagesTable),
		Key:       hostKey(hostID),
	}); err != nil {
		return fmt.Errorf("repository: DeleteStage: %w", err)
	}
	return nil
}

// ScanStages scans the stages table with an optional projection and equality
// filters. Values of enum-backed filter keys are uppercased before matching.
func (c *Client) ScanStages(ctx context.Context, projection []string, filters map[string]string) ([]domain.StageRecord, error) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	var filterExprs []string
	for key, value := range filters {
		if enumFilterKeys[key] {
			value = strings.ToUpper(value)
		}
		names["#"+key] = key
		values[":"+key] = &types.AttributeValueMemberS{Value: value}
		filterExprs = append(filterExprs, fmt.Sprintf("#%s = :%s", key, key))
	}

	in := &dynamodb.ScanInput{
		TableName:            aws.String(c.stagesTable),
		ProjectionExpression: projectionExpression(projection, names),
	}
	if len(filterExprs) > 0 {
		in.FilterExpression = aws.String(strings.Join(filterExprs, " AND "))
		in.ExpressionAttributeValues = values
	}
	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}

	var records []domain.StageRecord
	for {
		out, err := c.api.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ScanStages: %w", err)
		}
		var page []domain.StageRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("repository: ScanStages unmarshal: %w", err)
		}
		records = append(records, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return records, nil
}

// UpdateStageMode sets the stored mode unconditionally.
func (c *Client) UpdateStageMode(ctx context.Context, hostID string, mode domain.StageMode) error {
	if _, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.stagesTable),
		Key:                      hostKey(hostID),
		UpdateExpression:         aws.String("SET #mode = :nextMode"),
		ExpressionAttributeNames: map[string]string{"#mode": "mode"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":nextMode": &types.AttributeValueMemberS{Value: string(mode)},
		},
	}); err != nil {
		return fmt.Errorf("repository: UpdateStageMode: %w", err)
	}
	return nil
}

// UpdateStageSeats sets the stored seat list unconditionally.
func (c *Client) UpdateStageSeats(ctx context.Context, hostID string, seats []string) error {
	seatsAttr, err := attributevalue.Marshal(seats)
	if err != nil {
		return fmt.Errorf("repository: UpdateStageSeats marshal: %w", err)
	}
	if _, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.stagesTable),
		Key:                       hostKey(hostID),
		UpdateExpression:          aws.String("SET #seats = :nextSeats"),
		ExpressionAttributeNames:  map[string]string{"#seats": "seats"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":nextSeats": seatsAttr},
	}); err != nil {
		return fmt.Errorf("repository: UpdateStageSeats: %w", err)
	}
	return nil
}

// UpdateStageStatus sets status and lastStatusUpdatedAt, conditioned on the
// record still existing so a racing delete never resurrects it.
func (c *Client) UpdateStageStatus(ctx context.Context, hostID string, status domain.StageStatus, updatedAt string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.stagesTable),
		Key:                 hostKey(hostID),
		UpdateExpression:    aws.String("SET #status = :status, #lastStatusUpdatedAt = :lastStatusUpdatedAt"),
		ConditionExpression: aws.String("attribute_exists(#hostId)"),
		ExpressionAttributeNames: map[string]string{
			"#hostId":              "hostId",
			"#status":              "status",
			"#lastStatusUpdatedAt": "lastStatusUpdatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":              &types.AttributeValueMemberS{Value: string(status)},
			":lastStatusUpdatedAt": &types.AttributeValueMemberS{Value: updatedAt},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("repository: UpdateStageStatus: %w", domain.ErrConditionFailed)
		}
		return fmt.Errorf("repository: UpdateStageStatus: %w", err)
	}
	return nil
}
