package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ivschat"
	"github.com/aws/aws-sdk-go-v2/service/ivschat/types"

	"live-stages/internal/domain"
)

const (
	defaultDisconnectReason = "Disconnected by host"

	listPageSize   = 50
	listMaxRetries = 3
	listRetryDelay = 200 * time.Millisecond
	tagCreatedAt   = "createdAt"
	tagCreatedFor  = "createdFor"
	tagDeployment  = "deployment"
)

// chatAPI is the minimal IVS chat interface required by Client.
// *ivschat.Client satisfies this interface.
type chatAPI interface {
	CreateRoom(ctx context.Context, in *ivschat.CreateRoomInput, optFns ...func(*ivschat.Options)) (*ivschat.CreateRoomOutput, error)
	CreateChatToken(ctx context.Context, in *ivschat.CreateChatTokenInput, optFns ...func(*ivschat.Options)) (*ivschat.CreateChatTokenOutput, error)
	SendEvent(ctx context.Context, in *ivschat.SendEventInput, optFns ...func(*ivschat.Options)) (*ivschat.SendEventOutput, error)
	DisconnectUser(ctx context.Context, in *ivschat.DisconnectUserInput, optFns ...func(*ivschat.Options)) (*ivschat.DisconnectUserOutput, error)
	DeleteRoom(ctx context.Context, in *ivschat.DeleteRoomInput, optFns ...func(*ivschat.Options)) (*ivschat.DeleteRoomOutput, error)
	ListRooms(ctx context.Context, in *ivschat.ListRoomsInput, optFns ...func(*ivschat.Options)) (*ivschat.ListRoomsOutput, error)
}

// Client wraps the IVS chat API for room management and event broadcasting.
type Client struct {
	api        chatAPI
	deployment string
	logger     *slog.Logger
}

// New creates a chat Client. deployment tags every created room and scopes
// the listings.
func New(api chatAPI, deployment string, logger *slog.Logger) (*Client, error) {
	if api == nil {
		return nil, errors.New("chat: api must not be nil")
	}
	if strings.TrimSpace(deployment) == "" {
		return nil, errors.New("chat: deployment tag must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, deployment: deployment, logger: logger}, nil
}

// CreateRoom creates a chat room named after the scope and host.
func (c *Client) CreateRoom(ctx context.Context, scope, hostID string) (string, error) {
	out, err := c.api.CreateRoom(ctx, &ivschat.CreateRoomInput{
		Name: aws.String(fmt.Sprintf("%s-%s-Room", scope, hostID)),
		Tags: map[string]string{
			tagCreatedFor: scope,
			tagCreatedAt:  domain.Now(),
			tagDeployment: c.deployment,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat: CreateRoom: %w", err)
	}
	if out.Arn == nil {
		return "", errors.New("chat: CreateRoom: missing room arn")
	}
	return *out.Arn, nil
}

// CreateChatToken issues a chat token with the SEND_MESSAGE capability.
// Viewing messages is implicitly allowed for every token.
func (c *Client) CreateChatToken(ctx context.Context, roomArn, userID string, attributes map[string]string) (domain.ChatToken, error) {
	duration := int32(domain.ChatTokenSessionDuration.Minutes())
	out, err := c.api.CreateChatToken(ctx, &ivschat.CreateChatTokenInput{
		RoomIdentifier:           aws.String(roomArn),
		UserId:                   aws.String(userID),
		Attributes:               attributes,
		Capabilities:             []types.ChatTokenCapability{types.ChatTokenCapabilitySendMessage},
		SessionDurationInMinutes: aws.Int32(duration),
	})
	if err != nil {
		return domain.ChatToken{}, fmt.Errorf("chat: CreateChatToken: %w", err)
	}
	token := domain.ChatToken{
		SessionExpirationTime: out.SessionExpirationTime,
		TokenExpirationTime:   out.TokenExpirationTime,
	}
	if out.Token != nil {
		token.Token = *out.Token
	}
	return token, nil
}

// SendEvent broadcasts a named event with attributes to everyone in the room.
func (c *Client) SendEvent(ctx context.Context, roomArn, eventName string, attributes map[string]string) error {
	if _, err := c.api.SendEvent(ctx, &ivschat.SendEventInput{
		RoomIdentifier: aws.String(roomArn),
		EventName:      aws.String(eventName),
		Attributes:     attributes,
	}); err != nil {
		return fmt.Errorf("chat: SendEvent %s: %w", eventName, err)
	}
	return nil
}

// DisconnectUser removes a user from a chat room.
func (c *Client) DisconnectUser(ctx context.Context, roomArn, userID, reason string) error {
	if reason == "" {
		reason = defaultDisconnectReason
	}
	if _, err := c.api.DisconnectUser(ctx, &ivschat.DisconnectUserInput{
		RoomIdentifier: aws.String(roomArn),
		UserId:         aws.String(userID),
		Reason:         aws.String(reason),
	}); err != nil {
		return fmt.Errorf("chat: DisconnectUser: %w", err)
	}
	return nil
}

// DeleteRoom deletes the chat room with the given ARN.
func (c *Client) DeleteRoom(ctx context.Context, roomArn string) error {
	if _, err := c.api.DeleteRoom(ctx, &ivschat.DeleteRoomInput{Identifier: aws.String(roomArn)}); err != nil {
		return fmt.Errorf("chat: DeleteRoom: %w", err)
	}
	return nil
}

// RoomSummaries lists every room tagged for this deployment and scope, with
// the same best-effort retry contract as the stage listing: on retry
// exhaustion whatever was collected so far is returned.
func (c *Client) RoomSummaries(ctx context.Context, scope string) []domain.ResourceSummary {
	if scope == "" {
		return nil
	}

	var summaries []domain.ResourceSummary
	var nextToken *string
	retries := 0

	for {
		out, err := c.api.ListRooms(ctx, &ivschat.ListRoomsInput{
			MaxResults: aws.Int32(listPageSize),
			NextToken:  nextToken,
		})
		if err != nil {
			if retries >= listMaxRetries {
				c.logger.Warn("room listing retries exhausted", "err", err)
				return summaries
			}
			retries++
			select {
			case <-ctx.Done():
				return summaries
			case <-time.After(listRetryDelay):
			}
			continue
		}

		for _, r := range out.Rooms {
			if r.Arn == nil || r.Tags[tagDeployment] != c.deployment || r.Tags[tagCreatedFor] != scope {
				continue
			}
			summaries = append(summaries, domain.ResourceSummary{
				Arn:          *r.Arn,
				TagCreatedAt: r.Tags[tagCreatedAt],
			})
		}

		if out.NextToken == nil {
			return summaries
		}
		nextToken = out.NextToken
	}
}
