package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ivsrealtime"
	"github.com/aws/aws-sdk-go-v2/service/ivsrealtime/types"

	"live-stages/internal/domain"
)

const (
	defaultDisconnectReason = "Disconnected by host"

	listPageSize    = 100
	listMaxRetries  = 3
	listRetryDelay  = 200 * time.Millisecond
	tagCreatedAt    = "createdAt"
	tagCreatedFor   = "createdFor"
	tagDeployment   = "deployment"
)

// realTimeAPI is the minimal IVS real-time interface required by Client.
// *ivsrealtime.Client satisfies this interface.
type realTimeAPI interface {
	CreateStage(ctx context.Context, in *ivsrealtime.CreateStageInput, optFns ...func(*ivsrealtime.Options)) (*ivsrealtime.CreateStageOutput, error)
	CreateParticipantToken(ctx context.Context, in *ivsrealtime.CreateParticipantTokenInput, optFns ...func(*ivsrealtime.Options)) (*ivsrealtime.CreateParticipantTokenOutput, error)
	DeleteStage(ctx context.Context, in *ivsrealtime.DeleteStageInput, optFns ...func(*ivsrealtime.Options)) (*ivsrealtime.DeleteStageOutput, error)
	DisconnectParticipant(ctx context.Context, in *ivsrealtime.DisconnectParticipantInput, optFns ...func(*ivsrealtime.Options)) (*ivsrealtime.DisconnectParticipantOutput, error)
	ListStages(ctx context.Context, in *ivsrealtime.ListStagesInput, optFns ...func(*ivsrealtime.Options)) (*ivsrealtime.ListStagesOutput, error)
}

// Client wraps the IVS real-time API for stage management. Every stage it
// creates is tagged with the deployment name and the caller's creation scope
// so the sweeper can find resources that lost their record.
type Client struct {
	api        realTimeAPI
	deployment string
	logger     *slog.Logger
}

// New creates a stages Client. deployment tags every created resource and
// scopes the listings.
func New(api realTimeAPI, deployment string, logger *slog.Logger) (*Client, error) {
	if api == nil {
		return nil, errors.New("stages: api must not be nil")
	}
	if strings.TrimSpace(deployment) == "" {
		return nil, errors.New("stages: deployment tag must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, deployment: deployment, logger: logger}, nil
}

// CreateStage creates a stage named after the scope and host, with a host
// participant token issued in the same call.
func (c *Client) CreateStage(ctx context.Context, scope, hostID string, hostAttributes map[string]string) (string, domain.ParticipantToken, error) {
	duration := int32(domain.ParticipantTokenDuration.Minutes())
	out, err := c.api.CreateStage(ctx, &ivsrealtime.CreateStageInput{
		Name: aws.String(fmt.Sprintf("%s-%s-Stage", scope, hostID)),
		Tags: c.resourceTags(scope),
		ParticipantTokenConfigurations: []types.ParticipantTokenConfiguration{
			{
				UserId: aws.String(hostID),
				Capabilities: []types.ParticipantTokenCapability{
					types.ParticipantTokenCapabilityPublish,
					types.ParticipantTokenCapabilitySubscribe,
				},
				Attributes: hostAttributes,
				Duration:   aws.Int32(duration),
			},
		},
	})
	if err != nil {
		return "", domain.ParticipantToken{}, fmt.Errorf("stages: CreateStage: %w", err)
	}
	if out.Stage == nil || out.Stage.Arn == nil || len(out.ParticipantTokens) == 0 {
		return "", domain.ParticipantToken{}, errors.New("stages: CreateStage: incomplete response")
	}
	return *out.Stage.Arn, participantToken(&out.ParticipantTokens[0]), nil
}

// CreateParticipantToken issues a stage token for userID with the default
// PUBLISH and SUBSCRIBE capabilities.
func (c *Client) CreateParticipantToken(ctx context.Context, stageArn, userID string, attributes map[string]string) (domain.ParticipantToken, error) {
	duration := int32(domain.ParticipantTokenDuration.Minutes())
	out, err := c.api.CreateParticipantToken(ctx, &ivsrealtime.CreateParticipantTokenInput{
		StageArn:   aws.String(stageArn),
		UserId:     aws.String(userID),
		Attributes: attributes,
		Duration:   aws.Int32(duration),
	})
	if err != nil {
		return domain.ParticipantToken{}, fmt.Errorf("stages: CreateParticipantToken: %w", err)
	}
	if out.ParticipantToken == nil {
		return domain.ParticipantToken{}, errors.New("stages: CreateParticipantToken: missing token")
	}
	return participantToken(out.ParticipantToken), nil
}

// DeleteStage deletes the stage with the given ARN.
func (c *Client) DeleteStage(ctx context.Context, stageArn string) error {
	if _, err := c.api.DeleteStage(ctx, &ivsrealtime.DeleteStageInput{Arn: aws.String(stageArn)}); err != nil {
		return fmt.Errorf("stages: DeleteStage: %w", err)
	}
	return nil
}

// DisconnectParticipant removes a participant from a stage.
func (c *Client) DisconnectParticipant(ctx context.Context, stageArn, participantID, reason string) error {
	if reason == "" {
		reason = defaultDisconnectReason
	}
	if _, err := c.api.DisconnectParticipant(ctx, &ivsrealtime.DisconnectParticipantInput{
		StageArn:      aws.String(stageArn),
		ParticipantId: aws.String(participantID),
		Reason:        aws.String(reason),
	}); err != nil {
		return fmt.Errorf("stages: DisconnectParticipant: %w", err)
	}
	return nil
}

// StageSummaries lists every stage tagged for this deployment and scope. The
// listing is best-effort: page failures are retried a fixed number of times
// with a fixed delay, and on exhaustion whatever was collected so far is
// returned. Callers must tolerate under-reporting, never over-reporting.
func (c *Client) StageSummaries(ctx context.Context, scope string) []domain.ResourceSummary {
	if scope == "" {
		return nil
	}

	var summaries []domain.ResourceSummary
	var nextToken *string
	retries := 0

	for {
		out, err := c.api.ListStages(ctx, &ivsrealtime.ListStagesInput{
			MaxResults: aws.Int32(listPageSize),
			NextToken:  nextToken,
		})
		if err != nil {
			if retries >= listMaxRetries {
				c.logger.Warn("stage listing retries exhausted", "err", err)
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

		for _, s := range out.Stages {
			if s.Arn == nil || !c.matchesScope(s.Tags, scope) {
				continue
			}
			summaries = append(summaries, domain.ResourceSummary{
				Arn:          *s.Arn,
				Active:       s.ActiveSessionId != nil && *s.ActiveSessionId != "",
				TagCreatedAt: s.Tags[tagCreatedAt],
			})
		}

		if out.NextToken == nil {
			return summaries
		}
		nextToken = out.NextToken
	}
}

func (c *Client) resourceTags(scope string) map[string]string {
	return map[string]string{
		tagCreatedFor: scope,
		tagCreatedAt:  domain.Now(),
		tagDeployment: c.deployment,
	}
}

func (c *Client) matchesScope(tags map[string]string, scope string) bool {
	return tags[tagDeployment] == c.deployment && tags[tagCreatedFor] == scope
}

func participantToken(t *types.ParticipantToken) domain.ParticipantToken {
	token := domain.ParticipantToken{Duration: int32(domain.ParticipantTokenDuration.Minutes())}
	if t.Token != nil {
		token.Token = *t.Token
	}
	if t.ParticipantId != nil {
		token.ParticipantID = *t.ParticipantId
	}
	if t.Duration != nil {
		token.Duration = *t.Duration
	}
	return token
}
