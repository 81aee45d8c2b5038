package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ivsrealtime"
	"github.com/aws/aws-sdk-go-v2/service/ivsrealtime/types"
	"github.com/stretchr/testify/require"

	"live-stages/internal/domain"
)

type fakeRealTime struct {
	createIn  []*ivsrealtime.CreateStageInput
	createOut *ivsrealtime.CreateStageOutput
	createErr error

	tokenIn  []*ivsrealtime.CreateParticipantTokenInput
	tokenOut *ivsrealtime.CreateParticipantTokenOutput
	tokenErr error

	deleteIn  []*ivsrealtime.DeleteStageInput
	deleteErr error

	disconnectIn []*ivsrealtime.DisconnectParticipantInput

	listIn   []*ivsrealtime.ListStagesInput
	listOut  []*ivsrealtime.ListStagesOutput
	listErrs []error
}

func (f *fakeRealTime) CreateStage(_ context.Context, in *ivsrealtime.CreateStageInput, _ ...func(*ivsrealtime.Options)) (*ivsrealtime.CreateStageOutput, error) {
	f.createIn = append(f.createIn, in)
	return f.createOut, f.createErr
}

func (f *fakeRealTime) CreateParticipantToken(_ context.Context, in *ivsrealtime.CreateParticipantTokenInput, _ ...func(*ivsrealtime.Options)) (*ivsrealtime.CreateParticipantTokenOutput, error) {
	f.tokenIn = append(f.tokenIn, in)
	return f.tokenOut, f.tokenErr
}

func (f *fakeRealTime) DeleteStage(_ context.Context, in *ivsrealtime.DeleteStageInput, _ ...func(*ivsrealtime.Options)) (*ivsrealtime.DeleteStageOutput, error) {
	f.deleteIn = append(f.deleteIn, in)
	return &ivsrealtime.DeleteStageOutput{}, f.deleteErr
}

func (f *fakeRealTime) DisconnectParticipant(_ context.Context, in *ivsrealtime.DisconnectParticipantInput, _ ...func(*ivsrealtime.Options)) (*ivsrealtime.DisconnectParticipantOutput, error) {
	f.disconnectIn = append(f.disconnectIn, in)
	return &ivsrealtime.DisconnectParticipantOutput{}, nil
}

func (f *fakeRealTime) ListStages(_ context.Context, in *ivsrealtime.ListStagesInput, _ ...func(*ivsrealtime.Options)) (*ivsrealtime.ListStagesOutput, error) {
	f.listIn = append(f.listIn, in)
	call := len(f.listIn) - 1
	if call < len(f.listErrs) && f.listErrs[call] != nil {
		return nil, f.listErrs[call]
	}
	if len(f.listOut) == 0 {
		return &ivsrealtime.ListStagesOutput{}, nil
	}
	out := f.listOut[0]
	f.listOut = f.listOut[1:]
	return out, nil
}

func newTestClient(t *testing.T, api realTimeAPI) *Client {
	t.Helper()
	c, err := New(api, "livestages-prod", nil)
	require.NoError(t, err)
	return c
}

func stageSummary(arn, deployment, scope, createdAt, activeSession string) types.StageSummary {
	return types.StageSummary{
		Arn:             aws.String(arn),
		ActiveSessionId: aws.String(activeSession),
		Tags: map[string]string{
			tagDeployment: deployment,
			tagCreatedFor: scope,
			tagCreatedAt:  createdAt,
		},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "dep", nil)
	require.Error(t, err)

	_, err = New(&fakeRealTime{}, "  ", nil)
	require.Error(t, err)
}

func TestCreateStage_NamesTagsAndHostToken(t *testing.T) {
	api := &fakeRealTime{
		createOut: &ivsrealtime.CreateStageOutput{
			Stage: &types.Stage{Arn: aws.String("arn:stage:h1")},
			ParticipantTokens: []types.ParticipantToken{{
				Token:         aws.String("tok-1"),
				ParticipantId: aws.String("p-1"),
				Duration:      aws.Int32(20160),
			}},
		},
	}
	c := newTestClient(t, api)

	arn, token, err := c.CreateStage(context.Background(), "scope-1", "h1", map[string]string{"avatar": "bear"})
	require.NoError(t, err)
	require.Equal(t, "arn:stage:h1", arn)
	require.Equal(t, domain.ParticipantToken{Token: "tok-1", ParticipantID: "p-1", Duration: 20160}, token)

	require.Len(t, api.createIn, 1)
	in := api.createIn[0]
	require.Equal(t, "scope-1-h1-Stage", *in.Name)
	require.Equal(t, "scope-1", in.Tags[tagCreatedFor])
	require.Equal(t, "livestages-prod", in.Tags[tagDeployment])
	require.NotEmpty(t, in.Tags[tagCreatedAt])

	require.Len(t, in.ParticipantTokenConfigurations, 1)
	cfg := in.ParticipantTokenConfigurations[0]
	require.Equal(t, "h1", *cfg.UserId)
	require.ElementsMatch(t, []types.ParticipantTokenCapability{
		types.ParticipantTokenCapabilityPublish,
		types.ParticipantTokenCapabilitySubscribe,
	}, cfg.Capabilities)
	require.Equal(t, int32(20160), *cfg.Duration)
	require.Equal(t, map[string]string{"avatar": "bear"}, cfg.Attributes)
}

func TestCreateStage_IncompleteResponse(t *testing.T) {
	api := &fakeRealTime{createOut: &ivsrealtime.CreateStageOutput{Stage: &types.Stage{}}}
	c := newTestClient(t, api)

	_, _, err := c.CreateStage(context.Background(), "s", "h1", nil)
	require.Error(t, err)
}

func TestCreateParticipantToken_Defaults(t *testing.T) {
	api := &fakeRealTime{
		tokenOut: &ivsrealtime.CreateParticipantTokenOutput{
			ParticipantToken: &types.ParticipantToken{
				Token:         aws.String("tok-2"),
				ParticipantId: aws.String("p-2"),
			},
		},
	}
	c := newTestClient(t, api)

	token, err := c.CreateParticipantToken(context.Background(), "arn:stage:h1", "u2", nil)
	require.NoError(t, err)
	require.Equal(t, "tok-2", token.Token)
	// Duration falls back to the issue-time default when the response omits it.
	require.Equal(t, int32(20160), token.Duration)

	in := api.tokenIn[0]
	require.Equal(t, "arn:stage:h1", *in.StageArn)
	require.Equal(t, "u2", *in.UserId)
	require.Equal(t, int32(20160), *in.Duration)
}

func TestDisconnectParticipant_DefaultReason(t *testing.T) {
	api := &fakeRealTime{}
	c := newTestClient(t, api)

	require.NoError(t, c.DisconnectParticipant(context.Background(), "arn:stage:h1", "p-2", ""))
	require.Equal(t, "Disconnected by host", *api.disconnectIn[0].Reason)

	require.NoError(t, c.DisconnectParticipant(context.Background(), "arn:stage:h1", "p-2", "kicked"))
	require.Equal(t, "kicked", *api.disconnectIn[1].Reason)
}

func TestStageSummaries_FiltersByDeploymentAndScope(t *testing.T) {
	api := &fakeRealTime{
		listOut: []*ivsrealtime.ListStagesOutput{{
			Stages: []types.StageSummary{
				stageSummary("arn:1", "livestages-prod", "scope-1", "2026-08-30T10:00:00Z", "session-1"),
				stageSummary("arn:2", "livestages-prod", "scope-2", "2026-08-30T10:00:00Z", ""),
				stageSummary("arn:3", "other-deployment", "scope-1", "2026-08-30T10:00:00Z", ""),
				stageSummary("arn:4", "livestages-prod", "scope-1", "", ""),
			},
		}},
	}
	c := newTestClient(t, api)

	summaries := c.StageSummaries(context.Background(), "scope-1")
	require.Equal(t, []domain.ResourceSummary{
		{Arn: "arn:1", Active: true, TagCreatedAt: "2026-08-30T10:00:00Z"},
		{Arn: "arn:4", Active: false, TagCreatedAt: ""},
	}, summaries)
}

func TestStageSummaries_Paginates(t *testing.T) {
	api := &fakeRealTime{
		listOut: []*ivsrealtime.ListStagesOutput{
			{
				Stages:    []types.StageSummary{stageSummary("arn:1", "livestages-prod", "s", "t", "")},
				NextToken: aws.String("page-2"),
			},
			{
				Stages: []types.StageSummary{stageSummary("arn:2", "livestages-prod", "s", "t", "")},
			},
		},
	}
	c := newTestClient(t, api)

	summaries := c.StageSummaries(context.Background(), "s")
	require.Len(t, summaries, 2)
	require.Len(t, api.listIn, 2)
	require.Nil(t, api.listIn[0].NextToken)
	require.Equal(t, "page-2", *api.listIn[1].NextToken)
}

func TestStageSummaries_RetriesThenReturnsPartial(t *testing.T) {
	listErr := errors.New("throttled")
	api := &fakeRealTime{
		listOut: []*ivsrealtime.ListStagesOutput{{
			Stages:    []types.StageSummary{stageSummary("arn:1", "livestages-prod", "s", "t", "")},
			NextToken: aws.String("page-2"),
		}},
		listErrs: []error{nil, listErr, listErr, listErr, listErr},
	}
	c := newTestClient(t, api)

	summaries := c.StageSummaries(context.Background(), "s")
	// First page collected, second page failed through all retries.
	require.Len(t, summaries, 1)
	require.Equal(t, "arn:1", summaries[0].Arn)
	require.Len(t, api.listIn, 5)
}

func TestStageSummaries_EmptyScopeListsNothing(t *testing.T) {
	api := &fakeRealTime{}
	c := newTestClient(t, api)

	require.Nil(t, c.StageSummaries(context.Background(), ""))
	require.Empty(t, api.listIn)
}
