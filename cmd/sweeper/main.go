package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsivschat "github.com/aws/aws-sdk-go-v2/service/ivschat"
	awsivsrealtime "github.com/aws/aws-sdk-go-v2/service/ivsrealtime"

	"live-stages/internal/integrations/chat"
	"live-stages/internal/integrations/stages"
	"live-stages/internal/repository"
	"live-stages/internal/usecase"
)

func main() {
	ctx := context.Background()
	logger := slog.Default()

	stagesTable := mustEnv("STAGES_TABLE")
	votesTable := mustEnv("VOTES_TABLE")
	deployment := mustEnv("DEPLOYMENT_TAG")
	scope := mustEnv("SWEEP_SCOPE")
	idleStale := envSeconds("IDLE_STALE_SECONDS", 0)
	orphanGrace := envSeconds("ORPHAN_GRACE_SECONDS", 0)

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	repo, err := repository.New(awsdynamodb.NewFromConfig(cfg), stagesTable, votesTable)
	if err != nil {
		logger.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}
	realtimeClient, err := stages.New(awsivsrealtime.NewFromConfig(cfg), deployment, logger)
	if err != nil {
		logger.Error("failed to create stages client", "err", err)
		os.Exit(1)
	}
	chatClient, err := chat.New(awsivschat.NewFromConfig(cfg), deployment, logger)
	if err != nil {
		logger.Error("failed to create chat client", "err", err)
		os.Exit(1)
	}

	svc, err := usecase.NewService(repo, repo, realtimeClient, chatClient, logger, usecase.Config{
		IdleTimeUntilStale: idleStale,
		OrphanGracePeriod:  orphanGrace,
	})
	if err != nil {
		logger.Error("failed to create session service", "err", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, _ events.CloudWatchEvent) error {
		return svc.Sweep(ctx, scope)
	})
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Second
}
