package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsivschat "github.com/aws/aws-sdk-go-v2/service/ivschat"
	awsivsrealtime "github.com/aws/aws-sdk-go-v2/service/ivsrealtime"

	"live-stages/handler"
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

	svc, err := usecase.NewService(repo, repo, realtimeClient, chatClient, logger, usecase.Config{})
	if err != nil {
		logger.Error("failed to create session service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewStreamHandler(svc)
	if err != nil {
		logger.Error("failed to create stream handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
