package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"live-stages/internal/domain"
	"live-stages/internal/usecase"
)

// TallyPublisher is the voting subsystem's stream-driven surface.
type TallyPublisher interface {
	PublishTally(ctx context.Context, change usecase.VotesChange) error
}

// StreamHandler feeds votes-table change-stream batches to the tally
// publisher.
type StreamHandler struct {
	publisher TallyPublisher
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(publisher TallyPublisher) (*StreamHandler, error) {
	if publisher == nil {
		return nil, errors.New("handler: tally publisher must not be nil")
	}
	return &StreamHandler{publisher: publisher}, nil
}

// Handle processes one stream delivery. Only the newest record of the batch
// is published: every change image already carries the cumulative tally
// state, so earlier records in the same delivery are superseded by the last.
func (h *StreamHandler) Handle(ctx context.Context, event events.DynamoDBEvent) error {
	if len(event.Records) == 0 {
		return nil
	}
	record := event.Records[len(event.Records)-1]

	change := usecase.VotesChange{Type: usecase.VotesChangeType(record.EventName)}
	if len(record.Change.NewImage) > 0 {
		rec, err := votesRecordFromImage(record.Change.NewImage)
		if err != nil {
			return fmt.Errorf("handler: decode new image: %w", err)
		}
		change.New = rec
	}
	if len(record.Change.OldImage) > 0 {
		rec, err := votesRecordFromImage(record.Change.OldImage)
		if err != nil {
			return fmt.Errorf("handler: decode old image: %w", err)
		}
		change.Old = rec
	}

	return h.publisher.PublishTally(ctx, change)
}

// votesRecordFromImage converts a stream image into a votes record.
func votesRecordFromImage(image map[string]events.DynamoDBAttributeValue) (*domain.VotesRecord, error) {
	rec := &domain.VotesRecord{Tally: map[string]int{}}

	if attr, ok := image["hostId"]; ok {
		rec.HostID = attr.String()
	}
	if rec.HostID == "" {
		return nil, errors.New("image missing hostId")
	}
	if attr, ok := image["chatRoomArn"]; ok {
		rec.ChatRoomArn = attr.String()
	}
	if attr, ok := image["startedAt"]; ok {
		rec.StartedAt = attr.String()
	}
	if attr, ok := image["tally"]; ok {
		for candidateID, count := range attr.Map() {
			n, err := count.Integer()
			if err != nil {
				return nil, fmt.Errorf("tally count for %q: %w", candidateID, err)
			}
			rec.Tally[candidateID] = int(n)
		}
	}
	return rec, nil
}
