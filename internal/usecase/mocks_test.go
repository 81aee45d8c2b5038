package usecase

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"live-stages/internal/domain"
)

// callLog records call order across mocks; concurrent fan-outs append from
// multiple goroutines.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) index(name string) int {
	for i, c := range l.list() {
		if c == name {
			return i
		}
	}
	return -1
}

type statusCall struct {
	hostID string
	status domain.StageStatus
}

type mockStages struct {
	log *callLog

	rec     *domain.StageRecord
	getErr  error
	putErr  error
	put     []domain.StageRecord
	deleted []string
	delErr  error

	scanRecords    []domain.StageRecord
	scanErr        error
	scanProjection []string
	scanFilters    map[string]string

	modes     []domain.StageMode
	modeErr   error
	seats     [][]string
	seatsErr  error
	statuses  []statusCall
	statusErr error
}

func (m *mockStages) GetStage(_ context.Context, hostID string) (*domain.StageRecord, error) {
	m.log.add("store.GetStage")
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.rec != nil && m.rec.HostID == hostID {
		return m.rec, nil
	}
	return nil, nil
}

func (m *mockStages) PutStage(_ context.Context, rec domain.StageRecord) error {
	m.log.add("store.PutStage")
	m.put = append(m.put, rec)
	return m.putErr
}

func (m *mockStages) DeleteStage(_ context.Context, hostID string) error {
	m.log.add("store.DeleteStage")
	m.deleted = append(m.deleted, hostID)
	return m.delErr
}

func (m *mockStages) ScanStages(_ context.Context, projection []string, filters map[string]string) ([]domain.StageRecord, error) {
	m.log.add("store.ScanStages")
	m.scanProjection = projection
	m.scanFilters = filters
	return m.scanRecords, m.scanErr
}

func (m *mockStages) UpdateStageMode(_ context.Context, _ string, mode domain.StageMode) error {
	m.log.add("store.UpdateStageMode")
	m.modes = append(m.modes, mode)
	return m.modeErr
}

func (m *mockStages) UpdateStageSeats(_ context.Context, _ string, seats []string) error {
	m.log.add("store.UpdateStageSeats")
	m.seats = append(m.seats, seats)
	return m.seatsErr
}

func (m *mockStages) UpdateStageStatus(_ context.Context, hostID string, status domain.StageStatus, _ string) error {
	m.log.add("store.UpdateStageStatus")
	m.statuses = append(m.statuses, statusCall{hostID: hostID, status: status})
	return m.statusErr
}

type mockVotes struct {
	log *callLog

	created   []domain.VotesRecord
	createErr error
	rec       *domain.VotesRecord
	getErr    error
	deleted   []string
	delErr    error

	addTally map[string]int
	addErr   error
	addCalls []string
}

func (m *mockVotes) CreateVotes(_ context.Context, rec domain.VotesRecord) error {
	m.log.add("store.CreateVotes")
	m.created = append(m.created, rec)
	return m.createErr
}

func (m *mockVotes) GetVotes(_ context.Context, _ string, _ []string) (*domain.VotesRecord, error) {
	m.log.add("store.GetVotes")
	return m.rec, m.getErr
}

func (m *mockVotes) DeleteVotes(_ context.Context, hostID string) error {
	m.log.add("store.DeleteVotes")
	m.deleted = append(m.deleted, hostID)
	return m.delErr
}

func (m *mockVotes) AddVote(_ context.Context, hostID, candidateID string) (map[string]int, error) {
	m.log.add("store.AddVote")
	m.addCalls = append(m.addCalls, hostID+"/"+candidateID)
	return m.addTally, m.addErr
}

type mockRealtime struct {
	log *callLog

	stageArn  string
	hostToken domain.ParticipantToken
	createErr error

	token    domain.ParticipantToken
	tokenErr error

	deleted       []string
	deleteErr     error
	disconnects   []string
	disconnectErr error

	summaries []domain.ResourceSummary
}

func (m *mockRealtime) CreateStage(_ context.Context, _, _ string, _ map[string]string) (string, domain.ParticipantToken, error) {
	m.log.add("provider.CreateStage")
	return m.stageArn, m.hostToken, m.createErr
}

func (m *mockRealtime) CreateParticipantToken(_ context.Context, _, _ string, _ map[string]string) (domain.ParticipantToken, error) {
	m.log.add("provider.CreateParticipantToken")
	return m.token, m.tokenErr
}

func (m *mockRealtime) DeleteStage(_ context.Context, arn string) error {
	m.log.add("provider.DeleteStage")
	m.deleted = append(m.deleted, arn)
	return m.deleteErr
}

func (m *mockRealtime) DisconnectParticipant(_ context.Context, _, participantID, _ string) error {
	m.log.add("provider.DisconnectParticipant")
	m.disconnects = append(m.disconnects, participantID)
	return m.disconnectErr
}

func (m *mockRealtime) StageSummaries(_ context.Context, _ string) []domain.ResourceSummary {
	m.log.add("provider.StageSummaries")
	return m.summaries
}

type sentEvent struct {
	roomArn    string
	name       string
	attributes map[string]string
}

type mockChat struct {
	log *callLog

	roomArn   string
	createErr error

	token    domain.ChatToken
	tokenErr error

	events   []sentEvent
	eventErr error

	deleted       []string
	deleteErr     error
	disconnects   []string
	disconnectErr error

	summaries []domain.ResourceSummary

	mu sync.Mutex
}

func (m *mockChat) CreateRoom(_ context.Context, _, _ string) (string, error) {
	m.log.add("provider.CreateRoom")
	return m.roomArn, m.createErr
}

func (m *mockChat) CreateChatToken(_ context.Context, _, _ string, _ map[string]string) (domain.ChatToken, error) {
	m.log.add("provider.CreateChatToken")
	return m.token, m.tokenErr
}

func (m *mockChat) SendEvent(_ context.Context, roomArn, eventName string, attributes map[string]string) error {
	m.log.add("provider.SendEvent")
	m.mu.Lock()
	m.events = append(m.events, sentEvent{roomArn: roomArn, name: eventName, attributes: attributes})
	m.mu.Unlock()
	return m.eventErr
}

func (m *mockChat) DisconnectUser(_ context.Context, _, userID, _ string) error {
	m.log.add("provider.DisconnectUser")
	m.disconnects = append(m.disconnects, userID)
	return m.disconnectErr
}

func (m *mockChat) DeleteRoom(_ context.Context, arn string) error {
	m.log.add("provider.DeleteRoom")
	m.deleted = append(m.deleted, arn)
	return m.deleteErr
}

func (m *mockChat) RoomSummaries(_ context.Context, _ string) []domain.ResourceSummary {
	m.log.add("provider.RoomSummaries")
	return m.summaries
}

type fixture struct {
	svc      *Service
	stages   *mockStages
	votes    *mockVotes
	realtime *mockRealtime
	chat     *mockChat
	log      *callLog
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	log := &callLog{}
	f := &fixture{
		stages:   &mockStages{log: log},
		votes:    &mockVotes{log: log},
		realtime: &mockRealtime{log: log},
		chat:     &mockChat{log: log},
		log:      log,
	}
	svc, err := NewService(f.stages, f.votes, f.realtime, f.chat, slog.Default(), cfg)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func expectServiceError(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, code, svcErr.Code)
	return svcErr
}

func videoRecord(hostID string) *domain.StageRecord {
	return &domain.StageRecord{
		HostID:      hostID,
		StageArn:    "arn:stage:" + hostID,
		ChatRoomArn: "arn:room:" + hostID,
		Type:        domain.StageTypeVideo,
		Mode:        domain.StageModeNone,
		Status:      domain.StageStatusIdle,
	}
}

func audioRecord(hostID string, seats []string) *domain.StageRecord {
	return &domain.StageRecord{
		HostID:      hostID,
		StageArn:    "arn:stage:" + hostID,
		ChatRoomArn: "arn:room:" + hostID,
		Type:        domain.StageTypeAudio,
		Mode:        domain.StageModeNone,
		Status:      domain.StageStatusIdle,
		Seats:       domain.NormalizeSeats(seats),
	}
}
