package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// mockProtocolService is a mock implementation of driving.ProtocolService.
type mockProtocolService struct {
	result     *domain.PipelineResult
	run        *domain.PipelineRun
	draft      *domain.ProtocolDraft
	validation domain.ValidationResult
	runID      string
	err        error
	statusErr  error

	gotRequest domain.GenerateRequest
	gotDraft   *domain.ProtocolDraft
}

func (m *mockProtocolService) Generate(_ context.Context, req domain.GenerateRequest) (*domain.PipelineResult, error) {
	m.gotRequest = req
	return m.result, m.err
}

func (m *mockProtocolService) Start(_ context.Context, req domain.GenerateRequest) (string, error) {
	m.gotRequest = req
	return m.runID, m.err
}

func (m *mockProtocolService) Status(_ context.Context, _ string) (*domain.PipelineRun, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.run, nil
}

func (m *mockProtocolService) Wait(_ context.Context, _ string) (*domain.PipelineResult, error) {
	return m.result, m.err
}

func (m *mockProtocolService) Cancel(_ context.Context, _ string) error {
	return m.err
}

func (m *mockProtocolService) Revalidate(_ context.Context, draft *domain.ProtocolDraft) (domain.ValidationResult, error) {
	m.gotDraft = draft
	return m.validation, m.err
}

func (m *mockProtocolService) LatestDraft(_ context.Context, _ string) (*domain.ProtocolDraft, error) {
	if m.draft == nil {
		return nil, domain.ErrNotFound
	}
	return m.draft, nil
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	items   []domain.ContextItem
	count   int
	err     error
	deleted []string

	gotSource domain.Source
}

func (m *mockIngestService) Ingest(_ context.Context, src domain.Source) ([]domain.ContextItem, error) {
	m.gotSource = src
	return m.items, m.err
}

func (m *mockIngestService) Remove(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockIngestService) DeleteAll(_ context.Context, protocolID string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, protocolID)
	return nil
}

func (m *mockIngestService) Count(_ context.Context, _ string) (int, error) {
	return m.count, m.err
}

func newTestServer(t testing.TB, protocol *mockProtocolService, ingest *mockIngestService) *Server {
	t.Helper()
	if protocol == nil {
		protocol = &mockProtocolService{}
	}
	if ingest == nil {
		ingest = &mockIngestService{}
	}
	server, err := NewServer(&Ports{Protocol: protocol, Ingest: ingest})
	require.NoError(t, err)
	return server
}

func sampleDraft() *domain.ProtocolDraft {
	score := domain.Score{Overall: 82, Completeness: 90, Clarity: 80, Actionability: 80, DomainAlignment: 80, HallucinationRisk: 20}
	return &domain.ProtocolDraft{
		ID:           "d1",
		ProtocolID:   "p1",
		Goal:         "Answer refund questions",
		SystemPrompt: "You help with refunds.",
		Constraints:  []string{"Refunds must be processed within 14 days"},
		Examples:     []domain.Example{{Input: "refund?", Output: "Within 14 days."}},
		References:   []domain.Reference{{ContextItemID: "c1", SourceName: "policy.md", Similarity: 0.91}},
		Version:      3,
		Status:       domain.DraftStatusComplete,
		Score:        &score,
	}
}
