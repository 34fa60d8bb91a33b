package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// mockIngestService implements driving.IngestService for testing.
type mockIngestService struct {
	items   []domain.ContextItem
	count   int
	err     error
	sources []domain.Source
	removed []string
	deleted []string
}

func (m *mockIngestService) Ingest(_ context.Context, src domain.Source) ([]domain.ContextItem, error) {
	m.sources = append(m.sources, src)
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

func (m *mockIngestService) Remove(_ context.Context, _, itemID string) error {
	m.removed = append(m.removed, itemID)
	return m.err
}

func (m *mockIngestService) DeleteAll(_ context.Context, protocolID string) error {
	m.deleted = append(m.deleted, protocolID)
	return m.err
}

func (m *mockIngestService) Count(_ context.Context, _ string) (int, error) {
	return m.count, nil
}

// mockProtocolService implements driving.ProtocolService for testing.
type mockProtocolService struct {
	result     *domain.PipelineResult
	err        error
	draft      *domain.ProtocolDraft
	validation domain.ValidationResult
	requests   []domain.GenerateRequest
	revalidated  *domain.ProtocolDraft
}

func (m *mockProtocolService) Generate(_ context.Context, req domain.GenerateRequest) (*domain.PipelineResult, error) {
	m.requests = append(m.requests, req)
	return m.result, m.err
}

func (m *mockProtocolService) Start(_ context.Context, req domain.GenerateRequest) (string, error) {
	m.requests = append(m.requests, req)
	return "run-1", m.err
}

func (m *mockProtocolService) Status(_ context.Context, _ string) (*domain.PipelineRun, error) {
	if m.result == nil {
		return nil, domain.ErrNotFound
	}
	return m.result.Run, nil
}

func (m *mockProtocolService) Wait(_ context.Context, _ string) (*domain.PipelineResult, error) {
	return m.result, m.err
}

func (m *mockProtocolService) Cancel(_ context.Context, _ string) error {
	return nil
}

func (m *mockProtocolService) Revalidate(_ context.Context, draft *domain.ProtocolDraft) (domain.ValidationResult, error) {
	m.revalidated = draft
	return m.validation, m.err
}

func (m *mockProtocolService) LatestDraft(_ context.Context, _ string) (*domain.ProtocolDraft, error) {
	if m.draft == nil {
		return nil, domain.ErrNotFound
	}
	return m.draft, nil
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	llm         []string
	embedding   []string
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.embedding = []string{string(p), model, apiKey}
	return nil
}

func (m *mockSettingsService) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.llm = []string{string(p), model, apiKey}
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

// setupTestServices installs mocks and returns them with a restore func.
func setupTestServices() (*mockIngestService, *mockProtocolService, *mockSettingsService, func()) {
	oldIngest, oldProtocol, oldSettings := ingestService, protocolService, settingsService
	ingest := &mockIngestService{}
	protocol := &mockProtocolService{}
	settings := &mockSettingsService{settings: domain.DefaultAppSettings()}
	SetServices(Services{Ingest: ingest, Protocol: protocol, Settings: settings})
	return ingest, protocol, settings, func() {
		ingestService, protocolService, settingsService = oldIngest, oldProtocol, oldSettings
	}
}

// resetFlags restores every package-level flag variable to its default.
func resetFlags() {
	ingestText, ingestName, ingestFormat, ingestURL = "", "", "", ""
	generateFile, generateDomain, generateGoal, generateRole = "", "", "", ""
	generateConstraints = nil
	generateOutput, showOutput, revalidateOutput, versionOutput = "text", "text", "text", "text"
	revalidateFile = ""
}

// runCommand executes the root command with args and returns its output.
func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags()
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"ingest", "generate", "show", "revalidate", "context", "serve", "settings", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestServicesNotConfigured(t *testing.T) {
	oldIngest, oldProtocol := ingestService, protocolService
	ingestService, protocolService = nil, nil
	defer func() { ingestService, protocolService = oldIngest, oldProtocol }()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"ingest", "p1", "--text", "x"}, "ingest service not configured"},
		{[]string{"generate", "p1", "--goal", "g"}, "protocol service not configured"},
		{[]string{"show", "p1"}, "protocol service not configured"},
		{[]string{"context", "delete", "p1"}, "ingest service not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			_, err := runCommand(t, "", tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
