package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to a text source", func(t *testing.T) {
		ingest := &mockIngestService{
			items: []domain.ContextItem{{ID: "c1"}, {ID: "c2"}},
			count: 5,
		}
		server := newTestServer(t, nil, ingest)

		_, output, err := server.handleIngest(ctx, nil, IngestInput{ProtocolID: "p1", Content: "Refunds within 14 days."})

		require.NoError(t, err)
		assert.Equal(t, domain.SourceTypeText, ingest.gotSource.Type)
		assert.Equal(t, "text", ingest.gotSource.Name)
		assert.Equal(t, []string{"c1", "c2"}, output.ItemIDs)
		assert.Equal(t, 2, output.ItemsAdded)
		assert.Equal(t, 5, output.TotalItems)
	})

	t.Run("passes format and type through", func(t *testing.T) {
		ingest := &mockIngestService{}
		server := newTestServer(t, nil, ingest)

		_, _, err := server.handleIngest(ctx, nil, IngestInput{
			ProtocolID: "p1", SourceType: "URL", Name: "https://example.com/policy",
			Format: domain.FormatHTML, Content: "<p>hi</p>",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.SourceTypeURL, ingest.gotSource.Type)
		assert.Equal(t, domain.FormatHTML, ingest.gotSource.Format)
	})

	t.Run("returns ingestion errors", func(t *testing.T) {
		ingest := &mockIngestService{err: &domain.IngestionError{SourceName: "x", Err: domain.ErrUnsupportedFormat}}
		server := newTestServer(t, nil, ingest)

		_, _, err := server.handleIngest(ctx, nil, IngestInput{ProtocolID: "p1", Content: "x"})

		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	})
}

func TestServer_handleGenerate(t *testing.T) {
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns the completed draft", func(t *testing.T) {
		protocol := &mockProtocolService{
			result: &domain.PipelineResult{
				Run:   &domain.PipelineRun{ID: "r1", ProtocolID: "p1", Stage: domain.StageComplete, StartedAt: started},
				Draft: sampleDraft(),
			},
		}
		server := newTestServer(t, protocol, nil)

		_, output, err := server.handleGenerate(ctx, nil, GenerateInput{
			ProtocolID: "p1", Goal: "Answer refund questions", Constraints: []string{"Be polite"},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"Be polite"}, protocol.gotRequest.Constraints)
		assert.Equal(t, "r1", output.Run.RunID)
		assert.Equal(t, "COMPLETE", output.Run.Stage)
		assert.Equal(t, "2026-03-01T12:00:00Z", output.Run.StartedAt)
		require.NotNil(t, output.Draft)
		assert.Equal(t, 82.0, output.Draft.Score.Overall)
		assert.Empty(t, output.Error)
	})

	t.Run("failed run still carries the best draft", func(t *testing.T) {
		protocol := &mockProtocolService{
			err: &domain.PipelineError{RunID: "r2", Stage: domain.StageValidating, Err: domain.ErrBelowHardFloor, BestDraft: sampleDraft()},
			run: &domain.PipelineRun{ID: "r2", Stage: domain.StageFailed, LastError: "score below hard floor"},
		}
		server := newTestServer(t, protocol, nil)

		_, output, err := server.handleGenerate(ctx, nil, GenerateInput{ProtocolID: "p1", Goal: "g"})

		require.NoError(t, err)
		assert.Equal(t, "FAILED", output.Run.Stage)
		require.NotNil(t, output.Draft)
		assert.Equal(t, "d1", output.Draft.ID)
		assert.Contains(t, output.Error, "score below hard floor")
	})

	t.Run("failed run without a tracked status", func(t *testing.T) {
		protocol := &mockProtocolService{
			err:       &domain.PipelineError{RunID: "r3", Stage: domain.StageSynthesizing, Err: domain.ErrGenerationUnavailable},
			statusErr: domain.ErrNotFound,
		}
		server := newTestServer(t, protocol, nil)

		_, output, err := server.handleGenerate(ctx, nil, GenerateInput{ProtocolID: "p1", Goal: "g"})

		require.NoError(t, err)
		assert.Equal(t, "r3", output.Run.RunID)
		assert.Equal(t, "FAILED", output.Run.Stage)
		assert.Nil(t, output.Draft)
	})

	t.Run("other errors are returned", func(t *testing.T) {
		server := newTestServer(t, &mockProtocolService{err: domain.ErrPipelineBusy}, nil)

		_, _, err := server.handleGenerate(ctx, nil, GenerateInput{ProtocolID: "p1", Goal: "g"})

		assert.ErrorIs(t, err, domain.ErrPipelineBusy)
	})

	t.Run("async returns the run id", func(t *testing.T) {
		protocol := &mockProtocolService{
			runID: "r4",
			run:   &domain.PipelineRun{ID: "r4", ProtocolID: "p1", Stage: domain.StageIngesting},
		}
		server := newTestServer(t, protocol, nil)

		_, output, err := server.handleGenerate(ctx, nil, GenerateInput{ProtocolID: "p1", Goal: "g", Async: true})

		require.NoError(t, err)
		assert.Equal(t, "r4", output.Run.RunID)
		assert.Equal(t, "INGESTING", output.Run.Stage)
		assert.Nil(t, output.Draft)
	})
}

func TestServer_handleStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("maps the run", func(t *testing.T) {
		protocol := &mockProtocolService{run: &domain.PipelineRun{
			ID: "r1", ProtocolID: "p1", Stage: domain.StageImproving, IterationCount: 1,
			Warnings: []string{"context unavailable"},
			History:  []domain.ValidationResult{{DraftVersion: 3, Score: domain.Score{Overall: 55}}},
		}}
		server := newTestServer(t, protocol, nil)

		_, output, err := server.handleStatus(ctx, nil, StatusInput{RunID: "r1"})

		require.NoError(t, err)
		assert.Equal(t, "IMPROVING", output.Stage)
		assert.Equal(t, 1, output.IterationCount)
		require.Len(t, output.History, 1)
		assert.Equal(t, 55.0, output.History[0].Score.Overall)
		assert.Empty(t, output.History[0].Issues)
	})

	t.Run("unknown run", func(t *testing.T) {
		server := newTestServer(t, &mockProtocolService{statusErr: domain.ErrNotFound}, nil)

		_, _, err := server.handleStatus(ctx, nil, StatusInput{RunID: "nope"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleRevalidate(t *testing.T) {
	ctx := context.Background()
	validation := domain.ValidationResult{
		DraftVersion: 3,
		Score:        domain.Score{Overall: 70, Completeness: 70},
		Issues:       []domain.Issue{{Severity: domain.SeverityHigh, Field: "examples", Message: "too few"}},
	}

	t.Run("scores a supplied draft", func(t *testing.T) {
		protocol := &mockProtocolService{validation: validation}
		server := newTestServer(t, protocol, nil)

		_, output, err := server.handleRevalidate(ctx, nil, RevalidateInput{
			Draft: &DraftView{SystemPrompt: "You help.", Examples: []ExampleView{{Input: "a", Output: "b"}}},
		})

		require.NoError(t, err)
		require.NotNil(t, protocol.gotDraft)
		assert.Equal(t, 1, protocol.gotDraft.Version)
		assert.Equal(t, domain.DraftStatusDraft, protocol.gotDraft.Status)
		assert.Equal(t, []domain.Example{{Input: "a", Output: "b"}}, protocol.gotDraft.Examples)
		want := ValidationView{
			DraftVersion: 3,
			Score:        ScoreView{Overall: 70, Completeness: 70},
			Issues:       []IssueView{{Severity: "high", Field: "examples", Message: "too few"}},
			Suggestions:  []SuggestionView{},
		}
		if diff := cmp.Diff(want, output); diff != "" {
			t.Errorf("handleRevalidate() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("scores the latest draft of a protocol", func(t *testing.T) {
		protocol := &mockProtocolService{validation: validation, draft: sampleDraft()}
		server := newTestServer(t, protocol, nil)

		_, _, err := server.handleRevalidate(ctx, nil, RevalidateInput{ProtocolID: "p1"})

		require.NoError(t, err)
		assert.Same(t, protocol.draft, protocol.gotDraft)
	})

	t.Run("no draft for protocol", func(t *testing.T) {
		server := newTestServer(t, &mockProtocolService{}, nil)

		_, _, err := server.handleRevalidate(ctx, nil, RevalidateInput{ProtocolID: "p1"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("nothing to score", func(t *testing.T) {
		server := newTestServer(t, &mockProtocolService{}, nil)

		_, _, err := server.handleRevalidate(ctx, nil, RevalidateInput{})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleDeleteContext(t *testing.T) {
	ctx := context.Background()

	t.Run("reports how many items were removed", func(t *testing.T) {
		ingest := &mockIngestService{count: 7}
		server := newTestServer(t, nil, ingest)

		_, output, err := server.handleDeleteContext(ctx, nil, DeleteContextInput{ProtocolID: "p1"})

		require.NoError(t, err)
		assert.Equal(t, 7, output.Deleted)
		assert.Equal(t, []string{"p1"}, ingest.deleted)
	})

	t.Run("returns store errors", func(t *testing.T) {
		server := newTestServer(t, nil, &mockIngestService{err: errors.New("disk full")})

		_, _, err := server.handleDeleteContext(ctx, nil, DeleteContextInput{ProtocolID: "p1"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestDraftView_RoundTrip(t *testing.T) {
	in := sampleDraft()
	in.Status = domain.DraftStatusCompleteWithWarnings

	out := draftView(in).toDomain()
	out.Score = in.Score

	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("draft view round trip mismatch (-want +got):\n%s", diff)
	}
}
