package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/workorder-cli/internal/store"
	"github.com/shopdesk/workorder-cli/pkg/anthropic"
	anthropicmocks "github.com/shopdesk/workorder-cli/pkg/anthropic/mocks"
	vpicmocks "github.com/shopdesk/workorder-cli/pkg/vpic/mocks"
	whispermocks "github.com/shopdesk/workorder-cli/pkg/whisper/mocks"
)

// newTestStore returns a migrated SQLite store in a temp dir. The pipeline
// tests run against the real default backend so resolver semantics (VIN
// dedup, monotonic mileage) are exercised end to end.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

type testPipeline struct {
	store       store.Store
	vision      *anthropicmocks.MockClient
	text        *anthropicmocks.MockClient
	whisper     *whispermocks.MockClient
	vpic        *vpicmocks.MockClient
	orch        *Orchestrator
	coordinator *Coordinator
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	st := newTestStore(t)
	vision := anthropicmocks.NewMockClient(t)
	text := anthropicmocks.NewMockClient(t)
	whisperMock := whispermocks.NewMockClient(t)
	vpicMock := vpicmocks.NewMockClient(t)

	orch := NewOrchestrator(
		st,
		NewExtractor(vision, "vision-model", 100),
		NewDecoder(vpicMock),
		NewTranscriber(whisperMock),
		NewSummarizer(text, "summary-model", 2048),
	)

	return &testPipeline{
		store:       st,
		vision:      vision,
		text:        text,
		whisper:     whisperMock,
		vpic:        vpicMock,
		orch:        orch,
		coordinator: NewCoordinator(st, orch, &Runner{}),
	}
}

// textResponse builds a single-text-block message response.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

// promptContains matches a CreateMessage request whose first message text
// block contains substr.
func promptContains(substr string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		for _, msg := range req.Messages {
			for _, block := range msg.Content {
				if block.Type == "text" && strings.Contains(block.Text, substr) {
					return true
				}
			}
		}
		return false
	})
}
