package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Drakaniia/vibe-kanban/internal/common/config"
	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/executors"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "error",
		Format:     "json",
		OutputPath: "stderr",
	})
	require.NoError(t, err)
	return log
}

func TestNewRegistry(t *testing.T) {
	cfg := config.ExecutorsConfig{
		Default: "iflow",
		Profiles: map[string]config.ExecutorProfile{
			"iflow":      {Kind: "iflow", Model: "pro"},
			"gemini":     {Kind: "gemini"},
			"iflow-yolo": {Kind: "iflow", Yolo: true},
		},
	}

	r, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"gemini", "iflow", "iflow-yolo"}, r.List())

	def, ok := r.Default()
	require.True(t, ok)
	assert.NotNil(t, def)
	assert.Equal(t, "iflow", r.DefaultName())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

type stubApprovals struct{}

func (stubApprovals) Decide(ctx context.Context, req executors.ApprovalRequest) (executors.ApprovalDecision, error) {
	return executors.ApprovalDecision{Approved: true}, nil
}

func TestRegistryUseApprovals(t *testing.T) {
	cfg := config.ExecutorsConfig{
		Default: "iflow",
		Profiles: map[string]config.ExecutorProfile{
			"iflow":  {Kind: "iflow"},
			"gemini": {Kind: "gemini"},
		},
	}
	r, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	// Attaches to every profile; routing behavior is covered by the
	// executor tests.
	r.UseApprovals(stubApprovals{})
	for _, name := range r.List() {
		e, ok := r.Get(name)
		require.True(t, ok)
		assert.NotNil(t, e)
	}
}

func TestNewRegistryUnknownKind(t *testing.T) {
	cfg := config.ExecutorsConfig{
		Profiles: map[string]config.ExecutorProfile{
			"bad": {Kind: "clippy"},
		},
	}
	_, err := New(cfg, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown executor kind")
}

func TestNewRegistryMissingDefault(t *testing.T) {
	cfg := config.ExecutorsConfig{
		Default: "nope",
		Profiles: map[string]config.ExecutorProfile{
			"iflow": {Kind: "iflow"},
		},
	}
	_, err := New(cfg, testLogger(t))
	require.Error(t, err)
}
