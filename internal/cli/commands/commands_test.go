package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-valuation-service/internal/adapters/secondary/objectstore"
	"apartment-valuation-service/internal/core/domain"
)

// setupWorkspace points the CLI at a fresh local store holding a baseline table.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_LOCAL_ROOT", root)
	t.Setenv("POINTER_BACKEND", "object")
	t.Setenv("DATABASE_ENABLED", "false")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("GEOCODER_ENABLED", "false")
	t.Setenv("LOGGER_LEVEL", "error")
	t.Setenv("PIPELINE_SAMPLES", "120")
	t.Setenv("PIPELINE_SEED", "5")
	t.Setenv("PIPELINE_TREES", "3")

	store, err := objectstore.NewLocalStore(root)
	require.NoError(t, err)
	body, err := json.Marshal([]domain.NeighborhoodBaseline{
		{Neighborhood: "el Raval", District: "1", PriceAnchor: 3000, SlopePerYear: 100, ProjectedPrice: 4000},
		{Neighborhood: "Pedralbes", District: "4", PriceAnchor: 5000, SlopePerYear: 200, ProjectedPrice: 7000},
		{Neighborhood: "la Dreta de l'Eixample", District: "2", PriceAnchor: 5000, SlopePerYear: 150, ProjectedPrice: 6500},
	})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), domain.BaselineKey, body))
	return root
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (map[string]any, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return nil, err
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out), buf.String())
	return out, nil
}

func TestStageCommands_EndToEnd(t *testing.T) {
	setupWorkspace(t)

	gen, err := execute(t, NewGenerateCommand())
	require.NoError(t, err)
	runID := gen["run_id"].(string)
	assert.Equal(t, domain.RawDatasetKey(runID), gen["key"])
	assert.Equal(t, float64(120), gen["rows"])

	proc, err := execute(t, NewProcessCommand(), "--raw-key", gen["key"].(string))
	require.NoError(t, err)
	assert.Equal(t, runID, proc["run_id"])
	assert.Equal(t, float64(96), proc["train_rows"])

	trained, err := execute(t, NewTrainCommand(), "--run", runID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModelKey(runID), trained["model_path"])

	cmp, err := execute(t, NewCompareCommand(), "--run", runID)
	require.NoError(t, err)
	assert.Equal(t, true, cmp["is_better"])

	promo, err := execute(t, NewPromoteCommand(), "--run", runID)
	require.NoError(t, err)
	assert.Equal(t, true, promo["promoted"])

	prod, err := execute(t, NewProductionCommand())
	require.NoError(t, err)
	assert.Equal(t, runID, prod["run_id"])
	assert.Equal(t, float64(1), prod["version"])

	// same metrics again do not beat production
	promo, err = execute(t, NewPromoteCommand(), "--run", runID)
	require.NoError(t, err)
	assert.Equal(t, false, promo["promoted"])

	promo, err = execute(t, NewPromoteCommand(), "--run", runID, "--force")
	require.NoError(t, err)
	assert.Equal(t, true, promo["promoted"])
	assert.Equal(t, float64(2), promo["pointer"].(map[string]any)["version"])
}

func TestPipelineCommand_SkipBaseline(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, NewPipelineCommand(), "--skip-baseline")
	require.NoError(t, err)
	assert.Equal(t, true, out["promotion"].(map[string]any)["promoted"])
	assert.Equal(t, float64(96), out["process"].(map[string]any)["train_rows"])
}

func TestTrainCommand_RequiresRun(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, NewTrainCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"run" not set`)
}

func TestProductionCommand_NothingPromoted(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, NewProductionCommand())
	assert.ErrorIs(t, err, domain.ErrNoProductionPointer)
}

func TestProcessCommand_UnknownRawKey(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, NewProcessCommand(), "--raw-key", domain.RawDatasetKey("2020-01-01-00-00-00"))
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}
