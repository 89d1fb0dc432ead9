package clustering

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/vecmath"
)

type fakeEmbedder struct {
	model   string
	vectors map[string][]float32
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no canned vector for %q", t)
		}
		out[i] = vecmath.Normalize(append([]float32(nil), v...))
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeEmbedder) ModelName() string { return f.model }
func (f *fakeEmbedder) Dimension() int    { return 3 }

func defaultConfig(t *testing.T, algorithm string) Config {
	t.Helper()
	return Config{
		Algorithm:            algorithm,
		ModelPath:            filepath.Join(t.TempDir(), "cluster_model.gob"),
		TailChars:            50,
		EpsilonDBSCAN:        0.3,
		MinSamplesDBSCAN:     2,
		DistanceThresholdAgg: 0.5,
		AssignThreshold:      0.35,
	}
}

func TestNewStageRejectsUnknownAlgorithm(t *testing.T) {
	cfg := defaultConfig(t, "kmeans")
	_, err := NewStage(cfg, &fakeEmbedder{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kmeans")
}

func TestDBSCANGroupsAndMarksNoise(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0}, {1, 0.01, 0}, // tight pair
		{0, 1, 0}, {0, 1, 0.01}, // second tight pair
		{0, 0, 1}, // isolated
	}
	for i := range vectors {
		vecmath.Normalize(vectors[i])
	}

	labels := dbscan(cosineDistanceMatrix(vectors), 0.3, 2)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[2], labels[3])
	assert.NotEqual(t, labels[0], labels[2])
	assert.Equal(t, Noise, labels[4])
}

func TestPromoteNoiseGivesSingletons(t *testing.T) {
	labels := promoteNoise([]int{0, Noise, 1, Noise})
	assert.Equal(t, []int{0, 2, 1, 3}, labels)

	// No two promoted points share a label.
	seen := map[int]bool{}
	for _, l := range labels {
		assert.False(t, seen[l])
		seen[l] = true
		assert.GreaterOrEqual(t, l, 0)
	}
}

func TestMeanShiftSeparatesDistantGroups(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0}, {1, 0.02, 0}, {1, 0, 0.02},
		{0, 1, 0}, {0, 1, 0.02}, {0.02, 1, 0},
	}
	for i := range vectors {
		vecmath.Normalize(vectors[i])
	}

	labels := meanShift(vectors)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.Equal(t, labels[3], labels[5])
	assert.NotEqual(t, labels[0], labels[3])
}

func TestMeanShiftIdenticalPointsOneCluster(t *testing.T) {
	vectors := [][]float32{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}}
	labels := meanShift(vectors)
	assert.Equal(t, []int{0, 0, 0}, labels)
}

func TestAgglomerativeMergesUnderThreshold(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0}, {1, 0.05, 0},
		{0, 0, 1},
	}
	for i := range vectors {
		vecmath.Normalize(vectors[i])
	}

	labels := agglomerative(vectors, 0.5)
	assert.Equal(t, labels[0], labels[1])
	assert.NotEqual(t, labels[0], labels[2])
}

func stageEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		model: "fake-embed-v1",
		vectors: map[string][]float32{
			"disk full on host a":   {1, 0, 0},
			"disk full on host b":   {1, 0.01, 0},
			"ssh timeout worker 3":  {0, 1, 0},
			"ssh timeout worker 9":  {0, 1, 0.01},
			"certificate expired":   {0, 0, 1},
			"disk almost full":      {1, 0.05, 0},
			"kernel panic on boot":  {0.5, -0.8, 0.3},
			"kernel panic on boot2": {0.5, -0.79, 0.31},
		},
	}
}

func TestStageFitLabelsAlignWithInput(t *testing.T) {
	stage, err := NewStage(defaultConfig(t, "dbscan"), stageEmbedder(), zap.NewNop())
	require.NoError(t, err)

	logs := []string{
		"disk full on host a",
		"ssh timeout worker 3",
		"disk full on host b",
		"ssh timeout worker 9",
		"certificate expired",
	}
	labels, err := stage.Fit(context.Background(), logs)
	require.NoError(t, err)
	require.Len(t, labels, len(logs))

	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[1], labels[3])
	assert.NotEqual(t, labels[0], labels[1])
	assert.NotEqual(t, labels[0], labels[4])
	assert.NotEqual(t, labels[1], labels[4])
	assert.NotContains(t, labels, "-1")
}

func TestStageModelRoundTrip(t *testing.T) {
	cfg := defaultConfig(t, "dbscan")
	client := stageEmbedder()
	stage, err := NewStage(cfg, client, zap.NewNop())
	require.NoError(t, err)

	_, err = stage.Fit(context.Background(), []string{
		"disk full on host a", "disk full on host b",
		"ssh timeout worker 3", "ssh timeout worker 9",
	})
	require.NoError(t, err)

	fresh, err := NewStage(cfg, client, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, fresh.Load())

	id, err := fresh.Assign(context.Background(), "disk almost full")
	require.NoError(t, err)
	first, err := fresh.Assign(context.Background(), "disk full on host a")
	require.NoError(t, err)
	assert.Equal(t, first, id)
}

func TestStageLoadRejectsEmbedModelMismatch(t *testing.T) {
	cfg := defaultConfig(t, "dbscan")
	stage, err := NewStage(cfg, stageEmbedder(), zap.NewNop())
	require.NoError(t, err)
	_, err = stage.Fit(context.Background(), []string{"disk full on host a", "disk full on host b"})
	require.NoError(t, err)

	other := stageEmbedder()
	other.model = "different-model"
	fresh, err := NewStage(cfg, other, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, fresh.Load())
}

func TestStageAssignFoundsNewClusterWhenFar(t *testing.T) {
	stage, err := NewStage(defaultConfig(t, "dbscan"), stageEmbedder(), zap.NewNop())
	require.NoError(t, err)

	_, err = stage.Fit(context.Background(), []string{
		"disk full on host a", "disk full on host b",
	})
	require.NoError(t, err)

	founder, err := stage.Assign(context.Background(), "kernel panic on boot")
	require.NoError(t, err)
	existing, err := stage.Assign(context.Background(), "disk almost full")
	require.NoError(t, err)
	assert.NotEqual(t, founder, existing)

	// A near-identical follower joins the freshly founded cluster.
	follower, err := stage.Assign(context.Background(), "kernel panic on boot2")
	require.NoError(t, err)
	assert.Equal(t, founder, follower)
}

func TestStageAssignWithoutModelStartsFresh(t *testing.T) {
	stage, err := NewStage(defaultConfig(t, "meanshift"), stageEmbedder(), zap.NewNop())
	require.NoError(t, err)

	id, err := stage.Assign(context.Background(), "certificate expired")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestTailTruncation(t *testing.T) {
	cfg := defaultConfig(t, "dbscan")
	cfg.TailChars = 5
	stage, err := NewStage(cfg, stageEmbedder(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "jklmn", stage.tail("abcdefghijklmn"))
	assert.Equal(t, "abc", stage.tail("abc"))
}
