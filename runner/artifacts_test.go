package runner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactName(t *testing.T) {
	tests := []struct {
		name     string
		ref      types.ScenarioRef
		readable string
	}{
		{
			name:     "relative path",
			ref:      types.ScenarioRef{URI: "features/login.feature", Line: 12},
			readable: "login_feature_12",
		},
		{
			name:     "absolute path with nested folder",
			ref:      types.ScenarioRef{URI: "/home/ci/project/features/auth/login.feature", Line: 3},
			readable: "auth/login_feature_3",
		},
		{
			name:     "windows separators",
			ref:      types.ScenarioRef{URI: `C:\project\features\search.feature`, Line: 7},
			readable: "search_feature_7",
		},
		{
			name:     "last features segment wins",
			ref:      types.ScenarioRef{URI: "features/features/x.feature", Line: 1},
			readable: "x_feature_1",
		},
		{
			name:     "no features segment",
			ref:      types.ScenarioRef{URI: "specs/a.b.feature", Line: 2},
			readable: "specs/a_b_feature_2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest := identityDigest(tt.ref)
			assert.Len(t, digest, 2*identityDigestBytes)
			assert.Equal(t, tt.readable+"_"+digest, ArtifactName(tt.ref))

			retry := tt.ref.Retry().Retry()
			assert.Equal(t, tt.readable+"_"+digest+"_RETRY_2", ArtifactName(retry))
		})
	}
}

func TestArtifactName_DistinctIdentities(t *testing.T) {
	pairs := [][2]types.ScenarioRef{
		{
			{URI: "suiteA/features/login.feature", Line: 3},
			{URI: "suiteB/features/login.feature", Line: 3},
		},
		{
			{URI: "features/a.b.feature", Line: 3},
			{URI: "features/a_b.feature", Line: 3},
		},
		{
			{URI: "features/login.feature", Line: 3},
			{URI: "login.feature", Line: 3},
		},
	}
	for _, pair := range pairs {
		assert.NotEqual(t, ArtifactName(pair[0]), ArtifactName(pair[1]), "%s vs %s", pair[0].ID(), pair[1].ID())
	}
}

func TestArtifactPath_UniquePerAttempt(t *testing.T) {
	tempDir := filepath.Join("reports", "tmp")
	ref := types.ScenarioRef{URI: "features/auth/login.feature", Line: 5}

	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		path := ArtifactPath(tempDir, ref)
		assert.False(t, seen[path], "artifact path reused: %s", path)
		seen[path] = true
		ref = ref.Retry()
	}

	first := types.ScenarioRef{URI: "features/auth/login.feature", Line: 5}
	assert.Equal(t, filepath.Join("reports", "tmp", "auth", "login_feature_5_"+identityDigest(first)+".json"),
		ArtifactPath(tempDir, first))
}

func TestScheduler_SameNamedScenariosKeepSeparateArtifacts(t *testing.T) {
	launcher := &fakeLauncher{}
	f := newSchedulerFixture(t, 2, 0, launcher)

	refs := []types.ScenarioRef{
		{URI: "suiteA/features/login.feature", Line: 3, Weight: 1},
		{URI: "suiteB/features/login.feature", Line: 3, Weight: 1},
		{URI: "features/a.b.feature", Line: 3, Weight: 1},
		{URI: "features/a_b.feature", Line: 3, Weight: 1},
	}
	sum, err := f.scheduler.Run(context.Background(), refs)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Totals().Passed)

	require.Len(t, launcher.artifacts, 4)
	unique := make(map[string]bool)
	for _, path := range launcher.artifacts {
		unique[path] = true
	}
	assert.Len(t, unique, 4, "every scenario writes its own artifact")

	// Each scenario's element reaches the final report
	report := readFinalReport(t, f.reportPath)
	var uris []string
	elements := 0
	for _, feature := range report {
		uris = append(uris, feature["uri"].(string))
		elements += len(feature["elements"].([]any))
	}
	assert.Equal(t, 4, elements)
	assert.Contains(t, uris, "features/a.b.feature")
	assert.Contains(t, uris, "features/a_b.feature")
}
