package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRunConfigAcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"generations": 7, "mutation_rate": 0.5, "test_inputs": [3, 4]}`), 0o644))

	raw, err := loadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, raw["generations"])
	assert.Equal(t, 0.5, raw["mutation_rate"])
	assert.Equal(t, []any{3, 4}, raw["test_inputs"])
}

func TestLoadRunConfigEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	raw, err := loadRunConfig(path)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestApplyRunConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("population: 10\n"), 0o644))

	cmd := newRunCmd(&globalOptions{})
	require.NoError(t, cmd.ParseFlags(nil))
	err := applyRunConfig(cmd, path)
	require.EqualError(t, err, "unknown config key: population")
}

func TestApplyRunConfigKeepsExplicitFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generations: 9\nseed: 4\ndrift: 12\n"), 0o644))

	cmd := newRunCmd(&globalOptions{})
	require.NoError(t, cmd.ParseFlags([]string{"--generations", "3"}))
	require.NoError(t, applyRunConfig(cmd, path))

	generations, err := cmd.Flags().GetInt("generations")
	require.NoError(t, err)
	assert.Equal(t, 3, generations)
	seed, err := cmd.Flags().GetInt64("seed")
	require.NoError(t, err)
	assert.Equal(t, int64(4), seed)
	assert.True(t, cmd.Flags().Changed("drift"))
}

func TestFlagValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{in: "x", want: "x"},
		{in: true, want: "true"},
		{in: 12, want: "12"},
		{in: 0.05, want: "0.05"},
		{in: []any{10, 5, 20}, want: "10,5,20"},
	}
	for _, tc := range cases {
		got, err := flagValue(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := flagValue(nil)
	require.Error(t, err)
	_, err = flagValue(map[string]any{"a": 1})
	require.Error(t, err)
}
