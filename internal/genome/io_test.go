package genome

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plastic_neuron.v")
	require.NoError(t, Write(path, plasticNeuron))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Text(plasticNeuron), loaded)
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.v"))
	require.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.v")
	require.NoError(t, os.WriteFile(empty, []byte("  \n\t"), 0o644))
	_, err = Load(empty)
	require.ErrorIs(t, err, ErrEmptyGenome)

	binary := filepath.Join(dir, "binary.bit")
	require.NoError(t, os.WriteFile(binary, []byte{0xff, 0xfe, 0x00}, 0o644))
	_, err = Load(binary)
	require.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = Load("")
	require.Error(t, err)
}

func TestGenerationFileName(t *testing.T) {
	assert.Equal(t, "plastic_neuron_gen5.v", GenerationFileName("/hw/plastic_neuron.v", 5))
	assert.Equal(t, "chip_gen1.v", GenerationFileName("chip", 1))
	assert.Equal(t, "genome_gen2.v", GenerationFileName("", 2))
	assert.Equal(t, "genome_gen3.v", GenerationFileName("/", 3))
	assert.Equal(t, "genome_gen4.v", GenerationFileName(".", 4))
}
