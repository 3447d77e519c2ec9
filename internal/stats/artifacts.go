package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"siliconsoul/internal/genome"
	"siliconsoul/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	championTextExt = ".v"
)

// RunConfig is the resolved configuration a run was started with.
type RunConfig struct {
	RunID            string  `json:"run_id"`
	BasePath         string  `json:"base_path,omitempty"`
	Policy           string  `json:"policy"`
	GenerationSize   int     `json:"generation_size"`
	Generations      int     `json:"generations"`
	MutationRate     float64 `json:"mutation_rate"`
	DriftProfile     string  `json:"drift_profile,omitempty"`
	Drift            int64   `json:"drift"`
	DriftFloor       int64   `json:"drift_floor"`
	TestInputs       []int64 `json:"test_inputs,omitempty"`
	TargetMultiplier int64   `json:"target_multiplier,omitempty"`
	Cycles           int     `json:"cycles,omitempty"`
	Feedback         int64   `json:"feedback,omitempty"`
	Noise            int     `json:"noise,omitempty"`
	SnapshotInterval int     `json:"snapshot_interval"`
	RetainChampion   bool    `json:"retain_champion"`
	EliteCount       int     `json:"elite_count"`
	Selection        string  `json:"selection"`
	Workers          int     `json:"workers"`
	Seed             int64   `json:"seed"`
}

type Champion struct {
	ID        string           `json:"id"`
	Fitness   float64          `json:"fitness"`
	Phenotype genome.Phenotype `json:"phenotype"`
	Text      string           `json:"text"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
	Extinct               bool                          `json:"extinct"`
	ExtinctAt             int                           `json:"extinct_at,omitempty"`
	Champion              Champion                      `json:"champion"`
	Lineage               []LineageEntry                `json:"lineage"`
}

type LineageEntry struct {
	GenomeID    string `json:"genome_id"`
	ParentID    string `json:"parent_id"`
	Generation  int    `json:"generation"`
	Operation   string `json:"operation"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type RunIndexEntry struct {
	RunID                string  `json:"run_id"`
	Policy               string  `json:"policy"`
	GenerationSize       int     `json:"generation_size"`
	Generations          int     `json:"generations"`
	CompletedGenerations int     `json:"completed_generations"`
	Seed                 int64   `json:"seed"`
	Workers              int     `json:"workers"`
	FinalBestFitness     float64 `json:"final_best_fitness"`
	Extinct              bool    `json:"extinct"`
	CreatedAtUTC         string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes the run directory <baseDir>/<run id>. The champion
// is written both as JSON and as plain genome text.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	history := map[string]any{
		"best_by_generation": artifacts.BestByGeneration,
		"final_best_fitness": artifacts.FinalBestFitness,
		"extinct":            artifacts.Extinct,
	}
	if artifacts.Extinct {
		history["extinct_at"] = artifacts.ExtinctAt
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), history); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByGeneration); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "champion.json"), artifacts.Champion); err != nil {
		return "", err
	}
	if err := genome.Write(filepath.Join(runDir, "champion"+championTextExt), genome.Text(artifacts.Champion.Text)); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "lineage.json"), artifacts.Lineage); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}

	return runDir, nil
}

func LineageEntries(lineage []model.LineageRecord) []LineageEntry {
	out := make([]LineageEntry, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, LineageEntry{
			GenomeID:    rec.GenomeID,
			ParentID:    rec.ParentID,
			Generation:  rec.Generation,
			Operation:   rec.Operation,
			Fingerprint: rec.Fingerprint,
		})
	}
	return out
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

var exportFiles = []string{
	"config.json",
	"fitness_history.json",
	"fitness_history.csv",
	"champion.json",
	"champion" + championTextExt,
	"lineage.json",
	"generation_diagnostics.json",
}

// ExportRunArtifacts copies a run directory to outDir. A missing champion
// text file is skipped.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range exportFiles {
		from := filepath.Join(src, file)
		if strings.HasSuffix(file, championTextExt) {
			if _, err := os.Stat(from); os.IsNotExist(err) {
				continue
			}
		}
		if err := copyFile(from, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadChampion(baseDir, runID string) (Champion, bool, error) {
	var champion Champion
	ok, err := readJSON(filepath.Join(baseDir, runID, "champion.json"), &champion)
	return champion, ok, err
}

// WriteFitnessSeries writes best fitness per generation as CSV.
func WriteFitnessSeries(runDir string, bestByGeneration []float64) error {
	path := filepath.Join(runDir, "fitness_history.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, "fitness_history.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 32)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
