package export

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunInfo holds metadata about a saved run.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration"`
	Targets   []string  `json:"targets"`
	Summary   string    `json:"summary"`
	FilePath  string    `json:"file_path"`
}

// RunStore persists completed runs under <dir>/runs/<run-id>/result.json.
type RunStore struct {
	dir string
}

// NewRunStore returns a store rooted at dir. The runs subdirectory is
// created lazily on first save.
func NewRunStore(dir string) *RunStore {
	return &RunStore{dir: filepath.Join(dir, "runs")}
}

// Save persists the document and returns its run ID.
func (s *RunStore) Save(doc *Document) (string, error) {
	if doc == nil || doc.Report == nil {
		return "", fmt.Errorf("nothing to save")
	}

	runID := fmt.Sprintf("scan_%d", doc.Report.StartTime.Unix())
	runDir := filepath.Join(s.dir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	file, err := os.Create(filepath.Join(runDir, "result.json"))
	if err != nil {
		return "", fmt.Errorf("failed to create result file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return runID, nil
}

// List returns all saved runs, newest first. A store directory that
// does not exist yet yields an empty list.
func (s *RunStore) List() ([]RunInfo, error) {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return []RunInfo{}, nil
	}

	var runs []RunInfo
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() != "result.json" {
			return nil
		}
		info, err := parseRunFile(path)
		if err != nil {
			// A corrupt file should not hide the valid runs around it.
			return nil
		}
		runs = append(runs, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan runs directory: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	return runs, nil
}

// Last returns the most recent run.
func (s *RunStore) Last() (*RunInfo, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no saved runs found")
	}
	return &runs[0], nil
}

// Get finds a run by its ID.
func (s *RunStore) Get(runID string) (*RunInfo, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.RunID == runID {
			return &run, nil
		}
	}
	return nil, fmt.Errorf("run with ID '%s' not found", runID)
}

// Load reads a saved run back into a Document.
func (s *RunStore) Load(runID string) (*Document, error) {
	info, err := s.Get(runID)
	if err != nil {
		return nil, err
	}
	return loadDocument(info.FilePath)
}

// Clean removes runs older than the given number of days and reports
// how many were deleted.
func (s *RunStore) Clean(daysToKeep int) (int, error) {
	runs, err := s.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -daysToKeep)
	cleaned := 0
	for _, run := range runs {
		if run.StartTime.Before(cutoff) {
			if err := os.RemoveAll(filepath.Dir(run.FilePath)); err != nil {
				continue
			}
			cleaned++
		}
	}
	return cleaned, nil
}

func loadDocument(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file: %w", err)
	}
	defer file.Close()

	var doc Document
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	if doc.Report != nil {
		doc.Report.Reindex()
	}
	return &doc, nil
}

func parseRunFile(path string) (RunInfo, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return RunInfo{}, err
	}
	if doc.Report == nil {
		return RunInfo{}, fmt.Errorf("result file %s has no report", path)
	}

	r := doc.Report
	return RunInfo{
		RunID:     filepath.Base(filepath.Dir(path)),
		StartTime: r.StartTime,
		Duration:  r.Duration,
		Targets:   r.Targets,
		Summary:   summarize(doc),
		FilePath:  path,
	}, nil
}

// summarize creates a brief description of the run results.
func summarize(doc *Document) string {
	r := doc.Report
	parts := []string{
		fmt.Sprintf("%d targets", len(r.Targets)),
		fmt.Sprintf("%d ports", len(r.Rows)),
	}
	if r.Open > 0 {
		parts = append(parts, fmt.Sprintf("%d open", r.Open))
	}
	if r.Errored > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", r.Errored))
	}
	return strings.Join(parts, ", ")
}
