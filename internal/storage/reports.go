package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/segmentio/ksuid"

	"github.com/vampirenirmal/storyscope/internal/analysis"
	"github.com/vampirenirmal/storyscope/internal/insights"
)

// ErrNotFound reports a report id with no stored file.
var ErrNotFound = errors.New("report not found")

// Report is a saved analysis. IDs are KSUIDs, so sorting them orders
// reports by creation time.
type Report struct {
	ID          string                `json:"id"`
	ProjectID   string                `json:"projectId"`
	CreatedAt   time.Time             `json:"createdAt"`
	Result      *analysis.Result      `json:"result"`
	Suggestions []insights.Suggestion `json:"suggestions,omitempty"`
}

// ReportStore keeps reports as reports/<project>/<id>.json.
type ReportStore struct {
	store Storage
	now   func() time.Time
}

func NewReportStore(store Storage) *ReportStore {
	return &ReportStore{store: store, now: time.Now}
}

// Save stores result under the project and returns the saved report.
func (s *ReportStore) Save(ctx context.Context, projectID string, result *analysis.Result, suggestions []insights.Suggestion) (*Report, error) {
	if result == nil {
		return nil, errors.New("saving report: nil result")
	}
	created := s.now().UTC()
	id, err := ksuid.NewRandomWithTime(created)
	if err != nil {
		return nil, fmt.Errorf("generating report id: %w", err)
	}

	r := &Report{
		ID:          id.String(),
		ProjectID:   projectID,
		CreatedAt:   created,
		Result:      result,
		Suggestions: suggestions,
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	if err := s.store.Save(ctx, reportPath(projectID, r.ID), data); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}
	return r, nil
}

func (s *ReportStore) Load(ctx context.Context, projectID, id string) (*Report, error) {
	if _, err := ksuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q is not a report id", ErrInvalidPath, id)
	}
	data, err := s.store.Load(ctx, reportPath(projectID, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, projectDir(projectID), id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading report %s: %w", id, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", id, err)
	}
	return &r, nil
}

// Delete removes a stored report.
func (s *ReportStore) Delete(ctx context.Context, projectID, id string) error {
	if _, err := ksuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q is not a report id", ErrInvalidPath, id)
	}
	err := s.store.Delete(ctx, reportPath(projectID, id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, projectDir(projectID), id)
	}
	return err
}

// List returns the ids of a project's reports, newest first.
func (s *ReportStore) List(ctx context.Context, projectID string) ([]string, error) {
	paths, err := s.store.List(ctx, path.Join("reports", projectDir(projectID), "*.json"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		id := strings.TrimSuffix(path.Base(p), ".json")
		if _, err := ksuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	slices.Reverse(ids)
	return ids, nil
}

// Latest loads the most recent report of a project.
func (s *ReportStore) Latest(ctx context.Context, projectID string) (*Report, error) {
	ids, err := s.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no reports for %s", ErrNotFound, projectDir(projectID))
	}
	return s.Load(ctx, projectID, ids[0])
}

func reportPath(projectID, id string) string {
	return path.Join("reports", projectDir(projectID), id+".json")
}

// projectDir converts a project id to a safe directory name.
func projectDir(projectID string) string {
	return sanitizeForFilename(projectID, 64)
}

// sanitizeForFilename lowercases s and keeps letters, digits, '-' and '_',
// turning every other run of characters into a single hyphen.
func sanitizeForFilename(s string, maxLen int) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
			hyphen = r == '-'
			continue
		}
		if !hyphen {
			b.WriteByte('-')
			hyphen = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], "-")
	}
	if out == "" {
		out = "default"
	}
	return out
}
