package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-fit/internal/compat"
	"github.com/spigell/resume-fit/internal/feedback"
)

func sampleRecord(title string, created time.Time) *Record {
	r := NewRecord(title, "Go developer with Kubernetes", "resume.pdf", &compat.Result{
		MatchScore:      81.5,
		MatchedKeywords: []string{"go"},
		MissingKeywords: []string{"kubernetes"},
		KeywordCoverage: 50,
	})
	r.CreatedAt = created
	return r
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "analyses.json"))
	require.NoError(t, err)

	r := sampleRecord("Backend", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.JobTitle, got.JobTitle)
	assert.Equal(t, r.Result.MissingKeywords, got.Result.MissingKeywords)
	assert.Nil(t, got.Feedback)

	r.Feedback = &feedback.Feedback{OverallAssessment: "solid"}
	require.NoError(t, s.Save(ctx, r))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Feedback)
	assert.Equal(t, "solid", all[0].Feedback.OverallAssessment)
}

func TestFileStoreListNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "analyses.json"))
	require.NoError(t, err)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, s.Save(ctx, sampleRecord(title, base.Add(time.Duration(i)*time.Hour))))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].JobTitle)
	assert.Equal(t, "first", all[2].JobTitle)

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "second", limited[1].JobTitle)
}

func TestFileStoreNotFound(t *testing.T) {
	t.Parallel()

	s, err := NewFileStore(filepath.Join(t.TempDir(), "analyses.json"))
	require.NoError(t, err)

	_, err = s.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "analyses.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	all, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFileStoreRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestDumpToTmpFile(t *testing.T) {
	t.Parallel()

	r := sampleRecord("Dump", time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC))
	path, err := DumpToTmpFile("resume-fit-test-*.json", r)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, r.ID, decoded.ID)
	assert.InDelta(t, 81.5, decoded.Result.MatchScore, 1e-9)
}
