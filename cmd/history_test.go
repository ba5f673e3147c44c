package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-fit/internal/compat"
	"github.com/spigell/resume-fit/internal/similarity"
	"github.com/spigell/resume-fit/internal/store"
)

func newHistoryStore(t *testing.T) (*store.FileStore, []*store.Record) {
	t.Helper()

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "analyses.json"))
	require.NoError(t, err)

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	var records []*store.Record
	for i, title := range []string{"Backend Engineer", "Data Engineer", "SRE"} {
		r := store.NewRecord(title, "job", "resume.pdf", &compat.Result{
			MatchScore:      60 + float64(i),
			Quality:         similarity.QualityGood,
			MissingKeywords: []string{"docker", "kafka"}[:i%2+1],
		})
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, st.Save(context.Background(), r))
		records = append(records, r)
	}
	return st, records
}

func TestPrintHistory(t *testing.T) {
	st, records := newHistoryStore(t)

	var buf bytes.Buffer
	require.NoError(t, printHistory(context.Background(), &buf, st, 2))

	var entries []historyEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)

	assert.Equal(t, records[2].ID, entries[0].ID)
	assert.Equal(t, "SRE", entries[0].JobTitle)
	assert.InDelta(t, 62.0, entries[0].MatchScore, 1e-9)
	assert.Equal(t, similarity.QualityGood, entries[0].Quality)
	assert.Equal(t, 1, entries[0].Missing)
	assert.False(t, entries[0].HasFeedback)
	assert.Equal(t, records[1].ID, entries[1].ID)
	assert.Equal(t, 2, entries[1].Missing)
}

func TestPrintHistoryEmpty(t *testing.T) {
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "analyses.json"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printHistory(context.Background(), &buf, st, 0))
	assert.JSONEq(t, "[]", buf.String())
}

func TestPrintRecord(t *testing.T) {
	st, records := newHistoryStore(t)

	var buf bytes.Buffer
	require.NoError(t, printRecord(context.Background(), &buf, st, records[0].ID.String()))

	var got store.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, records[0].ID, got.ID)
	assert.Equal(t, "Backend Engineer", got.JobTitle)
	require.NotNil(t, got.Result)
	assert.InDelta(t, 60.0, got.Result.MatchScore, 1e-9)
}

func TestPrintRecordErrors(t *testing.T) {
	st, _ := newHistoryStore(t)

	err := printRecord(context.Background(), &bytes.Buffer{}, st, "not-a-uuid")
	require.ErrorContains(t, err, "invalid analysis id")

	err = printRecord(context.Background(), &bytes.Buffer{}, st, uuid.NewString())
	require.ErrorIs(t, err, store.ErrNotFound)
}
