package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-fit/internal/logger"
	"github.com/spigell/resume-fit/internal/similarity"
	"github.com/spigell/resume-fit/internal/store"
)

const defaultHistoryLimit = 20

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved analyses, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		withStore(func(ctx context.Context, st store.Store) error {
			return printHistory(ctx, os.Stdout, st, limit)
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a saved analysis",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withStore(func(ctx context.Context, st store.Store) error {
			return printRecord(ctx, os.Stdout, st, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd, showCmd)

	historyCmd.Flags().IntP("limit", "l", defaultHistoryLimit, "maximum number of analyses to list, 0 for all")
}

// historyEntry is the short form of a saved analysis.
type historyEntry struct {
	ID           uuid.UUID          `json:"id"`
	CreatedAt    time.Time          `json:"created_at"`
	JobTitle     string             `json:"job_title,omitempty"`
	ResumeSource string             `json:"resume_source,omitempty"`
	MatchScore   float64            `json:"match_score"`
	Quality      similarity.Quality `json:"quality"`
	Missing      int                `json:"missing_keywords"`
	HasFeedback  bool               `json:"has_feedback"`
}

func withStore(run func(ctx context.Context, st store.Store) error) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		config = &Config{}
	}

	st, err := newStore(ctx, config.Store)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	if err := run(ctx, st); err != nil {
		logger.Fatal("reading the store", zap.Error(err))
	}
}

func printHistory(ctx context.Context, w io.Writer, st store.Store, limit int) error {
	records, err := st.List(ctx, limit)
	if err != nil {
		return err
	}

	entries := make([]historyEntry, 0, len(records))
	for _, r := range records {
		entry := historyEntry{
			ID:           r.ID,
			CreatedAt:    r.CreatedAt,
			JobTitle:     r.JobTitle,
			ResumeSource: r.ResumeSource,
			HasFeedback:  r.Feedback != nil,
		}
		if r.Result != nil {
			entry.MatchScore = r.Result.MatchScore
			entry.Quality = r.Result.Quality
			entry.Missing = len(r.Result.MissingKeywords)
		}
		entries = append(entries, entry)
	}

	return writeJSON(w, entries)
}

func printRecord(ctx context.Context, w io.Writer, st store.Store, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid analysis id %q: %w", rawID, err)
	}

	record, err := st.Get(ctx, id)
	if err != nil {
		return err
	}
	return writeJSON(w, record)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
