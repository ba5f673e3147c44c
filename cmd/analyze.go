package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-fit/internal/compat"
	"github.com/spigell/resume-fit/internal/document"
	"github.com/spigell/resume-fit/internal/feedback"
	"github.com/spigell/resume-fit/internal/logger"
	"github.com/spigell/resume-fit/internal/store"
)

const (
	PromptMissing  = "Show missing keywords"
	PromptFeedback = "Generate AI feedback"
	PromptSave     = "Save to store"
	PromptDump     = "Dump report to file"
	PromptStats    = "Show engine stats"
	PromptExit     = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptMissing, PromptFeedback, PromptSave, PromptDump, PromptStats, PromptExit},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a resume against a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("resume", "r", "", "resume file (txt, md, pdf or docx)")
	analyzeCmd.Flags().String("job", "", "job description file")
	analyzeCmd.Flags().StringP("title", "t", "", "job title stored with the analysis")
	analyzeCmd.Flags().BoolP("yes", "y", false, "do not ask for follow-up actions")
	analyzeCmd.Flags().BoolP("save", "s", false, "save the analysis to the configured store")
	analyzeCmd.Flags().Bool("feedback", false, "generate AI feedback right after the analysis")

	analyzeCmd.MarkFlagRequired("resume")
	analyzeCmd.MarkFlagRequired("job")
}

// session is the state of one analyze run shared by the follow-up actions.
type session struct {
	ctx      context.Context
	config   *Config
	logger   *zap.Logger
	engine   *engine
	title    string
	resume   string
	source   string
	job      string
	result   *compat.Result
	feedback *feedback.Feedback
	saved    *store.Record
}

type report struct {
	JobTitle string             `json:"job_title,omitempty"`
	Result   *compat.Result     `json:"result"`
	Feedback *feedback.Feedback `json:"feedback,omitempty"`
}

func analyze(cmd *cobra.Command) {
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

	logger.Info("starting the analysis", zap.String("version", version))

	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	resumePath, _ := cmd.Flags().GetString("resume")
	jobPath, _ := cmd.Flags().GetString("job")
	title, _ := cmd.Flags().GetString("title")

	resume, err := document.ReadFile(resumePath)
	if err != nil {
		logger.Fatal("reading the resume", zap.Error(err))
	}
	job, err := document.ReadFile(jobPath)
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	e, err := buildEngine(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the engine", zap.Error(err))
	}
	defer e.Close()

	result, err := e.analyzer.Analyze(ctx, resume, job)
	if err != nil {
		logger.Fatal("analysis failed", zap.Error(err))
	}

	s := &session{
		ctx:    ctx,
		config: config,
		logger: logger,
		engine: e,
		title:  title,
		resume: resume,
		source: filepath.Base(resumePath),
		job:    job,
		result: result,
	}

	if err := s.printReport(); err != nil {
		logger.Fatal("printing the report", zap.Error(err))
	}

	if flagSet(cmd, "feedback") {
		if err := s.generateFeedback(); err != nil {
			logger.Error("generating feedback", zap.Error(err))
		}
	}
	if flagSet(cmd, "save") {
		if err := s.save(); err != nil {
			logger.Fatal("saving the analysis", zap.Error(err))
		}
	}
	if flagSet(cmd, "yes") {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := s.handleAction(action); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Error("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func flagSet(cmd *cobra.Command, name string) bool {
	flag := cmd.Flag(name)
	return flag != nil && strings.EqualFold(flag.Value.String(), "true")
}

func (s *session) handleAction(action string) error {
	switch action {
	case PromptMissing:
		if len(s.result.MissingKeywords) == 0 {
			s.logger.Info("no missing keywords")
			return nil
		}
		for i, kw := range s.result.MissingKeywords {
			fmt.Printf("%3d. %s\n", i+1, kw)
		}
		return nil
	case PromptFeedback:
		if err := s.generateFeedback(); err != nil {
			return err
		}
		return s.printReport()
	case PromptSave:
		return s.save()
	case PromptDump:
		filename, err := store.DumpToTmpFile(app+"-report-*.json", s.report())
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		s.logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptStats:
		pretty, _ := json.MarshalIndent(s.engine.analyzer.Stats(), "", "  ")
		fmt.Println(string(pretty))
		return nil
	case PromptExit:
		s.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (s *session) report() report {
	return report{JobTitle: s.title, Result: s.result, Feedback: s.feedback}
}

func (s *session) printReport() error {
	pretty, err := json.MarshalIndent(s.report(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(pretty))
	return err
}

func (s *session) generateFeedback() error {
	writer, err := newFeedbackWriter(s.ctx, s.config.AI, s.logger)
	if err != nil {
		return err
	}

	fb, err := writer.Write(s.ctx, feedback.Input{
		JobTitle:       s.title,
		JobDescription: s.job,
		ResumeText:     s.resume,
		Result:         s.result,
	})
	if err != nil {
		return err
	}
	s.feedback = fb

	if s.saved != nil {
		return s.save()
	}
	return nil
}

// save stores the analysis. Saving again updates the same record.
func (s *session) save() error {
	st, err := newStore(s.ctx, s.config.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if s.saved == nil {
		s.saved = store.NewRecord(s.title, s.job, s.source, s.result)
	}
	s.saved.Feedback = s.feedback

	if err := st.Save(s.ctx, s.saved); err != nil {
		return err
	}
	s.logger.Info("analysis saved", zap.String("id", s.saved.ID.String()))
	return nil
}
