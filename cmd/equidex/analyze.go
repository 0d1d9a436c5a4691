package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain/agent"
	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/domain/document"
	chiTransport "github.com/kailas-cloud/equidex/internal/transport/chi"
	"github.com/kailas-cloud/equidex/internal/usecase/orchestrator"
	pipelineuc "github.com/kailas-cloud/equidex/internal/usecase/pipeline"
)

// analyzeInput is the --input file: the company plus its pre-extracted documents.
type analyzeInput struct {
	Company   string              `json:"company"`
	Documents []document.Document `json:"documents"`
}

type analyzeFlags struct {
	input       string
	output      string
	company     string
	set         string
	report      bool
	tokenBudget int
	topK        int
	quiet       bool
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Ingest documents and run an agent set locally",
		Example: "  equidex analyze --input acme.json --set all --report\n" +
			"  cat acme.json | equidex analyze --input - --company ACME",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "JSON file with {company, documents}; - reads stdin")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the result JSON here instead of stdout")
	cmd.Flags().StringVar(&f.company, "company", "", "company name (overrides the input file)")
	cmd.Flags().StringVarP(&f.set, "set", "s", "", "agent set: primary, extended or all (default from config)")
	cmd.Flags().BoolVar(&f.report, "report", false, "compose the integrated report after the run")
	cmd.Flags().IntVar(&f.tokenBudget, "token-budget", 0, "token budget rendered into agent instructions")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "fragments retrieved per category")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "disable the progress bar")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runAnalyze(cmd *cobra.Command, f analyzeFlags) error {
	in, err := readInput(cmd.InOrStdin(), f.input)
	if err != nil {
		return err
	}
	if f.company != "" {
		in.Company = f.company
	}

	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	setName := f.set
	if setName == "" {
		setName = cfg.Orchestrator.AgentSet
	}
	set, err := agent.ParseSet(setName)
	if err != nil {
		return err
	}
	agents, err := agent.DefaultRegistry().Select(set)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	var opts []orchestrator.Option
	var prog *progress
	if !f.quiet {
		prog = newProgress(stderr, len(agents))
		opts = append(opts, orchestrator.WithObserver(prog.observe))
	}

	app, err := Wire(cmd.Context(), cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Pipeline.Analyze(cmd.Context(), pipelineuc.Request{
		Company:     in.Company,
		Set:         set,
		Documents:   in.Documents,
		TokenBudget: f.tokenBudget,
		TopK:        f.topK,
		Report:      f.report,
	})
	if prog != nil {
		prog.finish()
	}
	if err != nil {
		return fmt.Errorf("analyze %s: %w", in.Company, err)
	}
	printSummary(stderr, res)
	if res.ReportErr != nil {
		logger.Warn("Report not composed", zap.Error(res.ReportErr))
	}

	if err := writeOutput(cmd.OutOrStdout(), f.output, chiTransport.NewAnalysisResponse(in.Company, res)); err != nil {
		return err
	}
	if res.Run.Present() == 0 {
		return errors.New("no agent produced an analysis")
	}
	return nil
}

func readInput(stdin io.Reader, path string) (analyzeInput, error) {
	var r io.Reader = stdin
	if path != "-" {
		fh, err := os.Open(filepath.Clean(path))
		if err != nil {
			return analyzeInput{}, fmt.Errorf("open input: %w", err)
		}
		defer fh.Close()
		r = fh
	}

	var in analyzeInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return analyzeInput{}, fmt.Errorf("decode input %s: %w", path, err)
	}
	if len(in.Documents) == 0 {
		return analyzeInput{}, fmt.Errorf("input %s has no documents", path)
	}
	return in, nil
}

func writeOutput(stdout io.Writer, path string, v any) error {
	w := stdout
	if path != "" {
		fh, err := os.Create(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer fh.Close()
		w = fh
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// progress renders one bar step per finished agent slot.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer, total int) *progress {
	return &progress{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString("Running agents")),
		progressbar.OptionSetItsString("agents"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)}
}

// observe is an orchestrator.Observer; calls arrive serialized.
func (p *progress) observe(_ int, r analysis.Result) {
	mark := color.GreenString("✓")
	if !r.Present() {
		mark = color.RedString("✗")
	}
	p.bar.Describe(fmt.Sprintf("%s %s", mark, r.AgentName))
	_ = p.bar.Add(1)
}

func (p *progress) finish() {
	_ = p.bar.Finish()
}

func printSummary(w io.Writer, res pipelineuc.Result) {
	total := len(res.Run.Results)
	present := res.Run.Present()
	line := color.GreenString
	if present < total {
		line = color.YellowString
	}
	if present == 0 {
		line = color.RedString
	}
	fmt.Fprintln(w, line("\n%d/%d analyses in %s", present, total, res.Run.Duration().Round(time.Millisecond)))
	if missing := res.Run.MissingAgents(); len(missing) > 0 {
		fmt.Fprintln(w, color.RedString("missing: %s", strings.Join(missing, ", ")))
	}
	fmt.Fprintf(w, "corpus: %d text, %d table, %d article fragments; tokens: %d embedding, %d prompt, %d completion\n",
		res.Corpus.Text, res.Corpus.Table, res.Corpus.Article,
		res.Usage.EmbeddingTokens, res.Usage.PromptTokens, res.Usage.CompletionTokens)
	switch {
	case res.Report != nil:
		fmt.Fprintln(w, color.GreenString("report: %q with %d sections", res.Report.Title, len(res.Report.Sections)))
	case res.ReportErr != nil:
		fmt.Fprintln(w, color.RedString("report: %v", res.ReportErr))
	}
}
