package screening

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"litreview/internal/table"
	"litreview/internal/util"
)

// Stage runs the file-level screening steps inside one stage directory, such
// as stage1_title_abstract or stage2_full_text.
type Stage struct {
	Dir string
	Log *zap.Logger
}

func NewStage(dir string, log *zap.Logger) *Stage {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stage{Dir: dir, Log: log}
}

// ConsistencyOutput lists the files a consistency run produced.
type ConsistencyOutput struct {
	Report     *ConsistencyReport
	ReportPath string
	ExportPath string
}

// Consistency aligns two reviewer rounds and writes the text report plus the
// R1_R2_analysis_results worksheet. Empty paths resolve to the rounds' merged results.
func (s *Stage) Consistency(r1Path, r2Path string) (ConsistencyOutput, error) {
	var out ConsistencyOutput
	if r1Path == "" {
		r1Path = ResultsPath(RoundDir(s.Dir, "R1"), "R1")
	}
	if r2Path == "" {
		r2Path = ResultsPath(RoundDir(s.Dir, "R2"), "R2")
	}
	r1, err := table.Read(r1Path)
	if err != nil {
		return out, fmt.Errorf("load R1 results: %w", err)
	}
	r2, err := table.Read(r2Path)
	if err != nil {
		return out, fmt.Errorf("load R2 results: %w", err)
	}
	rep, err := CheckConsistency(r1, r2)
	if err != nil {
		return out, err
	}
	rep.R1Source, rep.R2Source = r1Path, r2Path

	out.Report = rep
	out.ReportPath = filepath.Join(s.Dir, ConsistencyReportFile)
	out.ExportPath = filepath.Join(s.Dir, ConsistencyExportFile)
	if err := util.WriteTextAtomic(out.ReportPath, rep.Text()); err != nil {
		return out, fmt.Errorf("write consistency report: %w", err)
	}
	if err := table.WriteXLSX(out.ExportPath, "", rep.Export()); err != nil {
		return out, fmt.Errorf("export aligned results: %w", err)
	}
	s.Log.Info("consistency checked",
		zap.Int("aligned", len(rep.Pairs)),
		zap.Int("need_r3", rep.NeedR3Count()),
		zap.Int("no_mismatches", len(rep.NoMismatches())),
		zap.String("report", out.ReportPath),
	)
	return out, nil
}

// Summary writes the decision summary for the given reviewers and returns its text.
func (s *Stage) Summary(reviewers ...string) (string, string, error) {
	rounds := make([]RoundFile, len(reviewers))
	for i, r := range reviewers {
		rounds[i] = RoundFile{Label: r, Path: ResultsPath(RoundDir(s.Dir, r), r)}
	}
	path := filepath.Join(s.Dir, SummaryFile)
	text := Summarize(s.Dir, path, rounds)
	if err := util.WriteTextAtomic(path, text); err != nil {
		return "", "", fmt.Errorf("write decision summary: %w", err)
	}
	s.Log.Info("decision summary written", zap.String("path", path), zap.Int("rounds", len(rounds)))
	return text, path, nil
}

// Adjudication checks the three-reviewer worksheet and writes its report.
func (s *Stage) Adjudication(inputPath string) (*AdjudicationReport, string, error) {
	if inputPath == "" {
		inputPath = filepath.Join(s.Dir, AdjudicationInputFile)
	}
	t, err := table.Read(inputPath)
	if err != nil {
		return nil, "", fmt.Errorf("load adjudication worksheet: %w", err)
	}
	rep, err := CheckAdjudication(t)
	if err != nil {
		return nil, "", err
	}
	rep.Source = inputPath
	path := filepath.Join(s.Dir, AdjudicationReportFile)
	if err := util.WriteTextAtomic(path, rep.Text()); err != nil {
		return nil, "", fmt.Errorf("write adjudication report: %w", err)
	}
	s.Log.Info("adjudication checked",
		zap.Int("records", rep.Total),
		zap.Int("need_r3", rep.NeedR3),
		zap.Int("included", rep.IncludedTotal()),
		zap.Int("excluded", rep.ExcludedTotal()),
	)
	return rep, path, nil
}

// FullTextOutput lists the files a stage-2 finalize run produced.
type FullTextOutput struct {
	Result       *FullTextResult
	IncludedPath string
	SummaryPath  string
}

// FinalizeFullText tallies stage-2 decisions, exports the included studies and
// writes the summary.
func (s *Stage) FinalizeFullText(inputPath string) (FullTextOutput, error) {
	var out FullTextOutput
	if inputPath == "" {
		inputPath = filepath.Join(s.Dir, AdjudicationInputFile)
	}
	t, err := table.Read(inputPath)
	if err != nil {
		return out, fmt.Errorf("load full-text worksheet: %w", err)
	}
	if !t.Has(table.NoColumn) {
		s.Log.Warn("full-text worksheet has no No. column; No. lists will be empty", zap.String("file", inputPath))
	}
	if !t.Has(ColRemark) {
		s.Log.Warn("full-text worksheet has no Remark column; skipping access restriction counts", zap.String("file", inputPath))
	}
	res, err := FinalizeFullText(t)
	if err != nil {
		return out, err
	}
	out.Result = res
	out.IncludedPath = filepath.Join(s.Dir, FinalIncludedFile)
	out.SummaryPath = filepath.Join(s.Dir, FinalSummaryFile)
	if err := table.WriteXLSX(out.IncludedPath, "", res.IncludedRows); err != nil {
		return out, fmt.Errorf("export final included studies: %w", err)
	}
	if err := util.WriteTextAtomic(out.SummaryPath, res.Text()); err != nil {
		return out, fmt.Errorf("write full-text summary: %w", err)
	}
	for _, s2 := range []RuleStat{res.UnsureMissingR3, res.MismatchMissingR3} {
		if s2.Count > 0 {
			s.Log.Warn("R3 decision missing", zap.String("rule", s2.Label), zap.Strings("no", s2.Nos))
		}
	}
	s.Log.Info("full-text decisions finalized",
		zap.Int("records", res.Total),
		zap.Int("included", res.IncludedTotal()),
		zap.Int("excluded", res.Excluded),
		zap.Int("access_restricted", res.AccessRestricted.Count),
	)
	return out, nil
}
