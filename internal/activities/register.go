package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.MergeRoundsActivity)
	w.RegisterActivity(a.ConsistencyActivity)
	w.RegisterActivity(a.SummaryActivity)
	w.RegisterActivity(a.AdjudicationActivity)
	w.RegisterActivity(a.FullTextFinalizeActivity)
	w.RegisterActivity(a.CountRecordsActivity)
	w.RegisterActivity(a.ScreenBatchActivity)
	w.RegisterActivity(a.QualityMergeActivity)
	w.RegisterActivity(a.QualityAnalyzeActivity)
	w.RegisterActivity(a.ExtractionMergeActivity)
	w.RegisterActivity(a.FinalFilterActivity)
	w.RegisterActivity(a.UpdateRunActivity)
	w.RegisterActivity(a.WriteRunManifestActivity)
}
