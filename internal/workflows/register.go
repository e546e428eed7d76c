package workflows

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker) {
	w.RegisterWorkflow(ScreeningPipelineWorkflow)
	w.RegisterWorkflow(LLMScreeningWorkflow)
	w.RegisterWorkflow(QualityWorkflow)
}
