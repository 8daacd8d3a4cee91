package redesign

import "aiRoomDesigner/internal/vision"

// Step names a stage of the redesign pipeline.
type Step string

const (
	StepValidate     Step = "validate"
	StepEncodeSource Step = "encode_source"
	StepGenerate     Step = "generate"
	StepStore        Step = "store"
	StepAnalyze      Step = "analyze"
	StepPersist      Step = "persist"
)

// Outcome is the result of a redesign. It is one of Aborted, PartialSuccess or FullSuccess.
type Outcome interface {
	outcome()
}

// Aborted means no durable image exists. Nothing was persisted.
type Aborted struct {
	Step   Step
	Reason error
}

// PartialSuccess carries a durable image whose analysis failed.
type PartialSuccess struct {
	GeneratedImageURL string
	AnalysisError     error
}

// FullSuccess carries a durable image and its analysis.
type FullSuccess struct {
	GeneratedImageURL string
	Analysis          vision.RoomAnalysis
}

func (Aborted) outcome()        {}
func (PartialSuccess) outcome() {}
func (FullSuccess) outcome()    {}

func (a Aborted) Error() string {
	if a.Reason == nil {
		return string(a.Step) + " failed"
	}
	return string(a.Step) + ": " + a.Reason.Error()
}

func (a Aborted) Unwrap() error { return a.Reason }
