package domain

// Stage enumerates the fixed four-step DAG. The CORE never generalizes to an
// arbitrary DAG — spec.md §1's Non-goals explicitly rule out a general
// workflow engine.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageRedact     Stage = "redact"
	StageAudit      Stage = "audit"
	StageSOAP       Stage = "soap"
)

// Next returns the stage that follows s in the fixed DAG, and false if s is
// terminal (soap) or unrecognized.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageTranscribe:
		return StageRedact, true
	case StageRedact:
		return StageAudit, true
	case StageAudit:
		return StageSOAP, true
	default:
		return "", false
	}
}

// ArtifactName returns the on-disk stage name used in the artifact path
// (`artifacts/<run_id>/<stage>.json`), which per spec.md §3/§6 differs from
// the event-type stage name for three of the four stages.
func (s Stage) ArtifactName() string {
	switch s {
	case StageTranscribe:
		return "transcript"
	case StageRedact:
		return "redacted"
	case StageSOAP:
		return "soap-note"
	default:
		return string(s)
	}
}

type StageStatus string

const (
	StagePending   StageStatus = "PENDING"
	StageCompleted StageStatus = "COMPLETED"
	StageFailed    StageStatus = "FAILED"
)

type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

type RunOutcome string

const (
	OutcomePass RunOutcome = "PASS"
	OutcomeFail RunOutcome = "FAIL"
	OutcomeNone RunOutcome = ""
)

type IngestionStatus string

const (
	IngestionProcessing      IngestionStatus = "PROCESSING"
	IngestionDone            IngestionStatus = "DONE"
	IngestionFailedTransient IngestionStatus = "FAILED_TRANSIENT"
	IngestionFailedPermanent IngestionStatus = "FAILED_PERMANENT"
)
