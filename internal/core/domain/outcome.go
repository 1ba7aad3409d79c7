package domain

// Result classifies a single unit of work.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	// ResultSkipped is a non-error no-op, e.g. restarting a stopped container.
	ResultSkipped Result = "skipped"
)

// FailureSource tells whether a failure came from the state guard or the runtime.
type FailureSource string

const (
	SourceNone    FailureSource = ""
	SourceGuard   FailureSource = "guard"
	SourceRuntime FailureSource = "runtime"
)

// Outcome is the result of one unit of work.
type Outcome struct {
	// ID is the full resource id (or the image reference for payload units).
	ID string `json:"id"`
	// Label is the human readable form used in summaries.
	Label  string        `json:"label"`
	Result Result        `json:"result"`
	Detail string        `json:"detail,omitempty"`
	Source FailureSource `json:"source,omitempty"`
}

// Success builds a successful outcome for a resource id.
func Success(id, detail string) Outcome {
	return Outcome{ID: id, Label: ShortID(id), Result: ResultSuccess, Detail: detail}
}

// Skipped builds a no-op outcome for a resource id.
func Skipped(id, detail string) Outcome {
	return Outcome{ID: id, Label: ShortID(id), Result: ResultSkipped, Detail: detail}
}

// PreconditionFailure builds a failure rejected by the state guard.
func PreconditionFailure(id, reason string) Outcome {
	return Outcome{ID: id, Label: ShortID(id), Result: ResultFailure, Detail: reason, Source: SourceGuard}
}

// RuntimeFailure builds a failure reported by the runtime.
func RuntimeFailure(id string, err error) Outcome {
	return Outcome{ID: id, Label: ShortID(id), Result: ResultFailure, Detail: err.Error(), Source: SourceRuntime}
}

// Failed reports whether the unit failed.
func (o Outcome) Failed() bool { return o.Result == ResultFailure }

// BatchSummary partitions a batch's outcomes for display.
type BatchSummary struct {
	SuccessIDs    []string `json:"success_ids"`
	ErrorMessages []string `json:"error_messages"`
}
