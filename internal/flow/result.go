package flow

import "time"

// Step names, in execution order.
const (
	StepAcquire    = "acquire_session"
	StepNavigate   = "navigate"
	StepLocate     = "locate_fields"
	StepSubmit     = "submit_credentials"
	StepVerifyNav  = "verify_navigation"
	StepVerifyPage = "verify_page"
	StepRelease    = "release_session"
)

// StepRecord is the timing and outcome of one step.
type StepRecord struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Result describes one run of the flow.
type Result struct {
	ID         string       `json:"id"`
	TargetURL  string       `json:"target_url"`
	Username   string       `json:"username"`
	Headless   bool         `json:"headless"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Steps      []StepRecord `json:"steps"`
	FinalURL   string       `json:"final_url,omitempty"`
	Screenshot string       `json:"screenshot,omitempty"`
	Err        error        `json:"-"`
}

// Passed reports whether the run completed without error.
func (r *Result) Passed() bool {
	return r.Err == nil
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrorKind is the history label of the failure, empty on success.
func (r *Result) ErrorKind() string {
	return KindOf(r.Err)
}

// StepNames lists the steps that ran, in order.
func (r *Result) StepNames() []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}
