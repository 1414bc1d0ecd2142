// Package regression runs a battery of login scenarios. Batteries are
// YAML-defined lists of credentials with the outcome each one should
// produce, e.g. a locked-out account that must fail at the post-login
// navigation.
package regression

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"logincheck/internal/flow"

	"gopkg.in/yaml.v3"
)

// ExpectPass is the expectation for a scenario that must log in.
const ExpectPass = "pass"

// validExpectations are ExpectPass plus every classified failure kind.
var validExpectations = map[string]bool{
	ExpectPass:                 true,
	flow.KindDriverNotFound:    true,
	flow.KindElementNotFound:   true,
	flow.KindNavigationTimeout: true,
	flow.KindAssertionFailed:   true,
	flow.KindUnexpected:        true,
}

// Battery is a collection of login scenarios.
type Battery struct {
	Version  int    `yaml:"version"`
	FailFast bool   `yaml:"fail_fast,omitempty"`
	Tasks    []Task `yaml:"tasks"`
}

// Task is a single scenario. Empty fields inherit from the base config.
type Task struct {
	ID         string `yaml:"id"`
	URL        string `yaml:"url,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	Expect     string `yaml:"expect"` // "pass" or a failure kind
	TimeoutSec int    `yaml:"timeout_sec,omitempty"`
}

// Result captures execution outcome for a task.
type Result struct {
	TaskID     string
	Expected   string
	Actual     string // "pass" or the failure kind
	Success    bool   // Actual matched Expected
	Error      string
	DurationMs int64
	Run        *flow.Result
}

// LoadBattery reads a YAML battery file from disk.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks IDs and expectations.
func (b *Battery) Validate() error {
	seen := make(map[string]bool, len(b.Tasks))
	for i, task := range b.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task %d: missing id", i)
		}
		if seen[task.ID] {
			return fmt.Errorf("task %s: duplicate id", task.ID)
		}
		seen[task.ID] = true
		expect := normalizeExpect(task.Expect)
		if !validExpectations[expect] {
			return fmt.Errorf("task %s: unknown expectation %q", task.ID, task.Expect)
		}
	}
	return nil
}

func normalizeExpect(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ExpectPass
	}
	return s
}

// RunBattery executes all tasks in order, each as an independent flow run
// with its own browser session. A cancelled ctx stops the battery after the
// current task and is returned with the results gathered so far.
func RunBattery(ctx context.Context, b *Battery, base flow.Config, provider flow.SessionProvider, opts ...flow.Option) ([]Result, error) {
	if b == nil || len(b.Tasks) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(b.Tasks))

	for _, task := range b.Tasks {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		cfg := base
		if task.URL != "" {
			cfg.TargetURL = task.URL
		}
		if task.Username != "" {
			cfg.Username = task.Username
		}
		if task.Password != "" {
			cfg.Password = task.Password
		}
		if task.TimeoutSec > 0 {
			cfg.Timeout = time.Duration(task.TimeoutSec) * time.Second
		}

		start := time.Now()
		run, err := flow.New(cfg, provider, opts...).Run(ctx)

		res := Result{
			TaskID:   task.ID,
			Expected: normalizeExpect(task.Expect),
			Actual:   ExpectPass,
			Run:      run,
		}
		if err != nil {
			res.Actual = flow.KindOf(err)
			res.Error = err.Error()
		}
		res.Success = res.Actual == res.Expected
		res.DurationMs = time.Since(start).Milliseconds()
		results = append(results, res)

		if b.FailFast && !res.Success {
			break
		}
	}

	return results, ctx.Err()
}

// Failed counts results whose outcome did not match the expectation.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

// DefaultBatteryPath is where the CLI looks for a battery file.
const DefaultBatteryPath = ".logincheck/battery.yaml"
