package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/taskledger/internal/ir"
)

// Snapshot returns the canonical JSON trace of a scenario run: the step
// outcomes and the full event log.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, s := range result.Steps {
		m := map[string]any{
			"index": s.Index,
			"op":    s.Op,
		}
		if s.HasID {
			m["task_id"] = s.TaskID
		}
		if s.Error != "" {
			m["error"] = s.Error
		}
		steps[i] = m
	}

	events := make([]any, len(result.Events))
	for i, e := range result.Events {
		payload, err := e.Payload()
		if err != nil {
			return nil, err
		}
		events[i] = map[string]any{
			"seq":     e.Seq,
			"kind":    string(e.Kind),
			"payload": payload,
		}
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"steps":         steps,
		"events":        events,
	})
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	trace, err := Snapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, trace)

	return result, nil
}
