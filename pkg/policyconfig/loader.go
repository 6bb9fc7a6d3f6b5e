// Package policyconfig loads and validates the two YAML inputs the CLI
// reads from disk: a Promise file and an EvaluationConfig file. This is the
// one external-collaborator contract (spec.md §1) the core still implements
// a concrete version of, scoped to exactly the §6 `--config F` flag.
package policyconfig

import (
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/wardenlabs/warden/pkg/promise"
)

var (
	compileOnce     sync.Once
	promiseSchemaC  *jsonschema.Schema
	configSchemaC   *jsonschema.Schema
	compileErr      error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource("mem://promise.schema.json", stringsReader(promiseSchema)); err != nil {
		compileErr = fmt.Errorf("policyconfig: compile promise schema: %w", err)
		return
	}
	if err := c.AddResource("mem://config.schema.json", stringsReader(configSchema)); err != nil {
		compileErr = fmt.Errorf("policyconfig: compile config schema: %w", err)
		return
	}
	var err error
	promiseSchemaC, err = c.Compile("mem://promise.schema.json")
	if err != nil {
		compileErr = fmt.Errorf("policyconfig: compile promise schema: %w", err)
		return
	}
	configSchemaC, err = c.Compile("mem://config.schema.json")
	if err != nil {
		compileErr = fmt.Errorf("policyconfig: compile config schema: %w", err)
		return
	}
}

// LoadPromise reads and validates a Promise YAML file.
func LoadPromise(path string) (*promise.Promise, error) {
	compileOnce.Do(compileSchemas)
	if compileErr != nil {
		return nil, compileErr
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policyconfig: read promise file: %w", err)
	}

	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("policyconfig: parse promise yaml: %w", err)
	}
	if err := promiseSchemaC.Validate(generic); err != nil {
		return nil, fmt.Errorf("policyconfig: promise schema validation failed: %w", err)
	}

	var p promise.Promise
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("policyconfig: decode promise: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("policyconfig: %w", err)
	}
	return &p, nil
}

// LoadEvaluationConfig reads and validates an EvaluationConfig YAML file.
func LoadEvaluationConfig(path string) (*promise.EvaluationConfig, error) {
	compileOnce.Do(compileSchemas)
	if compileErr != nil {
		return nil, compileErr
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policyconfig: read config file: %w", err)
	}

	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("policyconfig: parse config yaml: %w", err)
	}
	if err := configSchemaC.Validate(generic); err != nil {
		return nil, fmt.Errorf("policyconfig: config schema validation failed: %w", err)
	}

	cfg := promise.EvaluationConfig{DeterminismRuns: 1}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("policyconfig: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("policyconfig: %w", err)
	}
	return &cfg, nil
}

// DefaultEvaluationConfig returns a minimal, valid EvaluationConfig used
// when the CLI is invoked without --config (pre-commit's common path).
func DefaultEvaluationConfig(promiseID string, threshold float64) *promise.EvaluationConfig {
	return &promise.EvaluationConfig{
		PromiseID:       promiseID,
		Threshold:       threshold,
		ProbeTargets:    []string{"."},
		DeterminismMode: promise.DeterminismWarn,
		DeterminismRuns: 1,
		Retention:       promise.RetentionStandard,
		Abduction: promise.AbductionParams{
			Tau:          0.1,
			WeightCap:    4.0,
			WorldMode:    promise.WorldClosed,
			CreditBudget: 64,
		},
	}
}
