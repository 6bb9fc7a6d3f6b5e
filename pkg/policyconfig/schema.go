package policyconfig

// promiseSchema and configSchema are embedded JSON Schemas validated before
// a Promise or EvaluationConfig YAML file is accepted (§7 "configuration"
// error kind). Kept intentionally loose on the numeric fields (spec.md
// already defines their semantics); the schema exists to fail closed on
// structurally malformed input, not to re-specify business rules.
const promiseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "statement", "severity", "threshold"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "statement": {"type": "string"},
    "version": {"type": "string"},
    "domain": {"type": "string"},
    "severity": {"enum": ["low", "medium", "high", "critical"]},
    "threshold": {"type": "number", "minimum": 0, "maximum": 1},
    "applicability": {"type": "string"},
    "control_mappings": {"type": "array", "items": {"type": "string"}}
  }
}`

const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["promise_id", "probe_targets", "determinism_runs"],
  "properties": {
    "promise_id": {"type": "string", "minLength": 1},
    "threshold": {"type": "number"},
    "severity_override": {"enum": ["low", "medium", "high", "critical", ""]},
    "severity_thresholds": {"type": "object"},
    "probe_targets": {"type": "array", "items": {"type": "string"}},
    "static_analyzer_rules": {"type": "array", "items": {"type": "string"}},
    "abduction": {"type": "object"},
    "required_slots": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["slot_key", "role"],
        "properties": {
          "slot_key": {"type": "string"},
          "role": {"enum": ["NEC", "SUFF"]}
        }
      }
    },
    "determinism_mode": {"enum": ["warn", "strict", ""]},
    "determinism_runs": {"type": "integer", "minimum": 1},
    "seed": {"type": ["integer", "null"]},
    "retention": {"enum": ["standard", "hash-only", ""]},
    "offline": {"type": "boolean"},
    "fail_on_violation": {"type": "boolean"}
  }
}`
