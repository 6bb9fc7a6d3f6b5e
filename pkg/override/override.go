// Package override implements Component I: evaluating an operator
// override artifact against §4.9's acceptance rule. Overrides are
// modeled as signed JWTs so they carry their own expiry and signature
// without a side-channel trust store.
package override

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/google/cel-go/cel"

	"github.com/wardenlabs/warden/pkg/promise"
)

// Claims is the JWT payload an override artifact carries.
type Claims struct {
	jwt.RegisteredClaims
	PromiseID             string   `json:"promise_id"`
	Severity              promise.Severity `json:"severity"`
	CompensatingControls  []string `json:"compensating_controls,omitempty"`
	Reason                string   `json:"reason,omitempty"`
}

// Evaluator checks an override token against §4.9's acceptance rule.
// It applies only when overall_verdict == "red" and fail_on_violation is
// set — callers are expected to gate the call on that themselves (the
// evaluator has no notion of the run's verdict).
type Evaluator struct {
	Key []byte
	// AcceptanceCEL, when set, is an additional predicate evaluated over
	// {severity, has_compensating_controls, reason} that must also return
	// true for the override to unblock — a policy-configurable tightening
	// of the base rule.
	AcceptanceCEL string
}

// Outcome reports whether the override unblocks the run, and why not
// when it doesn't. Expired, missing, or malformed overrides never error;
// they simply fail to unblock (§4.9).
type Outcome struct {
	Accepted bool
	Reason   string
}

// Evaluate parses and checks tokenString. A parse failure, expiry, or
// missing compensating controls for high/critical severity all result in
// Accepted == false with no error returned — per §4.9 an override never
// errors the run.
func (e *Evaluator) Evaluate(tokenString string, promiseID string, now time.Time) Outcome {
	if tokenString == "" {
		return Outcome{Accepted: false, Reason: "no override presented"}
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return e.Key, nil
	})
	if err != nil || !token.Valid {
		return Outcome{Accepted: false, Reason: "override signature invalid or unparseable"}
	}

	if claims.PromiseID != "" && claims.PromiseID != promiseID {
		return Outcome{Accepted: false, Reason: "override does not target this promise"}
	}

	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		return Outcome{Accepted: false, Reason: "override expired or missing expiry"}
	}

	if claims.Severity == promise.SeverityHigh || claims.Severity == promise.SeverityCritical {
		if len(claims.CompensatingControls) == 0 {
			return Outcome{Accepted: false, Reason: "compensating controls required for this severity"}
		}
	}

	if e.AcceptanceCEL != "" {
		ok, err := e.evaluateAcceptance(claims)
		if err != nil || !ok {
			return Outcome{Accepted: false, Reason: "override rejected by acceptance policy"}
		}
	}

	return Outcome{Accepted: true}
}

// Mint builds and signs an override token, used by tooling that issues
// overrides (not by the evaluation path itself).
func Mint(key []byte, promiseID string, severity promise.Severity, compensatingControls []string, reason string, expiresAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		PromiseID:            promiseID,
		Severity:             severity,
		CompensatingControls: compensatingControls,
		Reason:               reason,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("override: sign: %w", err)
	}
	return signed, nil
}

func (e *Evaluator) evaluateAcceptance(claims *Claims) (bool, error) {
	env, err := cel.NewEnv(
		cel.Variable("severity", cel.StringType),
		cel.Variable("has_compensating_controls", cel.BoolType),
		cel.Variable("reason", cel.StringType),
	)
	if err != nil {
		return false, fmt.Errorf("override: build acceptance env: %w", err)
	}
	ast, issues := env.Compile(e.AcceptanceCEL)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("override: compile acceptance policy: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("override: build acceptance program: %w", err)
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"severity":                  string(claims.Severity),
		"has_compensating_controls": len(claims.CompensatingControls) > 0,
		"reason":                    claims.Reason,
	})
	if err != nil {
		return false, fmt.Errorf("override: eval acceptance policy: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("override: acceptance policy did not return bool")
	}
	return val, nil
}
