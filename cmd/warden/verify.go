package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wardenlabs/warden/pkg/auditpack"
	"github.com/wardenlabs/warden/pkg/signer"
)

// runVerify implements `verify <bundle>` (§6, §4.10, §7's classified
// failure messages).
//
// Exit codes:
//
//	0 = integrity_ok
//	1 = verification failed (classified message on stderr)
//	2 = usage/I-O error
func runVerify(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "print the verification result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: warden verify <bundle> [--json]")
		return 2
	}
	bundlePath := cmd.Arg(0)

	zipData, err := os.ReadFile(bundlePath)
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}

	scratch, err := os.MkdirTemp("", "warden-verify-*")
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}
	defer os.RemoveAll(scratch)

	verifyErr := auditpack.Verify(zipData, scratch, signer.LoadKey())

	if jsonOutput {
		result := map[string]interface{}{"integrity_ok": verifyErr == nil}
		if verifyErr != nil {
			result["error"] = verifyErr.Error()
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	}

	if verifyErr != nil {
		if !jsonOutput {
			fmt.Fprintf(stderr, "warden: %v\n", verifyErr)
		}
		return 1
	}
	if !jsonOutput {
		fmt.Fprintf(stdout, "%sintegrity_ok%s\n", colorGreen, colorReset)
	}
	return 0
}
