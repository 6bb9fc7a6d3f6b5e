package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const preCommitHookScript = `#!/bin/sh
# Installed by warden install-hooks. Do not edit by hand; re-run
# 'warden install-hooks' to regenerate.
exec warden pre-commit
`

// runInstallHooks implements `install-hooks` (§6): writes an executable
// pre-commit script into the target git directory's hooks folder.
//
// Exit codes:
//
//	0 = hook installed
//	2 = usage/I-O error
func runInstallHooks(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("install-hooks", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var gitDir string
	cmd.StringVar(&gitDir, "git-dir", ".git", "path to the repository's .git directory")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}

	hookPath := filepath.Join(hooksDir, "pre-commit")
	if err := os.WriteFile(hookPath, []byte(preCommitHookScript), 0o755); err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}

	fmt.Fprintf(stdout, "%sinstalled%s %s\n", colorGreen, colorReset, hookPath)
	return 0
}
