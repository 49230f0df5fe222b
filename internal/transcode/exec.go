// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package transcode

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// runFunc executes a binary and reports its outcome. Swapped out in tests.
type runFunc func(ctx context.Context, binary string, args ...string) (execResult, error)

// execResult contains the outcome of a completed child process.
type execResult struct {
	// ExitCode is the process exit code. -1 means unknown.
	ExitCode int

	// Stdout and Stderr hold the captured output streams.
	Stdout string
	Stderr string

	// Duration is how long the process ran.
	Duration time.Duration
}

// Combined joins stdout and stderr for error reporting.
func (r execResult) Combined() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// runCommand executes a binary synchronously with captured output. The
// context kills the process on cancellation. A non-zero exit is reported
// through ExitCode, not the error return.
func runCommand(ctx context.Context, binary string, args ...string) (execResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Trace().
		Str("binary", binary).
		Strs("args", args).
		Msg("Running external tool")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		log.Error().
			Err(err).
			Str("binary", binary).
			Strs("args", args).
			Msg("Failed to start external tool")
		return execResult{ExitCode: -1}, err
	}

	waitErr := cmd.Wait()

	res := execResult{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if waitErr != nil {
		if ctx.Err() != nil {
			log.Warn().
				Err(ctx.Err()).
				Str("binary", binary).
				Dur("duration", res.Duration).
				Msg("External tool cancelled or timed out")
			return res, ctx.Err()
		}

		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, waitErr
		}

		log.Debug().
			Int("exitCode", res.ExitCode).
			Str("binary", binary).
			Dur("duration", res.Duration).
			Msg("External tool exited with non-zero status")
	}

	return res, nil
}
