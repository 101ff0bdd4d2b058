package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CLIEngine shells out to the tesseract binary. It avoids the CGO dependency
// at the cost of one process spawn per image.
type CLIEngine struct {
	binary string
}

func NewCLIEngine(binary string) *CLIEngine {
	path, _ := exec.LookPath(binary)
	if path == "" {
		path = binary
	}
	return &CLIEngine{binary: path}
}

func (e *CLIEngine) Name() string { return "tesseract-cli" }

func (e *CLIEngine) Available() bool {
	return exec.Command(e.binary, "--version").Run() == nil
}

func (e *CLIEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	tmp, err := os.CreateTemp("", "textlift-ocr-*.png")
	if err != nil {
		return Result{}, fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(in.Image); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("close temp image: %w", err)
	}

	args := []string{tmp.Name(), "stdout"}
	if len(in.Languages) > 0 {
		args = append(args, "-l", strings.Join(in.Languages, "+"))
	}
	if in.DPI > 0 {
		args = append(args, "--dpi", fmt.Sprint(in.DPI))
	}

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Result{}, fmt.Errorf("tesseract: %s: %w", msg, err)
		}
		return Result{}, fmt.Errorf("tesseract: %w", err)
	}

	return Result{Text: strings.TrimSpace(stdout.String())}, nil
}
