package compressor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/pdfprocessor"
)

// ExecCommand is exec.CommandContext by default, but can be overridden in tests.
var ExecCommand = exec.CommandContext

const (
	EnginePdfcpu      = "pdfcpu"
	EngineGhostscript = "ghostscript"
)

// Optimize shrinks an output document with the engine named by
// COMPRESS_ENGINE. The original bytes are returned whenever the result
// would not be smaller.
func Optimize(ctx context.Context, data []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch engine := config.Get("COMPRESS_ENGINE", EnginePdfcpu); engine {
	case EngineGhostscript:
		out, err = ghostscript(ctx, data)
	case EnginePdfcpu:
		out, err = optimizePdfcpu(data)
	default:
		return nil, fmt.Errorf("unknown COMPRESS_ENGINE %q", engine)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 || len(out) >= len(data) {
		logging.Logf("[COMPRESS] kept original (%d bytes, optimized %d bytes)", len(data), len(out))
		return data, nil
	}
	logging.Logf("[COMPRESS] %d -> %d bytes", len(data), len(out))
	return out, nil
}

func optimizePdfcpu(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &buf, pdfprocessor.Config()); err != nil {
		return nil, fmt.Errorf("optimize PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// ghostscript rewrites data with GS_COMPAT and GS_SETTINGS.
func ghostscript(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "binder-gs-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.pdf")
	out := filepath.Join(dir, "output.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	args := []string{
		"-sDEVICE=pdfwrite",
		fmt.Sprintf("-dCompatibilityLevel=%s", config.Get("GS_COMPAT", "1.4")),
		fmt.Sprintf("-dPDFSETTINGS=%s", config.Get("GS_SETTINGS", "/ebook")),
		"-dNOPAUSE", "-dBATCH", "-dQUIET",
		fmt.Sprintf("-sOutputFile=%s", out),
		in,
	}
	cmd := ExecCommand(ctx, "gs", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ghostscript: %w: %s", err, bytes.TrimSpace(output))
	}
	return os.ReadFile(out)
}
