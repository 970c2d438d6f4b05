// Package tesseract rasterizes PDFs with pdftoppm and recognizes page images
// with the tesseract CLI in TSV mode.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

const (
	opRasterize = "ocr.pdftoppm"
	opRecognize = "ocr.tesseract"

	tsvLevelPage = 1
	tsvLevelWord = 5
	tsvColumns   = 12
)

type Config struct {
	Pdftoppm  string
	Tesseract string
	Language  string
	DPI       int
	MaxPages  int
	PSM       int
}

func (c Config) withDefaults() Config {
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Language == "" {
		c.Language = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	return c
}

// Engine implements both ports.PageRasterizer and ports.TextRecognizer.
type Engine struct {
	cfg      Config
	runner   Runner
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(cfg Config, executor *resilience.Executor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return NewWithRunner(cfg, execRunner{logger: logger}, executor, logger)
}

func NewWithRunner(cfg Config, runner Runner, executor *resilience.Executor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1, BreakerEnabled: true}, resilience.WithLogger(logger))
	}
	return &Engine{cfg: cfg.withDefaults(), runner: runner, executor: executor, logger: logger}
}

// Available reports whether both binaries resolve on PATH.
func (e *Engine) Available() error {
	for _, bin := range []string{e.cfg.Tesseract, e.cfg.Pdftoppm} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("ocr dependency %s: %w", bin, err)
		}
	}
	return nil
}

// Rasterize renders every page of pdfPath to PNG under workDir and returns
// the images in page order.
func (e *Engine) Rasterize(ctx context.Context, pdfPath, workDir string) ([]string, error) {
	prefix := filepath.Join(workDir, "page")
	err := e.executor.Execute(ctx, opRasterize, func(ctx context.Context) error {
		_, stderr, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", pdfPath, prefix)
		if err != nil {
			return commandError("pdftoppm", stderr, err)
		}
		return nil
	}, classifyOCRError)
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	sortPages(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		e.logger.Warn("pdf page limit applied", "pages", len(matches), "max_pages", e.cfg.MaxPages)
		matches = matches[:e.cfg.MaxPages]
	}
	return matches, nil
}

// Recognize runs tesseract in TSV mode and returns every word with its box
// and confidence. Rows with conf -1 are layout rows, not words.
func (e *Engine) Recognize(ctx context.Context, imagePath string, page int) (domain.PageRecognition, error) {
	args := []string{imagePath, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	args = append(args, "tsv")

	var out []byte
	err := e.executor.Execute(ctx, opRecognize, func(ctx context.Context) error {
		stdout, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
		if err != nil {
			return commandError("tesseract", stderr, err)
		}
		out = stdout
		return nil
	}, classifyOCRError)
	if err != nil {
		return domain.PageRecognition{}, err
	}

	rec, err := ParseTSV(string(out))
	if err != nil {
		return domain.PageRecognition{}, err
	}
	rec.Page = page
	return rec, nil
}

// ParseTSV reads tesseract's TSV output. Word line numbers are made unique
// per page by combining block, paragraph and line.
func ParseTSV(raw string) (domain.PageRecognition, error) {
	var rec domain.PageRecognition
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "level") {
		return rec, errors.New("tesseract tsv: missing header")
	}

	lineIDs := map[[3]int]int{}
	for _, ln := range lines[1:] {
		if ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < tsvColumns-1 {
			continue
		}
		nums := make([]int, 10)
		bad := false
		for i := range nums {
			v, err := strconv.Atoi(cols[i])
			if err != nil {
				bad = true
				break
			}
			nums[i] = v
		}
		if bad {
			continue
		}
		level, block, par, line := nums[0], nums[2], nums[3], nums[4]
		left, top, width, height := nums[6], nums[7], nums[8], nums[9]

		if level == tsvLevelPage {
			rec.Width = float64(width)
			rec.Height = float64(height)
			continue
		}
		if level != tsvLevelWord || len(cols) < tsvColumns {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}

		key := [3]int{block, par, line}
		id, ok := lineIDs[key]
		if !ok {
			id = len(lineIDs) + 1
			lineIDs[key] = id
		}
		rec.Words = append(rec.Words, domain.RecognizedWord{
			Text:       text,
			Line:       id,
			Confidence: conf,
			Box:        domain.BoundingBox{Left: left, Top: top, Width: width, Height: height},
		})
	}
	return rec, nil
}

// sortPages orders page-1.png, page-2.png ... page-10.png numerically;
// pdftoppm zero-pads only for long documents.
func sortPages(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		idx := strings.LastIndex(base, "-")
		n, err := strconv.Atoi(base[idx+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}

type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

func commandError(command string, stderr []byte, err error) error {
	return &CommandError{Command: command, Stderr: truncate(strings.TrimSpace(string(stderr)), 512), Err: err}
}

// A missing binary is recorded against the breaker but never retried; a
// non-zero exit is a property of the input and does not trip it.
func classifyOCRError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	if errors.Is(err, exec.ErrNotFound) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
