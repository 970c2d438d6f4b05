package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	TextDocumentConfidence = 100.0
	DefaultMinTextLength   = 100
	DefaultMinWordConf     = 50.0
	DefaultSearchableConf  = 95.0
	DefaultPageConcurrency = 4
)

type Config struct {
	MinTextLength     int
	MinWordConfidence float64
	SearchablePDFConf float64
	PageConcurrency   int
	OCREnabled        bool
	TempDir           string
}

func DefaultConfig() Config {
	return Config{
		MinTextLength:     DefaultMinTextLength,
		MinWordConfidence: DefaultMinWordConf,
		SearchablePDFConf: DefaultSearchableConf,
		PageConcurrency:   DefaultPageConcurrency,
		OCREnabled:        true,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.MinTextLength <= 0 {
		out.MinTextLength = def.MinTextLength
	}
	if out.MinWordConfidence < 0 || out.MinWordConfidence > 100 {
		out.MinWordConfidence = def.MinWordConfidence
	}
	if out.SearchablePDFConf <= 0 || out.SearchablePDFConf > 100 {
		out.SearchablePDFConf = def.SearchablePDFConf
	}
	if out.PageConcurrency <= 0 {
		out.PageConcurrency = def.PageConcurrency
	}
	return out
}

// Engine is the format analyzer and OCR engine. Extract never returns an
// error; every failure is folded into a failed result.
type Engine struct {
	cfg        Config
	pdf        ports.PDFTextReader
	rasterizer ports.PageRasterizer
	recognizer ports.TextRecognizer
	logger     *slog.Logger
}

func NewEngine(
	cfg Config,
	pdf ports.PDFTextReader,
	rasterizer ports.PageRasterizer,
	recognizer ports.TextRecognizer,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg.normalize(),
		pdf:        pdf,
		rasterizer: rasterizer,
		recognizer: recognizer,
		logger:     logger,
	}
}

// Extract fills result with text, blocks, pages and confidence for data.
// Identity fields on result are left to the caller.
func (e *Engine) Extract(ctx context.Context, doc *domain.StoredDocument, data []byte, result *domain.ExtractionResult) {
	result.Status = domain.ExtractionProcessing

	switch DetectFormat(doc.Filename, doc.MimeType, data) {
	case FormatText:
		e.extractText(data, result)
	case FormatPDF:
		e.extractPDF(ctx, doc, data, result)
	default:
		result.Strategy = domain.StrategyImage
		e.runOCR(ctx, doc, data, filepath.Ext(doc.Filename), result)
	}

	if result.Status == domain.ExtractionProcessing {
		result.Status = domain.ExtractionCompleted
	}
	if result.Status == domain.ExtractionFailed {
		result.SetConfidence(0)
	}
	addQualityWarnings(result)
}

func (e *Engine) extractText(data []byte, result *domain.ExtractionResult) {
	result.Strategy = domain.StrategyTextDocument
	text := string(data)
	if !utf8.ValidString(text) {
		result.Warnings = append(result.Warnings, "document is not valid UTF-8; invalid sequences replaced")
		text = strings.ToValidUTF8(text, "�")
	}
	text = Normalize(text)

	result.ExtractedText = text
	result.PageCount = 1
	result.Blocks = []domain.TextBlock{{Text: text, Page: 1, Confidence: TextDocumentConfidence}}
	result.SetConfidence(TextDocumentConfidence)
}

func (e *Engine) extractPDF(ctx context.Context, doc *domain.StoredDocument, data []byte, result *domain.ExtractionResult) {
	var pages []domain.PageText
	if e.pdf == nil {
		result.Warnings = append(result.Warnings, "pdf text reader not configured")
	} else {
		var err error
		pages, err = e.pdf.ReadPages(ctx, data)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("pdf text layer unreadable: %v", err))
			e.logger.Warn("pdf text layer read failed", "document_id", doc.ID, "error", err)
		}
	}

	direct := joinPages(pages)
	if len([]rune(strings.TrimSpace(direct))) > e.cfg.MinTextLength {
		e.fromTextLayer(pages, direct, result)
		return
	}

	result.Strategy = domain.StrategyScannedPDF
	if strings.TrimSpace(direct) != "" {
		result.OriginalText = direct
	}
	e.runOCR(ctx, doc, data, ".pdf", result)
}

func (e *Engine) fromTextLayer(pages []domain.PageText, direct string, result *domain.ExtractionResult) {
	result.Strategy = domain.StrategySearchablePDF
	result.OriginalText = direct
	result.ExtractedText = Normalize(direct)
	result.PageCount = len(pages)

	var total float64
	for _, p := range pages {
		result.Pages = append(result.Pages, domain.PageDimension{Page: p.Page, Width: p.Width, Height: p.Height})
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		result.Blocks = append(result.Blocks, domain.TextBlock{
			Text:       text,
			Page:       p.Page,
			Confidence: e.cfg.SearchablePDFConf,
			Box:        domain.BoundingBox{Width: int(p.Width), Height: int(p.Height)},
		})
		total += e.cfg.SearchablePDFConf
	}
	if len(result.Blocks) > 0 {
		result.SetConfidence(total / float64(len(result.Blocks)))
	}
}

func (e *Engine) runOCR(ctx context.Context, doc *domain.StoredDocument, data []byte, ext string, result *domain.ExtractionResult) {
	if !e.cfg.OCREnabled {
		result.Status = domain.ExtractionSkipped
		result.Warnings = append(result.Warnings, "ocr disabled; text recognition skipped")
		return
	}
	if e.recognizer == nil {
		fail(result, errors.New("ocr engine not configured"))
		return
	}

	workDir, err := os.MkdirTemp(e.cfg.TempDir, "legal-ocr-*")
	if err != nil {
		fail(result, fmt.Errorf("create ocr work dir: %w", err))
		return
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			e.logger.Warn("remove ocr work dir", "dir", workDir, "error", rmErr)
		}
	}()

	if ext == "" {
		ext = ".img"
	}
	sourcePath := filepath.Join(workDir, "source"+strings.ToLower(ext))
	if err := os.WriteFile(sourcePath, data, 0o600); err != nil {
		fail(result, fmt.Errorf("stage ocr input: %w", err))
		return
	}

	images := []string{sourcePath}
	if result.Strategy == domain.StrategyScannedPDF {
		if e.rasterizer == nil {
			fail(result, errors.New("pdf rasterizer not configured"))
			return
		}
		images, err = e.rasterizer.Rasterize(ctx, sourcePath, workDir)
		if err != nil {
			fail(result, fmt.Errorf("rasterize pdf: %w", err))
			return
		}
	}
	if len(images) == 0 {
		fail(result, errors.New("document has no extractable pages"))
		return
	}

	pages, pageErrs := e.recognizeAll(ctx, images)
	for _, pe := range pageErrs {
		result.Warnings = append(result.Warnings, pe.Error())
	}
	if len(pages) == 0 {
		result.Errors = append(result.Errors, "text recognition failed on every page")
		fail(result, errors.Join(pageErrs...))
		return
	}

	e.logger.Debug("ocr pages recognized", "document_id", doc.ID, "pages", len(pages), "failed_pages", len(pageErrs))
	Assemble(pages, e.cfg.MinWordConfidence, result)
	result.PageCount = len(images)
}

// recognizeAll OCRs pages in parallel and returns the successful pages in
// page order together with per-page errors.
func (e *Engine) recognizeAll(ctx context.Context, images []string) ([]domain.PageRecognition, []error) {
	out := make([]*domain.PageRecognition, len(images))
	errs := make([]error, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.PageConcurrency)
	for i, img := range images {
		g.Go(func() error {
			page, err := e.recognizer.Recognize(gctx, img, i+1)
			if err != nil {
				errs[i] = fmt.Errorf("page %d: %w", i+1, err)
				return nil
			}
			page.Page = i + 1
			out[i] = &page
			return nil
		})
	}
	_ = g.Wait()

	var pages []domain.PageRecognition
	var pageErrs []error
	for i := range images {
		if errs[i] != nil {
			pageErrs = append(pageErrs, errs[i])
			continue
		}
		if out[i] != nil {
			pages = append(pages, *out[i])
		}
	}
	return pages, pageErrs
}

func fail(result *domain.ExtractionResult, err error) {
	result.Status = domain.ExtractionFailed
	if err != nil {
		result.Errors = append(result.Errors, domain.WrapError(domain.ErrExtraction, "extract", err).Error())
	}
}

func addQualityWarnings(result *domain.ExtractionResult) {
	if result.Status != domain.ExtractionCompleted {
		return
	}
	switch {
	case result.Confidence < domain.LowConfidenceThreshold:
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"extraction confidence %.1f is below the minimum threshold of %.0f; manual verification required",
			result.Confidence, domain.LowConfidenceThreshold))
	case result.Confidence < domain.MediumConfidenceThreshold:
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"extraction confidence %.1f is below the medium threshold of %.0f; review recommended",
			result.Confidence, domain.MediumConfidenceThreshold))
	}
}

func joinPages(pages []domain.PageText) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}
