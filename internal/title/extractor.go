package title

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// Sentinel titles.
const (
	UnknownTitle = "Unknown Title"
	ErrorTitle   = "Error Extracting Title"
)

// minTitleLen is the exclusive lower bound on title length, in runes.
const minTitleLen = 5

var (
	configOnce      sync.Once
	errEmptyContent = errors.New("empty document")
)

// Extractor implements crawler.TitleExtractor using pdfcpu.
type Extractor struct {
	logger *zap.Logger
}

// New builds an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	configOnce.Do(api.DisableConfigDir)
	return &Extractor{logger: logger}
}

// Extract returns a best-effort title for the PDF in data.
func (e *Extractor) Extract(data []byte) (title string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("title extraction panicked", zap.Any("panic", r))
			title = ErrorTitle
		}
	}()
	content, fonts, err := e.firstPageContent(data)
	if err != nil {
		e.logger.Debug("title extraction failed", zap.Error(err))
		return ErrorTitle
	}
	pg, err := parseContent(content, fonts)
	if err != nil {
		e.logger.Debug("content stream unreadable", zap.Error(err))
		return ErrorTitle
	}
	return choose(pg)
}

// choose applies the block, then line, then sentinel fallback order.
func choose(pg page) string {
	for _, block := range pg.blocks {
		if text := collapse(block); utf8.RuneCountInString(text) > minTitleLen {
			return text
		}
	}
	var lines []string
	for _, line := range pg.lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 3 {
			break
		}
	}
	if text := collapse(strings.Join(lines, " ")); utf8.RuneCountInString(text) > minTitleLen {
		return text
	}
	return UnknownTitle
}

// firstPageContent returns the decoded content stream of page 1 together
// with decoders for the fonts its resources name. A page without content
// yields an empty slice.
func (e *Extractor) firstPageContent(data []byte) ([]byte, fontSet, error) {
	if len(data) == 0 {
		return nil, nil, errEmptyContent
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.EXTRACTCONTENT
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, nil, fmt.Errorf("read document: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, nil, fmt.Errorf("count pages: %w", err)
	}

	r, err := pdfcpu.ExtractPageContent(ctx, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("extract page content: %w", err)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read page content: %w", err)
	}

	_, _, attrs, err := ctx.PageDict(1, false)
	if err != nil {
		return nil, nil, fmt.Errorf("page resources: %w", err)
	}
	var fonts fontSet
	if attrs != nil {
		fonts = loadFonts(ctx, attrs.Resources)
	}
	return content, fonts, nil
}
