// Package crawler drives the end-to-end pipeline: walk listing pages,
// discover enforcement order documents, extract entities and identifiers,
// link and tag them, and persist the results with checkpointed progress.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/regwatch/regcrawl/internal/discover"
	"github.com/regwatch/regcrawl/internal/domain"
	"github.com/regwatch/regcrawl/internal/extract"
	"github.com/regwatch/regcrawl/internal/linker"
	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/pdf"
	"github.com/regwatch/regcrawl/internal/sentiment"
)

// DefaultContextWindow is the per-side context size used when pairing
// sentiment with identifier proximity. Wider than the generic sentiment
// window: the relevant language sits further from the name when an
// identifier block separates them.
const DefaultContextWindow = 500

// Fetcher retrieves listing pages and document payloads.
type Fetcher interface {
	Page(ctx context.Context, url string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Progress is the checkpoint/resume surface the driver depends on.
// Implemented by checkpoint.Controller.
type Progress interface {
	Resume(ctx context.Context, configuredStart int) (int, string, error)
	AdvancePage(ctx context.Context, page int, lastDocumentURL string) error
	IsProcessed(ctx context.Context, url string) (bool, error)
	Begin(ctx context.Context, url string) error
	Complete(ctx context.Context, url string, entityCount int) error
	Fail(ctx context.Context, url string, cause error) error
}

// RecordWriter persists extracted entity records.
type RecordWriter interface {
	InsertEntities(ctx context.Context, records []domain.EntityRecord) (int, error)
}

// EntitySource recognises entities in document text.
type EntitySource interface {
	Extract(ctx context.Context, text string) ([]domain.Entity, error)
}

// SentimentTagger classifies an entity's surrounding context.
type SentimentTagger interface {
	TagContext(ctx context.Context, snippet string) domain.Sentiment
}

// Config holds crawl driver configuration.
type Config struct {
	// BaseURL is the listing page URL. A "%d" verb, if present, receives
	// the page number; otherwise a "page" query parameter is appended.
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	StartPage int    `mapstructure:"start_page" yaml:"start_page"`
	// EndPage is inclusive. Zero means crawl only the start page.
	EndPage int `mapstructure:"end_page" yaml:"end_page"`
	// ContextWindow is the per-side character window for sentiment
	// context around each entity.
	ContextWindow int `mapstructure:"context_window" yaml:"context_window"`
	// MaxLinkDistance is the identifier proximity cutoff in characters.
	MaxLinkDistance float64 `mapstructure:"max_link_distance" yaml:"max_link_distance"`
}

// WithDefaults returns a copy of the config with default values applied for
// zero-value fields.
func (c Config) WithDefaults() Config {
	if c.StartPage <= 0 {
		c.StartPage = 1
	}
	if c.EndPage < c.StartPage {
		c.EndPage = c.StartPage
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if c.MaxLinkDistance <= 0 {
		c.MaxLinkDistance = linker.DefaultMaxDistance
	}
	return c
}

// Driver runs one crawl over the configured page range.
type Driver struct {
	config   Config
	fetcher  Fetcher
	progress Progress
	writer   RecordWriter
	entities EntitySource
	tagger   SentimentTagger
	linker   *linker.Linker
	log      logger.Interface

	runID string
	now   func() time.Time
}

// New creates a crawl driver. It returns an error for a missing or
// unparseable base URL: a misconfigured target is fatal before any work
// starts.
func New(
	cfg Config,
	fetcher Fetcher,
	progress Progress,
	writer RecordWriter,
	entities EntitySource,
	tagger SentimentTagger,
	log logger.Interface,
) (*Driver, error) {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = logger.NewNoOp()
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	// Validate the formatted listing URL: a raw base may carry a %d page
	// verb, which is not itself a parseable URL.
	if _, err := url.Parse(listingURL(cfg.BaseURL, 1)); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	return &Driver{
		config:   cfg,
		fetcher:  fetcher,
		progress: progress,
		writer:   writer,
		entities: entities,
		tagger:   tagger,
		linker:   linker.New(cfg.MaxLinkDistance),
		log:      log.WithComponent("crawler"),
		runID:    uuid.New().String(),
		now:      time.Now,
	}, nil
}

// Result summarises one crawl run.
type Result struct {
	RunID              string
	PagesScanned       int
	PagesFailed        int
	DocumentsProcessed int
	DocumentsSkipped   int
	DocumentsFailed    int
	EntitiesStored     int
}

// Run walks the page range from the effective resume point, processing
// every unprocessed document it discovers. Individual document failures are
// recorded and skipped over, and a listing page that cannot be fetched is
// logged and skipped; only checkpoint write failures abort the run.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	result := Result{RunID: d.runID}

	startPage, resumeURL, err := d.progress.Resume(ctx, d.config.StartPage)
	if err != nil {
		return result, fmt.Errorf("crawl run: %w", err)
	}

	d.log.Info("starting crawl",
		"run_id", d.runID, "start_page", startPage, "end_page", d.config.EndPage)

	for page := startPage; page <= d.config.EndPage; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		links, err := d.scanPage(ctx, page)
		if err != nil {
			// The cursor is not advanced past a page that could not be
			// scanned, so the next run retries it.
			d.log.Error("failed to scan listing page, skipping",
				"page", page, "error", err)
			result.PagesFailed++
			continue
		}
		result.PagesScanned++

		// On the resume page, skip the completed prefix up to the last
		// document the previous run recorded. Links before the marker
		// that did not complete (failed, or processing left by a crash)
		// stay in the batch so they are re-dispatched.
		if resumeURL != "" {
			skipped, remaining, err := d.trimCompleted(ctx, links, resumeURL)
			if err != nil {
				return result, err
			}
			if skipped > 0 {
				d.log.Info("resuming after completed documents",
					"page", page, "skipped", skipped)
				result.DocumentsSkipped += skipped
			}
			links = remaining
			resumeURL = ""
		}

		lastURL := ""
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			lastURL = link.URL

			outcome, err := d.processDocument(ctx, link)
			if err != nil {
				return result, err
			}
			switch outcome.disposition {
			case documentSkipped:
				result.DocumentsSkipped++
			case documentFailed:
				result.DocumentsFailed++
			case documentCompleted:
				result.DocumentsProcessed++
				result.EntitiesStored += outcome.stored
			}
		}

		if err := d.progress.AdvancePage(ctx, page, lastURL); err != nil {
			return result, fmt.Errorf("crawl run: %w", err)
		}
	}

	d.log.Info("crawl finished",
		"run_id", d.runID,
		"pages", result.PagesScanned,
		"processed", result.DocumentsProcessed,
		"skipped", result.DocumentsSkipped,
		"failed", result.DocumentsFailed,
		"entities", result.EntitiesStored)

	return result, nil
}

func (d *Driver) scanPage(ctx context.Context, page int) ([]domain.DocumentLink, error) {
	pageURL := listingURL(d.config.BaseURL, page)

	html, err := d.fetcher.Page(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	links := discover.Links(html, base)
	d.log.Info("scanned listing page", "page", page, "links", len(links))
	return links, nil
}

// listingURL builds the URL of one listing page. A "%d" verb in base
// receives the page number; otherwise a "page" query parameter is appended.
func listingURL(base string, page int) string {
	if strings.Contains(base, "%d") {
		return fmt.Sprintf(base, page)
	}

	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%spage=%d", base, separator, page)
}

// trimCompleted drops the leading run of completed links, stopping at the
// stored marker. Links past the first non-completed one are kept even when
// the marker lies further on: skipping is driven by recorded completion,
// never by position alone.
func (d *Driver) trimCompleted(
	ctx context.Context,
	links []domain.DocumentLink,
	marker string,
) (int, []domain.DocumentLink, error) {
	last := -1
	for i, link := range links {
		if link.URL == marker {
			last = i
			break
		}
	}

	cut := 0
	for cut <= last {
		done, err := d.progress.IsProcessed(ctx, links[cut].URL)
		if err != nil {
			return 0, nil, err
		}
		if !done {
			break
		}
		cut++
	}
	return cut, links[cut:], nil
}

type documentDisposition int

const (
	documentCompleted documentDisposition = iota
	documentSkipped
	documentFailed
)

type documentOutcome struct {
	disposition documentDisposition
	stored      int
}

// processDocument runs the full pipeline for one document. Pipeline errors
// mark the document failed and return a nil error so the crawl continues;
// only checkpoint write failures propagate.
func (d *Driver) processDocument(ctx context.Context, link domain.DocumentLink) (documentOutcome, error) {
	log := d.log.With("url", link.URL)

	done, err := d.progress.IsProcessed(ctx, link.URL)
	if err != nil {
		return documentOutcome{}, err
	}
	if done {
		log.Debug("document already completed, skipping")
		return documentOutcome{disposition: documentSkipped}, nil
	}

	if err := d.progress.Begin(ctx, link.URL); err != nil {
		return documentOutcome{}, err
	}

	stored, err := d.ingest(ctx, link)
	if err != nil {
		log.Error("document processing failed", "error", err)
		if failErr := d.progress.Fail(ctx, link.URL, err); failErr != nil {
			return documentOutcome{}, failErr
		}
		return documentOutcome{disposition: documentFailed}, nil
	}

	if err := d.progress.Complete(ctx, link.URL, stored); err != nil {
		return documentOutcome{}, err
	}

	log.Info("document processed", "entities", stored)
	return documentOutcome{disposition: documentCompleted, stored: stored}, nil
}

// ingest fetches, decodes, and extracts one document, returning how many
// entity records were stored.
func (d *Driver) ingest(ctx context.Context, link domain.DocumentLink) (int, error) {
	text, err := d.documentText(ctx, link.URL)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		// Unreadable or empty documents complete with zero entities:
		// retrying will not make the bytes decodable.
		return 0, nil
	}

	entities, err := d.entities.Extract(ctx, text)
	if err != nil {
		return 0, err
	}
	if len(entities) == 0 {
		return 0, nil
	}

	records := d.assembleRecords(ctx, text, entities, link)

	stored, err := d.writer.InsertEntities(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("store entities: %w", err)
	}
	return stored, nil
}

// documentText downloads and decodes a document. HTML viewer pages that
// wrap the PDF in an iframe are followed one level deep.
func (d *Driver) documentText(ctx context.Context, docURL string) (string, error) {
	payload, err := d.fetcher.Download(ctx, docURL)
	if err != nil {
		return "", err
	}

	if isHTML(payload) {
		base, parseErr := url.Parse(docURL)
		if parseErr != nil {
			base = nil
		}
		if embedded := discover.EmbeddedDocumentURL(string(payload), base); embedded != "" && embedded != docURL {
			payload, err = d.fetcher.Download(ctx, embedded)
			if err != nil {
				return "", err
			}
		}
	}

	return pdf.Text(payload), nil
}

func isHTML(payload []byte) bool {
	head := strings.ToLower(string(payload[:min(len(payload), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// assembleRecords links identifiers and addresses to entities, tags each
// entity's context, and builds the persistable records.
func (d *Driver) assembleRecords(
	ctx context.Context,
	text string,
	entities []domain.Entity,
	link domain.DocumentLink,
) []domain.EntityRecord {
	identifiers := map[domain.IdentifierKind][]domain.IdentifierMatch{
		domain.IdentifierTaxID:          extract.Identifiers(text, domain.IdentifierTaxID),
		domain.IdentifierRegistrationID: extract.Identifiers(text, domain.IdentifierRegistrationID),
	}
	addresses := extract.Addresses(text)

	pairs := d.linker.Link(entities, identifiers)
	linked := make(map[domain.TextSpan]map[domain.IdentifierKind]string)
	for _, pair := range pairs {
		byKind, ok := linked[pair.Entity.Span]
		if !ok {
			byKind = make(map[domain.IdentifierKind]string)
			linked[pair.Entity.Span] = byKind
		}
		byKind[pair.Identifier.Kind] = pair.Identifier.Value
	}

	date := link.Date
	if date == "" {
		date = discover.DateFromText(text)
	}

	records := make([]domain.EntityRecord, 0, len(entities))
	for _, entity := range entities {
		snippet := sentiment.ContextWindow(text, entity.Span, d.config.ContextWindow)

		record := domain.EntityRecord{
			EntityName:        entity.Text,
			EntityType:        entity.Kind,
			Sentiment:         d.tagger.TagContext(ctx, snippet),
			SourceDocumentURL: link.URL,
			DocumentTitle:     link.Title,
			DocumentDate:      date,
			RunID:             d.runID,
			CreatedAt:         d.now().UTC(),
		}

		if byKind, ok := linked[entity.Span]; ok {
			record.TaxID = byKind[domain.IdentifierTaxID]
			record.RegistrationID = byKind[domain.IdentifierRegistrationID]
		}
		if address, ok := linker.MatchAddress(entity, addresses, snippet); ok {
			record.Address = address
		}

		records = append(records, record)
	}

	return records
}
