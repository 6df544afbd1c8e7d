package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regwatch/regcrawl/internal/crawler"
	"github.com/regwatch/regcrawl/internal/domain"
	"github.com/regwatch/regcrawl/internal/oracle"
	"github.com/regwatch/regcrawl/internal/sentiment"
)

// fakeFetcher serves canned pages and payloads by URL.
type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	documents map[string][]byte
	pageErrs  map[string]error
	docErrs   map[string]error
	downloads []string
}

func (f *fakeFetcher) Page(_ context.Context, url string) (string, error) {
	if err := f.pageErrs[url]; err != nil {
		return "", err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no such page: %s", url)
	}
	return page, nil
}

func (f *fakeFetcher) Download(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.downloads = append(f.downloads, url)
	f.mu.Unlock()

	if err := f.docErrs[url]; err != nil {
		return nil, err
	}
	payload, ok := f.documents[url]
	if !ok {
		return nil, fmt.Errorf("no such document: %s", url)
	}
	return payload, nil
}

// fakeProgress is an in-memory checkpoint surface recording every call.
type fakeProgress struct {
	storedPage int
	storedURL  string
	hasStored  bool

	statuses map[string]domain.DocumentState
	failures map[string]string

	advances []int
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{
		statuses: make(map[string]domain.DocumentState),
		failures: make(map[string]string),
	}
}

func (p *fakeProgress) Resume(_ context.Context, configuredStart int) (int, string, error) {
	if !p.hasStored {
		return configuredStart, "", nil
	}
	start := configuredStart
	if p.storedPage > start {
		start = p.storedPage
	}
	return start, p.storedURL, nil
}

func (p *fakeProgress) AdvancePage(_ context.Context, page int, lastDocumentURL string) error {
	p.advances = append(p.advances, page)
	p.storedPage = page
	if lastDocumentURL != "" {
		p.storedURL = lastDocumentURL
	}
	p.hasStored = true
	return nil
}

func (p *fakeProgress) IsProcessed(_ context.Context, url string) (bool, error) {
	return p.statuses[url] == domain.DocumentCompleted, nil
}

func (p *fakeProgress) Begin(_ context.Context, url string) error {
	p.statuses[url] = domain.DocumentProcessing
	return nil
}

func (p *fakeProgress) Complete(_ context.Context, url string, _ int) error {
	p.statuses[url] = domain.DocumentCompleted
	return nil
}

func (p *fakeProgress) Fail(_ context.Context, url string, cause error) error {
	p.statuses[url] = domain.DocumentFailed
	if cause != nil {
		p.failures[url] = cause.Error()
	}
	return nil
}

// fakeWriter collects inserted records.
type fakeWriter struct {
	records []domain.EntityRecord
	err     error
}

func (w *fakeWriter) InsertEntities(_ context.Context, records []domain.EntityRecord) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.records = append(w.records, records...)
	return len(records), nil
}

// substringEntitySource recognises a fixed set of names by locating them in
// the text.
type substringEntitySource struct {
	names map[string]domain.EntityKind
	err   error
}

func (s *substringEntitySource) Extract(_ context.Context, text string) ([]domain.Entity, error) {
	if s.err != nil {
		return nil, s.err
	}
	var entities []domain.Entity
	for name, kind := range s.names {
		idx := strings.Index(text, name)
		if idx < 0 {
			continue
		}
		entities = append(entities, domain.Entity{
			Text: name,
			Kind: kind,
			Span: domain.TextSpan{Start: idx, End: idx + len(name)},
		})
	}
	return entities, nil
}

// neutralAnalyzer is a sentiment model stub that never fires a threshold.
type neutralAnalyzer struct{}

func (neutralAnalyzer) Analyze(_ context.Context, _ string) (oracle.Sentiment, error) {
	return oracle.Sentiment{Label: "NEUTRAL", Score: 0.5}, nil
}

func listingPage(docURLs ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><body><table>")
	for i, u := range docURLs {
		fmt.Fprintf(&sb, `<tr><td>01-02-2024</td><td><a href="%s">Order %d</a></td></tr>`, u, i+1)
	}
	sb.WriteString("</table></body></html>")
	return sb.String()
}

func newDriver(t *testing.T, cfg crawler.Config, fetcher *fakeFetcher, progress crawler.Progress, writer *fakeWriter, source *substringEntitySource) *crawler.Driver {
	t.Helper()

	tagger := sentiment.NewTagger(neutralAnalyzer{}, nil)
	d, err := crawler.New(cfg, fetcher, progress, writer, source, tagger, nil)
	require.NoError(t, err)
	return d
}

func TestNewRejectsMissingBaseURL(t *testing.T) {
	t.Parallel()

	tagger := sentiment.NewTagger(neutralAnalyzer{}, nil)
	_, err := crawler.New(crawler.Config{}, &fakeFetcher{}, newFakeProgress(), &fakeWriter{}, &substringEntitySource{}, tagger, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")
}

// Full pipeline: a document naming a person next to a tax identifier and
// adverse language yields one stored record carrying the identifier and a
// negative sentiment.
func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	docURL := "https://regulator.example/orders/one.pdf"
	text := "In the matter of John Doe (PAN: ABCDE1234F), residing at 12 Marine Drive Road, the Board finds fraud and imposes a penalty."

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=1": listingPage(docURL),
		},
		documents: map[string][]byte{
			docURL: []byte("<html><body><div class=\"content\">" + text + "</div></body></html>"),
		},
	}
	progress := newFakeProgress()
	writer := &fakeWriter{}
	source := &substringEntitySource{names: map[string]domain.EntityKind{
		"John Doe": domain.EntityPerson,
	}}

	d := newDriver(t, crawler.Config{
		BaseURL:   "https://regulator.example/orders",
		StartPage: 1,
		EndPage:   1,
	}, fetcher, progress, writer, source)

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.PagesScanned)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, 1, result.EntitiesStored)

	require.Len(t, writer.records, 1)
	record := writer.records[0]
	assert.Equal(t, "John Doe", record.EntityName)
	assert.Equal(t, domain.EntityPerson, record.EntityType)
	assert.Equal(t, "ABCDE1234F", record.TaxID)
	assert.Equal(t, domain.SentimentNegative, record.Sentiment)
	assert.Equal(t, docURL, record.SourceDocumentURL)
	assert.Equal(t, "Order 1", record.DocumentTitle)
	assert.Equal(t, "01-02-2024", record.DocumentDate)
	assert.NotEmpty(t, record.RunID)
	assert.Contains(t, record.Address, "12 Marine Drive Road")

	assert.Equal(t, domain.DocumentCompleted, progress.statuses[docURL])
	assert.Equal(t, []int{1}, progress.advances)
	assert.Equal(t, docURL, progress.storedURL)
}

func TestRunSkipsCompletedDocuments(t *testing.T) {
	t.Parallel()

	doneURL := "https://regulator.example/orders/done.pdf"
	newURL := "https://regulator.example/orders/new.pdf"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=1": listingPage(doneURL, newURL),
		},
		documents: map[string][]byte{
			newURL: []byte("<html><body><div class=\"content\">Nothing of note.</div></body></html>"),
		},
	}
	progress := newFakeProgress()
	progress.statuses[doneURL] = domain.DocumentCompleted

	d := newDriver(t, crawler.Config{
		BaseURL: "https://regulator.example/orders",
		EndPage: 1,
	}, fetcher, progress, &fakeWriter{}, &substringEntitySource{})

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsSkipped)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.NotContains(t, fetcher.downloads, doneURL)
}

// A failed document is recorded and the crawl moves on to the next link.
func TestRunContinuesPastDocumentFailure(t *testing.T) {
	t.Parallel()

	badURL := "https://regulator.example/orders/bad.pdf"
	goodURL := "https://regulator.example/orders/good.pdf"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=1": listingPage(badURL, goodURL),
		},
		documents: map[string][]byte{
			goodURL: []byte("<html><body><div class=\"content\">Acme Corp complied fully.</div></body></html>"),
		},
		docErrs: map[string]error{
			badURL: errors.New("connection reset"),
		},
	}
	progress := newFakeProgress()
	writer := &fakeWriter{}
	source := &substringEntitySource{names: map[string]domain.EntityKind{
		"Acme Corp": domain.EntityOrganization,
	}}

	d := newDriver(t, crawler.Config{
		BaseURL: "https://regulator.example/orders",
		EndPage: 1,
	}, fetcher, progress, writer, source)

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsFailed)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, domain.DocumentFailed, progress.statuses[badURL])
	assert.Contains(t, progress.failures[badURL], "connection reset")
	assert.Equal(t, domain.DocumentCompleted, progress.statuses[goodURL])
	require.Len(t, writer.records, 1)
	assert.Equal(t, "Acme Corp", writer.records[0].EntityName)
}

// Resuming skips the completed links up to the stored last document on the
// resume page without re-fetching them; later pages are untouched.
func TestRunResumeSkipsCompletedPrefix(t *testing.T) {
	t.Parallel()

	first := "https://regulator.example/orders/first.pdf"
	second := "https://regulator.example/orders/second.pdf"
	third := "https://regulator.example/orders/third.pdf"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=2": listingPage(first, second, third),
		},
		documents: map[string][]byte{
			third: []byte("<html><body><div class=\"content\">Routine order.</div></body></html>"),
		},
	}
	progress := newFakeProgress()
	progress.hasStored = true
	progress.storedPage = 2
	progress.storedURL = second
	progress.statuses[first] = domain.DocumentCompleted
	progress.statuses[second] = domain.DocumentCompleted

	d := newDriver(t, crawler.Config{
		BaseURL:   "https://regulator.example/orders",
		StartPage: 1,
		EndPage:   2,
	}, fetcher, progress, &fakeWriter{}, &substringEntitySource{})

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	// Stored page 2 beats configured start 1; only the link after the
	// stored URL is fetched.
	assert.Equal(t, 1, result.PagesScanned)
	assert.Equal(t, []string{third}, fetcher.downloads)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, 2, result.DocumentsSkipped)
}

// A failed document before the stored resume marker is re-dispatched on the
// next run: skipping is keyed on recorded completion, not on position
// relative to the marker.
func TestRunResumeRedispatchesFailedBeforeMarker(t *testing.T) {
	t.Parallel()

	first := "https://regulator.example/orders/first.pdf"
	second := "https://regulator.example/orders/second.pdf"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=1": listingPage(first, second),
		},
		documents: map[string][]byte{
			first:  []byte("<html><body><div class=\"content\">Jane Roe was fined a penalty.</div></body></html>"),
			second: []byte("<html><body><div class=\"content\">Routine order.</div></body></html>"),
		},
	}
	progress := newFakeProgress()
	progress.hasStored = true
	progress.storedPage = 1
	progress.storedURL = second
	progress.statuses[first] = domain.DocumentFailed
	progress.statuses[second] = domain.DocumentCompleted

	writer := &fakeWriter{}
	source := &substringEntitySource{names: map[string]domain.EntityKind{
		"Jane Roe": domain.EntityPerson,
	}}

	d := newDriver(t, crawler.Config{
		BaseURL: "https://regulator.example/orders",
		EndPage: 1,
	}, fetcher, progress, writer, source)

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{first}, fetcher.downloads)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, 1, result.DocumentsSkipped)
	assert.Equal(t, domain.DocumentCompleted, progress.statuses[first])
	require.Len(t, writer.records, 1)
	assert.Equal(t, "Jane Roe", writer.records[0].EntityName)
}

// A listing page that cannot be fetched is logged and skipped; later pages
// are still crawled.
func TestRunContinuesPastPageFailure(t *testing.T) {
	t.Parallel()

	docURL := "https://regulator.example/orders/two.pdf"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=2": listingPage(docURL),
		},
		pageErrs: map[string]error{
			"https://regulator.example/orders?page=1": errors.New("connection reset"),
		},
		documents: map[string][]byte{
			docURL: []byte("<html><body><div class=\"content\">Routine order.</div></body></html>"),
		},
	}
	progress := newFakeProgress()

	d := newDriver(t, crawler.Config{
		BaseURL:   "https://regulator.example/orders",
		StartPage: 1,
		EndPage:   2,
	}, fetcher, progress, &fakeWriter{}, &substringEntitySource{})

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.PagesFailed)
	assert.Equal(t, 1, result.PagesScanned)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, domain.DocumentCompleted, progress.statuses[docURL])
}

// A document whose payload decodes to nothing completes with zero entities
// rather than failing.
func TestRunEmptyDocumentCompletes(t *testing.T) {
	t.Parallel()

	docURL := "https://regulator.example/orders/empty.pdf"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=1": listingPage(docURL),
		},
		documents: map[string][]byte{
			docURL: []byte("%PDF-1.7\ngarbage"),
		},
	}
	progress := newFakeProgress()
	writer := &fakeWriter{}

	d := newDriver(t, crawler.Config{
		BaseURL: "https://regulator.example/orders",
		EndPage: 1,
	}, fetcher, progress, writer, &substringEntitySource{})

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Zero(t, result.EntitiesStored)
	assert.Empty(t, writer.records)
	assert.Equal(t, domain.DocumentCompleted, progress.statuses[docURL])
}

// An entity recognition failure marks the document failed; the next run's
// skip check re-dispatches it because only completed is skipped.
func TestRunRecognitionFailureIsRetriedNextRun(t *testing.T) {
	t.Parallel()

	docURL := "https://regulator.example/orders/flaky.pdf"
	payload := []byte("<html><body><div class=\"content\">Jane Roe was restrained.</div></body></html>")

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=1": listingPage(docURL),
		},
		documents: map[string][]byte{docURL: payload},
	}
	progress := newFakeProgress()
	writer := &fakeWriter{}
	source := &substringEntitySource{
		names: map[string]domain.EntityKind{"Jane Roe": domain.EntityPerson},
		err:   errors.New("model unavailable"),
	}

	cfg := crawler.Config{BaseURL: "https://regulator.example/orders", EndPage: 1}

	d := newDriver(t, cfg, fetcher, progress, writer, source)
	result, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsFailed)
	assert.Equal(t, domain.DocumentFailed, progress.statuses[docURL])

	// Second run with a healthy model: the failed document is processed.
	source.err = nil
	d2 := newDriver(t, cfg, fetcher, progress, writer, source)
	result2, err := d2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result2.DocumentsProcessed)
	assert.Equal(t, domain.DocumentCompleted, progress.statuses[docURL])
	require.Len(t, writer.records, 1)
	assert.Equal(t, domain.SentimentNegative, writer.records[0].Sentiment)
}

// An HTML viewer page wrapping the PDF is followed one level to the
// embedded document.
func TestRunResolvesEmbeddedDocument(t *testing.T) {
	t.Parallel()

	viewerURL := "https://regulator.example/orders/view-123.html"
	embeddedURL := "https://regulator.example/docs/order-123.pdf"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=1": listingPage(viewerURL),
		},
		documents: map[string][]byte{
			viewerURL:   []byte(`<html><body><iframe src="/docs/order-123.pdf"></iframe></body></html>`),
			embeddedURL: []byte("<html><body><div class=\"content\">Acme Corp committed a violation of norms.</div></body></html>"),
		},
	}
	progress := newFakeProgress()
	writer := &fakeWriter{}
	source := &substringEntitySource{names: map[string]domain.EntityKind{
		"Acme Corp": domain.EntityOrganization,
	}}

	d := newDriver(t, crawler.Config{
		BaseURL: "https://regulator.example/orders",
		EndPage: 1,
	}, fetcher, progress, writer, source)

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{viewerURL, embeddedURL}, fetcher.downloads)
	assert.Equal(t, 1, result.EntitiesStored)
	require.Len(t, writer.records, 1)
	assert.Equal(t, domain.SentimentNegative, writer.records[0].Sentiment)
}

func TestRunPageURLFormats(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders/page/3": listingPage(),
		},
	}
	progress := newFakeProgress()

	d := newDriver(t, crawler.Config{
		BaseURL:   "https://regulator.example/orders/page/%d",
		StartPage: 3,
		EndPage:   3,
	}, fetcher, progress, &fakeWriter{}, &substringEntitySource{})

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesScanned)
}

// amnesiacProgress drops the completed mark and page advance, simulating a
// crash between record insertion and the status write.
type amnesiacProgress struct {
	*fakeProgress
}

func (p *amnesiacProgress) Complete(context.Context, string, int) error {
	return nil
}

func (p *amnesiacProgress) AdvancePage(context.Context, int, string) error {
	return nil
}

// Reprocessing a document whose completed mark was lost stores at most one
// extra set of records: duplicates are the documented cost of the
// insert-then-mark gap, bounded per retry.
func TestRunReprocessingWithoutCompletedMarkDuplicatesOnce(t *testing.T) {
	t.Parallel()

	docURL := "https://regulator.example/orders/one.pdf"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=1": listingPage(docURL),
		},
		documents: map[string][]byte{
			docURL: []byte("<html><body><div class=\"content\">John Doe was fined a penalty.</div></body></html>"),
		},
	}
	progress := &amnesiacProgress{fakeProgress: newFakeProgress()}
	writer := &fakeWriter{}
	source := &substringEntitySource{names: map[string]domain.EntityKind{
		"John Doe": domain.EntityPerson,
	}}

	cfg := crawler.Config{BaseURL: "https://regulator.example/orders", EndPage: 1}

	for run := 0; run < 2; run++ {
		d := newDriver(t, cfg, fetcher, progress, writer, source)
		_, err := d.Run(context.Background())
		require.NoError(t, err)
	}

	// One set of records per run, never more.
	assert.Len(t, writer.records, 2)
}

// InsertEntities failing marks the document failed: the insert may have
// partially happened, and completed-status gating would otherwise hide the
// gap. At-least-once delivery is the contract, duplicates are tolerated.
func TestRunInsertFailureMarksFailed(t *testing.T) {
	t.Parallel()

	docURL := "https://regulator.example/orders/one.pdf"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://regulator.example/orders?page=1": listingPage(docURL),
		},
		documents: map[string][]byte{
			docURL: []byte("<html><body><div class=\"content\">John Doe was debarred.</div></body></html>"),
		},
	}
	progress := newFakeProgress()
	writer := &fakeWriter{err: errors.New("write concern timeout")}
	source := &substringEntitySource{names: map[string]domain.EntityKind{
		"John Doe": domain.EntityPerson,
	}}

	d := newDriver(t, crawler.Config{
		BaseURL: "https://regulator.example/orders",
		EndPage: 1,
	}, fetcher, progress, writer, source)

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsFailed)
	assert.Equal(t, domain.DocumentFailed, progress.statuses[docURL])
	assert.Contains(t, progress.failures[docURL], "write concern timeout")
}
