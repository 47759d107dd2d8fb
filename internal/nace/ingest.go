package nace

import (
	"context"
	"sort"
	"strings"

	"github.com/knakk/rdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mne-enrich/internal/fetcher"
	"github.com/sells-group/mne-enrich/internal/vectorstore"
)

// Vocabulary IRIs read from the NACE linked-data pages.
const (
	skosNotation   = "http://www.w3.org/2004/02/skos/core#notation"
	skosPrefLabel  = "http://www.w3.org/2004/02/skos/core#prefLabel"
	skosBroader    = "http://www.w3.org/2004/02/skos/core#broader"
	xkosCore       = "http://rdf-vocabulary.ddialliance.org/xkos#coreContentNote"
	xkosAdditional = "http://rdf-vocabulary.ddialliance.org/xkos#additionalContentNote"
	xkosExclusion  = "http://rdf-vocabulary.ddialliance.org/xkos#exclusionNote"
)

var notePredicates = []string{xkosCore, xkosAdditional, xkosExclusion}

// IngestConfig configures the taxonomy crawl.
type IngestConfig struct {
	BaseURL     string
	Lang        string
	Concurrency int
}

func (c *IngestConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://data.europa.eu/ux2/nace2"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Lang == "" {
		c.Lang = "en"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
}

// Node is a section or division read from its RDF description.
type Node struct {
	Code    string
	URI     string
	Label   string
	Broader string // parent code; empty for sections
	Notes   []string
}

// Crawler reads NACE nodes from the EU vocabulary service.
type Crawler struct {
	f   fetcher.Fetcher
	cfg IngestConfig
}

// NewCrawler creates a Crawler.
func NewCrawler(f fetcher.Fetcher, cfg IngestConfig) *Crawler {
	cfg.applyDefaults()
	return &Crawler{f: f, cfg: cfg}
}

// Node fetches and parses one code. A page without a subject carrying the
// code as its notation yields nil.
func (c *Crawler) Node(ctx context.Context, code string) (*Node, error) {
	url := c.cfg.BaseURL + "/" + code
	body, err := c.f.Download(ctx, url, fetcher.WithHeader("Accept", "application/rdf+xml"))
	if err != nil {
		return nil, eris.Wrapf(err, "nace: fetch %s", code)
	}
	defer body.Close() //nolint:errcheck

	triples, err := rdf.NewTripleDecoder(body, rdf.RDFXML).DecodeAll()
	if err != nil {
		return nil, eris.Wrapf(err, "nace: parse %s", code)
	}
	return parseNode(graph(triples), code, c.cfg.Lang), nil
}

// Crawl reads sections A-Z and divisions 01-99. Codes that fail to load or
// have no subject are logged and skipped.
func (c *Crawler) Crawl(ctx context.Context) (map[string]*Node, []*Node, error) {
	var codes []string
	for r := 'A'; r <= 'Z'; r++ {
		codes = append(codes, string(r))
	}
	for n := 1; n <= 99; n++ {
		codes = append(codes, twoDigits(n))
	}

	nodes := make([]*Node, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, code := range codes {
		g.Go(func() error {
			node, err := c.Node(gctx, code)
			if err != nil {
				zap.L().Error("nace: skipping code", zap.String("code", code), zap.Error(err))
				return nil
			}
			if node == nil {
				zap.L().Debug("nace: no subject", zap.String("code", code))
				return nil
			}
			nodes[i] = node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "nace: crawl")
	}

	sections := make(map[string]*Node)
	var divisions []*Node
	for _, n := range nodes {
		switch {
		case n == nil:
		case len(n.Code) == 1:
			sections[n.Code] = n
		default:
			divisions = append(divisions, n)
		}
	}
	return sections, divisions, nil
}

// triples indexed by subject then predicate.
type rdfGraph map[string]map[string][]rdf.Object

func graph(triples []rdf.Triple) rdfGraph {
	g := make(rdfGraph)
	for _, t := range triples {
		s := t.Subj.String()
		if g[s] == nil {
			g[s] = make(map[string][]rdf.Object)
		}
		p := t.Pred.String()
		g[s][p] = append(g[s][p], t.Obj)
	}
	return g
}

// subject returns the first subject (in IRI order) whose notation is code.
func (g rdfGraph) subject(code string) string {
	subjects := make([]string, 0, len(g))
	for s := range g {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	for _, s := range subjects {
		for _, o := range g[s][skosNotation] {
			if o.Type() == rdf.TermLiteral && o.String() == code {
				return s
			}
		}
	}
	return ""
}

func (g rdfGraph) literal(subj, pred, lang string) string {
	for _, o := range g[subj][pred] {
		if lit, ok := o.(rdf.Literal); ok && lit.Lang() == lang {
			return strings.TrimSpace(lit.String())
		}
	}
	return ""
}

func (g rdfGraph) iri(subj, pred string) string {
	for _, o := range g[subj][pred] {
		if o.Type() == rdf.TermIRI {
			return o.String()
		}
	}
	return ""
}

func parseNode(g rdfGraph, code, lang string) *Node {
	subj := g.subject(code)
	if subj == "" {
		return nil
	}
	n := &Node{
		Code:  code,
		URI:   subj,
		Label: stripCode(g.literal(subj, skosPrefLabel, lang), code),
	}
	if broader := g.iri(subj, skosBroader); broader != "" {
		n.Broader = broader[strings.LastIndex(broader, "/")+1:]
	}
	for _, p := range notePredicates {
		if note := g.literal(subj, p, lang); note != "" {
			n.Notes = append(n.Notes, note)
		}
	}
	return n
}

// stripCode drops the leading code from labels such as "64 - Financial service activities".
func stripCode(label, code string) string {
	rest, ok := strings.CutPrefix(label, code)
	if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '-') {
		return strings.TrimSpace(label)
	}
	rest = strings.TrimSpace(rest)
	return strings.TrimSpace(strings.TrimPrefix(rest, "-"))
}

// Document renders a division with its parent section's notes.
func Document(div *Node, section *Node) vectorstore.Document {
	if section == nil {
		section = &Node{}
	}
	text := strings.Join([]string{
		"## Division - **" + div.Code + "** - " + div.Label,
		"",
		strings.Join(div.Notes, "\n"),
		"",
		"### Parent Section - **" + div.Broader + "** - " + section.Label,
		"",
		strings.Join(section.Notes, "\n"),
	}, "\n")
	return vectorstore.Document{Code: div.Code, Text: strings.TrimSpace(text)}
}

// Documents renders every division, ordered by code.
func Documents(sections map[string]*Node, divisions []*Node) []vectorstore.Document {
	docs := make([]vectorstore.Document, 0, len(divisions))
	for _, d := range divisions {
		docs = append(docs, Document(d, sections[d.Broader]))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Code < docs[j].Code })
	return docs
}

// Indexer stores rendered documents.
type Indexer interface {
	Add(ctx context.Context, docs []vectorstore.Document) error
}

// Build crawls the taxonomy and indexes one document per division. It
// returns the number of documents indexed.
func Build(ctx context.Context, crawler *Crawler, index Indexer) (int, error) {
	sections, divisions, err := crawler.Crawl(ctx)
	if err != nil {
		return 0, err
	}
	docs := Documents(sections, divisions)
	if len(docs) == 0 {
		return 0, eris.New("nace: no divisions crawled")
	}
	if err := index.Add(ctx, docs); err != nil {
		return 0, eris.Wrap(err, "nace: index documents")
	}
	zap.L().Info("nace: collection built",
		zap.Int("sections", len(sections)),
		zap.Int("divisions", len(docs)),
	)
	return len(docs), nil
}
