// Package network turns a free-text query into a term-proximity network:
// documents are retrieved, weighted by rank, split into units, normalized and
// run through the proximity pipeline. The HTTP boundary lives in handler.go.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/proximity"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/textproc"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/tracing"
)

// Request is the body accepted by both network endpoints.
type Request struct {
	Query         string `json:"query"`
	ReferenceTerm string `json:"reference_term,omitempty"`
}

// Neighbour is one ranked term of a network with its visual encodings.
type Neighbour struct {
	Term      string  `json:"term"`
	Frequency int     `json:"frequency"`
	Distance  float64 `json:"distance"`
	NodeSize  float64 `json:"node_size"`
	EdgeWidth float64 `json:"edge_width"`
}

// UnitSummary is the summarized vicinity of one matched unit.
type UnitSummary struct {
	Terms  []string           `json:"terms"`
	Values map[string]float64 `json:"values"`
}

// Network is the full result of one computation.
type Network struct {
	Query      string        `json:"query"`
	Reference  string        `json:"reference"`
	Documents  int           `json:"documents"`
	Units      int           `json:"units"`
	Matched    int           `json:"matched"`
	Skipped    int           `json:"skipped"`
	Mode       string        `json:"summarize_mode"`
	Neighbours []Neighbour   `json:"neighbours"`
	PerUnit    []UnitSummary `json:"per_unit,omitempty"`
}

// Tracker receives analytics events; *analytics.Collector satisfies it.
type Tracker interface {
	Track(key string, event any)
}

// Service computes networks. It is safe for concurrent use.
type Service struct {
	retriever  retrieval.Retriever
	normalizer *textproc.Normalizer
	cfg        config.ProximityConfig
	weight     proximity.WeightMode
	mode       proximity.SummaryMode

	cache   Cache
	metrics *metrics.Metrics
	tracer  *tracing.Tracer
	tracker Tracker
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithTracer(t *tracing.Tracer) Option { return func(s *Service) { s.tracer = t } }

func WithTracker(t Tracker) Option { return func(s *Service) { s.tracker = t } }

// NewService validates the weighting and summarize modes in cfg.
func NewService(r retrieval.Retriever, n *textproc.Normalizer, cfg config.ProximityConfig, opts ...Option) (*Service, error) {
	weight, err := proximity.ParseWeightMode(cfg.WeightMode)
	if err != nil {
		return nil, err
	}
	mode, err := proximity.ParseSummaryMode(cfg.SummarizeMode)
	if err != nil {
		return nil, err
	}
	s := &Service{
		retriever:  r,
		normalizer: n,
		cfg:        cfg,
		weight:     weight,
		mode:       mode,
		logger:     slog.Default().With("component", "network"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Cache returns the configured cache, or nil.
func (s *Service) Cache() Cache { return s.cache }

// Reference resolves the reference term for req: the explicit term when
// given, otherwise the last normalized token of the query.
func (s *Service) Reference(req Request) (string, error) {
	source, field := req.Query, "query"
	if strings.TrimSpace(req.ReferenceTerm) != "" {
		source, field = req.ReferenceTerm, "reference_term"
	}
	tokens := s.normalizer.Normalize(source)
	if len(tokens) == 0 {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, 400, "%s has no usable terms after normalization", field)
	}
	return tokens[len(tokens)-1], nil
}

// Compute builds the network for req, through the cache when one is set.
func (s *Service) Compute(ctx context.Context, req Request) (*Network, error) {
	start := time.Now()
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		s.observe(ctx, req, "", nil, false, start, apperrors.ErrInvalidInput)
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "query is required")
	}
	reference, err := s.Reference(req)
	if err != nil {
		s.observe(ctx, req, "", nil, false, start, err)
		return nil, err
	}

	ctx, root := s.tracer.Start(ctx, "network", logger.RequestID(ctx))
	root.SetAttr("reference", reference)
	defer s.tracer.Finish(root)

	var (
		n   *Network
		hit bool
	)
	if s.cache != nil {
		key := cacheKey(req.Query, reference, s.fingerprint())
		n, hit, err = s.cache.GetOrCompute(ctx, key, func() (*Network, error) {
			return s.compute(ctx, req.Query, reference)
		})
	} else {
		n, err = s.compute(ctx, req.Query, reference)
	}
	root.SetAttr("cache_hit", hit)
	s.observe(ctx, req, reference, n, hit, start, err)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) compute(ctx context.Context, query, reference string) (*Network, error) {
	log := logger.FromContext(ctx)

	rctx, span := tracing.StartChild(ctx, "retrieve")
	docs, err := s.retriever.Retrieve(rctx, query, s.cfg.MaxResults)
	span.SetAttr("documents", len(docs))
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = tracing.StartChild(ctx, "normalize")
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = textproc.StripMarkup(d.Text())
	}
	units := s.normalizer.NormalizeAll(proximity.SplitUnits(proximity.WeightDocuments(texts, s.weight)))
	span.SetAttr("units", len(units))
	span.End()

	pctx, span := tracing.StartChild(ctx, "extract")
	res, err := proximity.Run(pctx, units, proximity.Params{
		Reference:        reference,
		MaxDistance:      s.cfg.LimitDistance,
		Mode:             s.mode,
		IncludeReference: s.cfg.IncludeReferenceTerm,
		TopN:             s.cfg.TopN,
		Workers:          s.cfg.Workers,
	})
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = tracing.StartChild(ctx, "rank")
	n := &Network{
		Query:      query,
		Reference:  reference,
		Documents:  len(docs),
		Units:      res.Units,
		Matched:    res.Matched,
		Skipped:    res.Skipped,
		Mode:       string(s.mode),
		Neighbours: s.neighbours(res.Ranked),
	}
	for _, vm := range res.PerUnit {
		n.PerUnit = append(n.PerUnit, summarize(vm))
	}
	span.SetAttr("neighbours", len(n.Neighbours))
	span.End()

	if s.metrics != nil {
		s.metrics.UnitsProcessedTotal.WithLabelValues("matched").Add(float64(res.Matched))
		s.metrics.UnitsProcessedTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	}
	log.Debug("network computed",
		"reference", reference,
		"documents", len(docs),
		"units", res.Units,
		"skipped", res.Skipped,
		"neighbours", len(n.Neighbours),
	)
	return n, nil
}

func (s *Service) neighbours(ranked []proximity.RankedTermStat) []Neighbour {
	sizes := proximity.NormalizeFrequencies(ranked, s.cfg.NodeSizeRange[0], s.cfg.NodeSizeRange[1])
	widths := proximity.NormalizeDistances(ranked, s.cfg.EdgeWidthRange[0], s.cfg.EdgeWidthRange[1])
	out := make([]Neighbour, len(ranked))
	for i, r := range ranked {
		out[i] = Neighbour{
			Term:      r.Term,
			Frequency: r.Frequency,
			Distance:  r.Distance,
			NodeSize:  sizes[r.Term],
			EdgeWidth: widths[r.Term],
		}
	}
	return out
}

func summarize(vm *proximity.VicinityMap) UnitSummary {
	terms := vm.Terms()
	values := make(map[string]float64, len(terms))
	for _, t := range terms {
		if e, ok := vm.Entry(t); ok {
			values[t] = e.Value
		}
	}
	return UnitSummary{Terms: terms, Values: values}
}

// fingerprint captures every parameter that changes the output for a given
// query and reference.
func (s *Service) fingerprint() string {
	opts := s.normalizer.Options()
	return fmt.Sprintf("max=%d|w=%s|d=%d|m=%s|inc=%t|top=%d|stop=%t:%s|lem=%t|stem=%t|ns=%v|ew=%v",
		s.cfg.MaxResults, s.weight, s.cfg.LimitDistance, s.mode, s.cfg.IncludeReferenceTerm, s.cfg.TopN,
		opts.DefaultStopWords, strings.Join(opts.StopWords, ","), opts.Lemmatize, opts.Stem,
		s.cfg.NodeSizeRange, s.cfg.EdgeWidthRange)
}

// Outcome classifies a computation result for metrics and analytics.
func Outcome(n *Network, err error) string {
	switch {
	case err == nil && len(n.Neighbours) == 0:
		return "empty"
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	case retrieval.IsNoResults(err), errors.Is(err, proximity.ErrNoDocuments):
		return "not_found"
	case errors.Is(err, apperrors.ErrRetrieval):
		return "retrieval_error"
	}
	return "error"
}

func retrievalReason(err error) string {
	switch {
	case retrieval.IsNoResults(err):
		return "no_results"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	case errors.Is(err, apperrors.ErrRateLimited):
		return "rate_limited"
	}
	return "upstream"
}

func (s *Service) observe(ctx context.Context, req Request, reference string, n *Network, hit bool, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := Outcome(n, err)
	if s.metrics != nil {
		s.metrics.NetworkRequestsTotal.WithLabelValues(outcome).Inc()
		status := "disabled"
		if s.cache != nil {
			status = "miss"
			if hit {
				status = "hit"
			}
		}
		s.metrics.NetworkLatency.WithLabelValues(status).Observe(elapsed.Seconds())
		if err == nil {
			s.metrics.NeighboursReturned.Observe(float64(len(n.Neighbours)))
		}
		if errors.Is(err, apperrors.ErrRetrieval) {
			s.metrics.RetrievalErrorsTotal.WithLabelValues(retrievalReason(err)).Inc()
		}
	}
	if s.tracker == nil {
		return
	}
	event := analytics.NetworkEvent{
		Type:      analytics.EventNetwork,
		Query:     req.Query,
		Reference: reference,
		Outcome:   outcome,
		LatencyMs: elapsed.Milliseconds(),
		CacheHit:  hit,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	}
	switch {
	case err != nil:
		event.Type = analytics.EventNetworkFailed
	case len(n.Neighbours) == 0:
		event.Type = analytics.EventNetworkEmpty
	}
	if n != nil {
		event.Units = n.Units
		event.Matched = n.Matched
		event.Neighbours = make([]string, len(n.Neighbours))
		for i, nb := range n.Neighbours {
			event.Neighbours[i] = nb.Term
		}
	}
	s.tracker.Track("network", event)
}
