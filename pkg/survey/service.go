package survey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmsurvey/pkg/core"
	"github.com/NERVsystems/osmsurvey/pkg/geo"
	"github.com/NERVsystems/osmsurvey/pkg/monitoring"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/render"
	"github.com/NERVsystems/osmsurvey/pkg/report"
	"github.com/NERVsystems/osmsurvey/pkg/rollup"
	"github.com/NERVsystems/osmsurvey/pkg/session"
	"github.com/NERVsystems/osmsurvey/pkg/tracing"
)

// Fetcher retrieves the elements inside a bounding box carrying any of keys.
// *osm.OverpassClient implements it.
type Fetcher interface {
	Fetch(ctx context.Context, bbox geo.BoundingBox, keys []string) (*osm.Collection, error)
}

// Limits are the request ceilings the service enforces.
type Limits struct {
	MaxBBoxSpan     float64
	MaxFeatureTypes int
	MaxElements     int
}

// DefaultLimits returns the stock ceilings.
func DefaultLimits() Limits {
	return Limits{MaxBBoxSpan: 0.1, MaxFeatureTypes: 20, MaxElements: 50000}
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	Limits   Limits
	Sessions *session.Store
	Engine   *rollup.Engine
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service runs survey requests end to end. It is safe for concurrent use;
// each call works on its own collection and rollup.
type Service struct {
	fetcher  Fetcher
	limits   Limits
	sessions *session.Store
	engine   *rollup.Engine
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a service over fetcher.
func NewService(fetcher Fetcher, opts Options) *Service {
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.Engine == nil {
		opts.Engine = rollup.NewEngine(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		fetcher:  fetcher,
		limits:   opts.Limits,
		sessions: opts.Sessions,
		engine:   opts.Engine,
		logger:   opts.Logger.With("component", "survey"),
		now:      opts.Now,
	}
}

// Limits returns the ceilings in effect.
func (s *Service) Limits() Limits {
	return s.limits
}

// Sessions returns the session store, which may be nil.
func (s *Service) Sessions() *session.Store {
	return s.sessions
}

// QueryRequest selects an area and the tag keys to fetch.
type QueryRequest struct {
	BBox         geo.BoundingBox `json:"bbox"`
	FeatureTypes []string        `json:"feature_types,omitempty"`
}

// GenerateRequest is a query plus the outputs to produce.
type GenerateRequest struct {
	QueryRequest
	Outputs []string `json:"outputs,omitempty"`
}

// QueryResult is a fetched, normalized collection.
type QueryResult struct {
	Collection   *osm.Collection
	BBox         geo.BoundingBox
	FeatureTypes []string
	Warnings     []string
	QueryTime    time.Time
}

// GeneratedFile is one artifact written into a session.
type GeneratedFile struct {
	Name        string `json:"filename"`
	Renderer    string `json:"renderer"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	URL         string `json:"download_url"`
}

// GenerateResult describes a finished generation run.
type GenerateResult struct {
	SessionID     string
	TotalElements int
	BBox          geo.BoundingBox
	FeatureTypes  []string
	Outputs       []Output
	Files         []GeneratedFile
	Warnings      []string
}

// Message is the human summary of the run.
func (r *GenerateResult) Message() string {
	return fmt.Sprintf("Generated %d files successfully", len(r.Files))
}

// URLs lists the file download paths in generation order.
func (r *GenerateResult) URLs() []string {
	urls := make([]string, len(r.Files))
	for i, f := range r.Files {
		urls[i] = f.URL
	}
	return urls
}

// ReportResult is the engineering text report with the rollup behind it.
type ReportResult struct {
	Text            string
	Rollup          *rollup.Result
	Recommendations []string
	FeatureTypes    []string
	Warnings        []string
}

// FileURL is the inline download path of a session file.
func FileURL(sessionID, name string) string {
	return "/files/" + sessionID + "/" + name
}

// Query validates the request and fetches its collection. An empty
// collection is a valid result.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	ctx, span := tracing.StartSpan(ctx, "survey.query")
	defer span.End()

	res, err := s.query(ctx, req.BBox, req.FeatureTypes, nil, nil)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	return res, nil
}

// CSVRollup fetches the request and renders the feature rollup table.
func (s *Service) CSVRollup(ctx context.Context, req QueryRequest) ([]byte, error) {
	ctx, span := tracing.StartSpan(ctx, "survey.csv_rollup")
	defer span.End()

	res, err := s.query(ctx, req.BBox, req.FeatureTypes, nil, nil)
	if err == nil {
		err = requireData(res.Collection)
	}
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	data, err := report.CSV(s.engine.Run(res.Collection))
	monitoring.RecordReport(report.CSVRenderer{}.Name(), err == nil)
	if err != nil {
		failSpan(span, err)
		return nil, core.NewError(core.ErrInternalError, fmt.Sprintf("Failed to render CSV rollup: %v", err))
	}
	return data, nil
}

// Report fetches the request and renders the engineering text report. With no
// feature types the survey set is queried.
func (s *Service) Report(ctx context.Context, req QueryRequest) (*ReportResult, error) {
	ctx, span := tracing.StartSpan(ctx, "survey.report")
	defer span.End()

	res, err := s.query(ctx, req.BBox, req.FeatureTypes, SurveyFeatureTypes, nil)
	if err == nil {
		err = requireData(res.Collection)
	}
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	r := s.engine.Run(res.Collection)
	text := report.Text(render.Input{
		Collection:  res.Collection,
		BBox:        res.BBox,
		Rollup:      r,
		GeneratedAt: s.now(),
	})
	monitoring.RecordReport(report.TextRenderer{}.Name(), true)
	return &ReportResult{
		Text:            text,
		Rollup:          r,
		Recommendations: report.Recommend(r),
		FeatureTypes:    res.FeatureTypes,
		Warnings:        res.Warnings,
	}, nil
}

// Generate fetches the request, renders every requested output into a new
// session and returns the file list. A failed run leaves no session behind.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "survey.generate")
	defer span.End()

	outputs, err := ExpandOutputs(req.Outputs)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	if s.sessions == nil {
		err := core.NewError(core.ErrInternalError, "Session storage is not configured")
		failSpan(span, err)
		return nil, err
	}

	var override []string
	if hasOutput(outputs, OutputMach9) {
		override = SurveyFeatureTypes
	}
	res, err := s.query(ctx, req.BBox, req.FeatureTypes, nil, override)
	if err == nil {
		err = requireData(res.Collection)
	}
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	var renderers []render.Renderer
	warnings := res.Warnings
	for _, o := range outputs {
		rs := renderersFor(o)
		if len(rs) == 0 {
			warnings = append(warnings, fmt.Sprintf("Output '%s' is not supported and was skipped", o))
			continue
		}
		renderers = append(renderers, rs...)
	}

	sess, err := s.sessions.Create()
	if err != nil {
		failSpan(span, err)
		return nil, core.NewError(core.ErrInternalError, fmt.Sprintf("Failed to create session: %v", err))
	}
	span.SetAttributes(attribute.String(tracing.AttrSessionID, sess.ID))

	in := render.Input{
		Collection:  res.Collection,
		BBox:        res.BBox,
		Rollup:      s.engine.Run(res.Collection),
		GeneratedAt: s.now(),
	}
	files, err := s.writeAll(ctx, sess.ID, renderers, in)
	if err != nil {
		s.sessions.Remove(sess.ID)
			failSpan(span, err)
		return nil, core.NewError(core.ErrInternalError, fmt.Sprintf("Failed to generate outputs: %v", err))
	}

	s.logger.Info("generated outputs",
		"session_id", sess.ID,
		"file_count", len(files),
		"element_count", res.Collection.Total())
	return &GenerateResult{
		SessionID:     sess.ID,
		TotalElements: res.Collection.Total(),
		BBox:          res.BBox,
		FeatureTypes:  res.FeatureTypes,
		Outputs:       outputs,
		Files:         files,
		Warnings:      warnings,
	}, nil
}

// writeAll renders and stores each artifact concurrently. The returned files
// keep the renderer order.
func (s *Service) writeAll(ctx context.Context, sessionID string, renderers []render.Renderer, in render.Input) ([]GeneratedFile, error) {
	files := make([]GeneratedFile, len(renderers))
	g, ctx := errgroup.WithContext(ctx)
	for i, r := range renderers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, span := tracing.StartSpan(ctx, "survey.render",
				trace.WithAttributes(attribute.String(tracing.AttrOutputType, r.Name())))
			defer span.End()

			data, err := r.Render(in)
			monitoring.RecordReport(r.Name(), err == nil)
			if err != nil {
				err = fmt.Errorf("render %s: %w", r.Name(), err)
				failSpan(span, err)
				return err
			}
			if _, err := s.sessions.Write(sessionID, r.Filename(), data); err != nil {
				monitoring.RecordError("session_store", "write_error")
				failSpan(span, err)
				return err
			}
			span.SetAttributes(attribute.Int(tracing.AttrOutputSize, len(data)))
			files[i] = GeneratedFile{
				Name:        r.Filename(),
				Renderer:    r.Name(),
				ContentType: r.ContentType(),
				Size:        len(data),
				URL:         FileURL(sessionID, r.Filename()),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// query validates, fetches and enforces the element ceiling. fallback
// replaces an empty request; override replaces any request once it has been
// validated.
func (s *Service) query(ctx context.Context, bbox geo.BoundingBox, requested, fallback, override []string) (*QueryResult, error) {
	if err := core.ValidateBoundingBox(bbox, s.limits.MaxBBoxSpan); err != nil {
		return nil, err
	}

	var (
		types    []string
		warnings []string
		err      error
	)
	switch {
	case len(requested) == 0 && override != nil:
		types = append([]string(nil), override...)
	case len(requested) == 0 && fallback != nil:
		types = append([]string(nil), fallback...)
	default:
		types, warnings, err = ValidateFeatureTypes(requested, s.limits.MaxFeatureTypes)
		if err != nil {
			return nil, err
		}
		if override != nil {
			types = append([]string(nil), override...)
		}
	}
	for _, w := range warnings {
		s.logger.Warn(w)
	}

	c, err := s.fetcher.Fetch(ctx, bbox, types)
	if err == nil && c == nil {
		c = osm.NewCollection()
	}
	var elements int
	if c != nil {
		elements = c.Total()
	}
	trace.SpanFromContext(ctx).SetAttributes(tracing.SurveyAttributes(bbox.String(), len(types), elements)...)
	if err != nil {
		return nil, upstreamError(err)
	}

	if n := c.Total(); s.limits.MaxElements > 0 && n > s.limits.MaxElements {
		return nil, core.NewError(core.ErrResultTooLarge,
			fmt.Sprintf("Query returned too many elements (%d). Maximum: %d", n, s.limits.MaxElements)).
			WithGuidance("Reduce the bounding box or request fewer feature types.")
	}
	monitoring.RecordElements(c)

	return &QueryResult{
		Collection:   c,
		BBox:         bbox,
		FeatureTypes: types,
		Warnings:     warnings,
		QueryTime:    s.now(),
	}, nil
}

func requireData(c *osm.Collection) error {
	if c.Total() == 0 {
		return core.NewError(core.ErrNoResults, "No data found in the specified bounding box").
			WithGuidance("Expand the bounding box or request different feature types.")
	}
	return nil
}

// upstreamError keeps typed errors and classifies anything else as an
// upstream failure.
func upstreamError(err error) error {
	var e *core.Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewError(core.ErrServiceTimeout, "Map data request timed out")
	}
	return core.NewError(core.ErrServiceUnavailable, fmt.Sprintf("Map data request failed: %v", err))
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func renderersFor(o Output) []render.Renderer {
	switch o {
	case OutputReport:
		return []render.Renderer{report.OverviewRenderer{}}
	case OutputData:
		return []render.Renderer{report.RawDataRenderer{}}
	case OutputMap:
		return []render.Renderer{render.GeoJSON{}}
	case OutputMach9:
		return []render.Renderer{report.TextRenderer{}, report.JSONRenderer{}, report.CSVRenderer{}}
	}
	return nil
}
