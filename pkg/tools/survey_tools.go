package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmsurvey/pkg/core"
	"github.com/NERVsystems/osmsurvey/pkg/geo"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/survey"
)

const (
	defaultElementLimit = 100
	maxElementLimit     = 1000
)

const bboxDescription = "Bounding box object with required fields: min_lat, min_lon, max_lat, max_lon (decimal degrees, south < north, west < east, span at most 0.1 degrees). Example: {\"min_lat\": 51.5033, \"min_lon\": -0.1196, \"max_lat\": 51.5043, \"max_lon\": -0.1186}"

const featureTypesDescription = "OSM tag keys to query, at most 20. Omit for the default set. Example: [\"highway\", \"barrier\", \"man_made\"]"

// FeatureTypesInput selects a feature type list.
type FeatureTypesInput struct {
	Set string `json:"set,omitempty"`
}

// FeatureTypesOutput is a feature type listing.
type FeatureTypesOutput struct {
	Set          string              `json:"set"`
	FeatureTypes []string            `json:"feature_types"`
	Description  string              `json:"description,omitempty"`
	Categories   map[string][]string `json:"categories,omitempty"`
}

// FeatureTypesTool returns a tool definition for listing feature types
func FeatureTypesTool() mcp.Tool {
	return mcp.NewTool("survey_feature_types",
		mcp.WithDescription("List the OSM feature types (tag keys) the survey service can query"),
		mcp.WithString("set",
			mcp.Description("Which list to return: available (every accepted key), default (queried when none are given) or survey (the engineering set)"),
			mcp.DefaultString("available"),
		),
	)
}

// HandleFeatureTypes returns the requested feature type list.
func HandleFeatureTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("survey_feature_types", func(ctx context.Context, input FeatureTypesInput, logger *slog.Logger) (any, error) {
		switch strings.ToLower(input.Set) {
		case "", "available":
			return FeatureTypesOutput{Set: "available", FeatureTypes: survey.AvailableFeatureTypes}, nil
		case "default":
			return FeatureTypesOutput{Set: "default", FeatureTypes: survey.DefaultFeatureTypes}, nil
		case "survey", "mach9":
			return FeatureTypesOutput{
				Set:          "survey",
				FeatureTypes: survey.SurveyFeatureTypes,
				Description:  survey.SurveyDescription,
				Categories:   survey.SurveyCategories,
			}, nil
		}
		return nil, core.NewValidationError(core.ErrInvalidInput,
			fmt.Sprintf("Unknown feature type set %q. Use available, default or survey", input.Set))
	})(ctx, req)
}

// QueryBBoxInput defines the input parameters for survey_query_bbox
type QueryBBoxInput struct {
	BBox         geo.BoundingBox `json:"bbox"`
	FeatureTypes []string        `json:"feature_types,omitempty"`
	Limit        int             `json:"limit,omitempty"`
}

// QueryBBoxOutput summarizes a query and lists its first elements.
type QueryBBoxOutput struct {
	TotalElements int           `json:"total_elements"`
	Nodes         int           `json:"nodes"`
	Ways          int           `json:"ways"`
	Relations     int           `json:"relations"`
	FeatureTypes  []string      `json:"feature_types"`
	Elements      []osm.Element `json:"elements"`
	Truncated     bool          `json:"truncated,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// QueryBBoxTool returns a tool definition for querying a bounding box
func QueryBBoxTool() mcp.Tool {
	return mcp.NewTool("survey_query_bbox",
		mcp.WithDescription("Fetch normalized OpenStreetMap elements (nodes, ways, relations with geometry) inside a bounding box for the given feature types"),
		mcp.WithObject("bbox",
			mcp.Required(),
			mcp.Description(bboxDescription),
		),
		mcp.WithArray("feature_types",
			mcp.Description(featureTypesDescription),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of elements to include in the response (1-1000)"),
			mcp.DefaultNumber(defaultElementLimit),
		),
	)
}

// HandleQueryBBox runs a survey query.
func (r *Registry) HandleQueryBBox(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("survey_query_bbox", func(ctx context.Context, input QueryBBoxInput, logger *slog.Logger) (any, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = defaultElementLimit
		}
		if limit > maxElementLimit {
			limit = maxElementLimit
		}

		res, err := r.service.Query(ctx, survey.QueryRequest{BBox: input.BBox, FeatureTypes: input.FeatureTypes})
		if err != nil {
			return nil, err
		}

		c := res.Collection
		all := c.All()
		out := QueryBBoxOutput{
			TotalElements: c.Total(),
			Nodes:         len(c.Nodes),
			Ways:          len(c.Ways),
			Relations:     len(c.Relations),
			FeatureTypes:  res.FeatureTypes,
			Elements:      all,
			Warnings:      res.Warnings,
		}
		if len(all) > limit {
			out.Elements = all[:limit]
			out.Truncated = true
		}
		logger.Info("query complete", "element_count", out.TotalElements, "returned", len(out.Elements))
		return out, nil
	})(ctx, req)
}

// SurveyInput is a bounding box and optional feature types.
type SurveyInput struct {
	BBox         geo.BoundingBox `json:"bbox"`
	FeatureTypes []string        `json:"feature_types,omitempty"`
}

// ReportOutput carries the engineering report text.
type ReportOutput struct {
	Report          string   `json:"report"`
	Recommendations []string `json:"recommendations"`
	FeatureTypes    []string `json:"feature_types"`
	Warnings        []string `json:"warnings,omitempty"`
}

// ReportTool returns a tool definition for the engineering text report
func ReportTool() mcp.Tool {
	return mcp.NewTool("survey_report",
		mcp.WithDescription("Produce the engineering and survey report for a bounding box: element counts, transportation, utility and civil feature counts, detailed listings, infrastructure breakdowns and recommendations. Without feature_types the engineering set is queried."),
		mcp.WithObject("bbox",
			mcp.Required(),
			mcp.Description(bboxDescription),
		),
		mcp.WithArray("feature_types",
			mcp.Description(featureTypesDescription),
		),
	)
}

// HandleReport renders the engineering report.
func (r *Registry) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("survey_report", func(ctx context.Context, input SurveyInput, logger *slog.Logger) (any, error) {
		res, err := r.service.Report(ctx, survey.QueryRequest{BBox: input.BBox, FeatureTypes: input.FeatureTypes})
		if err != nil {
			return nil, err
		}
		return ReportOutput{
			Report:          res.Text,
			Recommendations: res.Recommendations,
			FeatureTypes:    res.FeatureTypes,
			Warnings:        res.Warnings,
		}, nil
	})(ctx, req)
}

// CSVRollupTool returns a tool definition for the CSV feature rollup
func CSVRollupTool() mcp.Tool {
	return mcp.NewTool("survey_csv_rollup",
		mcp.WithDescription("Produce the CSV feature rollup (element types, key/value counts, tag key counts) for a bounding box"),
		mcp.WithObject("bbox",
			mcp.Required(),
			mcp.Description(bboxDescription),
		),
		mcp.WithArray("feature_types",
			mcp.Description(featureTypesDescription),
		),
	)
}

// HandleCSVRollup returns the CSV rollup as text.
func (r *Registry) HandleCSVRollup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("survey_csv_rollup", func(ctx context.Context, input SurveyInput, logger *slog.Logger) (any, error) {
		data, err := r.service.CSVRollup(ctx, survey.QueryRequest{BBox: input.BBox, FeatureTypes: input.FeatureTypes})
		if err != nil {
			return nil, err
		}
		return string(data), nil
	})(ctx, req)
}

// GenerateInput defines the input parameters for survey_generate
type GenerateInput struct {
	BBox         geo.BoundingBox `json:"bbox"`
	FeatureTypes []string        `json:"feature_types,omitempty"`
	Outputs      []string        `json:"outputs,omitempty"`
}

// GenerateOutput lists the files of a generation session.
type GenerateOutput struct {
	Message       string                 `json:"message"`
	SessionID     string                 `json:"session_id"`
	TotalElements int                    `json:"total_elements"`
	FeatureTypes  []string               `json:"feature_types"`
	Files         []survey.GeneratedFile `json:"files"`
	Warnings      []string               `json:"warnings,omitempty"`
}

// GenerateTool returns a tool definition for report generation
func GenerateTool() mcp.Tool {
	return mcp.NewTool("survey_generate",
		mcp.WithDescription("Generate report files for a bounding box into a download session. Outputs: report (overview text), data (raw JSON), map (GeoJSON), mach9 (engineering text, JSON and CSV), all. Files expire after the retention window."),
		mcp.WithObject("bbox",
			mcp.Required(),
			mcp.Description(bboxDescription),
		),
		mcp.WithArray("feature_types",
			mcp.Description(featureTypesDescription+". Ignored when mach9 is requested."),
		),
		mcp.WithArray("outputs",
			mcp.Description("Outputs to produce. Example: [\"mach9\", \"map\"]. Defaults to all."),
		),
	)
}

// HandleGenerate runs a generation and returns absolute download links.
func (r *Registry) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("survey_generate", func(ctx context.Context, input GenerateInput, logger *slog.Logger) (any, error) {
		res, err := r.service.Generate(ctx, survey.GenerateRequest{
			QueryRequest: survey.QueryRequest{BBox: input.BBox, FeatureTypes: input.FeatureTypes},
			Outputs:      input.Outputs,
		})
		if err != nil {
			return nil, err
		}

		base := strings.TrimSuffix(r.baseURL, "/")
		files := make([]survey.GeneratedFile, len(res.Files))
		for i, f := range res.Files {
			f.URL = base + f.URL
			files[i] = f
		}
		logger.Info("generation complete", "session_id", res.SessionID, "file_count", len(files))
		return GenerateOutput{
			Message:       res.Message(),
			SessionID:     res.SessionID,
			TotalElements: res.TotalElements,
			FeatureTypes:  res.FeatureTypes,
			Files:         files,
			Warnings:      res.Warnings,
		}, nil
	})(ctx, req)
}
