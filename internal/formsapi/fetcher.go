// Package formsapi talks to the forms service to resolve the schema a
// submission is validated against.
package formsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lshigami/formresponses/config"
	"github.com/lshigami/formresponses/internal/metrics"
	"github.com/lshigami/formresponses/pkg/formschema"
	"github.com/lshigami/formresponses/pkg/validation"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const maxBodyBytes = 4 << 20

type Fetcher interface {
	// Fetch resolves the current schema of a form. authorization is the
	// caller's Authorization header, forwarded as is; it may be empty.
	Fetch(ctx context.Context, formID int, authorization string) (*formschema.Form, error)
}

// Endpoint is one place the schema may be read from.
type Endpoint struct {
	Name string
	// Path is a format string taking the form id.
	Path string
}

// DefaultEndpoints tries the lightweight meta view first and the full form
// second. The meta view hides locked forms, so the fallback is what reports
// a lock.
var DefaultEndpoints = []Endpoint{
	{Name: "meta", Path: "/forms/%d/meta"},
	{Name: "form", Path: "/forms/%d"},
}

type HTTPFetcher struct {
	BaseURL   string
	Client    *http.Client
	Timeout   time.Duration
	Endpoints []Endpoint
}

func NewHTTPFetcher(cfg *config.Config) Fetcher {
	return &HTTPFetcher{
		BaseURL:   cfg.Forms.BaseURL,
		Client:    &http.Client{},
		Timeout:   cfg.Forms.Timeout,
		Endpoints: DefaultEndpoints,
	}
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeNotOK
	outcomeUnreachable
)

// attempt is the result of calling a single endpoint.
type attempt struct {
	outcome outcome
	status  int
	body    []byte
	err     error
}

func (f *HTTPFetcher) Fetch(ctx context.Context, formID int, authorization string) (*formschema.Form, error) {
	ctx, span := otel.Tracer("formsapi").Start(ctx, "formsapi.Fetch")
	defer span.End()
	span.SetAttributes(attribute.Int("form.id", formID))

	var last attempt
	for i, ep := range f.Endpoints {
		if i > 0 {
			metrics.SchemaFetchFallbacks.Inc()
			log.Debug().Int("formID", formID).Str("endpoint", ep.Name).Int("previousStatus", last.status).Msg("Falling back to next schema endpoint")
		}

		last = f.call(ctx, ep, formID, authorization)
		switch last.outcome {
		case outcomeUnreachable:
			span.SetStatus(codes.Error, "unreachable")
			log.Error().Err(last.err).Int("formID", formID).Str("endpoint", ep.Name).Msg("Forms service unreachable")
			return nil, &RemoteUnavailableError{URL: f.BaseURL, Err: last.err}
		case outcomeOK:
			form, err := formschema.ParseForm(last.body)
			if err != nil {
				span.SetStatus(codes.Error, "malformed")
				log.Warn().Err(err).Int("formID", formID).Str("endpoint", ep.Name).Msg("Malformed form schema")
				return nil, &MalformedSchemaError{Reason: err.Error(), Err: err}
			}
			for _, d := range validation.CheckForm(form) {
				log.Warn().Int("formID", formID).Int("questionID", d.QuestionID).Str("problem", d.Problem).Msg("Question breaks authoring rules")
			}
			return form, nil
		}
	}

	if len(f.Endpoints) == 0 {
		return nil, &FetchFailedError{Status: http.StatusBadGateway, Body: "no schema endpoints configured"}
	}
	span.SetStatus(codes.Error, "fetch failed")
	return nil, &FetchFailedError{Status: last.status, Body: string(last.body)}
}

func (f *HTTPFetcher) call(ctx context.Context, ep Endpoint, formID int, authorization string) attempt {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	url := f.BaseURL + fmt.Sprintf(ep.Path, formID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return attempt{outcome: outcomeUnreachable, err: err}
	}
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := f.client().Do(req)
	metrics.SchemaFetchDuration.WithLabelValues(ep.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return attempt{outcome: outcomeUnreachable, err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return attempt{outcome: outcomeUnreachable, err: fmt.Errorf("reading %s: %w", url, err)}
	}
	if resp.StatusCode != http.StatusOK {
		return attempt{outcome: outcomeNotOK, status: resp.StatusCode, body: body}
	}
	return attempt{outcome: outcomeOK, status: resp.StatusCode, body: body}
}

func (f *HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}
