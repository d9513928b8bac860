package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/tracing"
	"github.com/diwise/alert-engine/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var tracer = otel.Tracer("alert-engine-client")

var (
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

type AlertEngineClient interface {
	CreateRule(ctx context.Context, spec types.RuleSpec) (types.Rule, error)
	GetRule(ctx context.Context, ruleID string) (types.Rule, error)
	UpdateRule(ctx context.Context, ruleID string, fields map[string]any) (types.Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error
	ListRules(ctx context.Context, filter types.RuleFilter) (types.Collection[types.Rule], error)

	Evaluate(ctx context.Context, req types.EvaluationRequest) (types.EvaluationResult, error)

	GetAlert(ctx context.Context, alertID string) (types.Alert, error)
	ListAlerts(ctx context.Context, filter types.AlertFilter) (types.Collection[types.Alert], error)
	AcknowledgeAlert(ctx context.Context, req types.AcknowledgeRequest) (types.Alert, error)
	ResolveAlert(ctx context.Context, req types.ResolveRequest) (types.Alert, error)

	GetAnalytics(ctx context.Context, req types.AnalyticsRequest) (types.AlertAnalytics, error)

	Close(ctx context.Context)
}

type alertEngineClient struct {
	url        string
	httpClient *http.Client
}

// New creates a client that authenticates with the client credentials flow
// against oauthTokenURL. A token is fetched up front so that bad credentials
// are reported here rather than on the first call.
func New(ctx context.Context, alertEngineURL, oauthTokenURL, oauthClientID, oauthClientSecret string) (AlertEngineClient, error) {
	oauthConfig := &clientcredentials.Config{
		ClientID:     oauthClientID,
		ClientSecret: oauthClientSecret,
		TokenURL:     oauthTokenURL,
	}

	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	tokenSource := oauthConfig.TokenSource(ctx)

	token, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get client credentials from %s: %w", oauthConfig.TokenURL, err)
	}

	if !token.Valid() {
		return nil, fmt.Errorf("an invalid token was returned from %s", oauthTokenURL)
	}

	return &alertEngineClient{
		url:        strings.TrimSuffix(alertEngineURL, "/"),
		httpClient: oauth2.NewClient(ctx, tokenSource),
	}, nil
}

func (c *alertEngineClient) CreateRule(ctx context.Context, spec types.RuleSpec) (types.Rule, error) {
	rule := types.Rule{}
	err := c.do(ctx, "create-rule", http.MethodPost, "/api/v0/rules", nil, spec, &rule)
	return rule, err
}

func (c *alertEngineClient) GetRule(ctx context.Context, ruleID string) (types.Rule, error) {
	rule := types.Rule{}
	err := c.do(ctx, "get-rule", http.MethodGet, "/api/v0/rules/"+url.PathEscape(ruleID), nil, nil, &rule)
	return rule, err
}

func (c *alertEngineClient) UpdateRule(ctx context.Context, ruleID string, fields map[string]any) (types.Rule, error) {
	rule := types.Rule{}
	err := c.do(ctx, "update-rule", http.MethodPatch, "/api/v0/rules/"+url.PathEscape(ruleID), nil, fields, &rule)
	return rule, err
}

func (c *alertEngineClient) DeleteRule(ctx context.Context, ruleID string) error {
	return c.do(ctx, "delete-rule", http.MethodDelete, "/api/v0/rules/"+url.PathEscape(ruleID), nil, nil, nil)
}

func (c *alertEngineClient) ListRules(ctx context.Context, filter types.RuleFilter) (types.Collection[types.Rule], error) {
	q := url.Values{}
	set(q, "organization_id", filter.OrganizationID)
	set(q, "department_id", filter.DepartmentID)
	set(q, "source", string(filter.Source))
	if filter.Enabled != nil {
		q.Set("enabled", strconv.FormatBool(*filter.Enabled))
	}
	for _, s := range filter.Severities {
		q.Add("severity", string(s))
	}
	page(q, filter.Page, filter.PageSize)

	result := types.Collection[types.Rule]{}
	err := c.do(ctx, "list-rules", http.MethodGet, "/api/v0/rules", q, nil, &result)
	return result, err
}

func (c *alertEngineClient) Evaluate(ctx context.Context, req types.EvaluationRequest) (types.EvaluationResult, error) {
	result := types.EvaluationResult{}
	err := c.do(ctx, "evaluate-rules", http.MethodPost, "/api/v0/evaluations", nil, req, &result)
	return result, err
}

func (c *alertEngineClient) GetAlert(ctx context.Context, alertID string) (types.Alert, error) {
	alert := types.Alert{}
	err := c.do(ctx, "get-alert", http.MethodGet, "/api/v0/alerts/"+url.PathEscape(alertID), nil, nil, &alert)
	return alert, err
}

func (c *alertEngineClient) ListAlerts(ctx context.Context, filter types.AlertFilter) (types.Collection[types.Alert], error) {
	q := url.Values{}
	set(q, "organization_id", filter.OrganizationID)
	set(q, "source", string(filter.Source))
	set(q, "rule_id", filter.RuleID)
	set(q, "department_id", filter.DepartmentID)
	set(q, "queue_name", filter.QueueName)
	for _, s := range filter.Statuses {
		q.Add("status", string(s))
	}
	for _, s := range filter.Severities {
		q.Add("severity", string(s))
	}
	if filter.From != nil {
		q.Set("start_time", filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		q.Set("end_time", filter.To.UTC().Format(time.RFC3339))
	}
	page(q, filter.Page, filter.PageSize)

	result := types.Collection[types.Alert]{}
	err := c.do(ctx, "list-alerts", http.MethodGet, "/api/v0/alerts", q, nil, &result)
	return result, err
}

func (c *alertEngineClient) AcknowledgeAlert(ctx context.Context, req types.AcknowledgeRequest) (types.Alert, error) {
	alert := types.Alert{}
	err := c.do(ctx, "acknowledge-alert", http.MethodPost, "/api/v0/alerts/"+url.PathEscape(req.AlertID)+"/acknowledge", nil, req, &alert)
	return alert, err
}

func (c *alertEngineClient) ResolveAlert(ctx context.Context, req types.ResolveRequest) (types.Alert, error) {
	alert := types.Alert{}
	err := c.do(ctx, "resolve-alert", http.MethodPost, "/api/v0/alerts/"+url.PathEscape(req.AlertID)+"/resolve", nil, req, &alert)
	return alert, err
}

func (c *alertEngineClient) GetAnalytics(ctx context.Context, req types.AnalyticsRequest) (types.AlertAnalytics, error) {
	q := url.Values{}
	set(q, "organization_id", req.OrganizationID)
	q.Set("start_time", req.StartTime.UTC().Format(time.RFC3339))
	q.Set("end_time", req.EndTime.UTC().Format(time.RFC3339))

	result := types.AlertAnalytics{}
	err := c.do(ctx, "get-analytics", http.MethodGet, "/api/v0/analytics", q, nil, &result)
	return result, err
}

func (c *alertEngineClient) Close(ctx context.Context) {
	c.httpClient.CloseIdleConnections()
}

func (c *alertEngineClient) do(ctx context.Context, operation, method, path string, query url.Values, body, result any) (err error) {
	ctx, span := tracer.Start(ctx, operation)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)

	u := c.url + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Add("Accept", "application/json")
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to alert engine failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		err = errorFromStatus(resp.StatusCode)
		log.Debug().Str("operation", operation).Int("status", resp.StatusCode).Msg("request rejected by alert engine")
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(respBody)))
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}

	if err = json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	return nil
}

func errorFromStatus(code int) error {
	switch code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusConflict:
		return ErrConflict
	}
	return fmt.Errorf("unexpected response code %d", code)
}

func set(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func page(q url.Values, page, pageSize int) {
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
}
