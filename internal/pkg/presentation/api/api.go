package api

import (
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

	"github.com/diwise/alert-engine/internal/pkg/application/alerts"
	"github.com/diwise/alert-engine/internal/pkg/application/analytics"
	"github.com/diwise/alert-engine/internal/pkg/application/rules"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/tracing"
	"github.com/diwise/alert-engine/internal/pkg/presentation/api/auth"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("alert-engine/api")

var (
	errInvalidInput = errors.New("invalid input")
	errForbidden    = errors.New("organization is not accessible")
)

func RegisterHandlers(ctx context.Context, router *chi.Mux, policies io.Reader, ruleSvc rules.RuleService, alertSvc alerts.AlertService, analyticsSvc analytics.AnalyticsService, events http.Handler) (*chi.Mux, error) {

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	log := logging.GetFromContext(ctx)

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return nil, fmt.Errorf("failed to create api authenticator: %w", err)
	}

	router.Route("/api/v0", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.With(authenticator.RequireAccess(auth.ScopeRulesRead)).Get("/", listRulesHandler(log, ruleSvc))
			r.With(authenticator.RequireAccess(auth.ScopeRulesWrite)).Post("/", createRuleHandler(log, ruleSvc))
			r.With(authenticator.RequireAccess(auth.ScopeRulesRead)).Get("/{ruleID}", getRuleHandler(log, ruleSvc))
			r.With(authenticator.RequireAccess(auth.ScopeRulesWrite)).Patch("/{ruleID}", patchRuleHandler(log, ruleSvc))
			r.With(authenticator.RequireAccess(auth.ScopeRulesWrite)).Delete("/{ruleID}", deleteRuleHandler(log, ruleSvc))
		})

		r.With(authenticator.RequireAccess(auth.ScopeAlertsWrite)).Post("/evaluations", evaluateHandler(log, alertSvc))

		r.Route("/alerts", func(r chi.Router) {
			r.With(authenticator.RequireAccess(auth.ScopeAlertsRead)).Get("/", listAlertsHandler(log, alertSvc))
			r.With(authenticator.RequireAccess(auth.ScopeAlertsRead)).Get("/{alertID}", getAlertHandler(log, alertSvc))
			r.With(authenticator.RequireAccess(auth.ScopeAlertsWrite)).Post("/{alertID}/acknowledge", acknowledgeAlertHandler(log, alertSvc))
			r.With(authenticator.RequireAccess(auth.ScopeAlertsWrite)).Post("/{alertID}/resolve", resolveAlertHandler(log, alertSvc))
		})

		r.With(authenticator.RequireAccess(auth.ScopeAnalyticsRead)).Get("/analytics", analyticsHandler(log, analyticsSvc))

		if events != nil {
			r.With(authenticator.RequireAccess(auth.ScopeAlertsRead)).Get("/events", eventsHandler(log, events))
		}
	})

	return router, nil
}

func listRulesHandler(log zerolog.Logger, svc rules.RuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "list-rules")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		filter, err := ruleFilterFromQuery(r.URL.Query())
		if err != nil {
			writeError(w, requestLogger, err, "bad query")
			return
		}

		if err = allow(ctx, filter.OrganizationID, auth.ScopeRulesRead); err != nil {
			writeError(w, requestLogger, err, "list rules denied")
			return
		}

		result, err := svc.List(ctx, filter)
		if err != nil {
			writeError(w, requestLogger, err, "unable to list rules")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func createRuleHandler(log zerolog.Logger, svc rules.RuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-rule")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var spec types.RuleSpec
		if err = decodeBody(r, &spec); err != nil {
			writeError(w, requestLogger, err, "unable to decode rule")
			return
		}

		if err = allow(ctx, spec.OrganizationID, auth.ScopeRulesWrite); err != nil {
			writeError(w, requestLogger, err, "create rule denied")
			return
		}

		rule, err := svc.Create(ctx, spec)
		if err != nil {
			writeError(w, requestLogger, err, "unable to create rule")
			return
		}

		requestLogger.Info().Str("rule_id", rule.ID).Msg("rule created")

		writeJSON(w, http.StatusCreated, rule)
	}
}

func getRuleHandler(log zerolog.Logger, svc rules.RuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-rule")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		ruleID := chi.URLParam(r, "ruleID")
		requestLogger = requestLogger.With().Str("rule_id", ruleID).Logger()

		rule, err := accessibleRule(ctx, svc, ruleID, auth.ScopeRulesRead)
		if err != nil {
			writeError(w, requestLogger, err, "unable to get rule")
			return
		}

		writeJSON(w, http.StatusOK, rule)
	}
}

func patchRuleHandler(log zerolog.Logger, svc rules.RuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "patch-rule")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		ruleID := chi.URLParam(r, "ruleID")
		requestLogger = requestLogger.With().Str("rule_id", ruleID).Logger()

		var fields map[string]any
		if err = decodeBody(r, &fields); err != nil {
			writeError(w, requestLogger, err, "unable to decode body into map")
			return
		}

		if _, err = accessibleRule(ctx, svc, ruleID, auth.ScopeRulesWrite); err != nil {
			writeError(w, requestLogger, err, "unable to update rule")
			return
		}

		rule, err := svc.Update(ctx, ruleID, fields)
		if err != nil {
			writeError(w, requestLogger, err, "unable to update rule")
			return
		}

		writeJSON(w, http.StatusOK, rule)
	}
}

func deleteRuleHandler(log zerolog.Logger, svc rules.RuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-rule")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		ruleID := chi.URLParam(r, "ruleID")
		requestLogger = requestLogger.With().Str("rule_id", ruleID).Logger()

		if _, err = accessibleRule(ctx, svc, ruleID, auth.ScopeRulesWrite); err != nil {
			writeError(w, requestLogger, err, "unable to delete rule")
			return
		}

		if err = svc.Delete(ctx, ruleID); err != nil {
			writeError(w, requestLogger, err, "unable to delete rule")
			return
		}

		requestLogger.Info().Msg("rule deleted")

		w.WriteHeader(http.StatusNoContent)
	}
}

func evaluateHandler(log zerolog.Logger, svc alerts.AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "evaluate-rules")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var req types.EvaluationRequest
		if err = decodeBody(r, &req); err != nil {
			writeError(w, requestLogger, err, "unable to decode evaluation request")
			return
		}

		if err = allow(ctx, req.OrganizationID, auth.ScopeAlertsWrite); err != nil {
			writeError(w, requestLogger, err, "evaluation denied")
			return
		}

		result, err := svc.Evaluate(ctx, req)
		if err != nil {
			writeError(w, requestLogger, err, "evaluation failed")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func listAlertsHandler(log zerolog.Logger, svc alerts.AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "list-alerts")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		filter, err := alertFilterFromQuery(r.URL.Query())
		if err != nil {
			writeError(w, requestLogger, err, "bad query")
			return
		}

		if err = allow(ctx, filter.OrganizationID, auth.ScopeAlertsRead); err != nil {
			writeError(w, requestLogger, err, "list alerts denied")
			return
		}

		result, err := svc.List(ctx, filter)
		if err != nil {
			writeError(w, requestLogger, err, "unable to list alerts")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func getAlertHandler(log zerolog.Logger, svc alerts.AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-alert")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		alertID := chi.URLParam(r, "alertID")
		requestLogger = requestLogger.With().Str("alert_id", alertID).Logger()

		alert, err := accessibleAlert(ctx, svc, alertID, auth.ScopeAlertsRead)
		if err != nil {
			writeError(w, requestLogger, err, "unable to get alert")
			return
		}

		writeJSON(w, http.StatusOK, alert)
	}
}

func acknowledgeAlertHandler(log zerolog.Logger, svc alerts.AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "acknowledge-alert")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		alertID := chi.URLParam(r, "alertID")
		requestLogger = requestLogger.With().Str("alert_id", alertID).Logger()

		var req types.AcknowledgeRequest
		if err = decodeBody(r, &req); err != nil {
			writeError(w, requestLogger, err, "unable to decode acknowledge request")
			return
		}
		req.AlertID = alertID

		if _, err = accessibleAlert(ctx, svc, alertID, auth.ScopeAlertsWrite); err != nil {
			writeError(w, requestLogger, err, "unable to acknowledge alert")
			return
		}

		alert, err := svc.Acknowledge(ctx, req)
		if err != nil {
			writeError(w, requestLogger, err, "unable to acknowledge alert")
			return
		}

		writeJSON(w, http.StatusOK, alert)
	}
}

func resolveAlertHandler(log zerolog.Logger, svc alerts.AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "resolve-alert")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		alertID := chi.URLParam(r, "alertID")
		requestLogger = requestLogger.With().Str("alert_id", alertID).Logger()

		var req types.ResolveRequest
		if err = decodeBody(r, &req); err != nil {
			writeError(w, requestLogger, err, "unable to decode resolve request")
			return
		}
		req.AlertID = alertID

		if _, err = accessibleAlert(ctx, svc, alertID, auth.ScopeAlertsWrite); err != nil {
			writeError(w, requestLogger, err, "unable to resolve alert")
			return
		}

		alert, err := svc.Resolve(ctx, req)
		if err != nil {
			writeError(w, requestLogger, err, "unable to resolve alert")
			return
		}

		writeJSON(w, http.StatusOK, alert)
	}
}

func analyticsHandler(log zerolog.Logger, svc analytics.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-analytics")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		q := r.URL.Query()
		req := types.AnalyticsRequest{OrganizationID: q.Get("organization_id")}

		for key, dst := range map[string]*time.Time{"start_time": &req.StartTime, "end_time": &req.EndTime} {
			t, perr := parseTime(q, key)
			if perr != nil {
				err = perr
				writeError(w, requestLogger, err, "bad query")
				return
			}
			if t != nil {
				*dst = *t
			}
		}

		if err = allow(ctx, req.OrganizationID, auth.ScopeAnalyticsRead); err != nil {
			writeError(w, requestLogger, err, "analytics denied")
			return
		}

		result, err := svc.Get(ctx, req)
		if err != nil {
			writeError(w, requestLogger, err, "unable to compute analytics")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// eventsHandler hands the connection over to the server-sent events endpoint
// once the organization has been checked.
func eventsHandler(log zerolog.Logger, events http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizationID := r.URL.Query().Get("organization_id")
		requestLogger := log.With().Str("organization_id", organizationID).Logger()

		if organizationID == "" {
			writeError(w, requestLogger, fmt.Errorf("%w: organization_id is required", errInvalidInput), "bad query")
			return
		}

		if err := allow(r.Context(), organizationID, auth.ScopeAlertsRead); err != nil {
			writeError(w, requestLogger, err, "event subscription denied")
			return
		}

		requestLogger.Debug().Msg("client subscribed to alert events")

		events.ServeHTTP(w, r)
	}
}

func allow(ctx context.Context, organizationID string, scope auth.Scope) error {
	if organizationID == "" {
		return fmt.Errorf("%w: organization_id is required", errInvalidInput)
	}

	if !auth.IsAllowed(ctx, organizationID, scope) {
		return fmt.Errorf("%w: %s", errForbidden, organizationID)
	}

	return nil
}

func accessibleRule(ctx context.Context, svc rules.RuleService, ruleID string, scope auth.Scope) (types.Rule, error) {
	rule, err := svc.Get(ctx, ruleID)
	if err != nil {
		return types.Rule{}, err
	}

	if err = allow(ctx, rule.OrganizationID, scope); err != nil {
		return types.Rule{}, err
	}

	return rule, nil
}

func accessibleAlert(ctx context.Context, svc alerts.AlertService, alertID string, scope auth.Scope) (types.Alert, error) {
	alert, err := svc.Get(ctx, alertID)
	if err != nil {
		return types.Alert{}, err
	}

	if err = allow(ctx, alert.OrganizationID, scope); err != nil {
		return types.Alert{}, err
	}

	return alert, nil
}

func ruleFilterFromQuery(q url.Values) (types.RuleFilter, error) {
	var err error

	filter := types.RuleFilter{
		OrganizationID: q.Get("organization_id"),
		DepartmentID:   q.Get("department_id"),
		Source:         types.Source(q.Get("source")),
	}

	for _, s := range listValues(q, "severity") {
		filter.Severities = append(filter.Severities, types.Severity(s))
	}

	if e := q.Get("enabled"); e != "" {
		enabled, err := strconv.ParseBool(e)
		if err != nil {
			return filter, fmt.Errorf("%w: enabled must be true or false", errInvalidInput)
		}
		filter.Enabled = &enabled
	}

	filter.Page, filter.PageSize, err = pagination(q)

	return filter, err
}

func alertFilterFromQuery(q url.Values) (types.AlertFilter, error) {
	var err error

	filter := types.AlertFilter{
		OrganizationID: q.Get("organization_id"),
		Source:         types.Source(q.Get("source")),
		RuleID:         q.Get("rule_id"),
		DepartmentID:   q.Get("department_id"),
		QueueName:      q.Get("queue_name"),
	}

	for _, s := range listValues(q, "status") {
		filter.Statuses = append(filter.Statuses, types.AlertStatus(s))
	}

	for _, s := range listValues(q, "severity") {
		filter.Severities = append(filter.Severities, types.Severity(s))
	}

	if filter.From, err = parseTime(q, "start_time"); err != nil {
		return filter, err
	}

	if filter.To, err = parseTime(q, "end_time"); err != nil {
		return filter, err
	}

	filter.Page, filter.PageSize, err = pagination(q)

	return filter, err
}

// listValues accepts both repeated parameters and comma separated lists.
func listValues(q url.Values, key string) []string {
	values := []string{}

	for _, v := range q[key] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				values = append(values, s)
			}
		}
	}

	return values
}

func parseTime(q url.Values, key string) (*time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC3339 timestamp", errInvalidInput, key)
	}

	t = t.UTC()
	return &t, nil
}

func pagination(q url.Values) (page, pageSize int, err error) {
	for key, dst := range map[string]*int{"page": &page, "page_size": &pageSize} {
		v := q.Get(key)
		if v == "" {
			continue
		}

		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			return 0, 0, fmt.Errorf("%w: %s must be a positive number", errInvalidInput, key)
		}
		*dst = n
	}

	return page, pageSize, nil
}

func decodeBody(r *http.Request, v any) error {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%w: unable to read body: %s", errInvalidInput, err.Error())
	}

	if err = json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s", errInvalidInput, err.Error())
	}

	return nil
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, rules.ErrRuleNotFound), errors.Is(err, alerts.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, alerts.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errInvalidInput),
		errors.Is(err, rules.ErrInvalidRule),
		errors.Is(err, alerts.ErrInvalidRequest),
		errors.Is(err, analytics.ErrInvalidRequest):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

type problem struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error, msg string) {
	status := statusFromError(err)

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg(msg)
		writeJSON(w, status, problem{Status: status, Error: http.StatusText(status)})
		return
	}

	logger.Debug().Err(err).Int("status", status).Msg(msg)
	writeJSON(w, status, problem{Status: status, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
