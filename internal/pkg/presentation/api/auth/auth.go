package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/tracing"
	"github.com/go-chi/jwtauth/v5"
	"github.com/open-policy-agent/opa/rego"
	"go.opentelemetry.io/otel"
)

type accessContextKey struct{ name string }

var accessCtxKey = &accessContextKey{"access"}

var tracer = otel.Tracer("alert-engine/authz")

type Scope string

const (
	ScopeRulesRead     Scope = "rules.read"
	ScopeRulesWrite    Scope = "rules.write"
	ScopeAlertsRead    Scope = "alerts.read"
	ScopeAlertsWrite   Scope = "alerts.write"
	ScopeAnalyticsRead Scope = "analytics.read"
)

var AnyScope Scope = Scope("any")

type Enticator interface {
	RequireAccess(scopes ...Scope) func(http.Handler) http.Handler
}

// Access maps an organization id to the scopes granted within it.
type Access map[string]map[Scope]struct{}

type impl struct {
	query rego.PreparedEvalQuery
}

func (a *impl) RequireAccess(scopes ...Scope) func(http.Handler) http.Handler {

	requiredScopes := make([]string, 0, len(scopes))
	for _, s := range scopes {
		requiredScopes = append(requiredScopes, string(s))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error

			ctx, span := tracer.Start(r.Context(), "check-auth")
			defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

			logger := logging.GetFromContext(ctx)

			token := jwtauth.TokenFromHeader(r)
			if token == "" {
				err = errors.New("authorization header missing")
				logger.Info().Msg(err.Error())
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			input := map[string]any{
				"token":  token,
				"scopes": requiredScopes,
			}

			results, err := a.query.Eval(ctx, rego.EvalInput(input))
			if err != nil {
				logger.Error().Err(err).Msg("opa eval failed")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if len(results) == 0 {
				err = errors.New("opa query could not be satisfied")
				logger.Error().Err(err).Msg("auth failed")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			binding := results[0].Bindings["x"]

			// a denied request binds a single false
			if allowed, ok := binding.(bool); ok && !allowed {
				err = errors.New("authorization failed")
				logger.Warn().Msg(err.Error())
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			access, err := parseAccess(binding)
			if err != nil {
				logger.Error().Err(err).Msg("bad response from authz policy engine")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if len(access) == 0 {
				// the requested scopes were not granted in any organization
				err = errors.New("authorization failed")
				logger.Warn().Msg(err.Error())
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccess(r.Context(), access)))
		})
	}
}

func parseAccess(binding any) (Access, error) {
	result, ok := binding.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", binding)
	}

	organizations, ok := result["access"].(map[string]any)
	if !ok {
		return nil, errors.New("result has no access object")
	}

	access := Access{}

	for organizationID, anyScopes := range organizations {
		scopes, ok := anyScopes.([]any)
		if !ok {
			return nil, fmt.Errorf("scopes for %s is not a list", organizationID)
		}

		access[organizationID] = map[Scope]struct{}{}

		for _, s := range scopes {
			scope, ok := s.(string)
			if !ok {
				return nil, fmt.Errorf("scope for %s is not a string", organizationID)
			}
			access[organizationID][Scope(scope)] = struct{}{}
		}
	}

	return access, nil
}

func NewAuthenticator(ctx context.Context, policies io.Reader) (Enticator, error) {
	module, err := io.ReadAll(policies)
	if err != nil {
		return nil, fmt.Errorf("unable to read authz policies: %w", err)
	}

	query, err := rego.New(
		rego.Query("x = data.example.authz.allow"),
		rego.Module("example.rego", string(module)),
	).PrepareForEval(ctx)

	if err != nil {
		return nil, err
	}

	return &impl{query: query}, nil
}

// GetOrganizationsWithAllowedScopes returns the organizations in which every
// one of the scopes has been granted.
func GetOrganizationsWithAllowedScopes(ctx context.Context, scopes ...Scope) []string {
	access, ok := ctx.Value(accessCtxKey).(Access)
	requiredScopeCount := len(scopes)

	if !ok || requiredScopeCount == 0 {
		return []string{}
	}

	if requiredScopeCount == 1 && scopes[0] == AnyScope {
		requiredScopeCount = 0
	}

	organizations := make([]string, 0, len(access))

	for o, allowedScopes := range access {
		idx := 0

		for idx < requiredScopeCount {
			if _, ok := allowedScopes[scopes[idx]]; !ok {
				break
			}
			idx++
		}

		if idx == requiredScopeCount {
			organizations = append(organizations, o)
		}
	}

	return organizations
}

func IsAllowed(ctx context.Context, organizationID string, scopes ...Scope) bool {
	for _, o := range GetOrganizationsWithAllowedScopes(ctx, scopes...) {
		if o == organizationID {
			return true
		}
	}
	return false
}

func WithAccess(ctx context.Context, access Access) context.Context {
	return context.WithValue(ctx, accessCtxKey, access)
}
