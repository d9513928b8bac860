package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestParseConfigurationFile(t *testing.T) {
	is := is.New(t)

	cfg, err := parseExternalConfigFile(context.Background(), io.NopCloser(strings.NewReader(configYaml)))
	is.NoErr(err)

	is.Equal(cfg.Scheduler.Organizations, []string{"org", "other"})
	is.Equal(cfg.Scheduler.EvaluationInterval, 30*time.Second)
	is.Equal(cfg.Scheduler.SweepInterval, 5*time.Minute)

	is.Equal(cfg.Engine.rules().DefaultCooldownMinutes, 20)
	is.Equal(cfg.Engine.rules().DefaultPageSize, 25)
	is.Equal(cfg.Engine.alerts().DefaultPageSize, 25)
	is.Equal(cfg.Engine.alerts().MaxRulesPerEvaluation, 0) // filled in by the alert service

	is.Equal(len(cfg.Notifications.Notifications), 1)
	is.Equal(cfg.Notifications.Notifications[0].Subscribers[0].Endpoint, "http://localhost:9999/alerts")
}

func TestShippedConfigurationParses(t *testing.T) {
	is := is.New(t)

	f, err := os.Open("../../assets/config/config.yaml")
	is.NoErr(err)

	cfg, err := parseExternalConfigFile(context.Background(), f)
	is.NoErr(err)
	is.Equal(cfg.Engine.MaxRulesPerEvaluation, 100)
	is.Equal(cfg.Scheduler.EvaluationInterval, time.Minute)
}

func TestInitializeInDevMode(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	flags := defaultFlags()
	flags[devmode] = "true"

	cfg, err := parseExternalConfigFile(ctx, io.NopCloser(strings.NewReader(configYaml)))
	is.NoErr(err)

	policies, err := os.Open("../../assets/config/authz.rego")
	is.NoErr(err)

	e, err := initialize(ctx, flags, cfg, policies)
	is.NoErr(err)
	defer e.webEvents.Shutdown()

	public := httptest.NewServer(e.public.Handler)
	defer public.Close()

	resp, err := http.Get(public.URL + "/health")
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNoContent)

	resp, err = http.Get(public.URL + "/api/v0/rules?organization_id=org")
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusUnauthorized)

	control := httptest.NewServer(e.control.Handler)
	defer control.Close()

	resp, err = http.Get(control.URL + "/metrics")
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)

	body, _ := io.ReadAll(resp.Body)
	is.True(strings.Contains(string(body), "alert_engine_"))
}

const configYaml string = `
engine:
  default_cooldown_minutes: 20
  default_page_size: 25
scheduler:
  organizations:
    - org
    - other
  evaluation_interval: 30s
  sweep_interval: 5m
notifications:
  - id: hooks
    name: hooks
    type: alert-engine.alert.notification
    subscribers:
      - endpoint: http://localhost:9999/alerts
        organizations:
          - org
`
