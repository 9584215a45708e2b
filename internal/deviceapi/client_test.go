package deviceapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/irrigo/irrigo/internal/protocol"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewWithBaseURL(srv.URL, srv.Client(), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	return c
}

func validConfig() ControllerConfig {
	return ControllerConfig{
		TemperatureOffset: -1.5,
		TelemetryInterval: 60_000,
		SensorConfigs: []SensorConfig{
			{Threshold: 30, ActivationPeriod: 10_000, WateringInterval: 24 * 3_600_000},
		},
	}
}

func TestFetchLogsDrainsUntilNoContent(t *testing.T) {
	queue := []string{
		`{"tag":"WIFI","level":1,"message":"connected"}`,
		`{"tag":"PUMP","level":"WARNING","message":"dry"}`,
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/logs" {
			http.NotFound(w, r)
			return
		}
		if len(queue) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next := queue[0]
		queue = queue[1:]
		_, _ = io.WriteString(w, next)
	}))

	logs, err := c.FetchLogs(context.Background())
	if err != nil {
		t.Fatalf("fetch logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Tag != "WIFI" || logs[0].Level != protocol.LevelInfo {
		t.Fatalf("unexpected first log: %+v", logs[0])
	}
	if logs[1].Level != protocol.LevelWarning {
		t.Fatalf("expected string level to decode, got %v", logs[1].Level)
	}
}

func TestFetchLogsAcceptsBatch(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"logs":[{"tag":"A","level":0,"message":"x"},{"tag":"B","level":3,"message":"y"}]}`)
	}))

	logs, err := c.FetchLogs(context.Background())
	if err != nil {
		t.Fatalf("fetch logs: %v", err)
	}
	if len(logs) != 2 || logs[1].Level != protocol.LevelError {
		t.Fatalf("unexpected logs: %+v", logs)
	}
	if calls != 1 {
		t.Fatalf("expected a single request for a batch, got %d", calls)
	}
}

func TestFetchLogsReportsServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.FetchLogs(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSaveConfigWrapsBody(t *testing.T) {
	var got configEnvelope
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/config" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, "Configuration updated")
	}))

	if err := c.SaveConfig(context.Background(), validConfig()); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if got.Config.TelemetryInterval != 60_000 || len(got.Config.SensorConfigs) != 1 {
		t.Fatalf("unexpected posted config: %+v", got.Config)
	}
}

func TestSaveConfigRejectsOutOfRangeValues(t *testing.T) {
	requests := 0
	c := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { requests++ }))

	cfg := validConfig()
	cfg.SensorConfigs[0].Threshold = 90
	if err := c.SaveConfig(context.Background(), cfg); err == nil {
		t.Fatalf("expected validation error")
	}
	if requests != 0 {
		t.Fatalf("expected no request for invalid config, got %d", requests)
	}
}

func TestSetRelay(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req relayRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Relay > 2 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"success":false,"message":"Failed to toggle relay"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(RelayResult{Success: true, RelayIndex: req.Relay, Message: "Relay activated"})
	}))

	res, err := c.SetRelay(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("set relay: %v", err)
	}
	if !res.Success || res.RelayIndex != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = c.SetRelay(context.Background(), 7, true)
	if !errors.Is(err, ErrRelayRejected) {
		t.Fatalf("expected ErrRelayRejected, got %v", err)
	}
	if res.Message != "Failed to toggle relay" {
		t.Fatalf("expected controller message, got %q", res.Message)
	}
}

func TestGetSensorDataAndSetup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sensorData", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"temperature":22.5,"pressure":1010,"waterLevel":true,"plants":[{"index":0,"moisture":40}],"relays":[{"index":0,"active":true,"activationTime":30}]}`)
	})
	mux.HandleFunc("/api/setup", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"systemSize":3,"sdaPin":21,"sclPin":22,"floatSwitchPin":23,"sensorPins":[32,33,34],"relayPins":[25,26,27]}`)
	})
	c := newTestClient(t, mux)

	data, err := c.GetSensorData(context.Background())
	if err != nil {
		t.Fatalf("sensor data: %v", err)
	}
	if data.Temperature != 22.5 || len(data.Relays) != 1 || data.Relays[0].ActivationTime != 30 {
		t.Fatalf("unexpected sensor data: %+v", data)
	}

	setup, err := c.GetSetup(context.Background())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if setup.SystemSize != 3 || setup.RelayPins[2] != 27 {
		t.Fatalf("unexpected setup: %+v", setup)
	}
	if err := setup.Validate(); err != nil {
		t.Fatalf("expected setup to be valid: %v", err)
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		mut     func(*ControllerConfig)
		wantErr bool
	}{
		{name: "valid", mut: func(*ControllerConfig) {}},
		{name: "offset too low", mut: func(c *ControllerConfig) { c.TemperatureOffset = -11 }, wantErr: true},
		{name: "telemetry too fast", mut: func(c *ControllerConfig) { c.TelemetryInterval = 5_000 }, wantErr: true},
		{name: "activation too long", mut: func(c *ControllerConfig) { c.SensorConfigs[0].ActivationPeriod = 61_000 }, wantErr: true},
		{name: "watering interval over a week", mut: func(c *ControllerConfig) { c.SensorConfigs[0].WateringInterval = 169 * 3_600_000 }, wantErr: true},
	}

	for _, tc := range tests {
		cfg := validConfig()
		tc.mut(&cfg)
		err := cfg.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: expected no error, got %v", tc.name, err)
		}
	}
}
