package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestGuardsEnforce(t *testing.T) {
	tests := []struct {
		name   string
		guards Guards
		in     RuntimeConfig
		want   RuntimeConfig
	}{
		{
			name:   "manual data requires the server flag",
			guards: Guards{},
			in:     RuntimeConfig{APIBaseURL: "/api", FeatureUseBackend: true, FeatureManualData: true},
			want:   RuntimeConfig{APIBaseURL: "/api", FeatureUseBackend: true, BackendMode: ModeLive},
		},
		{
			name:   "manual data requires the payload flag",
			guards: Guards{ManualData: true},
			in:     RuntimeConfig{APIBaseURL: "/api", FeatureUseBackend: true},
			want:   RuntimeConfig{APIBaseURL: "/api", FeatureUseBackend: true, BackendMode: ModeLive},
		},
		{
			name:   "server static mode disables the backend",
			guards: Guards{StaticDB: true},
			in:     RuntimeConfig{APIBaseURL: "/api", FeatureUseBackend: true},
			want:   RuntimeConfig{APIBaseURL: "/api", FeatureStaticDB: true, BackendMode: ModeStatic},
		},
		{
			name:   "payload static mode disables the backend",
			guards: Guards{},
			in:     RuntimeConfig{APIBaseURL: "/v2", FeatureUseBackend: true, FeatureStaticDB: true},
			want:   RuntimeConfig{APIBaseURL: "/v2", FeatureStaticDB: true, BackendMode: ModeStatic},
		},
		{
			name:   "backend switched off",
			guards: Guards{ManualData: true},
			in:     RuntimeConfig{APIBaseURL: "/api", FeatureManualData: true},
			want:   RuntimeConfig{APIBaseURL: "/api", FeatureManualData: true, BackendMode: ModeDisabled},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.guards.Enforce(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Enforce mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGuardsFallback(t *testing.T) {
	got := Guards{ManualData: true}.Fallback()
	want := RuntimeConfig{
		APIBaseURL:        "/api",
		FeatureUseBackend: true,
		FeatureManualData: true,
		BackendMode:       ModeLive,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fallback mismatch (-want +got):\n%s", diff)
	}
}

func TestGuardsParsePayload(t *testing.T) {
	guards := Guards{ManualData: true}

	tests := []struct {
		name    string
		payload string
		want    RuntimeConfig
		wantErr bool
	}{
		{name: "not an object", payload: `[1,2]`, wantErr: true},
		{name: "null", payload: `null`, wantErr: true},
		{name: "missing apiBaseUrl", payload: `{"FEATURE_USE_BACKEND":true}`, wantErr: true},
		{name: "blank apiBaseUrl", payload: `{"apiBaseUrl":"  "}`, wantErr: true},
		{name: "numeric apiBaseUrl", payload: `{"apiBaseUrl":5}`, wantErr: true},
		{
			name:    "trims base and keeps booleans",
			payload: `{"apiBaseUrl":" /api ","FEATURE_USE_BACKEND":false,"FEATURE_MANUAL_DATA":true}`,
			want:    RuntimeConfig{APIBaseURL: "/api", FeatureManualData: true, BackendMode: ModeDisabled},
		},
		{
			name:    "ignores non-boolean flags",
			payload: `{"apiBaseUrl":"/api","FEATURE_USE_BACKEND":"no","FEATURE_MANUAL_DATA":null}`,
			want:    RuntimeConfig{APIBaseURL: "/api", FeatureUseBackend: true, FeatureManualData: true, BackendMode: ModeLive},
		},
		{
			name:    "backendMode is always derived",
			payload: `{"apiBaseUrl":"/api","backendMode":"weird"}`,
			want:    RuntimeConfig{APIBaseURL: "/api", FeatureUseBackend: true, FeatureManualData: true, BackendMode: ModeLive},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := guards.ParsePayload([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParsePayload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigClientResolve(t *testing.T) {
	var hits atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/config" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"apiBaseUrl":"/api","FEATURE_USE_BACKEND":true,"FEATURE_STATIC_DB":true}`))
	}))
	defer backend.Close()

	client := NewConfigClient(backend.URL+"/", Guards{}, ConfigClientOptions{CacheTTL: time.Minute})

	got := client.Resolve(context.Background())
	if got.BackendMode != ModeStatic || got.FeatureUseBackend {
		t.Fatalf("unexpected config %+v", got)
	}
	client.Resolve(context.Background())
	if n := hits.Load(); n != 1 {
		t.Errorf("expected cached second call, backend hit %d times", n)
	}
}

func TestConfigClientCollapsesConcurrentFetches(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(`{"apiBaseUrl":"/api"}`))
	}))
	defer backend.Close()

	client := NewConfigClient(backend.URL, Guards{}, ConfigClientOptions{CacheTTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Resolve(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := hits.Load(); n != 1 {
		t.Errorf("expected one upstream request, got %d", n)
	}
}

func TestConfigClientFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "upstream error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "invalid payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"FEATURE_USE_BACKEND":true}`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				w.Write([]byte(`{"apiBaseUrl":"/api"}`))
			},
		},
	}

	guards := Guards{ManualData: true, StaticDB: true}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := httptest.NewServer(tt.handler)
			defer backend.Close()

			client := NewConfigClient(backend.URL, guards, ConfigClientOptions{Timeout: 50 * time.Millisecond})
			got := client.Resolve(context.Background())
			if diff := cmp.Diff(guards.Fallback(), got); diff != "" {
				t.Errorf("fallback mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigClientUnreachable(t *testing.T) {
	client := NewConfigClient("http://127.0.0.1:1", Guards{}, ConfigClientOptions{Timeout: 100 * time.Millisecond})
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if got := client.Resolve(context.Background()); got.BackendMode != ModeLive {
		t.Errorf("unexpected fallback %+v", got)
	}
}
