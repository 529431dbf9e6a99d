package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"taskgen/internal/config"
	"taskgen/internal/db"
	"taskgen/internal/domain"
	"taskgen/internal/engine"
	"taskgen/internal/metrics"
	"taskgen/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default()
	cfg.Generator.NumSamples = 40
	cfg.Resolve(workspace)
	for i := 1; i <= 4; i++ {
		id := "coding-task-" + strconv.Itoa(i)
		if err := os.MkdirAll(filepath.Join(cfg.Paths.ReferenceDir, id), 0o755); err != nil {
			t.Fatalf("mkdir reference: %v", err)
		}
		if err := os.WriteFile(filepath.Join(cfg.Paths.ReferenceDir, id, id+".ipynb"), []byte(`{"cells":[]}`), 0o644); err != nil {
			t.Fatalf("write notebook: %v", err)
		}
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Metrics = metrics.New()
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestGenerateAndReplayRun(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/coding_task_4/runs", map[string]any{
		"seed": 1729,
	}, map[string]string{"X-Actor-Id": "assessor"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create run status %d: %s", res.StatusCode, string(data))
	}
	var run RunResponse
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("unmarshal run: %v", err)
	}
	if run.Status != domain.RunCompleted || run.TaskID != "coding-task-4" || run.Target == "" {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.ActorID != "assessor" || run.Params.NumSamples != 40 {
		t.Fatalf("actor or params not applied: %+v", run)
	}

	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs/"+run.ID, nil, nil)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get run status %d: %s", getRes.StatusCode, string(getBody))
	}

	replayRes, replayBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/runs/"+run.ID+"/replay", nil, nil)
	if replayRes.StatusCode != http.StatusOK {
		t.Fatalf("replay status %d: %s", replayRes.StatusCode, string(replayBody))
	}
	var replay ReplayResponse
	if err := json.Unmarshal(replayBody, &replay); err != nil {
		t.Fatalf("unmarshal replay: %v", err)
	}
	if !replay.Matches || replay.Digest != run.Digest || replay.ReplayOf != run.ID {
		t.Fatalf("replay did not reproduce run: %+v", replay)
	}

	listRes, listBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs?task_id=coding-task-4", nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list runs status %d: %s", listRes.StatusCode, string(listBody))
	}
	var list listRuns
	_ = json.Unmarshal(listBody, &list)
	if len(list.Items) != 2 {
		t.Fatalf("expected original and replay, got %d", len(list.Items))
	}

	evRes, evBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs/"+run.ID+"/events", nil, nil)
	if evRes.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", evRes.StatusCode, string(evBody))
	}
	var evts listEvents
	_ = json.Unmarshal(evBody, &evts)
	if len(evts.Items) != 2 || evts.Items[0].Payload["target"] != run.Target {
		t.Fatalf("unexpected events %+v", evts.Items)
	}

	metricsRes, metricsBody := doJSON(t, client, http.MethodGet, srv.URL+"/metrics", nil, nil)
	if metricsRes.StatusCode != http.StatusOK || !strings.Contains(string(metricsBody), "taskgen_runs_total") {
		t.Fatalf("metrics not exposed: %d", metricsRes.StatusCode)
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/coding-task-9/runs", map[string]any{}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "unknown_task" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs/nope", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing run, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/coding-task-4/runs", map[string]any{
		"num_samples":         1000,
		"distance_constraint": 0.001,
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for exhausted placement, got %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "generation_failed" || envelope.Error.Details["run_id"] == nil {
		t.Fatalf("unexpected envelope %+v", envelope.Error)
	}
}

func TestTasksListed(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks status %d", res.StatusCode)
	}
	var tasks []TaskResponse
	if err := json.Unmarshal(data, &tasks); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(tasks) != 4 || tasks[0].ID != "coding-task-1" || tasks[0].Synthetic {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
}

func TestBearerAuthRequired(t *testing.T) {
	secret := "test-secret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()
	client := srv.Client()

	if res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("health must stay open, got %d", res.StatusCode)
	}
	if res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs", nil, nil); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}
	bad, _ := IssueToken("other-secret", "mallory", time.Minute)
	if res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs", nil, map[string]string{"Authorization": "Bearer " + bad}); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign token, got %d", res.StatusCode)
	}
	token, err := IssueToken(secret, "assessor", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/coding-task-1/runs", map[string]any{}, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("authorized create status %d: %s", res.StatusCode, string(data))
	}
	var run RunResponse
	_ = json.Unmarshal(data, &run)
	if run.ActorID != "assessor" {
		t.Fatalf("actor not taken from token subject: %q", run.ActorID)
	}
}

type openAPIOperation struct {
	Security  *[]map[string][]string `json:"security"`
	Responses map[string]struct {
		Content map[string]struct {
			Schema struct {
				Ref string `json:"$ref"`
			} `json:"schema"`
		} `json:"content"`
	} `json:"responses"`
}

type openAPIDocument struct {
	Components struct {
		Schemas         map[string]json.RawMessage `json:"schemas"`
		SecuritySchemes map[string]struct {
			Type   string `json:"type"`
			Scheme string `json:"scheme"`
		} `json:"securitySchemes"`
	} `json:"components"`
	Security []map[string][]string                 `json:"security"`
	Paths    map[string]map[string]json.RawMessage `json:"paths"`
}

func (d openAPIDocument) operation(t *testing.T, route, method string) openAPIOperation {
	t.Helper()
	raw, ok := d.Paths[route][method]
	if !ok {
		t.Fatalf("openapi has no %s %s", method, route)
	}
	var op openAPIOperation
	if err := json.Unmarshal(raw, &op); err != nil {
		t.Fatalf("unmarshal %s %s: %v", method, route, err)
	}
	return op
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: "test-secret"})
	defer cleanup()
	client := srv.Client()

	// concurrent first requests all see the same rendered document
	bodies := make([][]byte, 8)
	var wg sync.WaitGroup
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.Get(srv.URL + "/v0/openapi.json")
			if err != nil {
				t.Errorf("get openapi: %v", err)
				return
			}
			defer res.Body.Close()
			if res.StatusCode != http.StatusOK {
				t.Errorf("openapi status %d without token", res.StatusCode)
				return
			}
			bodies[i], _ = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(bodies); i++ {
		if !bytes.Equal(bodies[0], bodies[i]) {
			t.Fatalf("openapi document %d differs from the first", i)
		}
	}

	var doc openAPIDocument
	if err := json.Unmarshal(bodies[0], &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	scheme, ok := doc.Components.SecuritySchemes["bearerAuth"]
	if !ok || scheme.Type != "http" || scheme.Scheme != "bearer" {
		t.Fatalf("bearerAuth scheme missing: %+v", doc.Components.SecuritySchemes)
	}
	if _, ok := doc.Components.Schemas["ApiError"]; !ok {
		t.Fatalf("ApiError schema not registered")
	}

	health := doc.operation(t, "/v0/health", "get")
	if health.Security == nil || len(*health.Security) != 0 {
		t.Fatalf("health must carry an empty security requirement, got %v", health.Security)
	}
	runs := doc.operation(t, "/v0/runs", "get")
	if runs.Security == nil || len(*runs.Security) != 1 {
		t.Fatalf("list runs must require bearerAuth, got %v", runs.Security)
	}
	if _, ok := (*runs.Security)[0]["bearerAuth"]; !ok {
		t.Fatalf("list runs security %v", *runs.Security)
	}
	for _, op := range []openAPIOperation{health, runs, doc.operation(t, "/v0/tasks/{task_id}/runs", "post")} {
		ref := op.Responses["default"].Content["application/json"].Schema.Ref
		if ref != "#/components/schemas/ApiError" {
			t.Fatalf("default response ref %q", ref)
		}
	}

	res, page := doJSON(t, client, http.MethodGet, srv.URL+"/docs", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(page), "/v0/openapi.json") {
		t.Fatalf("docs page status %d: %s", res.StatusCode, string(page))
	}
}

func TestOpenAPIDocumentWithoutAuth(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	var doc openAPIDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	if len(doc.Components.SecuritySchemes) != 0 || len(doc.Security) != 0 {
		t.Fatalf("open API must not advertise security: %+v %v", doc.Components.SecuritySchemes, doc.Security)
	}
}

func TestWebhookDeliversRunEvents(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	var (
		mu       sync.Mutex
		received []webhookEvent
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		received = append(received, evt)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	d := newWebhookDispatcher(srv.Engine.Repo, []config.WebhookConfig{{URL: hook.URL, Events: []string{"run.completed"}}}, nil)
	ctx := context.Background()
	// the first pass pins the cursor at the current end of the ledger
	d.dispatchAll(ctx)

	run, err := srv.Engine.Generate(ctx, engine.GenerateOptions{TaskID: "coding-task-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one delivery, got %d", len(received))
	}
	if received[0].Type != "run.completed" || received[0].EntityID != run.ID {
		t.Fatalf("unexpected delivery %+v", received[0])
	}
}
