package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/ingest"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/progress"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/service"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/storage"
)

func inlineBusiness(id string) entity.Business {
	payload := "data:image/png;base64,aGVsbG8="
	return entity.Business{ID: id, Name: "Inline " + id, Photos: []entity.Photo{{ID: id + "-1", Base64: &payload}}}
}

func newIngestHandler(jobs *stubJobsRepo, repo *stubBusinessesRepo, store storage.ImageStore) (*IngestHandler, *progress.Broker) {
	broker := progress.NewBroker(8)
	sources := ingest.Sources{
		Google: &ingest.GoogleSource{},
		Cached: &ingest.CachedSource{},
		Base64: ingest.Base64Source{},
	}
	svc := service.NewIngestService(jobs, repo, sources, store, broker, nil, service.IngestOptions{DefaultConcurrency: 1, MaxConcurrency: 4}, nil)
	return NewIngestHandler(svc, broker, nil), broker
}

func postJSON(h echo.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	_ = h(e.NewContext(req, rec))
	return rec
}

func TestIngestHandler_BatchUpload(t *testing.T) {
	jobs := newStubJobsRepo()
	store := newMemoryStore()
	handler, broker := newIngestHandler(jobs, &stubBusinessesRepo{
		listBatch: func(ctx context.Context, offset, limit int) ([]entity.Business, error) {
			if offset != 0 || limit != ingest.BatchSize {
				t.Fatalf("unexpected slice %d/%d", offset, limit)
			}
			return []entity.Business{inlineBusiness("p1")}, nil
		},
	}, store)

	rec := postJSON(handler.BatchUpload, "/api/admin/super-fast-batch-upload", `{"batchNumber":1,"concurrency":2,"strategy":"base64"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Data service.BatchResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.Job.State != entity.JobCompleted || payload.Data.Summary.TotalLogos != 1 {
		t.Fatalf("unexpected result: %+v", payload.Data)
	}
	if string(store.objects[storage.LogoName("p1")]) != "hello" {
		t.Fatalf("logo was not uploaded: %v", store.objects)
	}
	if frame, ok := broker.Latest(); !ok || frame.Status != entity.JobCompleted {
		t.Fatalf("expected completed frame, got %+v", frame)
	}
}

func TestIngestHandler_BatchUploadErrors(t *testing.T) {
	handler, _ := newIngestHandler(newStubJobsRepo(), &stubBusinessesRepo{}, newMemoryStore())

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "invalid payload", body: "{", status: http.StatusBadRequest},
		{name: "invalid batch", body: `{"batchNumber":0}`, status: http.StatusBadRequest},
		{name: "unknown strategy", body: `{"batchNumber":1,"strategy":"carrier-pigeon"}`, status: http.StatusBadRequest},
		{name: "places not configured", body: `{"batchNumber":1,"strategy":"google"}`, status: http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(handler.BatchUpload, "/api/admin/super-fast-batch-upload", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIngestHandler_ProgressStream(t *testing.T) {
	handler, broker := newIngestHandler(newStubJobsRepo(), &stubBusinessesRepo{}, newMemoryStore())
	handler.heartbeat = 20 * time.Millisecond
	broker.Publish(progress.Frame{JobID: "job-1", BatchNumber: 2, Status: service.StatusProcessing, CurrentBusiness: "Acme"})

	e := echo.New()
	e.GET("/api/admin/progress-stream", handler.ProgressStream)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/admin/progress-stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var (
		frame   progress.Frame
		gotData bool
		gotPing bool
	)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && !(gotData && gotPing) {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			gotData = true
		case line == ": ping":
			gotPing = true
		}
	}
	if !gotData || !gotPing {
		t.Fatalf("expected a frame and a heartbeat, data=%v ping=%v err=%v", gotData, gotPing, scanner.Err())
	}
	if frame.JobID != "job-1" || frame.CurrentBusiness != "Acme" || frame.Status != service.StatusProcessing {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestIngestHandler_Progress(t *testing.T) {
	handler, broker := newIngestHandler(newStubJobsRepo(), &stubBusinessesRepo{}, newMemoryStore())
	e := echo.New()
	get := func() dto.ProgressStatus {
		t.Helper()
		rec := httptest.NewRecorder()
		_ = handler.Progress(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/admin/progress", nil), rec))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var payload struct {
			Data dto.ProgressStatus `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return payload.Data
	}

	if status := get(); status.Latest != nil || status.Running || status.Subscribers != 0 {
		t.Fatalf("expected idle status, got %+v", status)
	}

	_, cancel := broker.Subscribe()
	defer cancel()
	broker.Publish(progress.Frame{JobID: "job-7", Processed: 3, Status: service.StatusProcessing})
	status := get()
	if status.Subscribers != 1 || status.Latest == nil || status.Latest.JobID != "job-7" || status.Latest.Processed != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestIngestHandler_TestStore(t *testing.T) {
	e := echo.New()
	store := newMemoryStore()
	handler, _ := newIngestHandler(newStubJobsRepo(), &stubBusinessesRepo{}, store)

	rec := httptest.NewRecorder()
	_ = handler.TestStore(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/admin/test-hostinger", nil), rec))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	store.probeErr = context.DeadlineExceeded
	rec = httptest.NewRecorder()
	_ = handler.TestStore(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/admin/test-hostinger", nil), rec))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestIngestHandler_JobsAndCancel(t *testing.T) {
	jobs := newStubJobsRepo()
	done := entity.IngestJob{ID: uuid.New(), BatchNumber: 1, State: entity.JobCompleted}
	_ = jobs.Create(context.Background(), &done)
	handler, _ := newIngestHandler(jobs, &stubBusinessesRepo{}, newMemoryStore())
	e := echo.New()

	withID := func(method, id string) (echo.Context, *httptest.ResponseRecorder) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(method, "/api/admin/jobs/"+id, nil), rec)
		c.SetParamNames("id")
		c.SetParamValues(id)
		return c, rec
	}

	c, rec := withID(http.MethodGet, done.ID.String())
	_ = handler.Job(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, rec = withID(http.MethodGet, uuid.NewString())
	_ = handler.Job(c)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	c, rec = withID(http.MethodPost, "not-a-uuid")
	_ = handler.CancelJob(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	c, rec = withID(http.MethodPost, done.ID.String())
	_ = handler.CancelJob(c)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for finished job, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	_ = handler.Jobs(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil), rec))
	var listed struct {
		Data []entity.IngestJob `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil || len(listed.Data) != 1 {
		t.Fatalf("expected one job, got %v (%v)", listed.Data, err)
	}

	rec = httptest.NewRecorder()
	_ = handler.StopSync(e.NewContext(httptest.NewRequest(http.MethodPost, "/api/admin/stop-sync", nil), rec))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"stopped":0`) {
		t.Fatalf("unexpected stop-sync response: %d %s", rec.Code, rec.Body.String())
	}
}
