package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"visionstream/internal/domain"
	"visionstream/internal/orchestrator"
)

type fakeCoordinator struct {
	submitted []domain.Job
	submitErr error
	cancelled []domain.JobID
	cancelErr error
	statuses  map[domain.JobID]domain.JobStatusRecord
	stats     orchestrator.QueueStats
}

func (f *fakeCoordinator) SubmitJob(ctx context.Context, job domain.Job) (domain.JobID, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if job.ID == "" {
		job.ID = domain.JobID(fmt.Sprintf("job-%d", len(f.submitted)+1))
	}
	if err := job.Validate(); err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, job)
	return job.ID, nil
}

func (f *fakeCoordinator) Cancel(ctx context.Context, id domain.JobID) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeCoordinator) Status(ctx context.Context, id domain.JobID) (domain.JobStatusRecord, error) {
	record, ok := f.statuses[id]
	if !ok {
		return domain.JobStatusRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (f *fakeCoordinator) Stats(ctx context.Context) (orchestrator.QueueStats, error) {
	return f.stats, nil
}

type fakeCameraRepo struct {
	cameras map[int64]domain.Camera
	nextID  int64
}

func newFakeCameraRepo() *fakeCameraRepo {
	return &fakeCameraRepo{cameras: make(map[int64]domain.Camera)}
}

func (f *fakeCameraRepo) Create(ctx context.Context, camera domain.Camera) (domain.Camera, error) {
	for _, existing := range f.cameras {
		if existing.Name == camera.Name {
			return domain.Camera{}, domain.ErrAlreadyExists
		}
	}
	f.nextID++
	camera.ID = f.nextID
	f.cameras[camera.ID] = camera
	return camera, nil
}

func (f *fakeCameraRepo) Get(ctx context.Context, id int64) (domain.Camera, error) {
	camera, ok := f.cameras[id]
	if !ok {
		return domain.Camera{}, domain.ErrNotFound
	}
	return camera, nil
}

func (f *fakeCameraRepo) List(ctx context.Context, filter domain.CameraFilter) ([]domain.Camera, error) {
	out := make([]domain.Camera, 0, len(f.cameras))
	for _, camera := range f.cameras {
		if filter.Status != "" && camera.Status != filter.Status {
			continue
		}
		out = append(out, camera)
	}
	return out, nil
}

func (f *fakeCameraRepo) Update(ctx context.Context, camera domain.Camera) error {
	if _, ok := f.cameras[camera.ID]; !ok {
		return domain.ErrNotFound
	}
	f.cameras[camera.ID] = camera
	return nil
}

func (f *fakeCameraRepo) UpdateStatus(ctx context.Context, id int64, status domain.CameraStatus) error {
	camera, ok := f.cameras[id]
	if !ok {
		return domain.ErrNotFound
	}
	camera.Status = status
	f.cameras[id] = camera
	return nil
}

func (f *fakeCameraRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.cameras[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.cameras, id)
	return nil
}

type fakeRuleRepo struct {
	rules  map[int64]domain.Rule
	nextID int64
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: make(map[int64]domain.Rule)}
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	f.nextID++
	rule.ID = f.nextID
	f.rules[rule.ID] = rule
	return rule, nil
}

func (f *fakeRuleRepo) Get(ctx context.Context, id int64) (domain.Rule, error) {
	rule, ok := f.rules[id]
	if !ok {
		return domain.Rule{}, domain.ErrNotFound
	}
	return rule, nil
}

func (f *fakeRuleRepo) List(ctx context.Context, filter domain.RuleFilter) ([]domain.Rule, error) {
	out := make([]domain.Rule, 0, len(f.rules))
	for _, rule := range f.rules {
		if filter.ActiveOnly && !rule.IsActive {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (f *fakeRuleRepo) Update(ctx context.Context, rule domain.Rule) error {
	if _, ok := f.rules[rule.ID]; !ok {
		return domain.ErrNotFound
	}
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeRuleRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.rules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

type fakeEventRepo struct {
	events map[int64]domain.Event
	acked  map[int64]int64
	nextID int64
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int64]domain.Event), acked: make(map[int64]int64)}
}

func (f *fakeEventRepo) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	f.nextID++
	event.ID = f.nextID
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeEventRepo) Get(ctx context.Context, id int64) (domain.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return event, nil
}

func (f *fakeEventRepo) List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	out := make([]domain.Event, 0, len(f.events))
	for _, event := range f.events {
		if filter.Severity != "" && event.Severity != filter.Severity {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (f *fakeEventRepo) Acknowledge(ctx context.Context, id int64, userID int64) error {
	if _, ok := f.events[id]; !ok {
		return domain.ErrNotFound
	}
	f.acked[id] = userID
	return nil
}

func (f *fakeEventRepo) UpdateClipPath(ctx context.Context, id int64, clipPath string) error {
	event, ok := f.events[id]
	if !ok {
		return domain.ErrNotFound
	}
	event.ClipPath = clipPath
	f.events[id] = event
	return nil
}

func (f *fakeEventRepo) CountBySeverity(ctx context.Context, filter domain.EventFilter) (map[domain.Severity]int64, error) {
	counts := make(map[domain.Severity]int64)
	for _, event := range f.events {
		counts[event.Severity]++
	}
	return counts, nil
}

type fakeAlertRepo struct {
	alerts map[int64]domain.Alert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[int64]domain.Alert)}
}

func (f *fakeAlertRepo) Create(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	alert.ID = int64(len(f.alerts) + 1)
	f.alerts[alert.ID] = alert
	return alert, nil
}

func (f *fakeAlertRepo) Get(ctx context.Context, id int64) (domain.Alert, error) {
	alert, ok := f.alerts[id]
	if !ok {
		return domain.Alert{}, domain.ErrNotFound
	}
	return alert, nil
}

func (f *fakeAlertRepo) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	out := make([]domain.Alert, 0, len(f.alerts))
	for _, alert := range f.alerts {
		out = append(out, alert)
	}
	return out, nil
}

func (f *fakeAlertRepo) UpdateStatus(ctx context.Context, id int64, status domain.AlertStatus) error {
	alert, ok := f.alerts[id]
	if !ok {
		return domain.ErrNotFound
	}
	alert.Status = status
	f.alerts[id] = alert
	return nil
}

func newTestServer(t *testing.T, coordinator *fakeCoordinator, opts ...ServerOption) (*Server, *fakeCameraRepo, *fakeRuleRepo, *fakeEventRepo, *fakeAlertRepo) {
	t.Helper()
	cameras := newFakeCameraRepo()
	rules := newFakeRuleRepo()
	events := newFakeEventRepo()
	alerts := newFakeAlertRepo()
	base := []ServerOption{
		WithCameras(cameras),
		WithRules(rules),
		WithEvents(events),
		WithAlerts(alerts),
		WithUploadDir(t.TempDir()),
	}
	server := NewServer(coordinator, append(base, opts...)...)
	t.Cleanup(server.Close)
	return server, cameras, rules, events, alerts
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJob(t *testing.T) {
	coordinator := &fakeCoordinator{}
	server, _, _, _, _ := newTestServer(t, coordinator)

	rec := doJSON(t, server, http.MethodPost, "/jobs", submitJobRequest{
		CameraID:   4,
		SourceType: domain.SourceFile,
		SourcePath: "/data/uploads/clip.mp4",
		Priority:   2,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp submitJobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected a job id")
	}
	if len(coordinator.submitted) != 1 || coordinator.submitted[0].Priority != 2 {
		t.Fatalf("submitted = %+v", coordinator.submitted)
	}
}

func TestSubmitJobInvalidBody(t *testing.T) {
	server, _, _, _, _ := newTestServer(t, &fakeCoordinator{})

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSubmitJobQueueFull(t *testing.T) {
	coordinator := &fakeCoordinator{submitErr: orchestrator.ErrQueueFull}
	server, _, _, _, _ := newTestServer(t, coordinator)

	rec := doJSON(t, server, http.MethodPost, "/jobs", submitJobRequest{
		CameraID:   1,
		SourceType: domain.SourceFile,
		SourcePath: "/data/a.mp4",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestJobStatusNotFound(t *testing.T) {
	server, _, _, _, _ := newTestServer(t, &fakeCoordinator{})

	rec := doJSON(t, server, http.MethodGet, "/jobs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestJobCancel(t *testing.T) {
	coordinator := &fakeCoordinator{}
	server, _, _, _, _ := newTestServer(t, coordinator)

	rec := doJSON(t, server, http.MethodPost, "/jobs/abc/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(coordinator.cancelled) != 1 || coordinator.cancelled[0] != "abc" {
		t.Fatalf("cancelled = %v", coordinator.cancelled)
	}
}

func TestJobStats(t *testing.T) {
	coordinator := &fakeCoordinator{stats: orchestrator.QueueStats{QueueLength: 7, ActiveJobs: 2}}
	server, _, _, _, _ := newTestServer(t, coordinator)

	rec := doJSON(t, server, http.MethodGet, "/jobs/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats orchestrator.QueueStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.QueueLength != 7 || stats.ActiveJobs != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestCameraCreateAndGet(t *testing.T) {
	server, _, _, _, _ := newTestServer(t, &fakeCoordinator{})

	rec := doJSON(t, server, http.MethodPost, "/cameras", domain.Camera{
		Name:       "dock",
		StreamType: domain.StreamRTSP,
		StreamURL:  "rtsp://cam/stream",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created domain.Camera
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 || created.Status != domain.CameraActive {
		t.Fatalf("created = %+v", created)
	}

	rec = doJSON(t, server, http.MethodGet, fmt.Sprintf("/cameras/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestCameraCreateMissingName(t *testing.T) {
	server, _, _, _, _ := newTestServer(t, &fakeCoordinator{})

	rec := doJSON(t, server, http.MethodPost, "/cameras", domain.Camera{StreamType: domain.StreamRTSP})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCameraCreateRejectsMismatchedStreamURL(t *testing.T) {
	server, _, _, _, _ := newTestServer(t, &fakeCoordinator{})

	rec := doJSON(t, server, http.MethodPost, "/cameras", domain.Camera{
		Name:       "dock",
		StreamType: domain.StreamRTSP,
		StreamURL:  "http://cam.local/stream",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, http.MethodPost, "/cameras", domain.Camera{
		Name:       "dock",
		StreamType: domain.StreamRTSP,
		StreamURL:  "rtsp://cam.local/stream",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCameraDeleteUnknown(t *testing.T) {
	server, _, _, _, _ := newTestServer(t, &fakeCoordinator{})

	rec := doJSON(t, server, http.MethodDelete, "/cameras/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRuleCreateParsesConditions(t *testing.T) {
	server, _, rules, _, _ := newTestServer(t, &fakeCoordinator{})

	body := map[string]any{
		"name":                "no helmet",
		"eventCode":           "PPE_NO_HELMET",
		"eventType":           "ppe_violation",
		"isActive":            true,
		"confidenceThreshold": 0.6,
		"conditions": []map[string]any{
			{"kind": "ppe_absent", "ppe": []string{"helmet"}},
		},
	}
	rec := doJSON(t, server, http.MethodPost, "/rules", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	stored := rules.rules[1]
	if len(stored.Conditions) != 1 || stored.Conditions[0].Kind() != "ppe_absent" {
		t.Fatalf("stored conditions = %+v", stored.Conditions)
	}

	var view struct {
		Conditions json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(string(view.Conditions), "ppe_absent") {
		t.Fatalf("conditions missing from response: %s", rec.Body.String())
	}
}

func TestRuleCreateUnknownConditionKind(t *testing.T) {
	server, _, _, _, _ := newTestServer(t, &fakeCoordinator{})

	body := map[string]any{
		"name":      "bad",
		"eventCode": "X",
		"conditions": []map[string]any{
			{"kind": "teleport_detected"},
		},
	}
	rec := doJSON(t, server, http.MethodPost, "/rules", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestEventAcknowledge(t *testing.T) {
	server, _, _, events, _ := newTestServer(t, &fakeCoordinator{})
	created, _ := events.Create(context.Background(), domain.Event{
		CameraID:  1,
		EventCode: "PPE_NO_HELMET",
		Severity:  domain.SeverityHigh,
	})

	rec := doJSON(t, server, http.MethodPost, fmt.Sprintf("/events/%d/acknowledge", created.ID), map[string]int64{"userId": 42})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if events.acked[created.ID] != 42 {
		t.Fatalf("acked = %v", events.acked)
	}
}

func TestEventCounts(t *testing.T) {
	server, _, _, events, _ := newTestServer(t, &fakeCoordinator{})
	events.Create(context.Background(), domain.Event{CameraID: 1, EventCode: "A", Severity: domain.SeverityHigh})
	events.Create(context.Background(), domain.Event{CameraID: 1, EventCode: "B", Severity: domain.SeverityHigh})
	events.Create(context.Background(), domain.Event{CameraID: 1, EventCode: "C", Severity: domain.SeverityLow})

	rec := doJSON(t, server, http.MethodGet, "/events/counts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var counts map[domain.Severity]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if counts[domain.SeverityHigh] != 2 || counts[domain.SeverityLow] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestAlertStatusUpdate(t *testing.T) {
	server, _, _, _, alerts := newTestServer(t, &fakeCoordinator{})
	created, _ := alerts.Create(context.Background(), domain.Alert{
		EventID: 1, RuleID: 1, Channel: domain.ChannelEmail, Recipient: "a@b.c", Status: domain.AlertPending,
	})

	rec := doJSON(t, server, http.MethodPatch, fmt.Sprintf("/alerts/%d/status", created.ID), map[string]string{"status": "sent"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if alerts.alerts[created.ID].Status != domain.AlertSent {
		t.Fatalf("alert status = %s", alerts.alerts[created.ID].Status)
	}

	rec = doJSON(t, server, http.MethodPatch, fmt.Sprintf("/alerts/%d/status", created.ID), map[string]string{"status": "exploded"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status code = %d", rec.Code)
	}
}

func TestStreamStart(t *testing.T) {
	coordinator := &fakeCoordinator{}
	server, cameras, _, _, _ := newTestServer(t, coordinator)
	camera, _ := cameras.Create(context.Background(), domain.Camera{
		Name:       "gate",
		StreamType: domain.StreamRTSP,
		StreamURL:  "rtsp://gate/stream",
		Status:     domain.CameraActive,
	})

	rec := doJSON(t, server, http.MethodPost, "/streams/start", streamStartRequest{CameraID: camera.ID})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(coordinator.submitted) != 1 {
		t.Fatalf("submitted = %+v", coordinator.submitted)
	}
	job := coordinator.submitted[0]
	if job.SourceType != domain.SourceStream || job.SourcePath != "rtsp://gate/stream" {
		t.Fatalf("job = %+v", job)
	}
	if job.Priority != 1 {
		t.Fatalf("stream priority = %d, want 1", job.Priority)
	}
}

func TestStreamStartUnknownCamera(t *testing.T) {
	server, _, _, _, _ := newTestServer(t, &fakeCoordinator{})

	rec := doJSON(t, server, http.MethodPost, "/streams/start", streamStartRequest{CameraID: 404})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStreamStartCameraWithoutURL(t *testing.T) {
	server, cameras, _, _, _ := newTestServer(t, &fakeCoordinator{})
	camera, _ := cameras.Create(context.Background(), domain.Camera{
		Name:       "offline",
		StreamType: domain.StreamFile,
		Status:     domain.CameraInactive,
	})

	rec := doJSON(t, server, http.MethodPost, "/streams/start", streamStartRequest{CameraID: camera.ID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func uploadRequest(t *testing.T, filename string, cameraID int64, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("cameraId", fmt.Sprintf("%d", cameraID)); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	server, cameras, _, _, _ := newTestServer(t, &fakeCoordinator{})
	camera, _ := cameras.Create(context.Background(), domain.Camera{
		Name: "c", StreamType: domain.StreamFile, Status: domain.CameraActive,
	})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, uploadRequest(t, "notes.txt", camera.ID, []byte("hello")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestUploadSubmitsJob(t *testing.T) {
	coordinator := &fakeCoordinator{}
	server, cameras, _, _, _ := newTestServer(t, coordinator)
	camera, _ := cameras.Create(context.Background(), domain.Camera{
		Name: "c", StreamType: domain.StreamFile, Status: domain.CameraActive,
	})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, uploadRequest(t, "clip.mp4", camera.ID, []byte("fake video bytes")))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BatchID == "" || resp.Chunks != 1 || len(resp.JobIDs) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if len(coordinator.submitted) != 1 || coordinator.submitted[0].SourceType != domain.SourceFile {
		t.Fatalf("submitted = %+v", coordinator.submitted)
	}
	if coordinator.submitted[0].Metadata["batch_id"] != resp.BatchID {
		t.Fatalf("metadata = %+v", coordinator.submitted[0].Metadata)
	}
}

type fakeChunker struct {
	chunks []domain.ChunkMeta
	err    error
}

func (f *fakeChunker) Split(ctx context.Context, sourcePath string, cameraID int64, jobID domain.JobID) ([]domain.ChunkMeta, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

func TestUploadChunksIntoJobs(t *testing.T) {
	coordinator := &fakeCoordinator{}
	chunker := &fakeChunker{chunks: []domain.ChunkMeta{
		{Index: 0, Path: "/data/chunks/c0.mp4", StartFrame: 0, FrameCount: 900},
		{Index: 1, Path: "/data/chunks/c1.mp4", StartFrame: 900, FrameCount: 900},
		{Index: 2, Path: "/data/chunks/c2.mp4", StartFrame: 1800, FrameCount: 300},
	}}
	server, cameras, _, _, _ := newTestServer(t, coordinator, WithChunker(chunker))
	camera, _ := cameras.Create(context.Background(), domain.Camera{
		Name: "c", StreamType: domain.StreamFile, Status: domain.CameraActive,
	})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, uploadRequest(t, "long.mp4", camera.ID, []byte("fake video bytes")))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Chunks != 3 || len(coordinator.submitted) != 3 {
		t.Fatalf("chunks = %d, submitted = %d", resp.Chunks, len(coordinator.submitted))
	}
	second := coordinator.submitted[1]
	if second.SourcePath != "/data/chunks/c1.mp4" {
		t.Fatalf("second path = %s", second.SourcePath)
	}
	if second.Metadata["chunk_index"] != 1 || second.Metadata["start_frame"] != 900 {
		t.Fatalf("second metadata = %+v", second.Metadata)
	}
	if second.Metadata["end_frame"] != 1800 || second.Metadata["total_frames"] != 2100 {
		t.Fatalf("second metadata = %+v", second.Metadata)
	}
	original, _ := second.Metadata["original_file"].(string)
	if original == "" {
		t.Fatalf("original_file missing from metadata: %+v", second.Metadata)
	}
}

func TestUploadUnknownCamera(t *testing.T) {
	server, _, _, _, _ := newTestServer(t, &fakeCoordinator{})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, uploadRequest(t, "clip.mp4", 77, []byte("x")))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
