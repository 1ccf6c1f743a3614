package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/vsinha/podsync/pkg/application/dto"
	"github.com/vsinha/podsync/pkg/application/services/ingestion"
	"github.com/vsinha/podsync/pkg/application/services/provisioning"
	"github.com/vsinha/podsync/pkg/application/services/resolver"
	"github.com/vsinha/podsync/pkg/application/services/synchronization"
	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/services"
	"github.com/vsinha/podsync/pkg/infrastructure/cache"
	"github.com/vsinha/podsync/pkg/infrastructure/events"
	testhelpers "github.com/vsinha/podsync/pkg/infrastructure/testing"
)

var quietLogger = log.New(io.Discard, "", 0)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	itemRepo, podRepo := testhelpers.BuildWarehouseTestData()

	store := events.NewInMemoryEventStore(quietLogger)
	responseCache := cache.NewResponseCache(cache.DefaultTTL, cache.DefaultMaxEntries)
	if err := cache.NewInvalidator(responseCache).Register(store); err != nil {
		t.Fatalf("Failed to register invalidator: %v", err)
	}

	handler := NewPodSyncHandler(Dependencies{
		Items:       itemRepo,
		Pods:        podRepo,
		Engine:      synchronization.NewEngine(itemRepo, podRepo, store, quietLogger),
		Resolver:    resolver.NewResolver(itemRepo, podRepo, quietLogger),
		Reconciler:  ingestion.NewReconciler(itemRepo, store, quietLogger),
		Provisioner: provisioning.NewProvisioner(podRepo, store, quietLogger),
		Cache:       responseCache,
		Events:      store,
		Logger:      quietLogger,
	})

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response: %v\n%s", err, rec.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	rec := do(newTestRouter(t), http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestGetLayout(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		target string
		status int
		bins   int
	}{
		{"/layouts/H10/a", http.StatusOK, 40},
		{"/layouts/h8/B", http.StatusOK, 8},
		{"/layouts/H9/A", http.StatusNotFound, 0},
		{"/layouts/H8/E", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(router, http.MethodGet, tt.target, nil, "")
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d", tt.status, rec.Code)
			}
			if tt.status != http.StatusOK {
				return
			}
			var specs []services.BinSpec
			decode(t, rec, &specs)
			if len(specs) != tt.bins {
				t.Errorf("Expected %d bins, got %d", tt.bins, len(specs))
			}
		})
	}
}

func TestGetPodIsCachedUntilSync(t *testing.T) {
	router := newTestRouter(t)
	target := "/pods/" + testhelpers.PodAlpha

	first := do(router, http.MethodGet, target, nil, "")
	if first.Code != http.StatusOK || first.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("Expected uncached 200, got %d %s", first.Code, first.Header().Get("X-Cache"))
	}
	second := do(router, http.MethodGet, target, nil, "")
	if second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("Expected cache hit, got %s", second.Header().Get("X-Cache"))
	}

	synced := do(router, http.MethodPost, target+"/sync", nil, "")
	if synced.Code != http.StatusOK {
		t.Fatalf("Expected 200 from sync, got %d: %s", synced.Code, synced.Body.String())
	}
	var result dto.PodSyncResult
	decode(t, synced, &result)
	if result.ItemsSynced != 3 {
		t.Errorf("Expected 3 items synced, got %d", result.ItemsSynced)
	}

	third := do(router, http.MethodGet, target, nil, "")
	if third.Header().Get("X-Cache") != "MISS" {
		t.Errorf("Expected sync to invalidate the pod entry, got %s", third.Header().Get("X-Cache"))
	}
	var pod entities.Pod
	decode(t, third, &pod)
	if pod.Version != 1 {
		t.Errorf("Expected synced version 1, got %d", pod.Version)
	}
}

func TestGetPodNotFound(t *testing.T) {
	rec := do(newTestRouter(t), http.MethodGet, "/pods/HB99999999999", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestSyncAllAndLocate(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodPost, "/sync", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result dto.SyncAllResult
	decode(t, rec, &result)
	if result.TotalPods != 2 || result.TotalErrors != 0 {
		t.Errorf("Unexpected sync result %+v", result)
	}

	podItems := do(router, http.MethodGet, "/pods/"+testhelpers.PodBravo+"/items?face=A", nil, "")
	var located []dto.LocatedItem
	decode(t, podItems, &located)
	if len(located) != 1 || located[0].StockCode != "STK-004" {
		t.Errorf("Expected STK-004 on bravo face A, got %+v", located)
	}

	missing := do(router, http.MethodGet, "/items/locate?status=missing&strategy=join", nil, "")
	located = nil
	decode(t, missing, &located)
	if len(located) != 1 || located[0].StockCode != "STK-002" || located[0].Location.BinID != "a_bin_2a" {
		t.Errorf("Expected STK-002 in a_bin_2a, got %+v", located)
	}
}

func TestLocateRejectsBadQuery(t *testing.T) {
	router := newTestRouter(t)

	for _, target := range []string{"/items/locate?status=lost", "/items/locate?strategy=fastest"} {
		rec := do(router, http.MethodGet, target, nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestCreatePod(t *testing.T) {
	router := newTestRouter(t)
	body := `{"podBarcode":"HB10000000007","podName":"Seven","podType":"H8","classification":"medium","faces":["A"],"generateUBinIds":true}`

	rec := do(router, http.MethodPost, "/pods", strings.NewReader(body), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var pod entities.Pod
	decode(t, rec, &pod)
	if len(pod.Faces) != 1 || len(pod.Faces[0].Bins) != 32 || pod.Faces[0].Bins[0].UBinID == "" {
		t.Errorf("Unexpected provisioned pod %+v", pod)
	}

	again := do(router, http.MethodPost, "/pods", strings.NewReader(body), "application/json")
	if again.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate barcode, got %d", again.Code)
	}

	bad := do(router, http.MethodPost, "/pods", strings.NewReader("{"), "application/json")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed payload, got %d", bad.Code)
	}
}

func TestIngestJSON(t *testing.T) {
	router := newTestRouter(t)

	ok := `[{"stockCode":"SKU1","locationKeyRaw":"P-6-R326Q053","locationBarcodeRaw":"HB12345678901 x"}]`
	rec := do(router, http.MethodPost, "/ingest", strings.NewReader(ok), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result dto.ReconcileResult
	decode(t, rec, &result)
	if result.Inserted != 1 {
		t.Errorf("Expected 1 inserted, got %+v", result)
	}

	// moves STK-001 onto STK-003's location key
	clash := `[{"stockCode":"STK-001","locationKeyRaw":"` + testhelpers.UBinID(testhelpers.PodAlpha, "b_bin_1c") + `"}]`
	rec = do(router, http.MethodPost, "/ingest", strings.NewReader(clash), "application/json")
	if rec.Code != http.StatusMultiStatus {
		t.Errorf("Expected 207 for a failed row, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIngestJSONFieldNames(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"raw names", `[{"stockCode":"SKU1","locationKeyRaw":"P-6-R326Q053","locationBarcodeRaw":"HB12345678901 extra"}]`},
		{"export names", `[{"stockCode":"SKU1","uBinId":"P-6-R326Q053","podBarcode":"HB12345678901 extra"}]`},
		{"short names", `[{"stockCode":"SKU1","locationKey":"P-6-R326Q053","locationBarcode":"HB12345678901 extra"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t)

			rec := do(router, http.MethodPost, "/ingest", strings.NewReader(tt.body), "application/json")
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			var result dto.ReconcileResult
			decode(t, rec, &result)
			if result.Inserted != 1 || result.Skipped != 0 {
				t.Fatalf("Expected 1 inserted and none skipped, got %+v", result)
			}

			rec = do(router, http.MethodGet, "/items/locate?stock=SKU1", nil, "")
			var located []dto.LocatedItem
			decode(t, rec, &located)
			if len(located) != 1 || located[0].UBinID != "P-6-R326Q053" {
				t.Errorf("Expected SKU1 at P-6-R326Q053, got %+v", located)
			}
		})
	}
}

func TestIngestMultipartCSV(t *testing.T) {
	router := newTestRouter(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "rows.csv")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write([]byte("sku,location\nSKU9,LOC-9999\n"))
	writer.Close()

	rec := do(router, http.MethodPost, "/ingest", &body, writer.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result dto.ReconcileResult
	decode(t, rec, &result)
	if result.Inserted != 1 {
		t.Errorf("Expected 1 inserted, got %+v", result)
	}
}

func TestIntegrity(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/sync", nil, "")

	rec := do(router, http.MethodGet, "/integrity", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var report services.IntegrityReport
	decode(t, rec, &report)
	if report.PodsChecked != 2 || len(report.StaleBins) != 0 {
		t.Errorf("Unexpected report %+v", report)
	}
	if len(report.UnplacedItems) != 1 || report.UnplacedItems[0] != "STK-900" {
		t.Errorf("Expected STK-900 unplaced, got %v", report.UnplacedItems)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{entities.ErrNotFound, http.StatusNotFound},
		{entities.ErrInvalidLayout, http.StatusNotFound},
		{entities.Validationf("bad"), http.StatusBadRequest},
		{entities.ErrDuplicateKey, http.StatusConflict},
		{entities.ErrVersionConflict, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.expected {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.expected)
		}
	}
}

func TestListEvents(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/sync", nil, "")

	rec := do(router, http.MethodGet, "/events", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var page struct {
		Events []events.BaseEvent `json:"events"`
		Next   int                `json:"next"`
	}
	decode(t, rec, &page)

	// one pod.synced per pod plus sync.completed
	if len(page.Events) != 3 || page.Next != 3 {
		t.Fatalf("Expected 3 events and next 3, got %d and %d", len(page.Events), page.Next)
	}
	if page.Events[2].EventType != events.SyncCompletedEvent {
		t.Errorf("Expected last event %s, got %s", events.SyncCompletedEvent, page.Events[2].EventType)
	}

	rec = do(router, http.MethodGet, "/events?from=3", nil, "")
	decode(t, rec, &page)
	if len(page.Events) != 0 || page.Next != 3 {
		t.Errorf("Expected empty page at 3, got %d events, next %d", len(page.Events), page.Next)
	}

	bad := do(router, http.MethodGet, "/events?from=-1", nil, "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a negative position, got %d", bad.Code)
	}
}
