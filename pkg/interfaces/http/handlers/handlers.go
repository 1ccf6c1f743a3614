package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vsinha/podsync/pkg/application/dto"
	"github.com/vsinha/podsync/pkg/application/services/ingestion"
	"github.com/vsinha/podsync/pkg/application/services/provisioning"
	"github.com/vsinha/podsync/pkg/application/services/resolver"
	"github.com/vsinha/podsync/pkg/application/services/synchronization"
	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
	"github.com/vsinha/podsync/pkg/domain/services"
	"github.com/vsinha/podsync/pkg/infrastructure/cache"
	"github.com/vsinha/podsync/pkg/infrastructure/events"
	"github.com/vsinha/podsync/pkg/infrastructure/repositories/feed"
)

// maxUploadBytes bounds multipart feed uploads held in memory
const maxUploadBytes = 32 << 20

// EventLog reads recently published events by position
type EventLog interface {
	ReadAllEventsSince(fromPosition int) ([]events.Event, int)
}

// EventPage is one read of the event log; Next is the position to read from next
type EventPage struct {
	Events []events.Event `json:"events"`
	Next   int            `json:"next"`
}

// Dependencies wires the application services behind the HTTP handlers
type Dependencies struct {
	Items       repositories.ItemRepository
	Pods        repositories.PodRepository
	Engine      *synchronization.Engine
	Resolver    *resolver.Resolver
	Reconciler  *ingestion.Reconciler
	Provisioner *provisioning.Provisioner
	Cache       *cache.ResponseCache
	Events      EventLog
	Logger      *log.Logger
}

type PodSyncHandler struct {
	items       repositories.ItemRepository
	pods        repositories.PodRepository
	engine      *synchronization.Engine
	resolver    *resolver.Resolver
	reconciler  *ingestion.Reconciler
	provisioner *provisioning.Provisioner
	checker     *services.IntegrityChecker
	loader      *feed.Loader
	cache       *cache.ResponseCache
	events      EventLog
	logger      *log.Logger
}

func NewPodSyncHandler(deps Dependencies) *PodSyncHandler {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &PodSyncHandler{
		items:       deps.Items,
		pods:        deps.Pods,
		engine:      deps.Engine,
		resolver:    deps.Resolver,
		reconciler:  deps.Reconciler,
		provisioner: deps.Provisioner,
		checker:     services.NewIntegrityChecker(),
		loader:      feed.NewLoader(),
		cache:       deps.Cache,
		events:      deps.Events,
		logger:      logger,
	}
}

func (h *PodSyncHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/layouts/{type}/{face}", h.GetLayout).Methods(http.MethodGet)
	router.HandleFunc("/pods", h.CreatePod).Methods(http.MethodPost)
	router.HandleFunc("/pods/{barcode}", h.GetPod).Methods(http.MethodGet)
	router.HandleFunc("/pods/{barcode}/sync", h.SyncPod).Methods(http.MethodPost)
	router.HandleFunc("/pods/{barcode}/items", h.GetPodItems).Methods(http.MethodGet)
	router.HandleFunc("/sync", h.SyncAll).Methods(http.MethodPost)
	router.HandleFunc("/items/locate", h.LocateItems).Methods(http.MethodGet)
	router.HandleFunc("/ingest", h.Ingest).Methods(http.MethodPost)
	router.HandleFunc("/integrity", h.Integrity).Methods(http.MethodGet)
	if h.events != nil {
		router.HandleFunc("/events", h.ListEvents).Methods(http.MethodGet)
	}
}

func (h *PodSyncHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *PodSyncHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	specs, err := services.GenerateLayout(entities.PodType(vars["type"]), vars["face"])
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, specs)
}

func (h *PodSyncHandler) CreatePod(w http.ResponseWriter, r *http.Request) {
	var req provisioning.PodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	pod, err := h.provisioner.Provision(r.Context(), req)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, pod)
}

func (h *PodSyncHandler) GetPod(w http.ResponseWriter, r *http.Request) {
	barcode := mux.Vars(r)["barcode"]
	if h.serveCached(w, r) {
		return
	}

	pod, err := h.pods.Get(r.Context(), barcode)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	h.respondAndCache(w, r, pod, cache.PodTag(barcode))
}

func (h *PodSyncHandler) SyncPod(w http.ResponseWriter, r *http.Request) {
	barcode := mux.Vars(r)["barcode"]

	result, err := h.engine.SyncPod(r.Context(), barcode)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *PodSyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.SyncAll(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, batchStatus(result.Err()), result)
}

func (h *PodSyncHandler) GetPodItems(w http.ResponseWriter, r *http.Request) {
	barcode := mux.Vars(r)["barcode"]

	filter, strategy, err := parseLocateQuery(r)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	filter.PodBarcode = barcode

	if h.serveCached(w, r) {
		return
	}

	located, err := h.resolver.ResolveWith(r.Context(), strategy, filter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	h.respondAndCache(w, r, located, cache.PodTag(barcode), cache.StoreTag)
}

func (h *PodSyncHandler) LocateItems(w http.ResponseWriter, r *http.Request) {
	filter, strategy, err := parseLocateQuery(r)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	filter.PodBarcode = strings.TrimSpace(r.URL.Query().Get("pod"))

	if h.serveCached(w, r) {
		return
	}

	located, err := h.resolver.ResolveWith(r.Context(), strategy, filter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	tags := []string{cache.StoreTag}
	if filter.PodBarcode != "" {
		tags = append(tags, cache.PodTag(filter.PodBarcode))
	}
	h.respondAndCache(w, r, located, tags...)
}

func (h *PodSyncHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	rows, err := h.readFeed(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.reconciler.Reconcile(r.Context(), rows)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, batchStatus(result.Err()), result)
}

func (h *PodSyncHandler) Integrity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	barcodes, err := h.pods.Barcodes(ctx)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	pods := make([]*entities.Pod, 0, len(barcodes))
	for _, barcode := range barcodes {
		pod, err := h.pods.Get(ctx, barcode)
		if err != nil {
			respondWithDomainError(w, err)
			return
		}
		pods = append(pods, pod)
	}

	items, err := h.items.Find(ctx, repositories.ItemFilter{})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.checker.Check(pods, items))
}

func (h *PodSyncHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	from := 0
	if raw := r.URL.Query().Get("from"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid from position %q", raw))
			return
		}
		from = n
	}

	list, next := h.events.ReadAllEventsSince(from)
	respondWithJSON(w, http.StatusOK, EventPage{Events: list, Next: next})
}

// readFeed accepts a JSON array of rows or a multipart upload in field "file"
func (h *PodSyncHandler) readFeed(r *http.Request) ([]dto.FeedRow, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, fmt.Errorf("invalid multipart upload: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing upload field \"file\": %w", err)
		}
		defer file.Close()

		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".xlsx":
			return h.loader.ReadFeedXLSX(file)
		case ".csv":
			return h.loader.ReadFeedCSV(file)
		default:
			return nil, fmt.Errorf("only .csv and .xlsx feeds are accepted, got %s", header.Filename)
		}
	}

	var rows []dto.FeedRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("invalid request payload: %w", err)
	}
	return rows, nil
}

func (h *PodSyncHandler) serveCached(w http.ResponseWriter, r *http.Request) bool {
	if h.cache == nil {
		return false
	}
	body, ok := h.cache.Get(cacheKey(r))
	if !ok {
		return false
	}
	w.Header().Set("X-Cache", "HIT")
	respondWithBytes(w, http.StatusOK, body)
	return true
}

func (h *PodSyncHandler) respondAndCache(w http.ResponseWriter, r *http.Request, payload interface{}, tags ...string) {
	body, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.cache != nil {
		h.cache.Set(cacheKey(r), body, tags...)
		w.Header().Set("X-Cache", "MISS")
	}
	respondWithBytes(w, http.StatusOK, body)
}

func cacheKey(r *http.Request) string {
	return r.Method + " " + r.URL.RequestURI()
}

func parseLocateQuery(r *http.Request) (resolver.LocateFilter, resolver.Strategy, error) {
	q := r.URL.Query()

	strategy, err := resolver.ParseStrategy(q.Get("strategy"))
	if err != nil {
		return resolver.LocateFilter{}, "", err
	}

	filter := resolver.LocateFilter{
		Items: repositories.ItemFilter{
			StockCode:       strings.TrimSpace(q.Get("stock")),
			StockCodePrefix: strings.TrimSpace(q.Get("stockPrefix")),
		},
		FaceLetter:  strings.TrimSpace(q.Get("face")),
		BinID:       strings.TrimSpace(q.Get("bin")),
		BinIDPrefix: strings.TrimSpace(q.Get("binPrefix")),
	}
	if status := q.Get("status"); status != "" {
		parsed, err := entities.ParseItemStatus(status)
		if err != nil {
			return resolver.LocateFilter{}, "", err
		}
		filter.Items.Status = parsed
	}
	return filter, strategy, nil
}

func batchStatus(err error) int {
	var partial *entities.PartialFailure
	if errors.As(err, &partial) {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}

// statusFor maps domain sentinels onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrDuplicateKey), errors.Is(err, entities.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondWithDomainError(w http.ResponseWriter, err error) {
	respondWithError(w, statusFor(err), err.Error())
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	respondWithBytes(w, code, response)
}

func respondWithBytes(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
