package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/listing/usecase"
	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/carvio/listing-service/internal/sweeper"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxPhotoSize = 10 << 20 // 10 MiB

// Handler exposes the listing lifecycle over HTTP.
type Handler struct {
	listings  *usecase.ListingUsecase
	history   *usecase.HistoryUsecase
	gate      domain.AuthorizationGate
	scheduler *sweeper.Scheduler // nil when the sweep is disabled
	logger    *logger.Logger
}

// NewHandler creates the HTTP handler. scheduler may be nil.
func NewHandler(
	listings *usecase.ListingUsecase,
	history *usecase.HistoryUsecase,
	gate domain.AuthorizationGate,
	scheduler *sweeper.Scheduler,
	log *logger.Logger,
) *Handler {
	return &Handler{
		listings:  listings,
		history:   history,
		gate:      gate,
		scheduler: scheduler,
		logger:    log.Named("HTTPHandler"),
	}
}

type createListingRequest struct {
	Title       string  `json:"title"`
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	Year        int32   `json:"year"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	listing, err := h.listings.CreateListing(r.Context(), usecase.CreateListingInput{
		PostedBy:    userIDFromContext(r.Context()),
		Title:       req.Title,
		Make:        req.Make,
		Model:       req.Model,
		Year:        req.Year,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingResponse(listing))
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	listing, err := h.listings.GetListing(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

func (h *Handler) searchListings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListingFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	listings, total, err := h.listings.SearchListings(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	responses := make([]*listingResponse, len(listings))
	for i, l := range listings {
		responses[i] = toListingResponse(l)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"listings": responses,
		"total":    total,
	})
}

func (h *Handler) myListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListByOwner(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	responses := make([]*listingResponse, len(listings))
	for i, l := range listings {
		responses[i] = toListingResponse(l)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"listings": responses})
}

type updateListingRequest struct {
	Title       *string  `json:"title"`
	Make        *string  `json:"make"`
	Model       *string  `json:"model"`
	Year        *int32   `json:"year"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
}

func (h *Handler) updateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req updateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	listing, err := h.listings.UpdateListing(r.Context(), id, userIDFromContext(r.Context()), usecase.UpdateListingInput{
		Title:       req.Title,
		Make:        req.Make,
		Model:       req.Model,
		Year:        req.Year,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

func (h *Handler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	url, err := h.listings.UploadPhoto(r.Context(), id, userIDFromContext(r.Context()), header.Filename, data)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func (h *Handler) approveListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	listing, err := h.listings.Approve(r.Context(), id, userIDFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

type rejectListingRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req rejectListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	listing, err := h.listings.Reject(r.Context(), id, userIDFromContext(r.Context()), req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

func (h *Handler) markSold(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	listing, err := h.listings.MarkSold(r.Context(), id, userIDFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

func (h *Handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	userID := userIDFromContext(r.Context())
	role := userRoleFromContext(r.Context())

	allowed, err := h.gate.Check(r.Context(), id, userID, role)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "you may only delete your own listings")
		return
	}

	result, err := h.listings.DeleteListing(r.Context(), id, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history_id":    result.HistoryID,
		"purged_images": len(result.PurgedImages),
		"failed_images": result.FailedImages,
	})
}

func (h *Handler) queryHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, total, err := h.history.Query(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	responses := make([]*historyResponse, len(records))
	for i, rec := range records {
		responses[i] = toHistoryResponse(rec)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": responses,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

func (h *Handler) getHistoryRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.history.GetByListingID(r.Context(), chi.URLParam(r, "listingID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(record))
}

func (h *Handler) runSweep(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "sweep is disabled")
		return
	}
	result, err := h.scheduler.RunNow(r.Context())
	if err != nil {
		h.logger.Error("Manually triggered sweep failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	if result == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "a sweep is already in progress"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"eligible":  result.Eligible,
		"processed": result.Processed,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listingID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func parseListingFilter(r *http.Request) (domain.ListingSearchFilter, error) {
	q := r.URL.Query()
	filter := domain.ListingSearchFilter{
		Status: q.Get("status"),
		Make:   q.Get("make"),
		Model:  q.Get("model"),
		Search: q.Get("search"),
	}

	if v := q.Get("price_min"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, errors.New("price_min must be a number")
		}
		filter.PriceMin = &price
	}
	if v := q.Get("price_max"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, errors.New("price_max must be a number")
		}
		filter.PriceMax = &price
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return filter, errors.New("page must be an integer")
		}
		filter.Page = int32(page)
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return filter, errors.New("limit must be an integer")
		}
		filter.Limit = int32(limit)
	}
	return filter, nil
}

func parseHistoryFilter(r *http.Request) (domain.HistoryFilter, error) {
	q := r.URL.Query()
	filter := domain.HistoryFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}

	if v := q.Get("is_auto_deleted"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("is_auto_deleted must be true or false")
		}
		filter.IsAutoDeleted = &parsed
	}
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("date_from must be RFC3339")
		}
		filter.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("date_to must be RFC3339")
		}
		filter.DateTo = &t
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return filter, errors.New("page must be an integer")
		}
		filter.Page = int32(page)
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return filter, errors.New("limit must be an integer")
		}
		filter.Limit = int32(limit)
	}
	return filter, nil
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrListingNotFound), errors.Is(err, domain.ErrHistoryNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTransaction):
		h.logger.Error("Archive transaction error surfaced to client", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "deletion failed, listing remains live")
	default:
		h.logger.Error("Unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type listingResponse struct {
	ID              string   `json:"id"`
	PostedBy        string   `json:"posted_by"`
	Title           string   `json:"title"`
	Make            string   `json:"make"`
	Model           string   `json:"model"`
	Year            int32    `json:"year"`
	Price           float64  `json:"price"`
	Description     string   `json:"description"`
	Status          string   `json:"status"`
	Images          []string `json:"images"`
	RejectionReason string   `json:"rejection_reason,omitempty"`
	ApprovedBy      string   `json:"approved_by,omitempty"`
	ApprovedAt      *string  `json:"approved_at,omitempty"`
	SoldAt          *string  `json:"sold_at,omitempty"`
	AutoDeleteDate  *string  `json:"auto_delete_date,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func toListingResponse(l *domain.Listing) *listingResponse {
	return &listingResponse{
		ID:              l.ID.Hex(),
		PostedBy:        l.PostedBy,
		Title:           l.Title,
		Make:            l.Make,
		Model:           l.Model,
		Year:            l.Year,
		Price:           l.Price,
		Description:     l.Description,
		Status:          string(l.Status),
		Images:          l.Images,
		RejectionReason: l.RejectionReason,
		ApprovedBy:      l.ApprovedBy,
		ApprovedAt:      formatTimePtr(l.ApprovedAt),
		SoldAt:          formatTimePtr(l.SoldAt),
		AutoDeleteDate:  formatTimePtr(l.AutoDeleteDate),
		CreatedAt:       l.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:       l.UpdatedAt.Format(time.RFC3339Nano),
	}
}

type historyResponse struct {
	ID               string  `json:"id"`
	ListingID        string  `json:"listing_id"`
	SellerID         string  `json:"seller_id"`
	Title            string  `json:"title"`
	Make             string  `json:"make"`
	Model            string  `json:"model"`
	Price            float64 `json:"price"`
	FinalStatus      string  `json:"final_status"`
	FinalSellingDate *string `json:"final_selling_date"`
	IsAutoDeleted    bool    `json:"is_auto_deleted"`
	DeletedBy        string  `json:"deleted_by"`
	DeletedAt        string  `json:"deleted_at"`
}

func toHistoryResponse(rec *domain.HistoryRecord) *historyResponse {
	deletedBy := "system"
	if rec.DeletedBy != nil {
		deletedBy = *rec.DeletedBy
	}
	return &historyResponse{
		ID:               rec.ID.Hex(),
		ListingID:        rec.ListingID,
		SellerID:         rec.SellerID,
		Title:            rec.Title,
		Make:             rec.Make,
		Model:            rec.Model,
		Price:            rec.Price,
		FinalStatus:      string(rec.FinalStatus),
		FinalSellingDate: formatTimePtr(rec.FinalSellingDate),
		IsAutoDeleted:    rec.IsAutoDeleted,
		DeletedBy:        deletedBy,
		DeletedAt:        rec.DeletedAt.Format(time.RFC3339Nano),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
