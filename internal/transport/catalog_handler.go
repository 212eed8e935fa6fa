package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"solemate/internal/domain"
	"solemate/internal/middleware"
	"solemate/internal/repository"
	"solemate/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxFormMemory = 32 << 20
	maxJSONBody   = 1 << 20
	maxListLimit  = 100
)

// CatalogReader is the read side the handlers render from
type CatalogReader interface {
	GetProductBySlug(ctx context.Context, slug string) (*service.ProductDetail, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*service.ProductDetail, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]service.ProductSummary, error)
	Recommendations(ctx context.Context, product *domain.Product) ([]service.ProductSummary, error)
	ListSection(ctx context.Context, section domain.Section) ([]service.ProductSummary, error)
}

// StatusRequest changes a product's lifecycle state
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft published archived"`
}

// PlacementRequest places a product in a section
type PlacementRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// PartialWriteResponse tells the admin which draft was left behind
type PartialWriteResponse struct {
	ProductID string `json:"product_id"`
	Step      string `json:"step"`
}

// CatalogHandler serves the storefront and the admin catalog endpoints
type CatalogHandler struct {
	catalog       service.CatalogService
	reader        CatalogReader
	maxImageBytes int64
	logger        *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog service.CatalogService, reader CatalogReader, maxImageBytes int64, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:       catalog,
		reader:        reader,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// RegisterRoutes registers the public routes and, behind admin, the back office routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router, admin ...func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListPublished)
		r.Get("/{slug}", h.GetPublished)
		r.Get("/{slug}/recommendations", h.Recommendations)
	})
	r.Get("/api/sections/{section}", h.GetSection)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(admin...)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListAll)
			r.Post("/", h.Create)
			r.Get("/incomplete", h.ListIncomplete)
			r.Get("/{id}", h.GetByID)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Patch("/{id}/status", h.SetStatus)
			r.Delete("/{id}/images/{imageID}", h.DeleteImage)
		})

		r.Post("/sections/{section}", h.AddPlacement)
		r.Delete("/sections/{section}/{productID}", h.RemovePlacement)
	})
}

// ListPublished lists published products, newest first
func (h *CatalogHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Status = domain.StatusPublished

	products, err := h.reader.ListProducts(r.Context(), filter)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetPublished renders a product page. Unpublished products are not found.
func (h *CatalogHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadPublished(w, r)
	if !ok {
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

// Recommendations lists products similar to the one on the page
func (h *CatalogHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadPublished(w, r)
	if !ok {
		return
	}

	recs, err := h.reader.Recommendations(r.Context(), detail.Product)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, recs)
}

func (h *CatalogHandler) loadPublished(w http.ResponseWriter, r *http.Request) (*service.ProductDetail, bool) {
	detail, err := h.reader.GetProductBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return nil, false
	}
	if detail.Product.Status != domain.StatusPublished {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return nil, false
	}
	return detail, true
}

// GetSection lists the published products of a storefront section
func (h *CatalogHandler) GetSection(w http.ResponseWriter, r *http.Request) {
	products, err := h.reader.ListSection(r.Context(), domain.Section(chi.URLParam(r, "section")))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// ListAll lists products in every status for the back office
func (h *CatalogHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if status := domain.ProductStatus(r.URL.Query().Get("status")); status != "" {
		if !status.Valid() {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = status
	}

	products, err := h.reader.ListProducts(r.Context(), filter)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetByID loads a product in any status for the edit form
func (h *CatalogHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.reader.GetProductByID(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

// ListIncomplete lists drafts a failed save left without images or variants
func (h *CatalogHandler) ListIncomplete(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.catalog.ListIncompleteDrafts(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, drafts)
}

// Create handles the admin product form
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	sub, files, ok := h.readProductForm(w, r)
	if !ok {
		return
	}

	detail, err := h.catalog.CreateProduct(r.Context(), sub, files)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, detail)
}

// Update handles the admin edit form. New images are appended.
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sub, files, ok := h.readProductForm(w, r)
	if !ok {
		return
	}

	detail, err := h.catalog.UpdateProduct(r.Context(), id, sub, files)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

// Delete removes a product and everything it owns
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetStatus publishes, archives or reverts a product to draft
func (h *CatalogHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req StatusRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := h.catalog.SetStatus(r.Context(), id, domain.ProductStatus(req.Status)); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": req.Status})
}

// DeleteImage removes one image of a product
func (h *CatalogHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	imageID, ok := pathUUID(w, r, "imageID")
	if !ok {
		return
	}

	if err := h.catalog.DeleteImage(r.Context(), id, imageID); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddPlacement appends a product to a section
func (h *CatalogHandler) AddPlacement(w http.ResponseWriter, r *http.Request) {
	var req PlacementRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	productID, ok := parseUUID(w, "product_id", req.ProductID)
	if !ok {
		return
	}

	placement, err := h.catalog.AddPlacement(r.Context(), domain.Section(chi.URLParam(r, "section")), productID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, placement)
}

// RemovePlacement takes a product out of a section
func (h *CatalogHandler) RemovePlacement(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathUUID(w, r, "productID")
	if !ok {
		return
	}

	if err := h.catalog.RemovePlacement(r.Context(), domain.Section(chi.URLParam(r, "section")), productID); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readProductForm reads the multipart form: a "product" JSON part and any
// number of "images" files
func (h *CatalogHandler) readProductForm(w http.ResponseWriter, r *http.Request) (domain.ProductSubmission, []service.ImageUpload, bool) {
	var sub domain.ProductSubmission

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		h.logger.Debug("Product form parse failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return sub, nil, false
	}
	defer r.MultipartForm.RemoveAll()

	raw := r.FormValue("product")
	if raw == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing product part")
		return sub, nil, false
	}
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		h.logger.Debug("Product part decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product payload")
		return sub, nil, false
	}

	headers := r.MultipartForm.File["images"]
	files := make([]service.ImageUpload, 0, len(headers))
	for _, fh := range headers {
		contentType := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			middleware.RespondWithFieldErrors(w, map[string]string{
				"images": fmt.Sprintf("%s is not an image", fh.Filename),
			})
			return sub, nil, false
		}
		if h.maxImageBytes > 0 && fh.Size > h.maxImageBytes {
			middleware.RespondWithFieldErrors(w, map[string]string{
				"images": fmt.Sprintf("%s is larger than %d bytes", fh.Filename, h.maxImageBytes),
			})
			return sub, nil, false
		}

		f, err := fh.Open()
		if err != nil {
			h.logger.Error("Failed to open uploaded image", zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadRequest, "unreadable image upload")
			return sub, nil, false
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.logger.Error("Failed to read uploaded image", zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadRequest, "unreadable image upload")
			return sub, nil, false
		}

		files = append(files, service.ImageUpload{Filename: fh.Filename, ContentType: contentType, Data: data})
	}

	return sub, files, true
}

// respondWithServiceError maps catalog errors onto the error envelope
func (h *CatalogHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *service.ValidationError
		conflictErr   *service.ConflictError
		partialErr    *service.PartialWriteError
		deleteErr     *service.DeleteFailure
	)

	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithFieldErrors(w, validationErr.Fields.Map())
	case errors.As(err, &conflictErr):
		middleware.RespondWithErrorDetails(w, http.StatusConflict, conflictErr.Message, map[string]any{
			"fields": map[string]string{conflictErr.Field: conflictErr.Message},
		})
	case errors.As(err, &partialErr):
		middleware.RespondWithErrorDetails(w, http.StatusInternalServerError, "product saved as draft but incomplete", map[string]any{
			"product_id": partialErr.ProductID.String(),
			"step":       string(partialErr.Step),
		})
	case errors.As(err, &deleteErr):
		middleware.RespondWithErrorDetails(w, http.StatusInternalServerError, "failed to delete product", map[string]any{
			"product_id": deleteErr.ProductID.String(),
		})
	case errors.Is(err, service.ErrInvalidStatus):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidSection):
		middleware.RespondWithError(w, http.StatusNotFound, "section not found")
	case errors.Is(err, repository.ErrPlacementExists):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case service.IsNotFound(err):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("Catalog request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parseFilter(r *http.Request) (domain.ProductFilter, error) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		ProductType: domain.ProductType(q.Get("type")),
		Collection:  domain.Collection(q.Get("collection")),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return filter, fmt.Errorf("limit must be between 1 and %d", maxListLimit)
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	return parseUUID(w, name, chi.URLParam(r, name))
}

func parseUUID(w http.ResponseWriter, name, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	if err := middleware.DecodeAndValidate(w, r, maxJSONBody, v); err != nil {
		logger.Debug("Request body rejected", zap.Error(err))
		if fieldErrors := middleware.FormatValidationErrors(err); len(fieldErrors) > 0 {
			middleware.RespondWithValidationErrors(w, fieldErrors)
			return false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
