package analyses

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"desap-backend/internal/shared/server/middleware"
	"desap-backend/internal/shared/server/respond"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group. Review
// operations are restricted to council accounts.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.submit)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/:id", h.get)
	rg.GET("/analyses/:id/annotated", h.annotated)
	rg.GET("/analyses/:id/contact", h.contact)

	review := rg.Group("", middleware.RequireReviewer())
	review.PUT("/analyses/:id/status", h.updateStatus)
	review.PUT("/analyses/:id/verdict", h.updateVerdict)
	review.DELETE("/analyses/:id", h.remove)
}

type submitJSONRequest struct {
	ImageBase64 string `json:"imageBase64"`
	FileName    string `json:"fileName"`
}

func (h *Handler) submit(c *gin.Context) {
	submitter := Submitter{
		ID:       middleware.UserIDFromContext(c),
		UserName: middleware.UserNameFromContext(c),
		Email:    middleware.UserEmailFromContext(c),
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	image, fileName, ok := readImage(c)
	if !ok {
		return
	}

	analysis, err := h.Svc.Submit(c.Request.Context(), image, fileName, submitter)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrInferenceFailed):
			respond.Error(c, http.StatusBadGateway, "inference_failed", "larvae detection is unavailable, try again later", nil)
		case errors.Is(err, ErrStorageUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "image storage is unavailable, try again later", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit analysis", nil)
		}
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.JSON(c, http.StatusCreated, toResponse(analysis))
}

// readImage accepts either a multipart upload under "image" or a JSON body
// with a base64 payload. It writes the error response itself on failure.
func readImage(c *gin.Context) ([]byte, string, bool) {
	if fileHeader, err := c.FormFile("image"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read image", nil)
			return nil, "", false
		}
		defer file.Close()

		image, err := io.ReadAll(file)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read image", nil)
			return nil, "", false
		}
		if len(image) == 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "image is empty", nil)
			return nil, "", false
		}
		return image, fileHeader.Filename, true
	}

	var req submitJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "image file or imageBase64 is required", nil)
		return nil, "", false
	}
	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil || len(image) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "imageBase64 is not valid base64", nil)
		return nil, "", false
	}
	return image, req.FileName, true
}

func (h *Handler) get(c *gin.Context) {
	analysisID := c.Param("id")

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		h.writeError(c, err, "failed to fetch analysis")
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(analysis))
}

func (h *Handler) list(c *gin.Context) {
	analyses, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		resp = append(resp, toResponse(a))
	}

	respond.JSON(c, http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	analysisID := c.Param("id")
	c.Set("analysisId", analysisID)

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	analysis, err := h.Svc.MarkStatus(c.Request.Context(), analysisID, req.Status)
	if err != nil {
		h.writeError(c, err, "failed to update status")
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(analysis))
}

type updateVerdictRequest struct {
	Verdict string `json:"verdict"`
}

func (h *Handler) updateVerdict(c *gin.Context) {
	analysisID := c.Param("id")
	c.Set("analysisId", analysisID)

	var req updateVerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	analysis, err := h.Svc.SetVerdict(c.Request.Context(), analysisID, req.Verdict)
	if err != nil {
		h.writeError(c, err, "failed to update verdict")
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(analysis))
}

func (h *Handler) remove(c *gin.Context) {
	analysisID := c.Param("id")
	c.Set("analysisId", analysisID)

	// Repeat deletes succeed; the end state is the same.
	if err := h.Svc.Delete(c.Request.Context(), analysisID); err != nil && !errors.Is(err, ErrNotFound) {
		h.writeError(c, err, "failed to delete analysis")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) annotated(c *gin.Context) {
	analysisID := c.Param("id")

	image, err := h.Svc.Annotated(c.Request.Context(), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrStorageUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "image storage is unavailable, try again later", nil)
		case errors.Is(err, ErrAnnotationFailed):
			respond.Error(c, http.StatusBadGateway, "annotation_failed", "failed to render annotated image", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to render annotated image", nil)
		}
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(image), image)
}

func (h *Handler) contact(c *gin.Context) {
	analysisID := c.Param("id")

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		h.writeError(c, err, "failed to fetch analysis")
		return
	}
	if analysis.CreatedBy.Email == "" {
		respond.Error(c, http.StatusNotFound, "not_found", "submitter has no contact email", nil)
		return
	}

	subject := fmt.Sprintf("Breeding site report %s", analysis.ID)
	respond.JSON(c, http.StatusOK, gin.H{
		"email":  analysis.CreatedBy.Email,
		"mailto": "mailto:" + analysis.CreatedBy.Email + "?subject=" + url.QueryEscape(subject),
	})
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
	case errors.Is(err, ErrInvalidStatus):
		respond.Error(c, http.StatusBadRequest, "invalid_status", err.Error(), nil)
	case errors.Is(err, ErrInvalidVerdict):
		respond.Error(c, http.StatusBadRequest, "invalid_verdict", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func toResponse(a Analysis) gin.H {
	return gin.H{
		"id":          a.ID,
		"status":      a.Status,
		"verdict":     a.Verdict,
		"larvaeCount": a.LarvaeCount(),
		"predictions": a.Predictions,
		"createdBy": gin.H{
			"userName": a.CreatedBy.UserName,
			"email":    a.CreatedBy.Email,
		},
		"createdAt": a.CreatedAt,
	}
}
