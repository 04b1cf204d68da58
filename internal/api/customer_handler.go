package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/customer-import-api/internal/config"
	"github.com/customer-import-api/internal/mapper"
	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CustomerHandler handles the synchronous customer-store import path.
type CustomerHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "customer").Logger(),
	}
}

// importCustomersRequest references a server-side CSV file.
type importCustomersRequest struct {
	File      string `json:"file" binding:"required"`
	ChunkSize int    `json:"chunk_size"`
}

// ImportCustomers handles POST /v1/customers/import
// Loads a server-side CSV and upserts every row into the commerce
// customer store, returning the full report inline.
func (h *CustomerHandler) ImportCustomers(c *gin.Context) {
	var req importCustomersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file path is required"})
		return
	}

	h.log.Info().
		Str("file", req.File).
		Int("chunk_size", req.ChunkSize).
		Msg("Starting customer import")

	parsed, err := mapper.LoadCSV(req.File)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, mapper.ErrNoRows) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "message": err.Error()})
		return
	}

	rows := make([]models.ImportRow, 0, len(parsed))
	for _, p := range parsed {
		rows = append(rows, p.Row)
	}

	report, err := h.services.Upsert.UpsertCustomers(c.Request.Context(), rows, req.ChunkSize)
	if err != nil {
		h.log.Error().Err(err).Msg("Customer import failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	h.log.Info().
		Int("total", len(rows)).
		Int("created", report.Summary.Created).
		Int("updated", report.Summary.Updated).
		Int("failed", report.Summary.Failed).
		Msg("Customer import completed")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Customer import completed",
		"total":   len(rows),
		"results": report.Results,
		"summary": report.Summary,
	})
}
