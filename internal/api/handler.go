package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/timschmidt/bugbot9000/internal/db"
	"github.com/timschmidt/bugbot9000/internal/models"
)

// Handler serves the mirror status API from the state store.
type Handler struct {
	store  db.Store
	logger *logrus.Logger
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewHandler(store db.Store, logger *logrus.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// ListCrates returns all state entries, optionally filtered by ?status=.
func (h *Handler) ListCrates(c *gin.Context) {
	status := models.SyncStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown status: " + string(status)})
		return
	}

	entries, err := h.store.ListEntries(c.Request.Context(), status)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list state entries")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list crates"})
		return
	}
	if entries == nil {
		entries = []*models.StateEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(entries),
		"crates": entries,
	})
}

// GetCrate returns the state entry for one crate.
func (h *Handler) GetCrate(c *gin.Context) {
	name := c.Param("name")

	entry, err := h.store.GetEntry(c.Request.Context(), name)
	if err != nil {
		h.logger.WithError(err).WithField("crate", name).Error("Failed to get state entry")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get crate"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "crate not found: " + name})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// GetSummary returns the per-status entry counts.
func (h *Handler) GetSummary(c *gin.Context) {
	counts, err := h.store.CountByStatus(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to count state entries")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to summarize crates"})
		return
	}

	c.JSON(http.StatusOK, counts)
}
