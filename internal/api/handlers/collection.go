package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/codyseavey/cardvault/internal/auth"
	"github.com/codyseavey/cardvault/internal/collection"
	"github.com/codyseavey/cardvault/internal/models"
	"github.com/codyseavey/cardvault/internal/services"
)

// topPlayersShown is how many players the stats endpoint ranks
const topPlayersShown = 5

type CollectionHandler struct {
	db              *gorm.DB
	snapshotService *services.SnapshotService
}

func NewCollectionHandler(db *gorm.DB, snapshot *services.SnapshotService) *CollectionHandler {
	return &CollectionHandler{db: db, snapshotService: snapshot}
}

func (h *CollectionHandler) GetStats(c *gin.Context) {
	var cards []models.CardRecord
	if err := h.db.WithContext(c.Request.Context()).Where("user_id = ?", auth.CurrentUserID(c)).Find(&cards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.CollectionStats{
		Totals:     collection.ComputeTotals(cards),
		TopPlayers: collection.TopPlayersByValue(cards, topPlayersShown),
	})
}

func (h *CollectionHandler) GetValueHistory(c *gin.Context) {
	period := c.DefaultQuery("period", "month")
	switch period {
	case "week", "month", "3month", "year", "all":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be one of week, month, 3month, year, all"})
		return
	}

	snapshots, err := h.snapshotService.GetHistory(c.Request.Context(), auth.CurrentUserID(c), period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snapshots == nil {
		snapshots = []models.CollectionValueSnapshot{}
	}

	c.JSON(http.StatusOK, models.ValueHistoryResponse{
		Snapshots: snapshots,
		Period:    period,
	})
}

// TakeSnapshot records today's snapshot for the caller right away
func (h *CollectionHandler) TakeSnapshot(c *gin.Context) {
	owner := auth.CurrentUserID(c)
	if err := h.snapshotService.SnapshotOwner(c.Request.Context(), owner, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.snapshotService.GetLastSnapshot(c.Request.Context(), owner))
}
