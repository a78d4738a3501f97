package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codyseavey/cardvault/internal/auth"
	"github.com/codyseavey/cardvault/internal/metrics"
	"github.com/codyseavey/cardvault/internal/models"
)

// orderColumns are the columns a client may sort the cards list by
var orderColumns = map[string]bool{
	"created_at": true,
	"id":         true,
	"player":     true,
	"year":       true,
	"paid":       true,
	"value":      true,
}

type CardHandler struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewCardHandler(db *gorm.DB, logger *zap.SugaredLogger) *CardHandler {
	return &CardHandler{db: db, logger: logger}
}

// ListCards returns the caller's cards, sorted by ?order=column.asc|desc (default created_at.desc)
func (h *CardHandler) ListCards(c *gin.Context) {
	order, err := parseOrdering(c.DefaultQuery("order", models.OrderCreatedAtDesc.String()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	direction := "ASC"
	if order.Descending {
		direction = "DESC"
	}

	var cards []models.CardRecord
	err = h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", auth.CurrentUserID(c)).
		Order(order.Column + " " + direction).
		Find(&cards).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cards == nil {
		cards = []models.CardRecord{}
	}
	c.JSON(http.StatusOK, cards)
}

// CreateCard inserts one card for the caller and returns the stored row
func (h *CardHandler) CreateCard(c *gin.Context) {
	var card models.CardRecord
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card.Player = strings.TrimSpace(card.Player)
	if card.Player == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player is required"})
		return
	}
	if card.Status == "" {
		card.Status = models.StatusInCollection
	}
	if !card.Status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if card.Rarity == "" {
		card.Rarity = models.RarityCommon
	}
	if !card.Rarity.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rarity"})
		return
	}

	// The server owns identity and timestamps
	card.ID = uuid.New().String()
	card.OwnerID = auth.CurrentUserID(c)
	card.CreatedAt = time.Time{}
	card.Paid = models.FiniteAmount(card.Paid)
	card.Value = models.FiniteAmount(card.Value)
	card.AskingPrice = models.FiniteAmountPtr(card.AskingPrice)
	card.SoldPrice = models.FiniteAmountPtr(card.SoldPrice)
	if card.Year < 0 {
		card.Year = 0
	}
	card.EnforceStatusFields()

	if err := h.db.WithContext(c.Request.Context()).Create(&card).Error; err != nil {
		metrics.CardWritesTotal.WithLabelValues("insert", "error").Inc()
		h.logger.Errorw("insert card failed", "user_id", card.OwnerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.CardWritesTotal.WithLabelValues("insert", "ok").Inc()
	c.JSON(http.StatusCreated, card)
}

// DeleteCard removes a card only if it belongs to the caller
func (h *CardHandler) DeleteCard(c *gin.Context) {
	id := c.Param("id")

	result := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, auth.CurrentUserID(c)).
		Delete(&models.CardRecord{})
	if result.Error != nil {
		metrics.CardWritesTotal.WithLabelValues("delete", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		metrics.CardWritesTotal.WithLabelValues("delete", "not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}

	metrics.CardWritesTotal.WithLabelValues("delete", "ok").Inc()
	c.Status(http.StatusNoContent)
}

// parseOrdering reads "column" or "column.asc|desc"
func parseOrdering(raw string) (models.Ordering, error) {
	column, dir, _ := strings.Cut(strings.TrimSpace(raw), ".")
	if !orderColumns[column] {
		return models.Ordering{}, fmt.Errorf("unknown order column %q", column)
	}
	switch dir {
	case "", "asc":
		return models.Ordering{Column: column}, nil
	case "desc":
		return models.Ordering{Column: column, Descending: true}, nil
	default:
		return models.Ordering{}, fmt.Errorf("unknown order direction %q", dir)
	}
}
