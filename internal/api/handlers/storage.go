package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codyseavey/cardvault/internal/auth"
	"github.com/codyseavey/cardvault/internal/metrics"
	"github.com/codyseavey/cardvault/internal/models"
	"github.com/codyseavey/cardvault/internal/storage"
)

type StorageHandler struct {
	store   storage.ObjectStore
	buckets map[string]bool
	logger  *zap.SugaredLogger
}

func NewStorageHandler(store storage.ObjectStore, logger *zap.SugaredLogger, buckets ...string) *StorageHandler {
	allowed := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		allowed[b] = true
	}
	return &StorageHandler{store: store, buckets: allowed, logger: logger}
}

// UploadObject stores a multipart "file" at bucket/path. Callers may only write under their own
// id prefix, only images are accepted, and existing objects are never replaced.
func (h *StorageHandler) UploadObject(c *gin.Context) {
	bucket := c.Param("bucket")
	if !h.buckets[bucket] {
		c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		return
	}
	key, err := storage.CleanKey(bucket, c.Param("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !strings.HasPrefix(key, auth.CurrentUserID(c)+"/") {
		metrics.ImageUploadsTotal.WithLabelValues(bucket, "rejected").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "objects must be stored under your own folder"})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if fh.Size > models.MaxImageUploadSize {
		metrics.ImageUploadsTotal.WithLabelValues(bucket, "rejected").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, models.MaxImageUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	if len(data) == 0 || len(data) > models.MaxImageUploadSize {
		metrics.ImageUploadsTotal.WithLabelValues(bucket, "rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be between 1 byte and 10MB"})
		return
	}

	contentType := mimetype.Detect(data).String()
	if !strings.HasPrefix(contentType, "image/") {
		metrics.ImageUploadsTotal.WithLabelValues(bucket, "rejected").Inc()
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only image uploads are allowed"})
		return
	}

	err = h.store.Put(c.Request.Context(), bucket, key, contentType, data)
	if errors.Is(err, storage.ErrObjectExists) {
		metrics.ImageUploadsTotal.WithLabelValues(bucket, "conflict").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": "object already exists"})
		return
	}
	if err != nil {
		metrics.ImageUploadsTotal.WithLabelValues(bucket, "error").Inc()
		h.logger.Errorw("object upload failed", "bucket", bucket, "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store object"})
		return
	}

	metrics.ImageUploadsTotal.WithLabelValues(bucket, "ok").Inc()
	metrics.ImageUploadBytes.Observe(float64(len(data)))
	c.JSON(http.StatusOK, gin.H{"Key": bucket + "/" + key})
}

// GetPublicObject serves an object without authentication
func (h *StorageHandler) GetPublicObject(c *gin.Context) {
	bucket := c.Param("bucket")
	if !h.buckets[bucket] {
		c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		return
	}
	obj, err := h.store.Get(c.Request.Context(), bucket, c.Param("path"))
	if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	if err != nil {
		h.logger.Errorw("object read failed", "bucket", bucket, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read object"})
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}
