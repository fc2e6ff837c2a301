package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"statement-reconciliation-backend/internal/services/importer"
	"statement-reconciliation-backend/internal/services/parsers"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ImportService interface {
	Preview(ctx context.Context, req importer.Request) (*importer.PreviewResult, error)
	Commit(ctx context.Context, req importer.Request) (*importer.CommitResult, error)
	ImportTypes() []parsers.Descriptor
}

type ImportHandler struct {
	service        ImportService
	maxUploadBytes int64
}

func NewImportHandler(s ImportService, maxUploadMB int64) *ImportHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &ImportHandler{service: s, maxUploadBytes: maxUploadMB << 20}
}

// ImportTypes lists the statement formats that can be uploaded.
func (h *ImportHandler) ImportTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.service.ImportTypes()})
}

func (h *ImportHandler) Preview(c *gin.Context) {
	req, ok := h.readUpload(c)
	if !ok {
		return
	}
	res, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ImportHandler) Commit(c *gin.Context) {
	req, ok := h.readUpload(c)
	if !ok {
		return
	}
	res, err := h.service.Commit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// readUpload reads the multipart form fields sourceId and file.
func (h *ImportHandler) readUpload(c *gin.Context) (importer.Request, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))
	if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return importer.Request{}, false
		}
		badRequest(c, "Ungültiger Upload")
		return importer.Request{}, false
	}

	sourceID, err := uuid.Parse(c.PostForm("sourceId"))
	if err != nil {
		badRequest(c, "sourceId fehlt oder ist ungültig")
		return importer.Request{}, false
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "Keine Datei hochgeladen")
		return importer.Request{}, false
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		h.tooLarge(c)
		return importer.Request{}, false
	}
	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "Datei konnte nicht gelesen werden")
		return importer.Request{}, false
	}

	return importer.Request{
		SourceID:    sourceID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		UserID:      actingUser(c),
	}, true
}

func (h *ImportHandler) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("Datei ist zu groß (maximal %d MB)", h.maxUploadBytes>>20),
	})
}
