package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/observability"
	"chat-gateway/internal/upload"
)

// multipart framing allowance on top of the file size limit
const multipartOverhead = 64 << 10

// UploadHandler accepts file attachments for chat messages.
type UploadHandler struct {
	uploader upload.Uploader
	maxSize  int64
}

func NewUploadHandler(uploader upload.Uploader, maxSize int64) *UploadHandler {
	if maxSize <= 0 {
		maxSize = upload.DefaultMaxFileSize
	}
	return &UploadHandler{uploader: uploader, maxSize: maxSize}
}

type fileResponse struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	SizeBytes    int64  `json:"sizeBytes"`
	URL          string `json:"url"`
}

// Upload stores the multipart field "file" and returns its attachment.
func (h *UploadHandler) Upload(c *gin.Context) {
	requestID := requestIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			h.reject(c, http.StatusRequestEntityTooLarge, "TooLarge", "file too large")
			return
		}
		h.reject(c, http.StatusBadRequest, "NoFile", "No file uploaded")
		return
	}
	defer file.Close()

	if header.Size > h.maxSize {
		h.reject(c, http.StatusRequestEntityTooLarge, "TooLarge", "file too large")
		return
	}

	res, err := h.uploader.Save(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	switch {
	case err == nil:
	case errors.Is(err, upload.ErrUnsupportedType):
		h.reject(c, http.StatusUnsupportedMediaType, "UnsupportedType", err.Error())
		return
	case errors.Is(err, upload.ErrTooLarge):
		h.reject(c, http.StatusRequestEntityTooLarge, "TooLarge", err.Error())
		return
	case errors.Is(err, upload.ErrEmptyFile):
		h.reject(c, http.StatusBadRequest, "NoFile", err.Error())
		return
	default:
		log.Printf("upload failed request_id=%s name=%q: %v", requestID, header.Filename, err)
		observability.IncUpload("error")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "File upload failed"})
		return
	}

	observability.IncUpload("ok")
	log.Printf("upload stored request_id=%s file=%s type=%s size=%d", requestID, res.Filename, res.Attachment.MimeType, res.Attachment.SizeBytes)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"file": fileResponse{
			Filename:     res.Filename,
			OriginalName: res.Attachment.OriginalName,
			MimeType:     res.Attachment.MimeType,
			SizeBytes:    res.Attachment.SizeBytes,
			URL:          res.Attachment.URL,
		},
	})
}

func (h *UploadHandler) reject(c *gin.Context, status int, code, message string) {
	observability.IncUpload(strings.ToLower(code))
	c.JSON(status, gin.H{"success": false, "error": code, "message": message})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
