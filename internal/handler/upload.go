package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"creator_collab/internal/config"
	"creator_collab/internal/domain"
	"creator_collab/internal/hub"
	"creator_collab/internal/service"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

type FileHandler struct {
	router *hub.Router
	cfg    config.UploadConfig
	log    logger.Logger
}

func NewFileHandler(router *hub.Router, cfg config.UploadConfig, log logger.Logger) *FileHandler {
	return &FileHandler{
		router: router,
		cfg:    cfg,
		log:    log,
	}
}

// Upload accepts a multipart form with one "file" part or up to MaxFiles
// "files" parts. Each file becomes its own message. Files are processed in
// order and the first failure stops the batch.
func (h *FileHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, err)
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		respondError(c, apperrors.WithDetail(apperrors.ErrValidation, "no files provided"))
		return
	}
	if len(headers) > h.cfg.MaxFiles {
		respondError(c, apperrors.WithDetail(apperrors.ErrValidation, "at most %d files per upload", h.cfg.MaxFiles))
		return
	}

	opts := hub.UploadOptions{Caption: c.PostForm("caption")}
	if raw := c.PostForm("is_public"); raw != "" {
		isPublic, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, apperrors.WithDetail(apperrors.ErrValidation, "is_public must be a boolean"))
			return
		}
		opts.IsPublic = isPublic
	}

	who := identity(c)
	roomID := c.Param("roomId")
	files := make([]domain.RoomFile, 0, len(headers))
	messages := make([]domain.Message, 0, len(headers))
	for _, header := range headers {
		file, msg, err := h.uploadOne(c, who, roomID, header, opts)
		if err != nil {
			respondError(c, err)
			return
		}
		files = append(files, *file)
		if msg != nil {
			messages = append(messages, *msg)
		}
	}

	c.JSON(http.StatusCreated, gin.H{"files": files, "messages": messages})
}

func (h *FileHandler) uploadOne(c *gin.Context, who domain.Identity, roomID string, header *multipart.FileHeader, opts hub.UploadOptions) (*domain.RoomFile, *domain.Message, error) {
	body, err := header.Open()
	if err != nil {
		return nil, nil, apperrors.WithDetail(apperrors.ErrValidation, "unreadable file part %q", header.Filename)
	}
	defer body.Close()

	upload := service.FileUpload{
		OriginalName: header.Filename,
		DeclaredMIME: header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         body,
	}
	file, msg, err := h.router.UploadFile(c.Request.Context(), who, roomID, upload, opts)
	if err != nil {
		return nil, nil, err
	}

	h.log.Info("File uploaded", "room_id", roomID, "filename", file.Filename, "size", file.FileSize, "user_id", who.UserID)
	return file, msg, nil
}

func (h *FileHandler) List(c *gin.Context) {
	files, err := h.router.ListFiles(c.Request.Context(), identity(c), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.router.DeleteFile(c.Request.Context(), identity(c), c.Param("roomId"), c.Param("filename")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "File deleted"})
}
