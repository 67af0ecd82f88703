package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"picstash/internal/auth"
	"picstash/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth           service.AuthService
	media          service.MediaService
	tokens         *auth.TokenCodec
	tokenHeader    string
	invalidStatus  int
	maxUploadBytes int64
	logger         *logrus.Logger
}

// Options collects the request-surface knobs that vary by deployment.
type Options struct {
	TokenHeader        string
	InvalidTokenStatus int
	MaxUploadBytes     int64
}

func NewHandler(authSvc service.AuthService, media service.MediaService, tokens *auth.TokenCodec, opts Options, logger *logrus.Logger) *Handler {
	if opts.TokenHeader == "" {
		opts.TokenHeader = "x-auth-token"
	}
	if opts.InvalidTokenStatus == 0 {
		opts.InvalidTokenStatus = http.StatusBadRequest
	}
	return &Handler{
		auth:           authSvc,
		media:          media,
		tokens:         tokens,
		tokenHeader:    opts.TokenHeader,
		invalidStatus:  opts.InvalidTokenStatus,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(requestLogMiddleware(h.logger))

	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware(h.tokens, h.tokenHeader, h.invalidStatus))
	{
		protected.GET("/protected", h.protected)
		protected.POST("/post", h.uploadImage)
		protected.GET("/gallery", h.gallery)
		protected.DELETE("/gallery/:id", h.deleteImage)
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type postResponse struct {
	ID          int64  `json:"id"`
	ImageName   string `json:"image_name"`
	Description string `json:"description"`
	AuthorID    int64  `json:"author_id"`
	CreatedAt   string `json:"created_at"`
	ImageURL    string `json:"image_url,omitempty"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Username already taken"})
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password are required"})
		default:
			h.logger.WithError(err).Error("registration failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Registration failed"})
		}
		return
	}

	h.logger.WithField("username", user.Username).Info("user registered")
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			// Unknown user and wrong password answer identically.
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		h.logger.WithError(err).Error("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	h.logger.WithField("username", req.Username).Info("user logged in")
	c.JSON(http.StatusOK, gin.H{"message": "ok", "token": token})
}

func (h *Handler) protected(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	user, err := h.auth.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("load authenticated user")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok", "user_id": userID, "username": user.Username})
}

func (h *Handler) uploadImage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Image exceeds the upload size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "Image file is required"})
		return
	}
	description := c.PostForm("description")

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.WithError(err).Error("open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	image, err := h.media.Upload(c.Request.Context(), userID, file, fileHeader.Size, contentType, description)
	if err != nil {
		h.logger.WithError(err).Error("image upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "ok",
		"post": postResponse{
			ID:          image.ID,
			ImageName:   image.ObjectKey,
			Description: image.Description,
			AuthorID:    image.AuthorID,
			CreatedAt:   image.CreatedAt.Format(time.RFC3339),
		},
	})
}

func (h *Handler) gallery(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	entries, err := h.media.Gallery(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("gallery listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	posts := make([]postResponse, len(entries))
	for i, entry := range entries {
		posts[i] = postResponse{
			ID:          entry.Image.ID,
			ImageName:   entry.Image.ObjectKey,
			Description: entry.Image.Description,
			AuthorID:    entry.Image.AuthorID,
			CreatedAt:   entry.Image.CreatedAt.Format(time.RFC3339),
			ImageURL:    entry.ImageURL,
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok", "posts": posts})
}

func (h *Handler) deleteImage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid image id"})
		return
	}

	if err := h.media.Delete(c.Request.Context(), userID, id); err != nil {
		switch {
		case errors.Is(err, service.ErrImageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Image not found"})
		case errors.Is(err, service.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
		default:
			h.logger.WithError(err).Error("image delete failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok", "deleted": id})
}
