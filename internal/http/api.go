package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"blogd/internal/auth"
	"blogd/internal/domain"
	"blogd/internal/repository"
	"blogd/internal/service"
	"blogd/internal/storage"
)

const (
	genericResetAck = "If an account exists for this email, a password reset procedure has been generated."
	maxCoverBytes   = 10 << 20
	coverURLTTL     = 15 * time.Minute
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	posts     service.PostService
	users     service.UserService
	tokens    *auth.TokenManager
	storage   storage.Service
	bucket    string
	keyPrefix string
	debug     bool
	logger    *logrus.Logger
}

func NewHandler(
	posts service.PostService,
	users service.UserService,
	tokens *auth.TokenManager,
	store storage.Service,
	bucket, keyPrefix string,
	debug bool,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		posts:     posts,
		users:     users,
		tokens:    tokens,
		storage:   store,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		debug:     debug,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh", h.refresh)
		authGroup.POST("/password-reset/request", h.passwordResetRequest)
		authGroup.POST("/password-reset/confirm", h.passwordResetConfirm)
	}

	posts := router.Group("/posts")
	{
		posts.GET("", h.listPosts)
		posts.GET("/:id", h.getPost)

		protected := posts.Group("", h.requireAuth())
		protected.POST("", h.createPost)
		protected.PUT("/:id", h.updatePost)
		protected.PATCH("/:id", h.updatePost)
		protected.DELETE("/:id", h.deletePost)
		protected.POST("/:id/cover", h.uploadCover)
	}

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusAccepted, gin.H{"ok": "ok"})
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

const ctxKeyUserID = "auth_user_id"

// requireAuth accepts a Bearer access token and stores the caller's user id
// in the request context.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}

		claims, err := h.tokens.Parse(token, auth.TokenTypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired access token."})
			return
		}
		id, err := claims.UserID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired access token."})
			return
		}

		c.Set(ctxKeyUserID, id)
		c.Next()
	}
}

// authUserID returns the id stored by requireAuth, or 0 on open routes.
func authUserID(c *gin.Context) int64 {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

type registerRequest struct {
	Username        string `json:"username" binding:"required,max=150"`
	Email           string `json:"email" binding:"omitempty,email"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	user, access, refresh, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse(user, access, refresh))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	user, access, refresh, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse(user, access, refresh))
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	access, err := h.users.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired refresh token."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access": access})
}

type passwordResetRequestPayload struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) passwordResetRequest(c *gin.Context) {
	var req passwordResetRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	uid, token, err := h.users.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		h.renderError(c, err)
		return
	}

	// The acknowledgment is identical whether or not the email matched, so
	// the endpoint cannot be used for account enumeration.
	resp := gin.H{"detail": genericResetAck}
	if h.debug && uid != "" {
		resp["reset_uid"] = uid
		resp["reset_token"] = token
	}
	c.JSON(http.StatusOK, resp)
}

type passwordResetConfirmPayload struct {
	UID                string `json:"uid" binding:"required"`
	Token              string `json:"token" binding:"required"`
	NewPassword        string `json:"new_password" binding:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" binding:"required"`
}

func (h *Handler) passwordResetConfirm(c *gin.Context) {
	var req passwordResetConfirmPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	err := h.users.ConfirmPasswordReset(c.Request.Context(), service.ResetConfirmInput{
		UID:                req.UID,
		Token:              req.Token,
		NewPassword:        req.NewPassword,
		NewPasswordConfirm: req.NewPasswordConfirm,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "Password has been reset successfully."})
}

type createPostRequest struct {
	Title      string            `json:"title" binding:"required,max=200"`
	Content    string            `json:"content"`
	CoverImage string            `json:"cover_image"`
	Status     domain.PostStatus `json:"status"`
}

func (h *Handler) createPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), service.CreatePostInput{
		Title:      req.Title,
		Content:    req.Content,
		CoverImage: req.CoverImage,
		Status:     req.Status,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.logger.Infof("user %d created post %d", authUserID(c), post.ID)
	c.JSON(http.StatusCreated, h.postResponse(c.Request.Context(), *post))
}

func (h *Handler) listPosts(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}

	resp := make([]PostResponse, len(posts))
	for i := range posts {
		resp[i] = h.postResponse(c.Request.Context(), posts[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getPost(c *gin.Context) {
	id, ok := parsePostID(c)
	if !ok {
		return
	}

	post, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.postResponse(c.Request.Context(), *post))
}

type updatePostRequest struct {
	Title      *string            `json:"title"`
	Content    *string            `json:"content"`
	CoverImage *string            `json:"cover_image"`
	Status     *domain.PostStatus `json:"status"`
}

func (h *Handler) updatePost(c *gin.Context) {
	id, ok := parsePostID(c)
	if !ok {
		return
	}

	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	post, err := h.posts.Update(c.Request.Context(), id, service.UpdatePostInput{
		Title:      req.Title,
		Content:    req.Content,
		CoverImage: req.CoverImage,
		Status:     req.Status,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.postResponse(c.Request.Context(), *post))
}

func (h *Handler) deletePost(c *gin.Context) {
	id, ok := parsePostID(c)
	if !ok {
		return
	}

	post, err := h.posts.Delete(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.cleanupCover(c.Request.Context(), post)

	h.logger.Infof("user %d deleted post %d", authUserID(c), post.ID)
	c.JSON(http.StatusOK, gin.H{"deleted": post.ID})
}

// cleanupCover best-effort deletes the remote cover object of a removed post.
func (h *Handler) cleanupCover(ctx context.Context, post *domain.Post) {
	if h.storage == nil || post.CoverImage == "" {
		return
	}
	bucket, key, err := storage.ParseLocation(post.CoverImage)
	if err != nil {
		return // external URI, nothing to clean up
	}
	if h.bucket != "" && bucket != h.bucket {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := h.storage.DeleteObject(cleanupCtx, bucket, key); err != nil {
		h.logger.Warnf("delete cover object for post %d: %v", post.ID, err)
	}
}

func (h *Handler) uploadCover(c *gin.Context) {
	id, ok := parsePostID(c)
	if !ok {
		return
	}
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Object storage is not configured."})
		return
	}

	fileHeader, err := c.FormFile("cover_image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "A cover_image file is required."})
		return
	}
	if fileHeader.Size > maxCoverBytes {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Cover image is too large."})
		return
	}

	// 404 before uploading anything
	if _, err := h.posts.Get(c.Request.Context(), id); err != nil {
		h.renderError(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	defer file.Close()

	key := fmt.Sprintf("%s/%d/%s%s",
		strings.Trim(h.keyPrefix, "/"),
		id,
		uuid.NewString(),
		strings.ToLower(filepath.Ext(fileHeader.Filename)),
	)
	location, err := h.storage.UploadObject(
		c.Request.Context(),
		h.bucket,
		key,
		file,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	post, err := h.posts.SetCoverImage(c.Request.Context(), id, location)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.postResponse(c.Request.Context(), *post))
}

func parsePostID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid post id."})
		return 0, false
	}
	return id, true
}

// renderError maps service and repository errors onto the response contract.
func (h *Handler) renderError(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Validation failed.", "fields": ve.Fields})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials."})
	case errors.Is(err, service.ErrInvalidResetPayload):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid reset link payload."})
	case errors.Is(err, service.ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid or expired reset token."})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	default:
		h.logger.Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
	}
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AuthResponse struct {
	User    UserResponse `json:"user"`
	Refresh string       `json:"refresh"`
	Access  string       `json:"access"`
}

func authResponse(user *domain.User, access, refresh string) AuthResponse {
	return AuthResponse{
		User: UserResponse{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
		Refresh: refresh,
		Access:  access,
	}
}

type PostResponse struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	CoverImage string `json:"cover_image,omitempty"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// postResponse renders a post for the wire. Covers stored as s3:// locations
// are swapped for short-lived presigned URLs; external cover URLs and posts
// without storage configured pass through unchanged.
func (h *Handler) postResponse(ctx context.Context, post domain.Post) PostResponse {
	resp := PostResponse{
		ID:         post.ID,
		Title:      post.Title,
		Content:    post.Content,
		CoverImage: post.CoverImage,
		Status:     string(post.Status),
		CreatedAt:  post.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  post.UpdatedAt.Format(time.RFC3339),
	}

	if h.storage != nil && post.CoverImage != "" {
		if bucket, key, err := storage.ParseLocation(post.CoverImage); err == nil {
			url, err := h.storage.GetObjectURL(ctx, bucket, key, coverURLTTL)
			if err != nil {
				h.logger.Warnf("presign cover for post %d: %v", post.ID, err)
			} else {
				resp.CoverImage = url
			}
		}
	}
	return resp
}
