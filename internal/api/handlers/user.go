package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/dgirardi/thawcast-go/internal/database"
	"github.com/dgirardi/thawcast-go/internal/middleware"
	"github.com/dgirardi/thawcast-go/internal/models"
)

// UserHandler serves registration, login and profile endpoints.
type UserHandler struct {
	db         database.PgxIface
	auth       *middleware.AuthMiddleware
	bcryptCost int
	jwtExpiry  time.Duration
	logger     *logrus.Logger
}

// NewUserHandler creates the handler.
func NewUserHandler(db database.PgxIface, auth *middleware.AuthMiddleware, bcryptCost int, jwtExpiry time.Duration, logger *logrus.Logger) *UserHandler {
	return &UserHandler{
		db:         db,
		auth:       auth,
		bcryptCost: bcryptCost,
		jwtExpiry:  jwtExpiry,
		logger:     logger,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User  models.UserResponse `json:"user"`
	Token string              `json:"token"`
}

func (h *UserHandler) userByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := h.db.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RegisterUser handles POST /api/v1/users/register.
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var req models.UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if _, err := h.userByEmail(c.Request.Context(), req.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		h.logger.WithError(err).Error("User lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check user existence"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	userID := uuid.New().String()
	_, err = h.db.Exec(c.Request.Context(),
		`INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW())`,
		userID, req.Email, string(hashedPassword),
	)
	if err != nil {
		h.logger.WithError(err).Error("User insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, models.UserResponse{
		ID:        userID,
		Email:     req.Email,
		CreatedAt: time.Now(),
	})
}

// LoginUser handles POST /api/v1/users/login.
func (h *UserHandler) LoginUser(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.userByEmail(c.Request.Context(), req.Email)
	if err != nil {
		// Same answer for unknown users and bad passwords.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Email, h.jwtExpiry)
	if err != nil {
		h.logger.WithError(err).Error("Token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		User: models.UserResponse{
			ID:        user.ID,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		},
		Token: token,
	})
}

// GetProfile handles GET /api/v1/users/profile.
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var user models.User
	err := h.db.QueryRow(c.Request.Context(),
		`SELECT id, email, created_at FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, models.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}
