package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dgirardi/thawcast-go/internal/middleware"
	"github.com/dgirardi/thawcast-go/internal/models"
)

func newUserRouter(t *testing.T) (*gin.Engine, pgxmock.PgxPoolIface, *middleware.AuthMiddleware) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	auth := middleware.NewAuthMiddleware("test-secret-key-with-enough-length")
	h := NewUserHandler(mock, auth, bcrypt.MinCost, time.Hour, quietLogger())

	router := gin.New()
	router.POST("/users/register", h.RegisterUser)
	router.POST("/users/login", h.LoginUser)
	router.GET("/users/profile", auth.RequireAuth(), h.GetProfile)
	return router, mock, auth
}

func TestRegisterUser(t *testing.T) {
	router, mock, _ := newUserRouter(t)

	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("ops@example.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "ops@example.com", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	w := postJSON(t, router, "/users/register", gin.H{
		"email":    "ops@example.com",
		"password": "valid-password",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ops@example.com", resp.Email)
	assert.NotEmpty(t, resp.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterUserAlreadyExists(t *testing.T) {
	router, mock, _ := newUserRouter(t)

	rows := pgxmock.NewRows([]string{"id", "email", "password_hash", "created_at", "updated_at"}).
		AddRow("user-1", "ops@example.com", "hash", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("ops@example.com").
		WillReturnRows(rows)

	w := postJSON(t, router, "/users/register", gin.H{
		"email":    "ops@example.com",
		"password": "valid-password",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterUserShortPassword(t *testing.T) {
	router, _, _ := newUserRouter(t)

	w := postJSON(t, router, "/users/register", gin.H{
		"email":    "ops@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginUser(t *testing.T) {
	router, mock, auth := newUserRouter(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("valid-password"), bcrypt.MinCost)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "email", "password_hash", "created_at", "updated_at"}).
		AddRow("user-1", "ops@example.com", string(hash), time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("ops@example.com").
		WillReturnRows(rows)

	w := postJSON(t, router, "/users/login", gin.H{
		"email":    "ops@example.com",
		"password": "valid-password",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.User.ID)
	require.NotEmpty(t, resp.Token)

	claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginUserWrongPassword(t *testing.T) {
	router, mock, _ := newUserRouter(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("valid-password"), bcrypt.MinCost)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "email", "password_hash", "created_at", "updated_at"}).
		AddRow("user-1", "ops@example.com", string(hash), time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("ops@example.com").
		WillReturnRows(rows)

	w := postJSON(t, router, "/users/login", gin.H{
		"email":    "ops@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUserUnknownEmail(t *testing.T) {
	router, mock, _ := newUserRouter(t)

	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	w := postJSON(t, router, "/users/login", gin.H{
		"email":    "nobody@example.com",
		"password": "valid-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetProfile(t *testing.T) {
	router, mock, auth := newUserRouter(t)

	token, err := auth.GenerateToken("user-1", "ops@example.com", time.Hour)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "email", "created_at"}).
		AddRow("user-1", "ops@example.com", time.Now())
	mock.ExpectQuery("SELECT id, email, created_at").
		WithArgs("user-1").
		WillReturnRows(rows)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileWithoutToken(t *testing.T) {
	router, _, _ := newUserRouter(t)

	w := getPath(t, router, "/users/profile")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
