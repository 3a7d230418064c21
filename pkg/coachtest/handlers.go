package coachtest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mycyclecoach/walkthrough/pkg/auth"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"components": gin.H{
			"db":   gin.H{"status": "UP"},
			"ping": gin.H{"status": "UP"},
		},
	})
}

func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	user := &User{
		Email:         req.Email,
		PasswordHash:  hash,
		EmailVerified: !s.opts.requireVerification,
	}
	if err := s.store.CreateUser(user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			abortWithError(c, http.StatusBadRequest, "User with email "+req.Email+" already exists")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	c.Status(http.StatusCreated)
}

func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid email or password")
		return
	}
	if err := auth.CheckPassword(req.Password, user.PasswordHash); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid email or password")
		return
	}
	if !user.EmailVerified {
		abortWithError(c, http.StatusForbidden, "Email not verified. Please check your email for the verification link.")
		return
	}

	token, expiresIn, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken:  token,
		RefreshToken: uuid.NewString(),
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	})
}

func (s *Server) profile(c *gin.Context) {
	profile, err := s.store.GetProfile(c.GetInt64(userIDKey))
	if errors.Is(err, ErrNotFound) {
		abortWithError(c, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	c.JSON(http.StatusOK, profile.Response())
}

func (s *Server) generatePlan(c *gin.Context) {
	goal := c.DefaultQuery("goal", DefaultGoal)

	plan := newPlan(c.GetInt64(userIDKey), goal, time.Now())
	if err := s.store.CreatePlan(plan); err != nil {
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	c.JSON(http.StatusOK, plan)
}

func (s *Server) currentPlan(c *gin.Context) {
	plan, err := s.store.CurrentPlan(c.GetInt64(userIDKey))
	if errors.Is(err, ErrNotFound) {
		abortWithError(c, http.StatusNotFound, "No active training plan found")
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	c.JSON(http.StatusOK, plan)
}
