package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"socialbox/account"
	"socialbox/middleware"
	"socialbox/models"
	"socialbox/utils"
)

type SignupRequest struct {
	FullName string `json:"fullName"`
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	EmailOrUserName string `json:"emailOrUserName" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

type OnboardRequest struct {
	UserName  string `json:"userName"`
	FullName  string `json:"fullName"`
	Bio       string `json:"bio"`
	BirthDate string `json:"birthDate"`
	Gender    string `json:"gender"`
	Location  string `json:"location"`
}

func (r OnboardRequest) input() account.OnboardInput {
	return account.OnboardInput{
		UserName:  r.UserName,
		FullName:  r.FullName,
		Bio:       r.Bio,
		BirthDate: r.BirthDate,
		Gender:    r.Gender,
		Location:  r.Location,
	}
}

func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.accounts.Signup(c.Request.Context(), account.SignupInput{
		FullName: req.FullName,
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		utils.Error(c, err)
		return
	}

	if !h.issueSession(c, user) {
		return
	}
	utils.Created(c, "User signed up successfully", gin.H{"user": user})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "All fields are required")
		return
	}

	user, err := h.accounts.Login(c.Request.Context(), account.LoginInput{
		EmailOrUserName: req.EmailOrUserName,
		Password:        req.Password,
	})
	if err != nil {
		utils.Error(c, err)
		return
	}

	if !h.issueSession(c, user) {
		return
	}
	utils.Success(c, "User logged in successfully", gin.H{"user": user})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	utils.Success(c, "User logged out successfully", nil)
}

func (h *Handler) Onboard(c *gin.Context) {
	var req OnboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.accounts.Onboard(c.Request.Context(), middleware.GetUserID(c), req.input())
	if err != nil {
		utils.Error(c, err)
		return
	}

	utils.Success(c, "User onboarded successfully", gin.H{"user": user})
}

func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.accounts.CurrentUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", gin.H{"user": user})
}

// issueSession sets the session cookie for user. It writes the error response
// itself and reports false when no token could be issued.
func (h *Handler) issueSession(c *gin.Context, user *models.User) bool {
	token, err := h.tokens.GenerateToken(user.ID)
	if err != nil {
		utils.Error(c, err)
		return false
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, token, int(h.tokens.TTL().Seconds()), "/", "", h.cookie.Secure, true)
	return true
}
