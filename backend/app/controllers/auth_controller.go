package controllers

import (
	"net/http"

	"patchpilot/backend/app/dto"
	jwtutil "patchpilot/backend/app/jwt"
	"patchpilot/backend/app/services"
)

type AuthController struct {
	Users  *services.UserService
	Signer *jwtutil.Signer
}

func NewAuthController(users *services.UserService, signer *jwtutil.Signer) *AuthController {
	return &AuthController{Users: users, Signer: signer}
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	_ = decode(w, r, &req)
	if req.Username == "" || req.Password == "" {
		badRequest(w, "missing credentials")
		return
	}
	u, err := c.Users.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := c.Signer.Sign(u.ID, u.Username, u.Role)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "token error"})
		return
	}
	writeJSON(w, http.StatusOK, dto.TokenResponse{AccessToken: token})
}
