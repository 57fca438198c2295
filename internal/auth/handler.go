package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kivu-auth/kivu_auth/internal/autherr"
	"github.com/kivu-auth/kivu_auth/internal/provider"
)

// Handler exposes the auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs the auth HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	Code       string `json:"code"`
	Method     string `json:"method"`
	RememberMe bool   `json:"remember_me"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Enable2FA bool   `json:"enable_2fa"`
}

type resetRequest struct {
	Identifier string `json:"identifier"`
}

type setProviderRequest struct {
	Provider string `json:"provider"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt *int64       `json:"expires_at"`
	Token     string       `json:"token,omitempty"`
	Provider  string       `json:"provider,omitempty"`
}

func sessionBody(result provider.AuthResult, providerName string) sessionResponse {
	resp := sessionResponse{
		User:     userResponse(result.User),
		Token:    result.Token,
		Provider: providerName,
	}
	if result.ExpiresAt != nil {
		ms := result.ExpiresAt.UnixMilli()
		resp.ExpiresAt = &ms
	}
	return resp
}

// renderError writes the structured error envelope the clients expect.
func renderError(c *fiber.Ctx, err error) error {
	var ae *autherr.Error
	if !errors.As(err, &ae) {
		ae = autherr.Unexpected(err)
	}
	return c.Status(ae.Status).JSON(fiber.Map{
		"error":           ae,
		"status":          ae.Status,
		"friendlyMessage": ae.Friendly,
	})
}

// Login runs one login step. A completed login returns 200; a
// challenge returns 202 with the identifier the code was sent to.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	outcome, err := h.svc.Login(c.UserContext(), provider.Credentials{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Code:     req.Code,
		Method:   req.Method,
	}, provider.LoginOptions{RememberMe: req.RememberMe})
	if err != nil {
		return renderError(c, err)
	}
	if outcome.Challenge != nil {
		return c.Status(http.StatusAccepted).JSON(fiber.Map{
			"code":       "CHALLENGE_REQUIRED",
			"message":    "verification code sent via " + outcome.Challenge.Method,
			"identifier": outcome.Challenge.Identifier,
			"method":     outcome.Challenge.Method,
		})
	}
	return c.Status(http.StatusOK).JSON(sessionBody(*outcome.Result, h.svc.ActiveProvider()))
}

// Register creates a new account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.Register(c.UserContext(), provider.Registration{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		Phone:     req.Phone,
		Enable2FA: req.Enable2FA,
	})
	if err != nil {
		return renderError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(sessionBody(result, h.svc.ActiveProvider()))
}

// Logout clears the stored session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.svc.Logout(c.UserContext()); err != nil {
		return renderError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// PasswordReset records a reset request.
func (h *Handler) PasswordReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Identifier == "" {
		return fiber.NewError(http.StatusBadRequest, "identifier is required")
	}
	if err := h.svc.RequestPasswordReset(c.UserContext(), req.Identifier); err != nil {
		return renderError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "reset_requested"})
}

// Session returns the stored session when any provider holds a valid
// one, 204 otherwise.
func (h *Handler) Session(c *fiber.Ctx) error {
	result, providerName, err := h.svc.CheckAuth(c.UserContext())
	if err != nil {
		return renderError(c, err)
	}
	if result == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.Status(http.StatusOK).JSON(sessionBody(*result, providerName))
}

// Providers lists the registered providers and which is active.
func (h *Handler) Providers(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"providers": h.svc.Providers(),
		"active":    h.svc.ActiveProvider(),
	})
}

// SetProvider switches the active provider.
func (h *Handler) SetProvider(c *fiber.Ctx) error {
	var req setProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetActiveProvider(c.UserContext(), req.Provider); err != nil {
		return renderError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"active": req.Provider})
}
