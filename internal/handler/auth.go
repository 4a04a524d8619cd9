package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/config"
	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/repository"
	"github.com/iliyamo/karaoke-booking/internal/service"
	"github.com/iliyamo/karaoke-booking/internal/utils"
)

// qrAttempts bounds retries when a generated QR id is already taken.
const qrAttempts = 3

// AuthHandler bundles dependencies for DJ account endpoints.
type AuthHandler struct {
	Cfg    config.Config
	DJs    *repository.DJRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, djs *repository.DJRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, DJs: djs, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	FullName  string  `json:"full_name" validate:"required,notblank,max=100"`
	StageName string  `json:"stage_name" validate:"required,notblank,max=100"`
	Email     string  `json:"email" validate:"required,email,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type updateMeReq struct {
	FullName           *string `json:"full_name" validate:"omitempty,min=1,max=100"`
	StageName          *string `json:"stage_name" validate:"omitempty,min=1,max=100"`
	Phone              *string `json:"phone" validate:"omitempty,max=20"`
	MaxBookingsPerUser *int    `json:"max_bookings_per_user" validate:"omitempty,min=1,max=999"`
}

type passwordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type djPart struct {
	ID                 uint64  `json:"id"`
	FullName           string  `json:"full_name"`
	StageName          string  `json:"stage_name"`
	Email              string  `json:"email"`
	Phone              *string `json:"phone"`
	QRCodeID           string  `json:"qr_code_id"`
	MaxBookingsPerUser int     `json:"max_bookings_per_user"`
	UnlimitedBookings  bool    `json:"unlimited_bookings"`
}

type authResp struct {
	DJ      djPart    `json:"dj"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toDJPart(dj *model.DJ) djPart {
	return djPart{
		ID:                 dj.ID,
		FullName:           dj.FullName,
		StageName:          dj.StageName,
		Email:              dj.Email,
		Phone:              dj.Phone,
		QRCodeID:           dj.QRCodeID,
		MaxBookingsPerUser: dj.MaxBookingsPerUser,
		UnlimitedBookings:  service.CapFromSetting(dj.MaxBookingsPerUser).IsUnlimited(),
	}
}

// issue creates an access/refresh pair for dj and stores the refresh hash.
func (h *AuthHandler) issue(c echo.Context, dj *model.DJ, status int) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, dj.ID, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, dj.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}
	return c.JSON(status, authResp{
		DJ:      toDJPart(dj),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Register creates a DJ account with a fresh QR id and returns tokens.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	dj := &model.DJ{
		FullName:           strings.TrimSpace(req.FullName),
		StageName:          strings.TrimSpace(req.StageName),
		Email:              req.Email,
		Phone:              req.Phone,
		MaxBookingsPerUser: service.UnlimitedSetting,
	}
	var err error
	for i := 0; i < qrAttempts; i++ {
		dj.QRCodeID, err = utils.GenerateQRCodeID(dj.StageName, time.Now())
		if err != nil {
			break
		}
		if err = h.DJs.Create(ctx, dj, req.Password, h.Cfg.BcryptCost); !errors.Is(err, repository.ErrConflict) {
			break
		}
	}
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case err != nil:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create dj failed"})
	}
	return h.issue(c, dj, http.StatusCreated)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	dj, err := h.DJs.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(dj.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if utils.NeedsRehash(dj.PasswordHash, h.Cfg.BcryptCost) {
		if err := h.DJs.UpdatePassword(ctx, dj.ID, req.Password, h.Cfg.BcryptCost); err != nil {
			c.Logger().Warnf("rehash password for dj %d: %v", dj.ID, err)
		}
	}
	return h.issue(c, dj, http.StatusOK)
}

// validRefresh resolves the DJ owning the refresh token in the body.
func (h *AuthHandler) validRefresh(c echo.Context) (*model.DJ, string, error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return nil, "", badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	djID, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC())
	if err != nil {
		return nil, "", c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	dj, err := h.DJs.GetByID(ctx, djID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return nil, "", c.JSON(http.StatusInternalServerError, echo.Map{"error": "load dj failed"})
	}
	return dj, hash, nil
}

// Refresh rotates the refresh token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	dj, hash, err := h.validRefresh(c)
	if dj == nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke refresh failed"})
	}
	return h.issue(c, dj, http.StatusOK)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	dj, _, err := h.validRefresh(c)
	if dj == nil {
		return err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, dj.ID, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the refresh token in the body, or every refresh token of
// the DJ when only a bearer token is supplied.
func (h *AuthHandler) Logout(c echo.Context) error {
	var djID uint64
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		if id, _, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
			djID = id
		}
	}
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := requestCtx(c)
	defer cancel()

	switch {
	case refreshToken != "":
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC()); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	case djID != 0:
		if err := h.Tokens.RevokeAllForDJ(ctx, djID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	return badRequest(c, "provide Authorization header or refresh_token")
}

// Me returns the authenticated DJ's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	dj, err := h.DJs.GetByID(ctx, djID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "dj not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load dj failed"})
	}
	return c.JSON(http.StatusOK, toDJPart(dj))
}

// UpdateMe changes profile fields, including the per-session booking cap.
// A cap of 999 means unlimited.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req updateMeReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	dj, err := h.DJs.UpdateProfile(ctx, djID, repository.ProfileUpdate{
		FullName:           req.FullName,
		StageName:          req.StageName,
		Phone:              req.Phone,
		MaxBookingsPerUser: req.MaxBookingsPerUser,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "dj not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, toDJPart(dj))
}

// ChangePassword replaces the password and revokes every refresh token.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req passwordReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	dj, err := h.DJs.GetByID(ctx, djID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load dj failed"})
	}
	if !utils.VerifyPassword(dj.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := h.DJs.UpdatePassword(ctx, djID, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if err := h.Tokens.RevokeAllForDJ(ctx, djID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke tokens failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
