// Package handler содержит HTTP-обработчики API сервиса бэк-офиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/backoffice-system/internal/middleware"
	"github.com/mmeshcher/backoffice-system/internal/model"
	"github.com/mmeshcher/backoffice-system/internal/repository"
	"github.com/mmeshcher/backoffice-system/internal/service"
)

// Число проблемных групп, возвращаемых в одном ответе импорта.
const maxReportedIssues = 100

const maxImportMemory = 32 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, email, username, password string) (int64, error)
	Login(ctx context.Context, login, password string) (*model.AccountInfo, error)
	RequestPasswordReset(ctx context.Context, login string) (string, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	SetPassword(ctx context.Context, accountID int64, newPassword string) error
	ImportOrders(ctx context.Context, data io.Reader, actor string, combineItems bool) (*model.ImportSummary, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	SetAccountActive(ctx context.Context, accountID int64, active bool) error
	UpdateAccountRole(ctx context.Context, accountID int64, role model.Role) error
	DeleteAccount(ctx context.Context, accountID int64) error
	ListAudit(ctx context.Context, actionFilter string, limit int) ([]model.AuditEntry, error)
}

// Handler реализует HTTP-обработчики API сервиса бэк-офиса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type registerRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Register обрабатывает регистрацию новой учётной записи.
// Учётная запись создаётся неактивной и ждёт одобрения администратора.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Password != req.PasswordConfirm {
		http.Error(w, "passwords do not match", http.StatusBadRequest)
		return
	}

	_, err := h.service.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, service.ErrMissingFields), errors.Is(err, service.ErrPasswordTooShort):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("register account error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Registration accepted, awaiting approval."})
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	info, err := h.service.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, info.ID, info.Role)
	writeJSON(w, http.StatusOK, info)
}

// Logout сбрасывает cookie сессии.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type resetRequest struct {
	Login string `json:"login"`
}

// RequestPasswordReset выдаёт одноразовый токен смены пароля по почте.
// Ответ не раскрывает, существует ли учётная запись.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	msg, err := h.service.RequestPasswordReset(r.Context(), req.Login)
	if err != nil {
		if errors.Is(err, service.ErrMailDelivery) {
			h.logger.Error("reset mail delivery error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}
		h.logger.Error("password reset request error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

type confirmRequest struct {
	Token              string `json:"token"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

// ConfirmPasswordReset меняет пароль по одноразовому токену.
// Причина отказа возвращается в теле ответа.
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.NewPassword != req.NewPasswordConfirm {
		http.Error(w, "passwords do not match", http.StatusBadRequest)
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields),
			errors.Is(err, service.ErrPasswordTooShort),
			errors.Is(err, service.ErrTokenWrongPurpose),
			errors.Is(err, service.ErrTokenExpired),
			errors.Is(err, repository.ErrTokenNotFound),
			errors.Is(err, repository.ErrTokenUsed):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("password reset confirm error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated."})
}

type changePasswordRequest struct {
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

// ChangePassword меняет пароль текущей учётной записи.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.NewPassword != req.NewPasswordConfirm {
		http.Error(w, "passwords do not match", http.StatusBadRequest)
		return
	}

	if err := h.service.SetPassword(r.Context(), session.AccountID, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrPasswordTooShort) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("change password error", zap.Error(err), zap.Int64("accountID", session.AccountID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated."})
}

// ImportOrders принимает CSV-файл с заказами и запускает сверку.
func (h *Handler) ImportOrders(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	// Слияние одинаковых позиций включено по умолчанию.
	combine := true
	if v := r.URL.Query().Get("combine"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid combine parameter", http.StatusBadRequest)
			return
		}
		combine = parsed
	}

	if err := r.ParseMultipartForm(maxImportMemory); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	actor := strconv.FormatInt(session.AccountID, 10)

	summary, err := h.service.ImportOrders(r.Context(), file, actor, combine)
	if err != nil {
		h.logger.Error("import orders error", zap.Error(err), zap.Int64("accountID", session.AccountID))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(summary.Issues) > maxReportedIssues {
		summary.Issues = summary.Issues[:maxReportedIssues]
	}

	writeJSON(w, http.StatusOK, summary)
}

type accountResponse struct {
	ID       int64      `json:"id"`
	Email    string     `json:"email"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	IsActive bool       `json:"is_active"`
}

// ListAccounts возвращает список учётных записей без учётных данных.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.logger.Error("list accounts error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, accountResponse{
			ID:       a.ID,
			Email:    a.Email,
			Username: a.Username,
			Role:     a.Role,
			IsActive: a.IsActive,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func accountIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) setAccountActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := accountIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetAccountActive(r.Context(), id, active); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("set account active error", zap.Error(err), zap.Int64("accountID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ActivateAccount одобряет учётную запись: вход становится возможным.
func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountActive(w, r, true)
}

// DeactivateAccount блокирует учётную запись.
func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountActive(w, r, false)
}

type roleRequest struct {
	Role model.Role `json:"role"`
}

// UpdateAccountRole назначает учётной записи новую роль.
func (h *Handler) UpdateAccountRole(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateAccountRole(r.Context(), id, req.Role); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRole):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrAccountNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("update role error", zap.Error(err), zap.Int64("accountID", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteAccount удаляет учётную запись.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete account error", zap.Error(err), zap.Int64("accountID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetAudit возвращает последние записи журнала импорта.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.service.ListAudit(r.Context(), r.URL.Query().Get("action"), limit)
	if err != nil {
		h.logger.Error("list audit error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
