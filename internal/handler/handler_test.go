package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/backoffice-system/internal/middleware"
	"github.com/mmeshcher/backoffice-system/internal/model"
	"github.com/mmeshcher/backoffice-system/internal/repository"
	"github.com/mmeshcher/backoffice-system/internal/service"
)

type stubService struct {
	registerID  int64
	registerErr error

	loginInfo *model.AccountInfo
	loginErr  error

	resetMsg string
	resetErr error

	confirmErr error

	setPasswordErr error
	setPasswordID  int64

	importSummary *model.ImportSummary
	importErr     error
	importActor   string
	importCombine bool

	accounts    []model.Account
	accountsErr error

	roleErr   error
	activeErr error
	deleteErr error

	auditEntries []model.AuditEntry
	auditErr     error
}

func (s *stubService) Register(ctx context.Context, email, username, password string) (int64, error) {
	return s.registerID, s.registerErr
}

func (s *stubService) Login(ctx context.Context, login, password string) (*model.AccountInfo, error) {
	return s.loginInfo, s.loginErr
}

func (s *stubService) RequestPasswordReset(ctx context.Context, login string) (string, error) {
	return s.resetMsg, s.resetErr
}

func (s *stubService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return s.confirmErr
}

func (s *stubService) SetPassword(ctx context.Context, accountID int64, newPassword string) error {
	s.setPasswordID = accountID
	return s.setPasswordErr
}

func (s *stubService) ImportOrders(ctx context.Context, data io.Reader, actor string, combineItems bool) (*model.ImportSummary, error) {
	s.importActor = actor
	s.importCombine = combineItems
	return s.importSummary, s.importErr
}

func (s *stubService) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.accounts, s.accountsErr
}

func (s *stubService) SetAccountActive(ctx context.Context, accountID int64, active bool) error {
	return s.activeErr
}

func (s *stubService) UpdateAccountRole(ctx context.Context, accountID int64, role model.Role) error {
	return s.roleErr
}

func (s *stubService) DeleteAccount(ctx context.Context, accountID int64) error {
	return s.deleteErr
}

func (s *stubService) ListAudit(ctx context.Context, actionFilter string, limit int) ([]model.AuditEntry, error) {
	return s.auditEntries, s.auditErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authCookie(t *testing.T, h *Handler, id int64, role model.Role) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, id, role)
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no auth cookie set")
	}
	return cookies[0]
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{registerID: 42}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Email:           "a@x.com",
		Username:        "a",
		Password:        "pw123456",
		PasswordConfirm: "pw123456",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestRegister_PasswordMismatch(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(registerRequest{
		Email:           "a@x.com",
		Username:        "a",
		Password:        "pw123456",
		PasswordConfirm: "different",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrAccountExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Email:           "a@x.com",
		Username:        "a",
		Password:        "pw123456",
		PasswordConfirm: "pw123456",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestLogin_SetsCookieAndReturnsProjection(t *testing.T) {
	svc := &stubService{loginInfo: &model.AccountInfo{
		ID:    7,
		Email: "a@x.com",
		Role:  model.RoleSales,
	}}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "a@x.com", Password: "pw123456"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("login must set a session cookie")
	}

	var info model.AccountInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info.ID != 7 || info.Role != model.RoleSales {
		t.Fatalf("unexpected projection: %+v", info)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{loginErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "a@x.com", Password: "bad"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRequestPasswordReset_GenericMessage(t *testing.T) {
	svc := &stubService{resetMsg: service.ResetRequestMessage}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(resetRequest{Login: "ghost@x.com"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/password/reset", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RequestPasswordReset(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp messageResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != service.ResetRequestMessage {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestRequestPasswordReset_MailFailure(t *testing.T) {
	svc := &stubService{resetErr: fmt.Errorf("relay: %w", service.ErrMailDelivery)}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(resetRequest{Login: "a@x.com"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/password/reset", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RequestPasswordReset(rec, req)

	if rec.Result().StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadGateway)
	}
}

func TestConfirmPasswordReset_ReasonInBody(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"expired", service.ErrTokenExpired},
		{"used", repository.ErrTokenUsed},
		{"not found", repository.ErrTokenNotFound},
		{"wrong purpose", service.ErrTokenWrongPurpose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{confirmErr: tt.err})

			body, _ := json.Marshal(confirmRequest{
				Token:              "tok",
				NewPassword:        "pw123456",
				NewPasswordConfirm: "pw123456",
			})

			req := httptest.NewRequest(http.MethodPost, "/api/user/password/confirm", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			h.ConfirmPasswordReset(rec, req)

			res := rec.Result()
			if res.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
			}

			respBody, _ := io.ReadAll(res.Body)
			if !strings.Contains(string(respBody), tt.err.Error()) {
				t.Fatalf("body %q does not contain reason %q", respBody, tt.err.Error())
			}
		})
	}
}

func TestChangePassword_UsesSessionAccount(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(changePasswordRequest{
		NewPassword:        "pw123456",
		NewPasswordConfirm: "pw123456",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/password", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, 9, model.RoleUser))

	rec := httptest.NewRecorder()
	h.authMiddleware.Middleware(http.HandlerFunc(h.ChangePassword)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
	if svc.setPasswordID != 9 {
		t.Fatalf("password changed for account %d, want 9", svc.setPasswordID)
	}
}

func multipartCSV(t *testing.T, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "orders.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestImportOrders_ReturnsSummary(t *testing.T) {
	svc := &stubService{importSummary: &model.ImportSummary{Imported: 2, Updated: 1}}
	h := newTestHandler(t, svc)

	body, contentType := multipartCSV(t, "Name,Total\n#1,5\n")

	req := httptest.NewRequest(http.MethodPost, "/api/orders/import", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(authCookie(t, h, 3, model.RoleUser))

	rec := httptest.NewRecorder()
	h.authMiddleware.Middleware(http.HandlerFunc(h.ImportOrders)).ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if !svc.importCombine {
		t.Fatalf("combine must default to true when the parameter is absent")
	}
	if svc.importActor != "3" {
		t.Fatalf("actor = %q, want session account id", svc.importActor)
	}

	var sum model.ImportSummary
	if err := json.NewDecoder(res.Body).Decode(&sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Imported != 2 || sum.Updated != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestImportOrders_IssuesCapped(t *testing.T) {
	summary := &model.ImportSummary{Skipped: 150}
	for i := 0; i < 150; i++ {
		summary.Issues = append(summary.Issues, model.ImportIssue{GroupKey: fmt.Sprintf("#%d", i), Reason: "invalid"})
	}
	svc := &stubService{importSummary: summary}
	h := newTestHandler(t, svc)

	body, contentType := multipartCSV(t, "Name,Total\n#1,5\n")

	req := httptest.NewRequest(http.MethodPost, "/api/orders/import", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(authCookie(t, h, 3, model.RoleUser))

	rec := httptest.NewRecorder()
	h.authMiddleware.Middleware(http.HandlerFunc(h.ImportOrders)).ServeHTTP(rec, req)

	var sum model.ImportSummary
	if err := json.NewDecoder(rec.Result().Body).Decode(&sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(sum.Issues) != maxReportedIssues {
		t.Fatalf("issues = %d, want capped at %d", len(sum.Issues), maxReportedIssues)
	}
	if sum.Skipped != 150 {
		t.Fatalf("skipped counter must not be capped, got %d", sum.Skipped)
	}
}

func TestImportOrders_CombineDisabledByQuery(t *testing.T) {
	svc := &stubService{importSummary: &model.ImportSummary{}}
	h := newTestHandler(t, svc)

	body, contentType := multipartCSV(t, "Name,Total\n#1,5\n")

	req := httptest.NewRequest(http.MethodPost, "/api/orders/import?combine=false", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(authCookie(t, h, 3, model.RoleUser))

	rec := httptest.NewRecorder()
	h.authMiddleware.Middleware(http.HandlerFunc(h.ImportOrders)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
	if svc.importCombine {
		t.Fatalf("combine=false must switch merging off")
	}
}

func TestImportOrders_MissingFile(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/orders/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(authCookie(t, h, 3, model.RoleUser))

	rec := httptest.NewRecorder()
	h.authMiddleware.Middleware(http.HandlerFunc(h.ImportOrders)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAdminRoutes_RoleGuard(t *testing.T) {
	svc := &stubService{accounts: []model.Account{{ID: 1, Email: "a@x.com", Role: model.RoleUser}}}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	tests := []struct {
		name       string
		role       model.Role
		wantStatus int
	}{
		{"user forbidden", model.RoleUser, http.StatusForbidden},
		{"sales forbidden", model.RoleSales, http.StatusForbidden},
		{"admin allowed", model.RoleAdmin, http.StatusOK},
		{"owner allowed", model.RoleOwner, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/accounts/", nil)
			req.AddCookie(authCookie(t, h, 1, tt.role))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestAdminRoutes_Unauthenticated(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestUpdateAccountRole_InvalidRoleRejected(t *testing.T) {
	svc := &stubService{roleErr: service.ErrInvalidRole}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(roleRequest{Role: "Superuser"})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/accounts/5/role", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, 1, model.RoleOwner))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}
