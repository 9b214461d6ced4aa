// Package service реализует бизнес-логику сервиса бэк-офиса.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/backoffice-system/internal/model"
	"github.com/mmeshcher/backoffice-system/internal/password"
	"github.com/mmeshcher/backoffice-system/internal/repository"
)

// ErrInvalidCredentials объединяет неверные учётные данные и неактивную
// учётную запись: наружу причина отказа не различается.
var (
	ErrInvalidCredentials = errors.New("invalid credentials or inactive account")
	// ErrMissingFields возвращается при пустых обязательных полях.
	ErrMissingFields = errors.New("required fields are empty")
	// ErrPasswordTooShort возвращается, если пароль короче восьми символов.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrTokenWrongPurpose возвращается при токене с чужим назначением.
	ErrTokenWrongPurpose = errors.New("invalid token purpose")
	// ErrTokenExpired возвращается по истечении срока действия токена.
	ErrTokenExpired = errors.New("token has expired")
	// ErrInvalidRole возвращается при попытке назначить неизвестную роль.
	ErrInvalidRole = errors.New("invalid role")
	// ErrMailDelivery возвращается, если письмо с токеном не удалось отправить.
	ErrMailDelivery = errors.New("failed to send token email")
)

// ResetRequestMessage — единый ответ на запрос смены пароля.
// Не раскрывает, существует ли учётная запись.
const ResetRequestMessage = "If the account is registered and active, a confirmation token has been sent."

const (
	minPasswordLen = 8
	tokenTTL       = 15 * time.Minute
	tokenBytes     = 24
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateAccount(ctx context.Context, a *model.Account) (int64, error)
	GetAccountByLogin(ctx context.Context, login string) (*model.Account, error)
	UpdatePassword(ctx context.Context, accountID int64, hash, salt []byte) error
	SetAccountActive(ctx context.Context, accountID int64, active bool) error
	UpdateAccountRole(ctx context.Context, accountID int64, role model.Role) error
	DeleteAccount(ctx context.Context, accountID int64) error
	ListAccounts(ctx context.Context) ([]model.Account, error)
	CreateToken(ctx context.Context, accountID int64, token, purpose string, expiresAt time.Time) error
	GetToken(ctx context.Context, token string) (*model.PasswordToken, error)
	ConsumeTokenAndSetPassword(ctx context.Context, tokenID, accountID int64, hash, salt []byte) error
	GetInvoiceReceipt(ctx context.Context, invoiceNo string) (string, bool, error)
	SaveInvoice(ctx context.Context, inv *model.Invoice, items []model.InvoiceItem) (int64, error)
	NextSequence(ctx context.Context, name string) (int64, error)
	AppendAudit(ctx context.Context, e *model.AuditEntry) error
	ListAudit(ctx context.Context, actionFilter string, limit int) ([]model.AuditEntry, error)
}

// Mailer описывает контракт доставки почты.
type Mailer interface {
	Send(to, subject, body string) error
}

// AddressResolver определяет внешний адрес для журнала аудита.
type AddressResolver interface {
	Lookup(ctx context.Context) string
}

// Options содержит параметры сервиса, приходящие из конфигурации.
type Options struct {
	AppName    string
	AppBaseURL string
	DocPrefix  string
	DocPad     int
}

// Service содержит бизнес-логику сервиса бэк-офиса.
type Service struct {
	repo     Repository
	mailer   Mailer
	resolver AddressResolver
	opts     Options
}

// NewService создаёт новый сервис. Mailer и resolver могут быть nil:
// отправка почты тогда сообщает об ошибке, а адрес остаётся неизвестным.
func NewService(repo Repository, mailer Mailer, resolver AddressResolver, opts Options) *Service {
	if opts.DocPrefix == "" {
		opts.DocPrefix = "INV"
	}
	if opts.DocPad == 0 {
		opts.DocPad = 4
	}
	return &Service{
		repo:     repo,
		mailer:   mailer,
		resolver: resolver,
		opts:     opts,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func projection(a *model.Account) *model.AccountInfo {
	return &model.AccountInfo{
		ID:       a.ID,
		Email:    a.Email,
		Username: a.Username,
		Role:     a.Role,
	}
}

// Login проверяет учётные данные и возвращает проекцию учётной записи.
// Неверный пароль и неактивная учётная запись дают один и тот же отказ.
// Унаследованные нехешированные пароли при успешном входе сразу
// заменяются на солёный хеш.
func (s *Service) Login(ctx context.Context, login, pass string) (*model.AccountInfo, error) {
	if login == "" || pass == "" {
		return nil, ErrInvalidCredentials
	}

	a, err := s.repo.GetAccountByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !a.IsActive {
		return nil, ErrInvalidCredentials
	}

	if password.IsLegacySalt(a.Salt) {
		if len(a.PasswordHash) == 0 || !password.Equal(a.PasswordHash, []byte(pass)) {
			return nil, ErrInvalidCredentials
		}
		salt, err := password.NewSalt()
		if err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		if err := s.repo.UpdatePassword(ctx, a.ID, password.Hash(pass, salt), salt); err != nil {
			return nil, fmt.Errorf("upgrade legacy credential: %w", err)
		}
		return projection(a), nil
	}

	if len(a.PasswordHash) == 0 {
		return nil, ErrInvalidCredentials
	}

	if !password.Equal(a.PasswordHash, password.Hash(pass, a.Salt)) {
		return nil, ErrInvalidCredentials
	}

	return projection(a), nil
}

// Register создаёт новую неактивную учётную запись с ролью User.
// Активацию выполняет администратор отдельным действием.
func (s *Service) Register(ctx context.Context, email, username, pass string) (int64, error) {
	if email == "" || username == "" || pass == "" {
		return 0, ErrMissingFields
	}
	if len(pass) < minPasswordLen {
		return 0, ErrPasswordTooShort
	}

	salt, err := password.NewSalt()
	if err != nil {
		return 0, fmt.Errorf("generate salt: %w", err)
	}

	a := &model.Account{
		Email:        email,
		Username:     username,
		PasswordHash: password.Hash(pass, salt),
		Salt:         salt,
		Role:         model.RoleUser,
		IsActive:     false,
	}

	id, err := s.repo.CreateAccount(ctx, a)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func newTokenString() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RequestPasswordReset выдаёт токен смены пароля и отправляет его на
// зарегистрированный адрес. Ответное сообщение одинаково независимо от
// того, нашлась ли учётная запись; ранее выданные токены остаются в силе.
func (s *Service) RequestPasswordReset(ctx context.Context, login string) (string, error) {
	a, err := s.repo.GetAccountByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ResetRequestMessage, nil
		}
		return "", err
	}
	if !a.IsActive {
		return ResetRequestMessage, nil
	}

	token, err := newTokenString()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	if err := s.repo.CreateToken(ctx, a.ID, token, model.TokenPurposePasswordChange, time.Now().Add(tokenTTL)); err != nil {
		return "", err
	}

	if s.mailer == nil {
		return "", fmt.Errorf("%w: mailer not configured", ErrMailDelivery)
	}

	subject := fmt.Sprintf("[%s] Confirm password change", s.opts.AppName)
	if err := s.mailer.Send(a.Email, subject, s.resetMailBody(a.Email, token)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	return ResetRequestMessage, nil
}

func (s *Service) resetMailBody(email, token string) string {
	lines := []string{
		"Hello,",
		"",
		fmt.Sprintf("We received a request to change the password for your %s account (%s).", s.opts.AppName, email),
		"",
		"Your confirmation token is:",
		"",
		"    " + token,
		"",
		"This token will expire in 15 minutes.",
	}
	if s.opts.AppBaseURL != "" {
		link := strings.TrimRight(s.opts.AppBaseURL, "/") + "/change-password?token=" + token
		lines = append(lines, "", "Alternatively, click the link below to proceed:", link)
	}
	lines = append(lines, "", "If you did not request this change, you can safely ignore this email.")
	return strings.Join(lines, "\n")
}

// ConfirmPasswordReset погашает токен и устанавливает новый пароль.
// Пометка токена использованным и запись пароля атомарны.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < minPasswordLen {
		return ErrPasswordTooShort
	}

	t, err := s.repo.GetToken(ctx, token)
	if err != nil {
		return err
	}

	if t.Purpose != model.TokenPurposePasswordChange {
		return ErrTokenWrongPurpose
	}
	if t.UsedAt != nil {
		return repository.ErrTokenUsed
	}
	// Срок действия истекает строго после expires_at: погашение ровно
	// в момент истечения ещё проходит.
	if time.Now().After(t.ExpiresAt) {
		return ErrTokenExpired
	}

	salt, err := password.NewSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	return s.repo.ConsumeTokenAndSetPassword(ctx, t.ID, t.AccountID, password.Hash(newPassword, salt), salt)
}

// SetPassword меняет пароль аутентифицированной учётной записи.
func (s *Service) SetPassword(ctx context.Context, accountID int64, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrPasswordTooShort
	}

	salt, err := password.NewSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	return s.repo.UpdatePassword(ctx, accountID, password.Hash(newPassword, salt), salt)
}

// ListAccounts возвращает учётные записи для административного раздела.
func (s *Service) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.repo.ListAccounts(ctx)
}

// SetAccountActive активирует или деактивирует учётную запись.
func (s *Service) SetAccountActive(ctx context.Context, accountID int64, active bool) error {
	return s.repo.SetAccountActive(ctx, accountID, active)
}

// UpdateAccountRole назначает учётной записи роль из фиксированного набора.
func (s *Service) UpdateAccountRole(ctx context.Context, accountID int64, role model.Role) error {
	if !model.ValidRole(role) {
		return ErrInvalidRole
	}
	return s.repo.UpdateAccountRole(ctx, accountID, role)
}

// DeleteAccount удаляет учётную запись по явному административному действию.
func (s *Service) DeleteAccount(ctx context.Context, accountID int64) error {
	return s.repo.DeleteAccount(ctx, accountID)
}

// ListAudit возвращает последние записи журнала аудита.
func (s *Service) ListAudit(ctx context.Context, actionFilter string, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 || limit > 2000 {
		limit = 2000
	}
	return s.repo.ListAudit(ctx, actionFilter, limit)
}
