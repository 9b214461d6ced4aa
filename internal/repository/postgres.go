// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/backoffice-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrAccountExists возвращается при попытке создать учётную запись с уже занятым email или именем.
var (
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound возвращается, если учётная запись не найдена.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTokenNotFound возвращается, если токен не найден.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenUsed возвращается при попытке повторного использования токена.
	ErrTokenUsed = errors.New("token already used")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// CreateAccount создаёт новую учётную запись. Пустое имя пользователя хранится как NULL.
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *model.Account) (int64, error) {
	var username *string
	if a.Username != "" {
		username = &a.Username
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (email, username, password_hash, salt, role, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		a.Email, username, a.PasswordHash, a.Salt, string(a.Role), a.IsActive,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrAccountExists, a.Email)
		}
		return 0, fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

// GetAccountByLogin возвращает учётную запись по email или имени пользователя (точное совпадение).
func (r *PostgresRepository) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, salt, role, is_active, created_at
		 FROM accounts
		 WHERE email = $1 OR username = $1`,
		login,
	)

	var (
		a        model.Account
		username *string
		role     string
	)
	err := row.Scan(&a.ID, &a.Email, &username, &a.PasswordHash, &a.Salt, &role, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	if username != nil {
		a.Username = *username
	}
	a.Role = model.Role(role)

	return &a, nil
}

// UpdatePassword записывает новый хеш и соль учётной записи одним запросом.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, accountID int64, hash, salt []byte) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, salt = $3 WHERE id = $1`,
		accountID, hash, salt,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetAccountActive включает или выключает учётную запись.
func (r *PostgresRepository) SetAccountActive(ctx context.Context, accountID int64, active bool) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET is_active = $2 WHERE id = $1`,
		accountID, active,
	)
	if err != nil {
		return fmt.Errorf("set account active: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpdateAccountRole меняет роль учётной записи.
func (r *PostgresRepository) UpdateAccountRole(ctx context.Context, accountID int64, role model.Role) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET role = $2 WHERE id = $1`,
		accountID, string(role),
	)
	if err != nil {
		return fmt.Errorf("update account role: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccount удаляет учётную запись. Токены удаляются каскадно.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, accountID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM accounts WHERE id = $1`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListAccounts возвращает все учётные записи без учётных данных пароля.
func (r *PostgresRepository) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, username, role, is_active, created_at
		 FROM accounts
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var (
			a        model.Account
			username *string
			role     string
		)
		if err := rows.Scan(&a.ID, &a.Email, &username, &role, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if username != nil {
			a.Username = *username
		}
		a.Role = model.Role(role)
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return accounts, nil
}

// CreateToken сохраняет новый токен смены пароля. Ранее выданные токены не затрагиваются.
func (r *PostgresRepository) CreateToken(ctx context.Context, accountID int64, token, purpose string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO password_tokens (account_id, token, purpose, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		accountID, token, purpose, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

// GetToken возвращает токен по точному значению строки.
func (r *PostgresRepository) GetToken(ctx context.Context, token string) (*model.PasswordToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, account_id, token, purpose, expires_at, used_at, created_at
		 FROM password_tokens
		 WHERE token = $1`,
		token,
	)

	var t model.PasswordToken
	err := row.Scan(&t.ID, &t.AccountID, &t.Token, &t.Purpose, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}

	return &t, nil
}

// ConsumeTokenAndSetPassword помечает токен использованным и записывает
// новый хеш пароля владельца в одной транзакции: токен не может остаться
// потреблённым без смены пароля.
func (r *PostgresRepository) ConsumeTokenAndSetPassword(ctx context.Context, tokenID, accountID int64, hash, salt []byte) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE password_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`,
		tokenID,
	)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrTokenUsed
	}

	cmdTag, err = tx.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, salt = $3 WHERE id = $1`,
		accountID, hash, salt,
	)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetInvoiceReceipt возвращает номер документа существующего счёта.
// Второй результат сообщает, существует ли счёт с таким номером.
func (r *PostgresRepository) GetInvoiceReceipt(ctx context.Context, invoiceNo string) (string, bool, error) {
	var receipt string
	err := r.pool.QueryRow(ctx,
		`SELECT receipt_number FROM invoices WHERE invoice_no = $1`,
		invoiceNo,
	).Scan(&receipt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get invoice receipt: %w", err)
	}
	return receipt, true, nil
}

// SaveInvoice вставляет или обновляет заголовок счёта и целиком заменяет
// его позиции в одной транзакции.
func (r *PostgresRepository) SaveInvoice(ctx context.Context, inv *model.Invoice, items []model.InvoiceItem) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx, invoiceUpsertSQL, invoiceArgs(inv)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert invoice: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete invoice items: %w", err)
	}

	for _, it := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO invoice_items (invoice_id, line_no, product_code, product_name, unit, quantity, price, total_amount)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, it.LineNo, it.ProductCode, it.ProductName, it.Unit, it.Quantity, it.Price, it.TotalAmount,
		)
		if err != nil {
			return 0, fmt.Errorf("insert invoice item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// NextSequence атомарно увеличивает счётчик с указанным именем и
// возвращает новое значение. Значения строго монотонны и никогда не
// переиспользуются.
func (r *PostgresRepository) NextSequence(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sequences (name, value) VALUES ($1, 1)
		 ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		 RETURNING value`,
		name,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return value, nil
}

// AppendAudit добавляет запись в журнал аудита.
func (r *PostgresRepository) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_log (module, action, invoice_no, document_no, actor, public_ip, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)`,
		e.Module, e.Action, e.InvoiceNo, e.DocumentNo, e.Actor, e.PublicIP, e.Details,
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit возвращает последние записи журнала, опционально отфильтрованные
// по подстроке действия.
func (r *PostgresRepository) ListAudit(ctx context.Context, actionFilter string, limit int) ([]model.AuditEntry, error) {
	query := `SELECT id, ts, module, action, invoice_no, document_no, actor, public_ip, details::text
	          FROM audit_log`
	args := []any{}
	if actionFilter != "" {
		query += ` WHERE action ILIKE '%' || $1 || '%'`
		args = append(args, actionFilter)
	}
	query += fmt.Sprintf(` ORDER BY ts DESC, id DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select audit: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.Module, &e.Action, &e.InvoiceNo, &e.DocumentNo, &e.Actor, &e.PublicIP, &e.Details); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

// invoiceColumns перечисляет колонки заголовка счёта в порядке,
// разделяемом invoiceArgs и invoiceUpsertSQL.
var invoiceColumns = []string{
	"invoice_no", "invoice_date", "customer", "email",
	"financial_status", "fulfillment_status",
	"paid_at", "fulfilled_at", "cancelled_at", "accepts_marketing",
	"vendor", "currency",
	"subtotal", "discount_code", "discount_amount", "shipping_cost",
	"taxes", "total", "refunded_amount", "outstanding_balance", "duties",
	"shipping_method", "payment_method",
	"payment_id", "payment_reference", "payment_terms_name", "next_payment_due_at",
	"billing_name", "billing_street", "billing_address1", "billing_address2",
	"billing_company", "billing_city", "billing_zip", "billing_province",
	"billing_province_name", "billing_country", "billing_phone",
	"shipping_name", "shipping_street", "shipping_address1", "shipping_address2",
	"shipping_company", "shipping_city", "shipping_zip", "shipping_province",
	"shipping_province_name", "shipping_country", "shipping_phone",
	"notes", "employee", "location", "device_id", "risk_level",
	"source", "tags", "receipt_number",
}

func invoiceArgs(inv *model.Invoice) []any {
	return []any{
		inv.InvoiceNo, inv.InvoiceDate, inv.Customer, inv.Email,
		string(inv.FinancialStatus), inv.FulfillmentStatus,
		inv.PaidAt, inv.FulfilledAt, inv.CancelledAt, inv.AcceptsMarketing,
		inv.Vendor, inv.Currency,
		inv.Subtotal, inv.DiscountCode, inv.DiscountAmount, inv.ShippingCost,
		inv.Taxes, inv.Total, inv.RefundedAmount, inv.OutstandingBalance, inv.Duties,
		inv.ShippingMethod, inv.PaymentMethod,
		inv.PaymentID, inv.PaymentReference, inv.PaymentTermsName, inv.NextPaymentDueAt,
		inv.BillingName, inv.BillingStreet, inv.BillingAddress1, inv.BillingAddress2,
		inv.BillingCompany, inv.BillingCity, inv.BillingZip, inv.BillingProvince,
		inv.BillingProvinceName, inv.BillingCountry, inv.BillingPhone,
		inv.ShippingName, inv.ShippingStreet, inv.ShippingAddress1, inv.ShippingAddress2,
		inv.ShippingCompany, inv.ShippingCity, inv.ShippingZip, inv.ShippingProvince,
		inv.ShippingProvinceName, inv.ShippingCountry, inv.ShippingPhone,
		inv.Notes, inv.Employee, inv.Location, inv.DeviceID, inv.RiskLevel,
		inv.Source, inv.Tags, inv.ReceiptNumber,
	}
}

var invoiceUpsertSQL = buildInvoiceUpsertSQL()

func buildInvoiceUpsertSQL() string {
	placeholders := make([]string, len(invoiceColumns))
	for i := range invoiceColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	// invoice_no — ключ конфликта, остальные колонки перезаписываются.
	updates := make([]string, 0, len(invoiceColumns)-1)
	for _, c := range invoiceColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	return fmt.Sprintf(
		`INSERT INTO invoices (%s) VALUES (%s)
		 ON CONFLICT (invoice_no) DO UPDATE SET %s
		 RETURNING id`,
		strings.Join(invoiceColumns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}
