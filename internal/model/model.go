// Package model содержит доменные сущности сервиса бэк-офиса.
package model

import "time"

// Role описывает роль учётной записи в системе.
type Role string

const (
	RoleOwner Role = "Owner"
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
	RoleSales Role = "Sales"
)

// ValidRole возвращает true, если роль входит в фиксированный набор.
func ValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleUser, RoleSales:
		return true
	}
	return false
}

// Account представляет учётную запись с учётными данными пароля.
type Account struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash []byte
	Salt         []byte
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

// AccountInfo — проекция учётной записи, отдаваемая наружу.
// Не содержит хеш пароля и соль.
type AccountInfo struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// TokenPurposePasswordChange — единственное определённое назначение токена.
const TokenPurposePasswordChange = "password_change"

// PasswordToken — одноразовый токен подтверждения смены пароля.
type PasswordToken struct {
	ID        int64
	AccountID int64
	Token     string
	Purpose   string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// FinancialStatus описывает финансовый статус счёта-фактуры.
type FinancialStatus string

const (
	StatusPending FinancialStatus = "Pending"
	StatusPaid    FinancialStatus = "Paid"
	StatusVoided  FinancialStatus = "Voided"
)

// Invoice — заголовок счёта-фактуры, одна строка на уникальный номер.
type Invoice struct {
	ID                   int64
	InvoiceNo            string
	InvoiceDate          string
	Customer             string
	Email                string
	FinancialStatus      FinancialStatus
	FulfillmentStatus    string
	PaidAt               string
	FulfilledAt          string
	CancelledAt          string
	AcceptsMarketing     string
	Vendor               string
	Currency             string
	Subtotal             float64
	DiscountCode         string
	DiscountAmount       float64
	ShippingCost         float64
	Taxes                float64
	Total                float64
	RefundedAmount       float64
	OutstandingBalance   float64
	Duties               float64
	ShippingMethod       string
	PaymentMethod        string
	PaymentID            string
	PaymentReference     string
	PaymentTermsName     string
	NextPaymentDueAt     string
	BillingName          string
	BillingStreet        string
	BillingAddress1      string
	BillingAddress2      string
	BillingCompany       string
	BillingCity          string
	BillingZip           string
	BillingProvince      string
	BillingProvinceName  string
	BillingCountry       string
	BillingPhone         string
	ShippingName         string
	ShippingStreet       string
	ShippingAddress1     string
	ShippingAddress2     string
	ShippingCompany      string
	ShippingCity         string
	ShippingZip          string
	ShippingProvince     string
	ShippingProvinceName string
	ShippingCountry      string
	ShippingPhone        string
	Notes                string
	Employee             string
	Location             string
	DeviceID             string
	RiskLevel            string
	Source               string
	Tags                 string
	ReceiptNumber        string
	CreatedAt            time.Time
}

// InvoiceItem — строка счёта-фактуры.
// TotalAmount всегда равен произведению количества и цены на момент записи.
type InvoiceItem struct {
	ID          int64
	InvoiceID   int64
	LineNo      int
	ProductCode string
	ProductName string
	Unit        string
	Quantity    float64
	Price       float64
	TotalAmount float64
}

// AuditEntry — запись журнала аудита; журнал только пополняется.
type AuditEntry struct {
	ID         int64     `json:"id"`
	TS         time.Time `json:"ts"`
	Module     string    `json:"module"`
	Action     string    `json:"action"`
	InvoiceNo  string    `json:"invoice_no"`
	DocumentNo string    `json:"document_no"`
	Actor      string    `json:"actor"`
	PublicIP   string    `json:"public_ip"`
	Details    string    `json:"details"`
}

// ImportIssue описывает пропущенную или ошибочную группу импорта.
type ImportIssue struct {
	GroupKey string `json:"group_key"`
	Reason   string `json:"reason"`
}

// ImportSummary — итог одного запуска импорта заказов.
type ImportSummary struct {
	Imported int           `json:"imported"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Issues   []ImportIssue `json:"issues,omitempty"`
}
