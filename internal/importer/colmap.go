package importer

import "github.com/mmeshcher/backoffice-system/internal/model"

// columnMapping связывает колонку источника с полем заголовка счёта.
// Функция присваивания отвечает и за приведение типа.
type columnMapping struct {
	source string
	assign func(*model.Invoice, string)
}

func text(set func(*model.Invoice, string)) func(*model.Invoice, string) {
	return func(inv *model.Invoice, raw string) { set(inv, Text(raw)) }
}

func money(set func(*model.Invoice, float64)) func(*model.Invoice, string) {
	return func(inv *model.Invoice, raw string) { set(inv, Money(raw)) }
}

// headerColumns — декларативная таблица сопоставления колонок выгрузки
// полям заголовка. Порядок имеет значение: при совпадении целевого поля
// поздняя запись перекрывает раннюю, поэтому присутствующая колонка
// "Phone" побеждает "Billing Phone", а "Payment References" —
// "Payment Reference". Нераспознанные колонки источника игнорируются.
var headerColumns = []columnMapping{
	{"Name", text(func(h *model.Invoice, v string) { h.InvoiceNo = v })},
	{"Email", text(func(h *model.Invoice, v string) { h.Email = v })},
	{"Financial Status", text(func(h *model.Invoice, v string) { h.FinancialStatus = model.FinancialStatus(v) })},
	{"Paid at", text(func(h *model.Invoice, v string) { h.PaidAt = v })},
	{"Fulfillment Status", text(func(h *model.Invoice, v string) { h.FulfillmentStatus = v })},
	{"Fulfilled at", text(func(h *model.Invoice, v string) { h.FulfilledAt = v })},
	{"Accepts Marketing", text(func(h *model.Invoice, v string) { h.AcceptsMarketing = v })},
	{"Currency", text(func(h *model.Invoice, v string) { h.Currency = v })},
	{"Subtotal", money(func(h *model.Invoice, v float64) { h.Subtotal = v })},
	{"Shipping", money(func(h *model.Invoice, v float64) { h.ShippingCost = v })},
	{"Taxes", money(func(h *model.Invoice, v float64) { h.Taxes = v })},
	{"Total", money(func(h *model.Invoice, v float64) { h.Total = v })},
	{"Discount Code", text(func(h *model.Invoice, v string) { h.DiscountCode = v })},
	{"Discount Amount", money(func(h *model.Invoice, v float64) { h.DiscountAmount = v })},
	{"Shipping Method", text(func(h *model.Invoice, v string) { h.ShippingMethod = v })},
	{"Created at", text(func(h *model.Invoice, v string) { h.InvoiceDate = v })},
	{"Billing Name", text(func(h *model.Invoice, v string) { h.BillingName = v })},
	{"Billing Street", text(func(h *model.Invoice, v string) { h.BillingStreet = v })},
	{"Billing Address1", text(func(h *model.Invoice, v string) { h.BillingAddress1 = v })},
	{"Billing Address2", text(func(h *model.Invoice, v string) { h.BillingAddress2 = v })},
	{"Billing Company", text(func(h *model.Invoice, v string) { h.BillingCompany = v })},
	{"Billing City", text(func(h *model.Invoice, v string) { h.BillingCity = v })},
	{"Billing Zip", text(func(h *model.Invoice, v string) { h.BillingZip = v })},
	{"Billing Province", text(func(h *model.Invoice, v string) { h.BillingProvince = v })},
	{"Billing Country", text(func(h *model.Invoice, v string) { h.BillingCountry = v })},
	{"Billing Phone", text(func(h *model.Invoice, v string) { h.BillingPhone = v })},
	{"Shipping Name", text(func(h *model.Invoice, v string) { h.ShippingName = v })},
	{"Shipping Street", text(func(h *model.Invoice, v string) { h.ShippingStreet = v })},
	{"Shipping Address1", text(func(h *model.Invoice, v string) { h.ShippingAddress1 = v })},
	{"Shipping Address2", text(func(h *model.Invoice, v string) { h.ShippingAddress2 = v })},
	{"Shipping Company", text(func(h *model.Invoice, v string) { h.ShippingCompany = v })},
	{"Shipping City", text(func(h *model.Invoice, v string) { h.ShippingCity = v })},
	{"Shipping Zip", text(func(h *model.Invoice, v string) { h.ShippingZip = v })},
	{"Shipping Province", text(func(h *model.Invoice, v string) { h.ShippingProvince = v })},
	{"Shipping Country", text(func(h *model.Invoice, v string) { h.ShippingCountry = v })},
	{"Shipping Phone", text(func(h *model.Invoice, v string) { h.ShippingPhone = v })},
	{"Notes", text(func(h *model.Invoice, v string) { h.Notes = v })},
	{"Cancelled at", text(func(h *model.Invoice, v string) { h.CancelledAt = v })},
	{"Payment Method", text(func(h *model.Invoice, v string) { h.PaymentMethod = v })},
	{"Payment Reference", text(func(h *model.Invoice, v string) { h.PaymentReference = v })},
	{"Refunded Amount", money(func(h *model.Invoice, v float64) { h.RefundedAmount = v })},
	{"Vendor", text(func(h *model.Invoice, v string) { h.Vendor = v })},
	{"Outstanding Balance", money(func(h *model.Invoice, v float64) { h.OutstandingBalance = v })},
	{"Employee", text(func(h *model.Invoice, v string) { h.Employee = v })},
	{"Location", text(func(h *model.Invoice, v string) { h.Location = v })},
	{"Device ID", text(func(h *model.Invoice, v string) { h.DeviceID = v })},
	{"Tags", text(func(h *model.Invoice, v string) { h.Tags = v })},
	{"Risk Level", text(func(h *model.Invoice, v string) { h.RiskLevel = v })},
	{"Source", text(func(h *model.Invoice, v string) { h.Source = v })},
	{"Phone", text(func(h *model.Invoice, v string) { h.BillingPhone = v })},
	{"Receipt Number", text(func(h *model.Invoice, v string) { h.ReceiptNumber = v })},
	{"Duties", money(func(h *model.Invoice, v float64) { h.Duties = v })},
	{"Billing Province Name", text(func(h *model.Invoice, v string) { h.BillingProvinceName = v })},
	{"Shipping Province Name", text(func(h *model.Invoice, v string) { h.ShippingProvinceName = v })},
	{"Payment ID", text(func(h *model.Invoice, v string) { h.PaymentID = v })},
	{"Payment Terms Name", text(func(h *model.Invoice, v string) { h.PaymentTermsName = v })},
	{"Next Payment Due At", text(func(h *model.Invoice, v string) { h.NextPaymentDueAt = v })},
	{"Payment References", text(func(h *model.Invoice, v string) { h.PaymentReference = v })},
}
