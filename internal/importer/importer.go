package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mmeshcher/backoffice-system/internal/model"
)

// Row — одна строка выгрузки: имя колонки -> значение ячейки.
type Row map[string]string

// RowGroup — строки одного заказа, сгруппированные по ключевой колонке.
type RowGroup struct {
	Key  string
	Rows []Row
}

// ParseCSV разбирает табличный файл. Имена колонок обрезаются,
// неполные строки дополняются пустыми значениями.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row := make(Row, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(rec) {
				row[name] = rec[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// CleanRows удаляет полностью пустые строки и точные дубликаты,
// сохраняя порядок первого вхождения.
func CleanRows(rows []Row) []Row {
	seen := make(map[string]bool, len(rows))
	out := make([]Row, 0, len(rows))

	for _, row := range rows {
		empty := true
		for _, v := range row {
			if strings.TrimSpace(v) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}

		fp := fingerprint(row)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, row)
	}

	return out
}

func fingerprint(row Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('\x1f')
		b.WriteString(row[k])
		b.WriteByte('\x1e')
	}
	return b.String()
}

// GroupKeyColumn выбирает колонку группировки: явный идентификатор
// заказа, иначе имя заказа.
func GroupKeyColumn(rows []Row) string {
	for _, row := range rows {
		if _, ok := row["Id"]; ok {
			return "Id"
		}
		break
	}
	return "Name"
}

// Group собирает строки в группы по значению ключевой колонки
// в порядке первого вхождения.
func Group(rows []Row, keyColumn string) []RowGroup {
	index := make(map[string]int)
	var groups []RowGroup

	for _, row := range rows {
		key := strings.TrimSpace(row[keyColumn])
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, RowGroup{Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}

	return groups
}

// BuildOrder строит заголовок счёта и его позиции из группы строк.
// Денежные и текстовые поля приводятся по декларативной таблице
// колонок; итоги досчитываются, если источник их не содержит.
func BuildOrder(g RowGroup, combineItems bool) (*model.Invoice, []model.InvoiceItem) {
	first := g.Rows[0]

	inv := &model.Invoice{}
	for _, m := range headerColumns {
		if raw, ok := first[m.source]; ok {
			m.assign(inv, raw)
		}
	}

	if _, ok := first["Name"]; !ok {
		inv.InvoiceNo = Text(first["Id"])
	}
	inv.InvoiceNo = CleanInvoiceNo(inv.InvoiceNo)

	for _, candidate := range []string{first["Shipping Name"], first["Billing Name"], first["Name"]} {
		if v := Text(candidate); v != "" {
			inv.Customer = v
			break
		}
	}

	if inv.InvoiceDate != "" {
		inv.InvoiceDate, _, _ = strings.Cut(inv.InvoiceDate, " ")
	}

	inv.FinancialStatus = model.FinancialStatus(CleanStatus(string(inv.FinancialStatus)))
	inv.Vendor = CleanVendor(inv.Vendor)

	var items []model.InvoiceItem
	for _, row := range g.Rows {
		qty := Money(row["Lineitem quantity"])
		name := Text(row["Lineitem name"])
		if qty == 0 && name == "" {
			continue
		}
		price := Money(row["Lineitem price"])
		items = append(items, model.InvoiceItem{
			ProductCode: Text(row["Lineitem sku"]),
			ProductName: name,
			Quantity:    qty,
			Price:       price,
			TotalAmount: qty * price,
		})
	}

	if combineItems && len(items) > 0 {
		items = aggregateItems(items)
	}
	for i := range items {
		items[i].LineNo = i + 1
	}

	if inv.Subtotal == 0 {
		var sum float64
		for _, it := range items {
			sum += it.TotalAmount
		}
		inv.Subtotal = sum
	}
	if inv.DiscountAmount == 0 {
		inv.DiscountAmount = Money(first["Lineitem discount"])
	}
	if inv.Total == 0 {
		total := inv.Subtotal - inv.DiscountAmount
		if total < 0 {
			total = 0
		}
		inv.Total = total
	}

	return inv, items
}

// aggregateItems объединяет позиции с одинаковым (код, имя, цена,
// единица), суммируя количество и сумму. Разбитые отгрузки одного
// SKU сливаются в одну строку.
func aggregateItems(items []model.InvoiceItem) []model.InvoiceItem {
	type key struct {
		code  string
		name  string
		unit  string
		price float64
	}

	index := make(map[key]int)
	out := make([]model.InvoiceItem, 0, len(items))

	for _, it := range items {
		k := key{code: it.ProductCode, name: it.ProductName, unit: it.Unit, price: it.Price}
		if i, ok := index[k]; ok {
			out[i].Quantity += it.Quantity
			out[i].TotalAmount += it.TotalAmount
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}

	return out
}
