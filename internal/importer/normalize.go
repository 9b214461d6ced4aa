// Package importer реализует конвейер сверки табличных выгрузок заказов:
// разбор CSV, нормализацию полей, группировку строк в заголовок счёта
// и позиции. Пакет не обращается к хранилищу.
package importer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// AllowedStatuses — допустимые финансовые статусы после нормализации.
var AllowedStatuses = map[string]bool{
	"Pending": true,
	"Paid":    true,
	"Voided":  true,
}

// statusSynonyms — таблица синонимов финансового статуса.
// Ключи в нижнем регистре.
var statusSynonyms = map[string]string{
	"unpaid":           "Pending",
	"new":              "Pending",
	"open":             "Pending",
	"partially paid":   "Pending",
	"partial":          "Pending",
	"awaiting payment": "Pending",
	"due":              "Pending",
	"cancelled":        "Voided",
	"canceled":         "Voided",
	"void":             "Voided",
	"voided":           "Voided",
	"closed - void":    "Voided",
	"complete":         "Paid",
	"completed":        "Paid",
	"done":             "Paid",
	"paid/closed":      "Paid",
	"settled":          "Paid",
}

// AllowedVendors — фиксированный набор поставщиков.
var AllowedVendors = map[string]bool{
	"Takeout Store": true,
	"Lola Tindeng":  true,
	"Swiss Proli":   true,
}

// vendorSynonyms — таблица точных синонимов поставщика.
var vendorSynonyms = map[string]string{
	"takeout store":    "Takeout Store",
	"lola tindeng":     "Lola Tindeng",
	"swiss proli":      "Swiss Proli",
	"swiss proli.":     "Swiss Proli",
	"swiss-proli":      "Swiss Proli",
	"swissproli":       "Swiss Proli",
	"swiss prolife":    "Swiss Proli",
	"takeoutstore":     "Takeout Store",
	"takeoutstoreph":   "Takeout Store",
	"takeout-store":    "Takeout Store",
	"takeout store ph": "Takeout Store",
	"takeoutstore-ph":  "Takeout Store",
}

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
)

func isNullish(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}

// CleanStatus нормализует финансовый статус: пустые и null-подобные
// значения означают Pending, известные синонимы сводятся к каноническому
// статусу, неизвестные значения пропускаются дальше в Title-Case.
func CleanStatus(raw string) string {
	s := strings.TrimSpace(raw)
	if isNullish(s) {
		return "Pending"
	}
	if v, ok := statusSynonyms[strings.ToLower(s)]; ok {
		return v
	}
	return titleCase(s)
}

// CleanVendor нормализует поставщика по таблице синонимов и
// эвристикам подстрок; неизвестные значения возвращаются в Title-Case.
func CleanVendor(raw string) string {
	s := strings.TrimSpace(raw)
	if isNullish(s) {
		return ""
	}
	low := strings.ToLower(s)
	if v, ok := vendorSynonyms[low]; ok {
		return v
	}
	alnum := nonAlnumRe.ReplaceAllString(low, "")
	if strings.HasPrefix(alnum, "takeout") {
		return "Takeout Store"
	}
	if strings.Contains(alnum, "lola") && strings.Contains(alnum, "tindeng") {
		return "Lola Tindeng"
	}
	if strings.Contains(alnum, "swiss") && strings.Contains(alnum, "proli") {
		return "Swiss Proli"
	}
	return titleCase(s)
}

// CleanInvoiceNo убирает пробелы и артефакт ".0" от числовых ячеек.
func CleanInvoiceNo(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	return spaceRe.ReplaceAllString(s, "")
}

// Money разбирает денежное значение: запятые удаляются,
// неразборчивые значения и NaN считаются нулём.
func Money(raw string) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if isNullish(s) {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != v {
		return 0
	}
	return v
}

// Text обрезает пробелы и сводит null-подобные значения к пустой строке.
func Text(raw string) string {
	s := strings.TrimSpace(raw)
	if isNullish(s) {
		return ""
	}
	return s
}

// titleCase переводит строку в Title-Case: первая буква каждого слова
// в верхнем регистре, остальное в нижнем. Слова разделяются любыми
// небуквенными символами, как в str.title().
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return strings.TrimSpace(b.String())
}
