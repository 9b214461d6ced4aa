package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mmeshcher/backoffice-system/internal/importer"
	"github.com/mmeshcher/backoffice-system/internal/model"
	"github.com/mmeshcher/backoffice-system/internal/publicip"
)

const auditModule = "order_import"

// Действия журнала аудита для исходов импорта.
const (
	auditInsert             = "insert"
	auditUpdate             = "update"
	auditSkipInvalidStatus  = "skip_invalid_status"
	auditSkipInvalidVendor  = "skip_invalid_vendor"
	auditSkipMissingInvoice = "skip_missing_invoice_no"
	auditError              = "error"
)

// ImportOrders прогоняет загруженный CSV через конвейер сверки и
// сохраняет счета. Сбой одной группы не прерывает пакет: группа
// учитывается как пропущенная, и обработка продолжается.
func (s *Service) ImportOrders(ctx context.Context, data io.Reader, actor string, combineItems bool) (*model.ImportSummary, error) {
	rows, err := importer.ParseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}

	rows = importer.CleanRows(rows)
	groups := importer.Group(rows, importer.GroupKeyColumn(rows))

	publicIP := publicip.Unknown
	if s.resolver != nil {
		publicIP = s.resolver.Lookup(ctx)
	}

	summary := &model.ImportSummary{}
	for _, g := range groups {
		s.importGroup(ctx, g, combineItems, actor, publicIP, summary)
	}

	return summary, nil
}

func (s *Service) importGroup(ctx context.Context, g importer.RowGroup, combineItems bool, actor, publicIP string, summary *model.ImportSummary) {
	inv, items := importer.BuildOrder(g, combineItems)

	skip := func(action, reason string) {
		summary.Skipped++
		summary.Issues = append(summary.Issues, model.ImportIssue{GroupKey: g.Key, Reason: reason})
		s.audit(ctx, action, inv.InvoiceNo, "", actor, publicIP, map[string]any{"reason": reason})
	}

	if !importer.AllowedStatuses[string(inv.FinancialStatus)] {
		skip(auditSkipInvalidStatus, fmt.Sprintf("invalid financial status %q after normalization", inv.FinancialStatus))
		return
	}
	if !importer.AllowedVendors[inv.Vendor] {
		skip(auditSkipInvalidVendor, fmt.Sprintf("invalid vendor %q after normalization", inv.Vendor))
		return
	}
	if inv.InvoiceNo == "" {
		skip(auditSkipMissingInvoice, "missing invoice number after normalization")
		return
	}

	receipt, exists, err := s.repo.GetInvoiceReceipt(ctx, inv.InvoiceNo)
	if err != nil {
		s.failGroup(ctx, g.Key, inv.InvoiceNo, actor, publicIP, summary, err)
		return
	}

	// Выданный ранее номер документа стабилен при повторных импортах.
	switch {
	case exists && receipt != "":
		inv.ReceiptNumber = receipt
	case inv.ReceiptNumber == "":
		docNo, err := s.nextDocNumber(ctx, time.Now().UTC())
		if err != nil {
			s.failGroup(ctx, g.Key, inv.InvoiceNo, actor, publicIP, summary, err)
			return
		}
		inv.ReceiptNumber = docNo
	}

	id, err := s.repo.SaveInvoice(ctx, inv, items)
	if err != nil {
		s.failGroup(ctx, g.Key, inv.InvoiceNo, actor, publicIP, summary, err)
		return
	}

	details := map[string]any{"invoice_id": id}
	if exists {
		summary.Updated++
		s.audit(ctx, auditUpdate, inv.InvoiceNo, inv.ReceiptNumber, actor, publicIP, details)
	} else {
		summary.Imported++
		s.audit(ctx, auditInsert, inv.InvoiceNo, inv.ReceiptNumber, actor, publicIP, details)
	}
}

func (s *Service) failGroup(ctx context.Context, groupKey, invoiceNo, actor, publicIP string, summary *model.ImportSummary, err error) {
	summary.Skipped++
	summary.Issues = append(summary.Issues, model.ImportIssue{GroupKey: groupKey, Reason: err.Error()})
	s.audit(ctx, auditError, invoiceNo, "", actor, publicIP, map[string]any{"error": err.Error()})
}

// nextDocNumber выдаёт следующий номер документа по счётчику
// (префикс, год-месяц) в формате PREFIX-YYYYMM-0001.
func (s *Service) nextDocNumber(ctx context.Context, when time.Time) (string, error) {
	yyyymm := when.Format("200601")
	seq, err := s.repo.NextSequence(ctx, s.opts.DocPrefix+"-"+yyyymm)
	if err != nil {
		return "", fmt.Errorf("next document number: %w", err)
	}
	return fmt.Sprintf("%s-%s-%0*d", s.opts.DocPrefix, yyyymm, s.opts.DocPad, seq), nil
}

// audit добавляет запись об исходе; сбой журнала не прерывает импорт.
func (s *Service) audit(ctx context.Context, action, invoiceNo, documentNo, actor, publicIP string, details map[string]any) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}

	_ = s.repo.AppendAudit(ctx, &model.AuditEntry{
		Module:     auditModule,
		Action:     action,
		InvoiceNo:  invoiceNo,
		DocumentNo: documentNo,
		Actor:      actor,
		PublicIP:   publicIP,
		Details:    string(payload),
	})
}
