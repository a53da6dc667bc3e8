package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
)

// Spanish labels for printable documents
var invoiceStatusLabels = map[string]string{
	models.InvoiceStatusDraft:         "Borrador",
	models.InvoiceStatusIssued:        "Emitida",
	models.InvoiceStatusPartiallyPaid: "Pago Parcial",
	models.InvoiceStatusPaid:          "Pagada",
	models.InvoiceStatusVoided:        "Anulada",
}

var paymentModeLabels = map[string]string{
	models.PaymentModeCash:         "Efectivo",
	models.PaymentModeBankTransfer: "Transferencia",
	models.PaymentModeCard:         "Tarjeta",
	models.PaymentModeOnline:       "En línea",
}

// ReportService builds printable billing documents and CSV listings.
type ReportService struct {
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
	leaseRepo   repository.LeaseRepository
	userRepo    repository.UserRepository
}

func NewReportService(
	invoiceRepo repository.InvoiceRepository,
	paymentRepo repository.PaymentRepository,
	leaseRepo repository.LeaseRepository,
	userRepo repository.UserRepository,
) *ReportService {
	return &ReportService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		leaseRepo:   leaseRepo,
		userRepo:    userRepo,
	}
}

// GenerateCollectionsCSV generates a CSV report of payments collected in a month
func (s *ReportService) GenerateCollectionsCSV(ctx context.Context, orgID uint, month, year int) (*bytes.Buffer, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: mes inválido %d", ErrInvalidArgument, month)
	}
	if year < 2000 {
		return nil, fmt.Errorf("%w: año inválido %d", ErrInvalidArgument, year)
	}

	payments, err := s.paymentRepo.FindCompletedByMonth(ctx, orgID, month, year)
	if err != nil {
		return nil, err
	}

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{"Recibo", "Fecha", "Factura", "Inquilino", "Unidad", "Propiedad", "Modo", "Referencia", "Monto"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	total := 0.0
	for i := range payments {
		p := &payments[i]

		receipt := ""
		if p.ReceiptNumber != nil {
			receipt = *p.ReceiptNumber
		}

		reference := ""
		if p.TransactionRef != nil {
			reference = *p.TransactionRef
		}

		tenantName := "N/A"
		unitLabel := "N/A"
		propertyName := "N/A"
		if p.Invoice.Lease.ID != 0 {
			if p.Invoice.Lease.TenantUser.ID != 0 {
				tenantName = p.Invoice.Lease.TenantUser.FullName
			}
			if p.Invoice.Lease.Unit.ID != 0 {
				unitLabel = p.Invoice.Lease.Unit.Label
				if p.Invoice.Lease.Unit.Property.ID != 0 {
					propertyName = p.Invoice.Lease.Unit.Property.Name
				}
			}
		}

		mode := p.PaymentMode
		if label, ok := paymentModeLabels[p.PaymentMode]; ok {
			mode = label
		}

		record := []string{
			receipt,
			p.PaymentDate.Format("2006-01-02"),
			invoiceRef(&p.Invoice),
			tenantName,
			unitLabel,
			propertyName,
			mode,
			reference,
			fmt.Sprintf("%.2f", p.Amount),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
		total += p.Amount
	}

	if err := w.Write([]string{"", "", "", "", "", "", "", "Total", fmt.Sprintf("%.2f", total)}); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return b, nil
}

// GenerateOverdueInvoicesCSV generates a CSV listing of overdue invoices with
// tenant contact data for the collections team
func (s *ReportService) GenerateOverdueInvoicesCSV(ctx context.Context) (*bytes.Buffer, error) {
	invoices, err := s.invoiceRepo.FindOverdueForActiveLeases(ctx)
	if err != nil {
		return nil, err
	}

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{"Factura", "Inquilino", "Teléfono", "Unidad", "Propiedad", "Vencimiento", "Días Vencida", "Total", "Pagado", "Saldo"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	today := dateOnly(time.Now())
	for i := range invoices {
		inv := &invoices[i]

		dueDate := ""
		daysOverdue := 0
		if inv.DueDate != nil {
			dueDate = inv.DueDate.Format("2006-01-02")
			daysOverdue = int(today.Sub(dateOnly(*inv.DueDate)).Hours() / 24)
		}

		tenantName := "N/A"
		tenantPhone := ""
		if inv.Lease.TenantUser.ID != 0 {
			tenantName = inv.Lease.TenantUser.FullName
			tenantPhone = inv.Lease.TenantUser.Phone
		}

		unitLabel := "N/A"
		propertyName := "N/A"
		if inv.Lease.Unit.ID != 0 {
			unitLabel = inv.Lease.Unit.Label
			if inv.Lease.Unit.Property.ID != 0 {
				propertyName = inv.Lease.Unit.Property.Name
			}
		}

		record := []string{
			invoiceRef(inv),
			tenantName,
			tenantPhone,
			unitLabel,
			propertyName,
			dueDate,
			fmt.Sprintf("%d", daysOverdue),
			fmt.Sprintf("%.2f", inv.TotalAmount),
			fmt.Sprintf("%.2f", inv.PaidAmount),
			fmt.Sprintf("%.2f", inv.BalanceAmount),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return b, nil
}

// Helper to generate PDF from HTML template
func (s *ReportService) generatePDF(templateName string, data interface{}) (*bytes.Buffer, error) {
	// Try path relative to project root (Prod)
	tmplPath := fmt.Sprintf("internal/services/templates/reports/%s", templateName)
	if _, err := os.Stat(tmplPath); os.IsNotExist(err) {
		// Try path relative to package (Test)
		tmplPath = fmt.Sprintf("templates/reports/%s", templateName)
	}

	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s (path: %s): %w", templateName, tmplPath, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.Grayscale.Set(false)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(buf.Bytes()))
	page.EnableLocalFileAccess.Set(true)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create pdf: %w", err)
	}

	return pdfg.Buffer(), nil
}

// GenerateInvoicePDF generates a printable PDF for an invoice
func (s *ReportService) GenerateInvoicePDF(ctx context.Context, invoiceID uint) (*bytes.Buffer, error) {
	invoice, err := s.invoiceRepo.FindByIDWithDetails(ctx, invoiceID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	type LineData struct {
		Description string
		Period      string
		Quantity    string
		UnitAmount  string
		TaxAmount   string
		Amount      string
		Prorated    bool
	}

	toCurrency := func(amount float64) string {
		return fmt.Sprintf("%.2f", amount)
	}

	var lines []LineData
	for _, l := range invoice.Lines {
		period := ""
		if !l.ServiceStart.IsZero() && !l.ServiceEnd.IsZero() {
			period = fmt.Sprintf("%s - %s", l.ServiceStart.Format("02/01/2006"), l.ServiceEnd.Format("02/01/2006"))
		}
		lines = append(lines, LineData{
			Description: l.Description,
			Period:      period,
			Quantity:    fmt.Sprintf("%.0f", l.Quantity),
			UnitAmount:  toCurrency(l.UnitAmount),
			TaxAmount:   toCurrency(l.TaxAmount),
			Amount:      toCurrency(l.Amount),
			Prorated:    l.Prorated,
		})
	}

	status := invoice.Status
	if label, ok := invoiceStatusLabels[invoice.Status]; ok {
		status = label
	}

	issuedAt := ""
	if invoice.IssuedAt != nil {
		issuedAt = formatLongDate(*invoice.IssuedAt)
	}

	dueDate := ""
	if invoice.DueDate != nil {
		dueDate = invoice.DueDate.Format("02/01/2006")
	}

	tenant := invoice.Lease.TenantUser
	unit := invoice.Lease.Unit

	data := map[string]interface{}{
		"InvoiceNumber": invoiceRef(invoice),
		"Status":        status,
		"IssuedAt":      issuedAt,
		"PeriodStart":   invoice.PeriodStart.Format("02/01/2006"),
		"PeriodEnd":     invoice.PeriodEnd.Format("02/01/2006"),
		"DueDate":       dueDate,
		"TenantName":    tenant.FullName,
		"TenantEmail":   tenant.Email,
		"TenantPhone":   tenant.Phone,
		"UnitLabel":     unit.Label,
		"PropertyName":  unit.Property.Name,
		"PropertyAddr":  unit.Property.Address,
		"Lines":         lines,
		"Currency":      invoice.Currency,
		"Subtotal":      toCurrency(invoice.Subtotal),
		"TaxAmount":     toCurrency(invoice.TaxAmount),
		"TotalAmount":   toCurrency(invoice.TotalAmount),
		"PaidAmount":    toCurrency(invoice.PaidAmount),
		"BalanceAmount": toCurrency(invoice.BalanceAmount),
		"AmountWords":   AmountInWords(invoice.TotalAmount, invoice.Currency),
		"GeneratedAt":   time.Now().Format("02/01/2006"),
	}

	return s.generatePDF("invoice.html", data)
}

// GenerateReceiptPDF generates a payment receipt PDF. Only settled payments
// have receipts; pending or failed payments are rejected.
func (s *ReportService) GenerateReceiptPDF(ctx context.Context, paymentID uint) (*bytes.Buffer, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	if payment.Status != models.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: el pago #%d no está completado (%s)", ErrInvalidState, payment.ID, payment.Status)
	}

	receipt := fmt.Sprintf("#%d", payment.ID)
	if payment.ReceiptNumber != nil {
		receipt = *payment.ReceiptNumber
	}

	mode := payment.PaymentMode
	if label, ok := paymentModeLabels[payment.PaymentMode]; ok {
		mode = label
	}

	reference := ""
	if payment.TransactionRef != nil {
		reference = *payment.TransactionRef
	}

	payerName := payment.Invoice.Lease.TenantUser.FullName
	if payment.PayerName != nil && *payment.PayerName != "" {
		payerName = *payment.PayerName
	}

	recordedBy := ""
	if payment.RecordedBy != nil {
		recordedBy = payment.RecordedBy.FullName
	}

	unit := payment.Invoice.Lease.Unit

	data := map[string]interface{}{
		"ReceiptNumber": receipt,
		"PaymentDate":   formatLongDate(payment.PaymentDate),
		"InvoiceNumber": invoiceRef(&payment.Invoice),
		"Period":        fmt.Sprintf("%s - %s", payment.Invoice.PeriodStart.Format("02/01/2006"), payment.Invoice.PeriodEnd.Format("02/01/2006")),
		"PayerName":     payerName,
		"UnitLabel":     unit.Label,
		"PropertyName":  unit.Property.Name,
		"Mode":          mode,
		"Reference":     reference,
		"Currency":      payment.Invoice.Currency,
		"Amount":        fmt.Sprintf("%.2f", payment.Amount),
		"AmountWords":   AmountInWords(payment.Amount, payment.Invoice.Currency),
		"Balance":       fmt.Sprintf("%.2f", payment.Invoice.BalanceAmount),
		"RecordedBy":    recordedBy,
		"GeneratedAt":   time.Now().Format("02/01/2006"),
	}

	return s.generatePDF("receipt.html", data)
}

// GenerateTenantStatementPDF generates a PDF statement of account for a tenant
func (s *ReportService) GenerateTenantStatementPDF(ctx context.Context, userID uint) (*bytes.Buffer, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	leases, err := s.leaseRepo.FindByTenant(ctx, userID)
	if err != nil {
		return nil, err
	}

	type InvoiceData struct {
		Number  string
		Period  string
		DueDate string
		Total   string
		Paid    string
		Balance string
		Status  string
	}

	type LeaseData struct {
		ID           uint
		UnitLabel    string
		PropertyName string
		Status       string
		Invoices     []InvoiceData
		TotalBalance string
	}

	type ReportData struct {
		TenantName   string
		TenantEmail  string
		Date         string
		Leases       []LeaseData
		GrandBalance string
	}

	grandBalance := 0.0
	var leaseDataList []LeaseData
	for _, lease := range leases {
		invoices, err := s.invoiceRepo.FindByLease(ctx, lease.ID)
		if err != nil {
			continue
		}

		leaseBalance := 0.0
		var invoiceRows []InvoiceData
		for i := range invoices {
			inv := &invoices[i]
			if inv.Status == models.InvoiceStatusDraft || inv.Status == models.InvoiceStatusVoided {
				continue
			}

			dueDate := ""
			if inv.DueDate != nil {
				dueDate = inv.DueDate.Format("02/01/2006")
			}

			status := inv.Status
			if label, ok := invoiceStatusLabels[inv.Status]; ok {
				status = label
			}

			invoiceRows = append(invoiceRows, InvoiceData{
				Number:  invoiceRef(inv),
				Period:  fmt.Sprintf("%s - %s", inv.PeriodStart.Format("02/01/2006"), inv.PeriodEnd.Format("02/01/2006")),
				DueDate: dueDate,
				Total:   fmt.Sprintf("%.2f", inv.TotalAmount),
				Paid:    fmt.Sprintf("%.2f", inv.PaidAmount),
				Balance: fmt.Sprintf("%.2f", inv.BalanceAmount),
				Status:  status,
			})
			leaseBalance += inv.BalanceAmount
		}

		unitLabel := ""
		propertyName := ""
		if lease.Unit.ID != 0 {
			unitLabel = lease.Unit.Label
			if lease.Unit.Property.ID != 0 {
				propertyName = lease.Unit.Property.Name
			}
		}

		leaseDataList = append(leaseDataList, LeaseData{
			ID:           lease.ID,
			UnitLabel:    unitLabel,
			PropertyName: propertyName,
			Status:       lease.Status,
			Invoices:     invoiceRows,
			TotalBalance: fmt.Sprintf("%.2f", leaseBalance),
		})
		grandBalance += leaseBalance
	}

	data := ReportData{
		TenantName:   user.FullName,
		TenantEmail:  user.Email,
		Date:         time.Now().Format("02/01/2006"),
		Leases:       leaseDataList,
		GrandBalance: fmt.Sprintf("%.2f", grandBalance),
	}

	return s.generatePDF("tenant_statement.html", data)
}

// formatLongDate renders a date as "2 de Enero del 2026"
func formatLongDate(t time.Time) string {
	months := []string{"", "Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio", "Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre"}
	return fmt.Sprintf("%d de %s del %d", t.Day(), months[t.Month()], t.Year())
}
