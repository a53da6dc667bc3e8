package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/dtorrez/rentora-api/internal/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

type ExportService struct {
	analyticsSvc *AnalyticsService
}

func NewExportService(analyticsSvc *AnalyticsService) *ExportService {
	return &ExportService{analyticsSvc: analyticsSvc}
}

func (s *ExportService) ExportCSV(ctx context.Context, overview *models.BillingOverview, dist *models.InvoiceStatusDistribution) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	// Header
	_ = writer.Write([]string{"Reporte de Facturación", time.Now().Format("2006-01-02 15:04")})
	_ = writer.Write([]string{""})

	// Overview Section
	_ = writer.Write([]string{"Resumen General"})
	_ = writer.Write([]string{"Métrica", "Valor"})
	_ = writer.Write([]string{"Total Facturado", fmt.Sprintf("%.2f", overview.TotalInvoiced)})
	_ = writer.Write([]string{"Total Cobrado", fmt.Sprintf("%.2f", overview.TotalCollected)})
	_ = writer.Write([]string{"Saldo Pendiente", fmt.Sprintf("%.2f", overview.TotalOutstanding)})
	_ = writer.Write([]string{"Monto Vencido", fmt.Sprintf("%.2f", overview.OverdueAmount)})
	_ = writer.Write([]string{"Contratos Activos", fmt.Sprintf("%d", overview.ActiveLeases)})
	_ = writer.Write([]string{"Tasa de Cobro", fmt.Sprintf("%.1f%%", overview.CollectionRate)})
	_ = writer.Write([]string{"Tasa de Ocupación", fmt.Sprintf("%.2f%%", overview.OccupancyRate)})
	_ = writer.Write([]string{""})

	// Distribution Section
	_ = writer.Write([]string{"Distribución de Facturas"})
	_ = writer.Write([]string{"Estado", "Cantidad"})
	_ = writer.Write([]string{"Borrador", fmt.Sprintf("%d", dist.Draft)})
	_ = writer.Write([]string{"Emitida", fmt.Sprintf("%d", dist.Issued)})
	_ = writer.Write([]string{"Pago Parcial", fmt.Sprintf("%d", dist.PartiallyPaid)})
	_ = writer.Write([]string{"Pagada", fmt.Sprintf("%d", dist.Paid)})
	_ = writer.Write([]string{"Anulada", fmt.Sprintf("%d", dist.Voided)})
	_ = writer.Write([]string{"Total", fmt.Sprintf("%d", dist.TotalInvoices)})

	writer.Flush()

	filename := fmt.Sprintf("billing_report_%s.csv", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

func (s *ExportService) ExportXLSX(ctx context.Context, overview *models.BillingOverview, dist *models.InvoiceStatusDistribution) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Facturación"
	_ = f.SetSheetName("Sheet1", sheet)

	// Summary Styles
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	// Write Overview
	_ = f.SetCellValue(sheet, "A1", "Reporte de Facturación")
	_ = f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	_ = f.SetCellValue(sheet, "A3", "Resumen General")
	_ = f.SetCellValue(sheet, "A4", "Métrica")
	_ = f.SetCellValue(sheet, "B4", "Valor")

	_ = f.SetCellValue(sheet, "A5", "Total Facturado")
	_ = f.SetCellValue(sheet, "B5", overview.TotalInvoiced)
	_ = f.SetCellValue(sheet, "A6", "Total Cobrado")
	_ = f.SetCellValue(sheet, "B6", overview.TotalCollected)
	_ = f.SetCellValue(sheet, "A7", "Saldo Pendiente")
	_ = f.SetCellValue(sheet, "B7", overview.TotalOutstanding)
	_ = f.SetCellValue(sheet, "A8", "Monto Vencido")
	_ = f.SetCellValue(sheet, "B8", overview.OverdueAmount)
	_ = f.SetCellValue(sheet, "A9", "Contratos Activos")
	_ = f.SetCellValue(sheet, "B9", overview.ActiveLeases)
	_ = f.SetCellValue(sheet, "A10", "Tasa de Ocupación")
	_ = f.SetCellValue(sheet, "B10", fmt.Sprintf("%.2f%%", overview.OccupancyRate))

	// Write Distribution
	_ = f.SetCellValue(sheet, "A12", "Distribución de Facturas")
	_ = f.SetCellValue(sheet, "A13", "Estado")
	_ = f.SetCellValue(sheet, "B13", "Cantidad")

	_ = f.SetCellValue(sheet, "A14", "Borrador")
	_ = f.SetCellValue(sheet, "B14", dist.Draft)
	_ = f.SetCellValue(sheet, "A15", "Emitida")
	_ = f.SetCellValue(sheet, "B15", dist.Issued)
	_ = f.SetCellValue(sheet, "A16", "Pago Parcial")
	_ = f.SetCellValue(sheet, "B16", dist.PartiallyPaid)
	_ = f.SetCellValue(sheet, "A17", "Pagada")
	_ = f.SetCellValue(sheet, "B17", dist.Paid)
	_ = f.SetCellValue(sheet, "A18", "Anulada")
	_ = f.SetCellValue(sheet, "B18", dist.Voided)
	_ = f.SetCellValue(sheet, "A19", "Total")
	_ = f.SetCellValue(sheet, "B19", dist.TotalInvoices)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("billing_report_%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

func (s *ExportService) ExportPDF(ctx context.Context, overview *models.BillingOverview, dist *models.InvoiceStatusDistribution) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Reporte de Facturacion")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, "Resumen General")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(60, 10, "Total Facturado:")
	pdf.Cell(40, 10, fmt.Sprintf("%.2f HNL", overview.TotalInvoiced))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Total Cobrado:")
	pdf.Cell(40, 10, fmt.Sprintf("%.2f HNL", overview.TotalCollected))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Saldo Pendiente:")
	pdf.Cell(40, 10, fmt.Sprintf("%.2f HNL", overview.TotalOutstanding))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Monto Vencido:")
	pdf.Cell(40, 10, fmt.Sprintf("%.2f HNL (%d facturas)", overview.OverdueAmount, overview.OverdueInvoices))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Contratos Activos:")
	pdf.Cell(40, 10, fmt.Sprintf("%d", overview.ActiveLeases))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Tasa de Ocupacion:")
	pdf.Cell(40, 10, fmt.Sprintf("%.2f%%", overview.OccupancyRate))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, "Distribucion de Facturas")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(60, 10, "Borrador:")
	pdf.Cell(40, 10, fmt.Sprintf("%d", dist.Draft))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Emitida:")
	pdf.Cell(40, 10, fmt.Sprintf("%d", dist.Issued))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Pago Parcial:")
	pdf.Cell(40, 10, fmt.Sprintf("%d", dist.PartiallyPaid))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Pagada:")
	pdf.Cell(40, 10, fmt.Sprintf("%d", dist.Paid))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Anulada:")
	pdf.Cell(40, 10, fmt.Sprintf("%d", dist.Voided))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Total:")
	pdf.Cell(40, 10, fmt.Sprintf("%d", dist.TotalInvoices))
	pdf.Ln(6)

	buf := new(bytes.Buffer)
	err := pdf.Output(buf)
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("billing_report_%s.pdf", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportInvoicesCSV renders an invoice listing as CSV for accounting import.
func (s *ExportService) ExportInvoicesCSV(ctx context.Context, invoices []models.Invoice) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	_ = writer.Write([]string{"Número", "Contrato", "Inquilino", "Período Inicio", "Período Fin",
		"Vencimiento", "Estado", "Subtotal", "Impuesto", "Total", "Pagado", "Saldo"})

	for i := range invoices {
		invoice := &invoices[i]
		number := ""
		if invoice.InvoiceNumber != nil {
			number = *invoice.InvoiceNumber
		}
		dueDate := ""
		if invoice.DueDate != nil {
			dueDate = invoice.DueDate.Format("2006-01-02")
		}
		_ = writer.Write([]string{
			number,
			fmt.Sprintf("%d", invoice.LeaseID),
			invoice.Lease.TenantUser.FullName,
			invoice.PeriodStart.Format("2006-01-02"),
			invoice.PeriodEnd.Format("2006-01-02"),
			dueDate,
			invoice.Status,
			fmt.Sprintf("%.2f", invoice.Subtotal),
			fmt.Sprintf("%.2f", invoice.TaxAmount),
			fmt.Sprintf("%.2f", invoice.TotalAmount),
			fmt.Sprintf("%.2f", invoice.PaidAmount),
			fmt.Sprintf("%.2f", invoice.BalanceAmount),
		})
	}

	writer.Flush()

	filename := fmt.Sprintf("invoices_%s.csv", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportInvoicesXLSX renders an invoice listing as a spreadsheet.
func (s *ExportService) ExportInvoicesXLSX(ctx context.Context, invoices []models.Invoice) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Facturas"
	_ = f.SetSheetName("Sheet1", sheet)

	headers := []string{"Número", "Contrato", "Inquilino", "Período Inicio", "Período Fin",
		"Vencimiento", "Estado", "Subtotal", "Impuesto", "Total", "Pagado", "Saldo"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}

	for row := range invoices {
		invoice := &invoices[row]
		number := ""
		if invoice.InvoiceNumber != nil {
			number = *invoice.InvoiceNumber
		}
		dueDate := ""
		if invoice.DueDate != nil {
			dueDate = invoice.DueDate.Format("2006-01-02")
		}
		values := []interface{}{
			number,
			invoice.LeaseID,
			invoice.Lease.TenantUser.FullName,
			invoice.PeriodStart.Format("2006-01-02"),
			invoice.PeriodEnd.Format("2006-01-02"),
			dueDate,
			invoice.Status,
			invoice.Subtotal,
			invoice.TaxAmount,
			invoice.TotalAmount,
			invoice.PaidAmount,
			invoice.BalanceAmount,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("invoices_%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportPaymentsCSV renders a payment listing as CSV.
func (s *ExportService) ExportPaymentsCSV(ctx context.Context, payments []models.Payment) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	_ = writer.Write([]string{"Recibo", "Factura", "Fecha", "Modo", "Estado", "Monto", "Referencia", "Pagador"})

	for i := range payments {
		payment := &payments[i]
		receipt := ""
		if payment.ReceiptNumber != nil {
			receipt = *payment.ReceiptNumber
		}
		invoiceNumber := ""
		if payment.Invoice.InvoiceNumber != nil {
			invoiceNumber = *payment.Invoice.InvoiceNumber
		}
		reference := ""
		if payment.TransactionRef != nil {
			reference = *payment.TransactionRef
		}
		payer := ""
		if payment.PayerName != nil {
			payer = *payment.PayerName
		}
		_ = writer.Write([]string{
			receipt,
			invoiceNumber,
			payment.PaymentDate.Format("2006-01-02"),
			payment.PaymentMode,
			payment.Status,
			fmt.Sprintf("%.2f", payment.Amount),
			reference,
			payer,
		})
	}

	writer.Flush()

	filename := fmt.Sprintf("payments_%s.csv", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportPaymentsXLSX renders a payment listing as a spreadsheet.
func (s *ExportService) ExportPaymentsXLSX(ctx context.Context, payments []models.Payment) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Pagos"
	_ = f.SetSheetName("Sheet1", sheet)

	headers := []string{"Recibo", "Factura", "Fecha", "Modo", "Estado", "Monto", "Referencia", "Pagador"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}

	for row := range payments {
		payment := &payments[row]
		receipt := ""
		if payment.ReceiptNumber != nil {
			receipt = *payment.ReceiptNumber
		}
		invoiceNumber := ""
		if payment.Invoice.InvoiceNumber != nil {
			invoiceNumber = *payment.Invoice.InvoiceNumber
		}
		reference := ""
		if payment.TransactionRef != nil {
			reference = *payment.TransactionRef
		}
		payer := ""
		if payment.PayerName != nil {
			payer = *payment.PayerName
		}
		values := []interface{}{
			receipt,
			invoiceNumber,
			payment.PaymentDate.Format("2006-01-02"),
			payment.PaymentMode,
			payment.Status,
			payment.Amount,
			reference,
			payer,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("payments_%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}
