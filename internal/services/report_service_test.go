package services

import (
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestGenerateCollectionsCSV(t *testing.T) {
	payments := &mockPaymentRepository{}
	service := NewReportService(nil, payments, nil, nil) // only paymentRepo is used for this method

	// Setup mock data
	number1, number2 := "INV-000001", "INV-000002"
	receipt1, receipt2 := "RCT-000001", "RCT-000002"
	reference := "BAC-778899"
	payments.mockFindCompletedByMonth = func(ctx context.Context, orgID uint, month, year int) ([]models.Payment, error) {
		assert.Equal(t, 2, month)
		assert.Equal(t, 2026, year)
		return []models.Payment{
			{
				ID:            1,
				Amount:        400,
				PaymentDate:   date(2026, time.February, 5),
				PaymentMode:   models.PaymentModeCash,
				ReceiptNumber: &receipt1,
				Invoice: models.Invoice{
					ID:            10,
					InvoiceNumber: &number1,
					Lease: models.Lease{
						ID:         1,
						TenantUser: models.User{ID: 5, FullName: "Laura Mejía"},
						Unit: models.Unit{
							ID:       3,
							Label:    "A-101",
							Property: models.Property{ID: 1, Name: "Torre Morazán"},
						},
					},
				},
			},
			{
				ID:             2,
				Amount:         5000,
				PaymentDate:    date(2026, time.February, 10),
				PaymentMode:    models.PaymentModeBankTransfer,
				ReceiptNumber:  &receipt2,
				TransactionRef: &reference,
				Invoice: models.Invoice{
					ID:            11,
					InvoiceNumber: &number2,
					Lease: models.Lease{
						ID:         2,
						TenantUser: models.User{ID: 6, FullName: "Carlos Rivera"},
						Unit: models.Unit{
							ID:       4,
							Label:    "B-202",
							Property: models.Property{ID: 1, Name: "Torre Morazán"},
						},
					},
				},
			},
		}, nil
	}

	// Execute
	buf, err := service.GenerateCollectionsCSV(context.Background(), 1, 2, 2026)
	assert.NoError(t, err)
	assert.NotNil(t, buf)

	// Verify CSV content
	reader := csv.NewReader(buf)
	records, err := reader.ReadAll()
	assert.NoError(t, err)
	assert.Len(t, records, 4) // header + 2 rows + total

	// Check Header
	expectedHeader := []string{"Recibo", "Fecha", "Factura", "Inquilino", "Unidad", "Propiedad", "Modo", "Referencia", "Monto"}
	assert.Equal(t, expectedHeader, records[0])

	// Check First Row (cash payment)
	row1 := records[1]
	assert.Equal(t, "RCT-000001", row1[0])
	assert.Equal(t, "2026-02-05", row1[1])
	assert.Equal(t, "INV-000001", row1[2])
	assert.Equal(t, "Laura Mejía", row1[3])
	assert.Equal(t, "A-101", row1[4])
	assert.Equal(t, "Torre Morazán", row1[5])
	assert.Equal(t, "Efectivo", row1[6]) // Translated "cash"
	assert.Equal(t, "", row1[7])
	assert.Equal(t, "400.00", row1[8])

	// Check Second Row (bank transfer)
	row2 := records[2]
	assert.Equal(t, "Transferencia", row2[6]) // Translated "bank_transfer"
	assert.Equal(t, "BAC-778899", row2[7])
	assert.Equal(t, "5000.00", row2[8])

	// Check Total Row
	total := records[3]
	assert.Equal(t, "Total", total[7])
	assert.Equal(t, "5400.00", total[8])
}

func TestGenerateCollectionsCSV_ValidatesPeriod(t *testing.T) {
	service := NewReportService(nil, &mockPaymentRepository{}, nil, nil)

	_, err := service.GenerateCollectionsCSV(context.Background(), 1, 0, 2026)
	assert.ErrorIs(t, err, ErrInvalidArgument, "month below range")

	_, err = service.GenerateCollectionsCSV(context.Background(), 1, 13, 2026)
	assert.ErrorIs(t, err, ErrInvalidArgument, "month above range")

	_, err = service.GenerateCollectionsCSV(context.Background(), 1, 2, 1999)
	assert.ErrorIs(t, err, ErrInvalidArgument, "implausible year")
}

func TestGenerateOverdueInvoicesCSV(t *testing.T) {
	invoices := &mockInvoiceRepository{}
	service := NewReportService(invoices, nil, nil, nil)

	// Setup mock data: one invoice ten days past due
	number := "INV-000003"
	due := dateOnly(time.Now()).AddDate(0, 0, -10)
	invoices.mockFindOverdue = func(ctx context.Context) ([]models.Invoice, error) {
		return []models.Invoice{
			{
				ID:            12,
				InvoiceNumber: &number,
				Status:        models.InvoiceStatusPartiallyPaid,
				TotalAmount:   10000,
				PaidAmount:    4000,
				BalanceAmount: 6000,
				DueDate:       &due,
				Lease: models.Lease{
					ID:         1,
					TenantUser: models.User{ID: 5, FullName: "Laura Mejía", Phone: "9999-1234"},
					Unit: models.Unit{
						ID:       3,
						Label:    "A-101",
						Property: models.Property{ID: 1, Name: "Torre Morazán"},
					},
				},
			},
		}, nil
	}

	// Execute
	buf, err := service.GenerateOverdueInvoicesCSV(context.Background())
	assert.NoError(t, err)

	reader := csv.NewReader(buf)
	records, err := reader.ReadAll()
	assert.NoError(t, err)
	assert.Len(t, records, 2)

	expectedHeader := []string{"Factura", "Inquilino", "Teléfono", "Unidad", "Propiedad", "Vencimiento", "Días Vencida", "Total", "Pagado", "Saldo"}
	assert.Equal(t, expectedHeader, records[0])

	row := records[1]
	assert.Equal(t, "INV-000003", row[0])
	assert.Equal(t, "Laura Mejía", row[1])
	assert.Equal(t, "9999-1234", row[2])
	assert.Equal(t, "A-101", row[3])
	assert.Equal(t, due.Format("2006-01-02"), row[5])
	assert.Equal(t, "10", row[6])
	assert.Equal(t, "10000.00", row[7])
	assert.Equal(t, "4000.00", row[8])
	assert.Equal(t, "6000.00", row[9])
}

func TestGenerateReceiptPDF_RequiresCompletedPayment(t *testing.T) {
	payments := &mockPaymentRepository{}
	service := NewReportService(nil, payments, nil, nil)

	payments.mockFindByID = func(ctx context.Context, id uint) (*models.Payment, error) {
		return &models.Payment{ID: 500, Status: models.PaymentStatusPending}, nil
	}

	_, err := service.GenerateReceiptPDF(context.Background(), 500)

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFormatLongDate(t *testing.T) {
	assert.Equal(t, "2 de Enero del 2026", formatLongDate(date(2026, time.January, 2)))
	assert.Equal(t, "15 de Septiembre del 2025", formatLongDate(date(2025, time.September, 15)))
}
