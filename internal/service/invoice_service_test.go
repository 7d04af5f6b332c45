package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

func invoiceWith(amount, discount float64, final *float64, status models.InvoiceStatus) models.InvoiceDetail {
	return models.InvoiceDetail{Invoice: models.Invoice{
		Amount:         amount,
		DiscountAmount: discount,
		FinalAmount:    final,
		Status:         status,
	}}
}

func floatPtr(v float64) *float64 { return &v }

func TestInvoiceAggregatesEmptyList(t *testing.T) {
	var invoices []models.InvoiceDetail

	assert.Zero(t, TotalExpectedAmount(invoices))
	assert.Zero(t, TotalActualAmount(invoices))
	assert.Zero(t, TotalDiscountAmount(invoices))
	assert.Zero(t, OutstandingBalance(invoices))

	summary := BuildFinancialSummary(invoices)
	assert.Zero(t, summary.ExpectedIncome)
	assert.Zero(t, summary.PaidCount)
	assert.Zero(t, summary.UnpaidCount)
	assert.Zero(t, summary.OverdueCount)
}

func TestTotalExpectedAmountIgnoresStatus(t *testing.T) {
	invoices := []models.InvoiceDetail{
		invoiceWith(100, 0, nil, models.InvoiceStatusPaid),
		invoiceWith(200, 0, nil, models.InvoiceStatusUnpaid),
		invoiceWith(300, 0, nil, models.InvoiceStatusCancelled),
	}
	assert.Equal(t, 600.0, TotalExpectedAmount(invoices))
}

func TestTotalActualAmountFallsBackToGross(t *testing.T) {
	invoices := []models.InvoiceDetail{
		invoiceWith(1000, 100, floatPtr(900), models.InvoiceStatusUnpaid),
		invoiceWith(500, 0, nil, models.InvoiceStatusUnpaid),
	}
	assert.Equal(t, 1400.0, TotalActualAmount(invoices))
}

func TestTotalDiscountAmountSumsPerInvoiceDiscountsOnly(t *testing.T) {
	invoices := []models.InvoiceDetail{
		invoiceWith(1000, 100, floatPtr(900), models.InvoiceStatusUnpaid),
		invoiceWith(500, 50, floatPtr(450), models.InvoiceStatusPaid),
		invoiceWith(300, 0, nil, models.InvoiceStatusOverdue),
	}
	assert.Equal(t, 150.0, TotalDiscountAmount(invoices))
}

func TestOutstandingBalanceSkipsOnlyPaid(t *testing.T) {
	invoices := []models.InvoiceDetail{
		invoiceWith(1000, 0, nil, models.InvoiceStatusPaid),
		invoiceWith(800, 100, floatPtr(700), models.InvoiceStatusUnpaid),
		invoiceWith(600, 0, nil, models.InvoiceStatusOverdue),
		// Cancelled invoices still count toward the balance.
		invoiceWith(400, 0, nil, models.InvoiceStatusCancelled),
	}
	assert.Equal(t, 1700.0, OutstandingBalance(invoices))
}

func TestFinancialSummaryStacksStudentDiscount(t *testing.T) {
	invoice := invoiceWith(10000, 1000, floatPtr(9000), models.InvoiceStatusUnpaid)
	invoice.StudentDiscountPercentage = 10

	summary := BuildFinancialSummary([]models.InvoiceDetail{invoice})

	// 1000 explicit + 10000 * 10% from the student profile.
	assert.Equal(t, 2000.0, summary.TotalDiscount)
	assert.Equal(t, 10000.0, summary.ExpectedIncome)
	assert.Equal(t, 9000.0, summary.ActualIncome)
	assert.Equal(t, 1, summary.UnpaidCount)
}

func TestFinancialSummaryStatusCounts(t *testing.T) {
	invoices := []models.InvoiceDetail{
		invoiceWith(100, 0, nil, models.InvoiceStatusPaid),
		invoiceWith(100, 0, nil, models.InvoiceStatusPaid),
		invoiceWith(100, 0, nil, models.InvoiceStatusUnpaid),
		invoiceWith(100, 0, nil, models.InvoiceStatusOverdue),
		invoiceWith(100, 0, nil, models.InvoiceStatusCancelled),
	}
	summary := BuildFinancialSummary(invoices)

	assert.Equal(t, 2, summary.PaidCount)
	assert.Equal(t, 1, summary.UnpaidCount)
	assert.Equal(t, 1, summary.OverdueCount)
	assert.Equal(t, 300.0, summary.OutstandingBalance)
}
