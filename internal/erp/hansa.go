package erp

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Hansa is the back-office system of record for clients, invoices and
// receipts. It is a remote transactional boundary: a committed WriteReceipt
// cannot be rolled back from here.

var (
	ErrNotFound = errors.New("erp: record not found")
	ErrConflict = errors.New("erp: write conflict")
)

// Client is an ERP customer record.
type Client struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	TaxID   string `json:"taxId"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

// Invoice is an open or historical ERP invoice.
type Invoice struct {
	Number     string          `json:"number"`
	ClientCode string          `json:"clientCode"`
	Date       time.Time       `json:"date"`
	DueDate    time.Time       `json:"dueDate"`
	Total      decimal.Decimal `json:"total"`
	Balance    decimal.Decimal `json:"balance"`
	Currency   string          `json:"currency"`
}

// Installment is one scheduled payment of an invoice.
type Installment struct {
	InvoiceNo string          `json:"invoiceNo"`
	Sequence  int             `json:"sequence"`
	DueDate   time.Time       `json:"dueDate"`
	Amount    decimal.Decimal `json:"amount"`
	Paid      bool            `json:"paid"`
}

// ReceiptLine ties part of a receipt to one invoice. One line per allocation
// entry, in request order; duplicate invoice numbers stay separate lines.
type ReceiptLine struct {
	InvoiceNo string          `json:"invoiceNo"`
	Amount    decimal.Decimal `json:"amount"`
}

// ReceiptRecord is the write-back of a successful charge.
type ReceiptRecord struct {
	CompanyCode string          `json:"companyCode"`
	ClientCode  string          `json:"clientCode"`
	Date        time.Time       `json:"date"`
	PayMode     string          `json:"payMode"`
	Reference   string          `json:"reference"` // provider transaction id
	Currency    string          `json:"currency"`
	Total       decimal.Decimal `json:"total"`
	Lines       []ReceiptLine   `json:"lines"`
}

// Receipt is a stored ERP receipt.
type Receipt struct {
	Number     string          `json:"number"`
	ClientCode string          `json:"clientCode"`
	Date       time.Time       `json:"date"`
	Total      decimal.Decimal `json:"total"`
	Reference  string          `json:"reference"`
}

// Hansa is the query/write interface the gateway needs from the ERP.
type Hansa interface {
	GetClient(ctx context.Context, companyCode, clientCode string) (Client, error)
	GetInvoices(ctx context.Context, companyCode, clientCode string, from, to time.Time) ([]Invoice, error)
	GetInstallments(ctx context.Context, companyCode, invoiceNo string) ([]Installment, error)
	GetReceipts(ctx context.Context, companyCode, clientCode string, from, to time.Time) ([]Receipt, error)

	// WriteReceipt creates a receipt referencing the given invoice lines and
	// returns the ERP receipt number. Once this commits there is no rollback.
	WriteReceipt(ctx context.Context, rec ReceiptRecord) (string, error)
}
