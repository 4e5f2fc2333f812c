package achproof

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status of an uploaded ACH proof-of-payment. Processed and rejected are
// terminal: once decided, the record is immutable.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusRejected  Status = "rejected"
)

// Proof is a scanned ACH payment voucher plus the metadata an operator needs
// to match it against an invoice.
type Proof struct {
	ID            int64
	CompanyCode   string
	ClientCode    string
	InvoiceNo     string
	TransactionNo string
	Amount        decimal.Decimal
	Image         []byte
	ContentType   string
	Status        Status
	Note          string
	CreatedAt     time.Time
	DecidedAt     *time.Time
}

// New validates and builds a pending proof from an upload.
func New(companyCode, clientCode, invoiceNo, transactionNo string, amount decimal.Decimal, image []byte, contentType string) (*Proof, error) {
	companyCode = strings.TrimSpace(companyCode)
	invoiceNo = strings.TrimSpace(invoiceNo)
	if companyCode == "" || invoiceNo == "" {
		return nil, fmt.Errorf("achproof: company code and invoice number are required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("achproof: amount must be positive")
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("achproof: proof image is required")
	}

	return &Proof{
		CompanyCode:   companyCode,
		ClientCode:    strings.TrimSpace(clientCode),
		InvoiceNo:     invoiceNo,
		TransactionNo: strings.TrimSpace(transactionNo),
		Amount:        amount,
		Image:         image,
		ContentType:   contentType,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}, nil
}

// Decide moves a pending proof to processed or rejected. Terminal states
// cannot be re-decided.
func (p *Proof) Decide(approve bool, note string) error {
	if p.Status != StatusPending {
		return fmt.Errorf("achproof: proof %d already %s", p.ID, p.Status)
	}
	if approve {
		p.Status = StatusProcessed
	} else {
		p.Status = StatusRejected
	}
	p.Note = note
	now := time.Now()
	p.DecidedAt = &now
	return nil
}

// Terminal reports whether the proof reached a final state.
func (p *Proof) Terminal() bool {
	return p.Status == StatusProcessed || p.Status == StatusRejected
}
