package ledger

import "github.com/pkg/errors"

// Domain errors returned by the ledger. Callers match them with errors.Is.
var (
	ErrNotFound            = errors.New("record not found")
	ErrStudentNotFound     = errors.New("student not found")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidCategory     = errors.New("unknown fee category")
	ErrInvalidMethod       = errors.New("unknown payment method")
	ErrUnknownCurrency     = errors.New("no exchange rate for currency")
	ErrInvalidRate         = errors.New("exchange rate must be greater than zero")
	ErrOverpayment         = errors.New("payment exceeds outstanding balance")
	ErrNothingOutstanding  = errors.New("student has no outstanding balance")
	ErrAlreadyReversed     = errors.New("payment already reversed")
	ErrDuplicateAssignment = errors.New("fee already assigned to student")
	ErrOpeningBelowPaid    = errors.New("opening balance cannot be lower than the amount already paid against it")
	ErrHostelFull          = errors.New("hostel is full")
	ErrNotBoarder          = errors.New("student is not assigned to a hostel")
	ErrAlreadyBoarder      = errors.New("student already in this hostel")
	ErrInvalidFormula      = errors.New("invalid installment formula")
	ErrUnbalancedJournal   = errors.New("journal debits and credits differ")
	ErrInactiveStudent     = errors.New("student is not active")
)
