package engine

import "github.com/forwardsflow/be-cc-workflow/internal/store"

// CreateCallRequest carries the commercial and FX terms for a new capital call.
type CreateCallRequest struct {
	BankID       string  `json:"bank_id"`
	CreatedBy    string  `json:"created_by"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	InterestRate float64 `json:"interest_rate"`
	FXSpread     float64 `json:"fx_spread"`
	HedgingFee   float64 `json:"hedging_fee"`
	TenorMonths  int     `json:"tenor_months"`
	SpotRate     float64 `json:"spot_rate"`

	FATCACompliant       bool    `json:"fatca_compliant"`
	SanctionsCleared     bool    `json:"sanctions_cleared"`
	CapitalAdequacyRatio float64 `json:"capital_adequacy_ratio"`
}

// RespondRequest is an investor's answer to a published call.
type RespondRequest struct {
	Response     store.ResponseType  `json:"response"`
	CounterTerms *store.CounterTerms `json:"counter_terms,omitempty"`
}

// AcceptResponseRequest confirms an investor response on the bank side.
// AcceptCounterTerms overwrites the transaction's terms with the investor's
// proposal when the response was a counter-offer.
type AcceptResponseRequest struct {
	AcceptCounterTerms bool `json:"accept_counter_terms"`
}

// SettlementDetailsRequest carries the investor's settlement instructions.
type SettlementDetailsRequest struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	SwiftCode     string `json:"swift_code"`
}

// RepatriationAccountRequest names the account principal plus yield returns to
// at maturity.
type RepatriationAccountRequest struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	SwiftCode     string `json:"swift_code"`
	Currency      string `json:"currency"`
}

// KYCDocumentRequest is one document in a KYC submission.
type KYCDocumentRequest struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
}

// SubmitKYCRequest is the investor's KYC document submission.
type SubmitKYCRequest struct {
	Documents []KYCDocumentRequest `json:"documents"`
}

// ApproveKYCRequest records the compliance outcome.
type ApproveKYCRequest struct {
	RiskRating string `json:"risk_rating,omitempty"`
}

// ProcessSettlementRequest confirms the investor has wired the committed
// capital. A synthetic confirmation number is minted when none is supplied.
type ProcessSettlementRequest struct {
	ConfirmationNumber string `json:"confirmation_number,omitempty"`
}

// Progress summarizes how far a transaction has advanced through the pipeline.
type Progress struct {
	TxnRef          string               `json:"txn_ref"`
	Status          store.Status         `json:"status"`
	CurrentStep     int                  `json:"current_step"`
	TotalSteps      int                  `json:"total_steps"`
	PercentComplete float64              `json:"percent_complete"`
	History         []store.HistoryEntry `json:"history"`
}
