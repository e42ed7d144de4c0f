package store

import "time"

// Status is the workflow state of a capital call transaction. Happy-path
// statuses form a fixed forward order; cancelled and expired are off-path
// terminal states.
type Status string

const (
	StatusDraft                    Status = "draft"
	StatusPublished                Status = "published"
	StatusInvestorNotified         Status = "investor_notified"
	StatusInvestorResponded        Status = "investor_responded"
	StatusBankReviewing            Status = "bank_reviewing"
	StatusAccepted                 Status = "accepted"
	StatusSettlementDetailsPending Status = "settlement_details_pending"
	StatusKYCSubmitted             Status = "kyc_submitted"
	StatusKYCReview                Status = "kyc_review"
	StatusKYCApproved              Status = "kyc_approved"
	StatusSettlementPending        Status = "settlement_pending"
	StatusSettlementProcessing     Status = "settlement_processing"
	StatusCompleted                Status = "completed"
	StatusCancelled                Status = "cancelled"
	StatusExpired                  Status = "expired"
)

// Terminal reports whether no further workflow mutation is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// StepCount is the total number of workflow steps in the pipeline.
const StepCount = 16

// ResponseType is an investor's answer to a published capital call.
type ResponseType string

const (
	ResponseAccept  ResponseType = "accept"
	ResponseCounter ResponseType = "counter"
	ResponseDecline ResponseType = "decline"
)

// Transaction is a capital call / deposit instrument under negotiation.
type Transaction struct {
	ID  string `json:"id"`
	Ref string `json:"ref"`

	BankID     string `json:"bank_id"`
	CreatedBy  string `json:"created_by"`
	AcceptedBy string `json:"accepted_by,omitempty"`

	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	InterestRate float64 `json:"interest_rate"`
	FXSpread     float64 `json:"fx_spread"`
	HedgingFee   float64 `json:"hedging_fee"`
	TotalYield   float64 `json:"total_yield"`
	TenorMonths  int     `json:"tenor_months"`

	SpotRate    float64 `json:"spot_rate"`
	ForwardRate float64 `json:"forward_rate"`
	HedgedRate  float64 `json:"hedged_rate"`

	Compliance ComplianceSnapshot `json:"compliance"`

	Status      Status         `json:"status"`
	CurrentStep int            `json:"current_step"`
	History     []HistoryEntry `json:"history"`

	InvestorResponse       *InvestorResponse    `json:"investor_response,omitempty"`
	SettlementDetails      *SettlementDetails   `json:"settlement_details,omitempty"`
	RepatriationAccount    *RepatriationAccount `json:"repatriation_account,omitempty"`
	KYCDetails             *KYCDetails          `json:"kyc_details,omitempty"`
	SettlementConfirmation string               `json:"settlement_confirmation,omitempty"`

	CreatedAt          time.Time  `json:"created_at"`
	MaturityDate       time.Time  `json:"maturity_date"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	KYCApprovedAt      *time.Time `json:"kyc_approved_at,omitempty"`
	SettlementDeadline *time.Time `json:"settlement_deadline,omitempty"`
	SettledAt          *time.Time `json:"settled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// ComplianceSnapshot holds the static compliance flags attached at creation.
type ComplianceSnapshot struct {
	FATCACompliant       bool    `json:"fatca_compliant"`
	SanctionsCleared     bool    `json:"sanctions_cleared"`
	CapitalAdequacyRatio float64 `json:"capital_adequacy_ratio"`
}

// HistoryEntry is one immutable record in a transaction's history log.
type HistoryEntry struct {
	Step      int            `json:"step"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// InvestorResponse records an investor's answer to a published call.
type InvestorResponse struct {
	InvestorID   string        `json:"investor_id"`
	Response     ResponseType  `json:"response"`
	CounterTerms *CounterTerms `json:"counter_terms,omitempty"`
	RespondedAt  time.Time     `json:"responded_at"`
}

// CounterTerms are the investor's proposed alternative commercial terms.
type CounterTerms struct {
	ProposedAmount float64 `json:"proposed_amount,omitempty"`
	ProposedRate   float64 `json:"proposed_rate,omitempty"`
	Message        string  `json:"message,omitempty"`
}

// SettlementDetails are the investor's settlement banking instructions.
type SettlementDetails struct {
	BankName      string    `json:"bank_name"`
	AccountName   string    `json:"account_name"`
	AccountNumber string    `json:"account_number"`
	SwiftCode     string    `json:"swift_code"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// RepatriationAccount is where principal plus yield is returned at maturity.
type RepatriationAccount struct {
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	SwiftCode     string    `json:"swift_code"`
	Currency      string    `json:"currency"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// KYCDocumentStatus tracks a single document through review.
type KYCDocumentStatus string

const (
	KYCDocumentSubmitted KYCDocumentStatus = "submitted"
	KYCDocumentApproved  KYCDocumentStatus = "approved"
)

// KYCDocument is one document in the investor's KYC submission.
type KYCDocument struct {
	Type      string            `json:"type"`
	Reference string            `json:"reference"`
	Status    KYCDocumentStatus `json:"status"`
}

// KYCDetails is the investor's KYC submission and its compliance outcome.
type KYCDetails struct {
	Documents   []KYCDocument `json:"documents"`
	AMLStatus   string        `json:"aml_status,omitempty"`
	RiskRating  string        `json:"risk_rating,omitempty"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// PortfolioSide distinguishes the two entries synthesized at completion.
type PortfolioSide string

const (
	PortfolioSideInvestorInvestment PortfolioSide = "investor_investment"
	PortfolioSideBankLiability      PortfolioSide = "bank_liability"
)

// PortfolioEntry reflects a completed instrument on the investor's asset side
// or the bank's liability side.
type PortfolioEntry struct {
	ID           string        `json:"id"`
	TxnRef       string        `json:"txn_ref"`
	Side         PortfolioSide `json:"side"`
	HolderID     string        `json:"holder_id"`
	Amount       float64       `json:"amount"`
	Currency     string        `json:"currency"`
	Yield        float64       `json:"yield"`
	TenorMonths  int           `json:"tenor_months"`
	MaturityDate time.Time     `json:"maturity_date"`
	CreatedAt    time.Time     `json:"created_at"`
}

// clone returns a deep copy so readers can never reach the store's live record.
func (t *Transaction) clone() *Transaction {
	c := *t

	c.History = make([]HistoryEntry, len(t.History))
	copy(c.History, t.History)
	for i, h := range t.History {
		if h.Data != nil {
			data := make(map[string]any, len(h.Data))
			for k, v := range h.Data {
				data[k] = v
			}
			c.History[i].Data = data
		}
	}

	if t.InvestorResponse != nil {
		ir := *t.InvestorResponse
		if t.InvestorResponse.CounterTerms != nil {
			ct := *t.InvestorResponse.CounterTerms
			ir.CounterTerms = &ct
		}
		c.InvestorResponse = &ir
	}
	if t.SettlementDetails != nil {
		sd := *t.SettlementDetails
		c.SettlementDetails = &sd
	}
	if t.RepatriationAccount != nil {
		ra := *t.RepatriationAccount
		c.RepatriationAccount = &ra
	}
	if t.KYCDetails != nil {
		kyc := *t.KYCDetails
		kyc.Documents = make([]KYCDocument, len(t.KYCDetails.Documents))
		copy(kyc.Documents, t.KYCDetails.Documents)
		c.KYCDetails = &kyc
	}

	c.PublishedAt = cloneTime(t.PublishedAt)
	c.ExpiresAt = cloneTime(t.ExpiresAt)
	c.AcceptedAt = cloneTime(t.AcceptedAt)
	c.KYCApprovedAt = cloneTime(t.KYCApprovedAt)
	c.SettlementDeadline = cloneTime(t.SettlementDeadline)
	c.SettledAt = cloneTime(t.SettledAt)
	c.CompletedAt = cloneTime(t.CompletedAt)

	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
