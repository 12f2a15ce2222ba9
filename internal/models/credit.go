package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit transaction types.
const (
	TransactionPurchase = "purchase"
	TransactionUnlock   = "unlock"
	TransactionRefund   = "refund"
)

// CreditTransaction is an immutable ledger entry. CreditAmount is always
// positive; the type decides the sign.
type CreditTransaction struct {
	ID                  uuid.UUID  `json:"id"`
	ContractorUID       uuid.UUID  `json:"contractorUid"`
	Type                string     `json:"type"`
	CreditAmount        int        `json:"creditAmount"`
	Cost                int        `json:"cost"`
	RelatedProjectID    *uuid.UUID `json:"relatedProjectId,omitempty"`
	StripeTransactionID string     `json:"stripeTransactionId,omitempty"`
	Timestamp           time.Time  `json:"timestamp"`
}

// Delta is the signed change this entry applied to the contractor's balance.
func (t *CreditTransaction) Delta() int {
	if t.Type == TransactionUnlock {
		return -t.CreditAmount
	}
	return t.CreditAmount
}

// LedgerSum folds entries into the balance they imply.
func LedgerSum(entries []*CreditTransaction) int {
	sum := 0
	for _, e := range entries {
		sum += e.Delta()
	}
	return sum
}

// ProjectUnlock grants a contractor permanent access to a project's private details.
type ProjectUnlock struct {
	ID            string    `json:"id"`
	ContractorUID uuid.UUID `json:"contractorUid"`
	ProjectID     uuid.UUID `json:"projectId"`
	HomeownerUID  uuid.UUID `json:"homeownerUid"`
	CreditCost    int       `json:"creditCost"`
	UnlockedAt    time.Time `json:"unlockedAt"`
}

// UnlockID is the composite key of a (contractor, project) grant.
func UnlockID(contractorUID, projectID uuid.UUID) string {
	return contractorUID.String() + "_" + projectID.String()
}

// CreditPackage is a purchasable bundle. Price is in whole dollars.
type CreditPackage struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Credits        int     `json:"credits"`
	Price          int     `json:"price"`
	PricePerCredit float64 `json:"pricePerCredit"`
}

var CreditPackages = []CreditPackage{
	{ID: "starter", Name: "Starter", Credits: 10, Price: 49, PricePerCredit: 4.9},
	{ID: "professional", Name: "Professional", Credits: 25, Price: 99, PricePerCredit: 3.96},
	{ID: "business", Name: "Business", Credits: 50, Price: 179, PricePerCredit: 3.58},
	{ID: "enterprise", Name: "Enterprise", Credits: 100, Price: 299, PricePerCredit: 2.99},
}

// FindCreditPackage looks up a package by id.
func FindCreditPackage(id string) (CreditPackage, bool) {
	for _, p := range CreditPackages {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPackage{}, false
}
