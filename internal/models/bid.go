package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Bid statuses. Accepted and rejected are terminal.
const (
	BidStatusSubmitted = "submitted"
	BidStatusAccepted  = "accepted"
	BidStatusRejected  = "rejected"
)

// Bid amounts are stored in INTEGER columns.
const (
	MaxItemCost = 100_000_000
	MaxBidTotal = math.MaxInt32
)

type BidItem struct {
	Description string `json:"description" validate:"required,max=200"`
	Cost        int    `json:"cost" validate:"gte=0,max=100000000"`
}

type Bid struct {
	ID                uuid.UUID  `json:"id"`
	ContractorUID     uuid.UUID  `json:"contractorUid"`
	HomeownerUID      uuid.UUID  `json:"homeownerUid"`
	ProjectID         uuid.UUID  `json:"projectId"`
	ContractorName    string     `json:"contractorName"`
	ProjectCategory   string     `json:"projectCategory"`
	ItemizedCosts     []BidItem  `json:"itemizedCosts"`
	TotalCost         int        `json:"totalCost"`
	EstimatedTimeline string     `json:"estimatedTimeline"`
	Notes             string     `json:"notes"`
	Status            string     `json:"status"`
	SubmittedAt       time.Time  `json:"submittedAt"`
	DecidedAt         *time.Time `json:"decidedAt,omitempty"`
}

// BidTotal sums item costs without overflowing. ok is false when the total
// does not fit MaxBidTotal or an item is negative.
func BidTotal(items []BidItem) (total int, ok bool) {
	var sum int64
	for _, it := range items {
		if it.Cost < 0 || int64(it.Cost) > MaxBidTotal {
			return 0, false
		}
		sum += int64(it.Cost)
		if sum > MaxBidTotal {
			return 0, false
		}
	}
	return int(sum), true
}

// CanTransitionBid allows only submitted -> accepted|rejected.
func CanTransitionBid(from, to string) bool {
	return from == BidStatusSubmitted && (to == BidStatusAccepted || to == BidStatusRejected)
}
