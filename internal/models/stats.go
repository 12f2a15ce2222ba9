package models

// AdminStats are platform-wide counts for the admin dashboard.
type AdminStats struct {
	Homeowners                int            `json:"homeowners"`
	Contractors               int            `json:"contractors"`
	Admins                    int            `json:"admins"`
	VerifiedContractors       int            `json:"verifiedContractors"`
	PendingContractors        int            `json:"pendingContractors"`
	RejectedContractors       int            `json:"rejectedContractors"`
	TotalCreditsInCirculation int            `json:"totalCreditsInCirculation"`
	Projects                  int            `json:"projects"`
	ProjectsByStatus          map[string]int `json:"projectsByStatus"`
	Bids                      int            `json:"bids"`
	AcceptedBids              int            `json:"acceptedBids"`
	Conversations             int            `json:"conversations"`
	Unlocks                   int            `json:"unlocks"`
}

type ContractorStats struct {
	TotalBids        int `json:"totalBids"`
	AcceptedBids     int `json:"acceptedBids"`
	UnlockedProjects int `json:"unlockedProjects"`
	CreditsSpent     int `json:"creditsSpent"`
	CreditBalance    int `json:"creditBalance"`
}

type HomeownerStats struct {
	Projects     int `json:"projects"`
	OpenProjects int `json:"openProjects"`
	BidsReceived int `json:"bidsReceived"`
	AcceptedBids int `json:"acceptedBids"`
}
