package models

import (
	"time"

	"github.com/google/uuid"
)

// Project statuses.
const (
	ProjectStatusOpen       = "open"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusClosed     = "closed"
)

// Project is the public projection every contractor may see.
type Project struct {
	ID                 uuid.UUID `json:"id"`
	HomeownerUID       uuid.UUID `json:"homeownerUid"`
	ProjectTitle       string    `json:"projectTitle"`
	Category           string    `json:"category"`
	CategoryName       string    `json:"categoryName"`
	PropertyType       string    `json:"propertyType"`
	OwnershipStatus    string    `json:"ownershipStatus"`
	BudgetRange        string    `json:"budgetRange"`
	BudgetLabel        string    `json:"budgetLabel"`
	PreferredStartDate string    `json:"preferredStartDate"`
	City               string    `json:"city"`
	CreditCost         int       `json:"creditCost"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ProjectPrivateDetails is withheld until the viewer holds an unlock or owns the project.
type ProjectPrivateDetails struct {
	ProjectID            uuid.UUID `json:"projectId"`
	HomeownerName        string    `json:"homeownerName"`
	HomeownerEmail       string    `json:"homeownerEmail"`
	HomeownerPhone       string    `json:"homeownerPhone"`
	FullDescription      string    `json:"fullDescription"`
	StreetAddress        string    `json:"streetAddress"`
	Unit                 string    `json:"unit"`
	Province             string    `json:"province"`
	PostalCode           string    `json:"postalCode"`
	ScopeOfWork          []string  `json:"scopeOfWork"`
	HasDrawings          string    `json:"hasDrawings"`
	HasPermits           string    `json:"hasPermits"`
	MaterialsProvider    string    `json:"materialsProvider"`
	Deadline             string    `json:"deadline"`
	ContactPreference    string    `json:"contactPreference"`
	ParkingAvailable     string    `json:"parkingAvailable"`
	BuildingRestrictions string    `json:"buildingRestrictions"`
	Photos               []string  `json:"photos"`
}

var projectTransitions = map[string][]string{
	ProjectStatusOpen:       {ProjectStatusInProgress, ProjectStatusClosed},
	ProjectStatusInProgress: {ProjectStatusCompleted, ProjectStatusClosed},
}

// CanTransitionProject reports whether a project may move from one status to another.
func CanTransitionProject(from, to string) bool {
	for _, s := range projectTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var creditCostByBudget = map[string]int{
	"under_5000":    2,
	"5000_15000":    3,
	"15000_30000":   5,
	"30000_50000":   7,
	"50000_100000":  10,
	"100000_250000": 15,
	"over_250000":   20,
}

// CreditCostFor returns the unlock price for a budget range. ok is false for unknown ranges.
func CreditCostFor(budgetRange string) (cost int, ok bool) {
	cost, ok = creditCostByBudget[budgetRange]
	return cost, ok
}

var BudgetLabels = map[string]string{
	"under_5000":    "Under $5,000",
	"5000_15000":    "$5,000 – $15,000",
	"15000_30000":   "$15,000 – $30,000",
	"30000_50000":   "$30,000 – $50,000",
	"50000_100000":  "$50,000 – $100,000",
	"100000_250000": "$100,000 – $250,000",
	"over_250000":   "Over $250,000",
}

var CategoryLabels = map[string]string{
	"kitchen":           "Kitchen Renovation",
	"bathroom":          "Bathroom Renovation",
	"basement":          "Basement Finishing",
	"roofing":           "Roofing",
	"flooring":          "Flooring",
	"painting":          "Painting",
	"plumbing":          "Plumbing",
	"electrical":        "Electrical",
	"landscaping":       "Landscaping",
	"general":           "General Renovation",
	"addition":          "Home Addition",
	"deck_patio":        "Deck / Patio",
	"windows_doors":     "Windows & Doors",
	"hvac":              "HVAC",
	"home_extension":    "Home Extension",
	"adu":               "ADU (Accessory Dwelling Unit)",
	"garage_conversion": "Garage Conversion",
	"full_renovation":   "Full House Renovation",
	"commercial":        "Commercial Renovation",
	"other":             "Other",
}
