package models

// UserRecord is a registered user in Firestore. The document key is assigned
// by the store and travels separately from the fields.
type UserRecord struct {
	FirstName        string   `json:"firstName" firestore:"firstName"`
	LastName         string   `json:"lastName" firestore:"lastName"`
	Email            string   `json:"email" firestore:"email"`
	PhoneCountryCode string   `json:"phoneCountryCode" firestore:"phoneCountryCode"`
	Telephone        string   `json:"telephone" firestore:"telephone"`
	IDType           string   `json:"idType" firestore:"idType"`
	IDNumber         string   `json:"idNumber" firestore:"idNumber"`
	Department       string   `json:"department" firestore:"department"`
	Municipality     string   `json:"municipality" firestore:"municipality"`
	Direction        string   `json:"direction" firestore:"direction"`
	MonthlyEarns     float64  `json:"monthlyEarns" firestore:"monthlyEarns"`
	DocumentImageURL []string `json:"documentImageUrl,omitempty" firestore:"documentImageUrl,omitempty"`
	SelfieImage      string   `json:"selfieImage,omitempty" firestore:"selfieImage,omitempty"`
}

// Firestore field names mutated outside registration.
const (
	FieldDocumentImageURL = "documentImageUrl"
	FieldSelfieImage      = "selfieImage"
)
