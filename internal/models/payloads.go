package models

import "encoding/json"

// These structs define the JSON payloads exchanged with HTTP clients.

// RegisterUserRequest is the body of POST /registerUser. MonthlyEarns stays a
// json.Number so the validator can inspect its textual precision before any
// float conversion rounds it.
type RegisterUserRequest struct {
	FirstName        string      `json:"firstName"`
	LastName         string      `json:"lastName"`
	Email            string      `json:"email"`
	PhoneCountryCode string      `json:"phoneCountryCode"`
	Telephone        string      `json:"telephone"`
	IDType           string      `json:"idType"`
	IDNumber         string      `json:"idNumber"`
	Department       string      `json:"department"`
	Municipality     string      `json:"municipality"`
	Direction        string      `json:"direction"`
	MonthlyEarns     json.Number `json:"monthlyEarns"`
}

// RegisterUserResponse acknowledges a registration with the new document key.
type RegisterUserResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// UserSummary is one entry of the GET /getAllUsers response.
type UserSummary struct {
	ID string `json:"id"`
	UserRecord
}

// UploadImageResponse acknowledges a document or selfie upload.
type UploadImageResponse struct {
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl"`
}

// DetectFaceResponse is the body of a successful POST /detectFace.
type DetectFaceResponse struct {
	ValidFace bool `json:"validFace"`
	FaceCount int  `json:"faceCount"`
}

// Violation names one field rule an incoming payload broke.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON envelope for every failed request. Violations is
// present only for validation failures on registration.
type ErrorResponse struct {
	Error      string      `json:"error"`
	Violations []Violation `json:"violations,omitempty"`
}
