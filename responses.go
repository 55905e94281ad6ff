// responses.go

package gourdianauth

import (
	"encoding/json"
)

const (
	typeNameRegistrationSuccess = "TokenRegistrationSuccess"
	typeNameRegistrationError   = "TokenRegistrationError"
	typeNameVerificationSuccess = "TokenVerificationSuccess"
	typeNameVerificationError   = "TokenVerificationError"
)

// RegistrationResponse is the result of Create and Refresh: either
// *RegistrationSuccess or *RegistrationError.
type RegistrationResponse interface {
	TypeName() string
	isRegistrationResponse()
}

// RegistrationSuccess carries a freshly issued pair.
type RegistrationSuccess struct {
	Payload TokenPackage
}

// RegistrationError describes why no pair was issued.
type RegistrationError struct {
	Name string
	Msg  string
}

func (*RegistrationSuccess) TypeName() string { return typeNameRegistrationSuccess }
func (*RegistrationError) TypeName() string   { return typeNameRegistrationError }

func (*RegistrationSuccess) isRegistrationResponse() {}
func (*RegistrationError) isRegistrationResponse()   {}

func (r *RegistrationSuccess) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TypeName string       `json:"__typename"`
		Payload  TokenPackage `json:"payload"`
	}{r.TypeName(), r.Payload})
}

func (r *RegistrationError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TypeName string `json:"__typename"`
		errorBody
	}{r.TypeName(), errorBody{Name: r.Name, Msg: r.Msg}})
}

// VerificationResponse is the result of VerifyToken: either
// *VerificationSuccess or *VerificationError.
type VerificationResponse interface {
	TypeName() string
	isVerificationResponse()
}

// VerificationSuccess carries the verified, non-revoked access payload.
type VerificationSuccess struct {
	Payload AccessTokenPayload
}

// VerificationError describes why a token did not verify.
type VerificationError struct {
	Name string
	Msg  string
}

func (*VerificationSuccess) TypeName() string { return typeNameVerificationSuccess }
func (*VerificationError) TypeName() string   { return typeNameVerificationError }

func (*VerificationSuccess) isVerificationResponse() {}
func (*VerificationError) isVerificationResponse()   {}

func (r *VerificationSuccess) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TypeName string             `json:"__typename"`
		Payload  AccessTokenPayload `json:"payload"`
	}{r.TypeName(), r.Payload})
}

func (r *VerificationError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TypeName string `json:"__typename"`
		errorBody
	}{r.TypeName(), errorBody{Name: r.Name, Msg: r.Msg}})
}

type errorBody struct {
	Name string `json:"name"`
	Msg  string `json:"msg"`
}
