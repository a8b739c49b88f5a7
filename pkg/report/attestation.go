package report

import (
	"crypto"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// Attestation is the signed record emitted when a server is admitted to
// the registry. It binds the server name to the verification outcome so
// downstream consumers can check admission without re-running the pipeline.
type Attestation struct {
	// Server is the registered server name.
	Server string `json:"server"`

	// Approved is the verification outcome.
	Approved bool `json:"approved"`

	// DescriptionMatch is the similarity score at decision time.
	DescriptionMatch float64 `json:"descriptionMatch"`

	// SecurityIssueCount is the number of security findings at decision time.
	SecurityIssueCount int `json:"securityIssueCount"`

	// IssuedAt is when the attestation was signed.
	IssuedAt time.Time `json:"iat"`
}

// NewAttestation builds an attestation for a named server from its report.
func NewAttestation(server string, r *VerificationReport) *Attestation {
	return &Attestation{
		Server:             server,
		Approved:           r.Approved,
		DescriptionMatch:   r.DescriptionMatch,
		SecurityIssueCount: len(r.SecurityIssues),
		IssuedAt:           time.Now().UTC(),
	}
}

// Sign creates a compact JWS token over the attestation using the private
// key. Ed25519 is the only supported algorithm.
func Sign(att *Attestation, privateKey crypto.PrivateKey) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: privateKey}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	payload, err := json.Marshal(att)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attestation: %w", err)
	}

	jwsObj, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}

	token, err := jwsObj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize JWS: %w", err)
	}

	return token, nil
}

// VerifyAttestation checks the token signature against the public key and
// returns the embedded attestation.
func VerifyAttestation(token string, publicKey ed25519.PublicKey) (*Attestation, error) {
	jwsObj, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWS: %w", err)
	}

	payload, err := jwsObj.Verify(publicKey)
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	var att Attestation
	if err := json.Unmarshal(payload, &att); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attestation: %w", err)
	}
	return &att, nil
}
