package manifest

import (
	"encoding/json"
	"fmt"

	"example.com/logopack/internal/crypto"
)

// Sign records the signer of certPEM in m and returns the manifest bytes
// together with a detached JWS over exactly those bytes.
func Sign(m Manifest, keyPEM, certPEM []byte, sigFile string) ([]byte, []byte, error) {
	cert, err := crypto.ParseCertificate(certPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse cert: %w", err)
	}
	m.Signature = &Signature{
		Type:          "jws-detached",
		CertSubject:   cert.Subject.String(),
		Issuer:        cert.Issuer.String(),
		SignatureFile: sigFile,
	}
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	jws, err := crypto.SignDetached(payload, keyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("sign: %w", err)
	}
	sig, err := json.MarshalIndent(jws, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return payload, sig, nil
}

// VerifySignature checks a detached JWS produced by Sign.
func VerifySignature(manifestBytes, jwsBytes, certPEM []byte) error {
	var jws crypto.JWS
	if err := json.Unmarshal(jwsBytes, &jws); err != nil {
		return fmt.Errorf("parse jws: %w", err)
	}
	return crypto.VerifyDetached(manifestBytes, jws, certPEM)
}
