package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/ventia/crm-ingest/internal/ingest"
	"github.com/ventia/crm-ingest/pkg/logging"
)

// Verifier decides whether an inbound delivery is trusted. A valid HMAC
// signature over the raw body always wins; a mismatch degrades to a
// phone-number heuristic because some provider integrations do not sign
// every delivery consistently.
type Verifier struct {
	secret          string
	productionPhone string
	logger          *logging.Logger
}

func NewVerifier(secret, productionPhone string, logger *logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Verifier{secret: secret, productionPhone: productionPhone, logger: logger}
}

// VerifyToken reports whether the subscription-handshake token matches
// the shared secret.
func (v *Verifier) VerifyToken(token string) bool {
	return v.secret != "" && token == v.secret
}

// SignatureValid computes HMAC-SHA256 over the exact body bytes and
// compares it with the supplied signature, tolerating a "sha256=" prefix.
func (v *Verifier) SignatureValid(body []byte, signature string) bool {
	if v.secret == "" || signature == "" {
		return false
	}
	sigHex := strings.TrimPrefix(signature, "sha256=")
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sigHex))
}

// ExtractSignature pulls the expected signature from query parameters or
// headers, query parameters first.
func ExtractSignature(r *http.Request) string {
	for _, key := range []string{"x-hub-signature-256", "x-signature-256"} {
		if sig := r.URL.Query().Get(key); sig != "" {
			return sig
		}
	}
	for _, key := range []string{"X-Hub-Signature-256", "X-Signature-256"} {
		if sig := r.Header.Get(key); sig != "" {
			return sig
		}
	}
	return ""
}

// AcceptUnsigned is the trust-degradation path for deliveries whose
// signature did not match. Instagram events skip phone validation; other
// events are accepted only when a sender or recipient identifier in the
// payload matches the configured production number. On inbound customer
// messages the production number is the recipient, so the check reads
// identifiers straight from the payload rather than the lead-matching
// candidate list, which carries only the sender for plain messages. With
// no production number configured every delivery is accepted, with a
// warning.
func (v *Verifier) AcceptUnsigned(payload map[string]any) bool {
	if platform, _ := payload["platform"].(string); platform == ingest.PlatformInstagram {
		v.logger.Warn("signature mismatch, accepting instagram delivery without phone check")
		return true
	}
	if v.productionPhone == "" {
		v.logger.Warn("signature mismatch and no production phone configured, accepting delivery")
		return true
	}
	want := ingest.NormalizePhone(v.productionPhone)
	for _, id := range ingest.VerificationIdentifiers(payload) {
		got := ingest.NormalizePhone(id)
		if got == "" {
			continue
		}
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return true
		}
	}
	v.logger.Warn("signature mismatch and no identifier matched production phone, rejecting")
	return false
}
