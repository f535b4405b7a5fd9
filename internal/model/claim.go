package model

// Claim is a fact attributed to an offer, before verification
type Claim struct {
	Kind  ClaimKind `json:"kind"`
	Key   string    `json:"key"`             // attribute or spec name, e.g. "battery life"
	Value string    `json:"value,omitempty"` // stated value, e.g. "20 hours"
	Text  string    `json:"text"`            // original wording
}

// ClaimKind categorizes a claim for verification
type ClaimKind string

const (
	ClaimKindPrice         ClaimKind = "price"          // current price
	ClaimKindOriginalPrice ClaimKind = "original_price" // list price before discount
	ClaimKindAttribute     ClaimKind = "attribute"      // attribute or spec
	ClaimKindAvailability  ClaimKind = "availability"   // stock status
)

// ClaimStatus is the grounding verdict for a claim
type ClaimStatus string

const (
	StatusVerified ClaimStatus = "verified"
	StatusInferred ClaimStatus = "inferred"
	StatusUnknown  ClaimStatus = "unknown"
)

// Marker returns the status marker shown to the user
func (s ClaimStatus) Marker() string {
	switch s {
	case StatusVerified:
		return "✅"
	case StatusInferred:
		return "⚠️"
	case StatusUnknown:
		return "❌"
	default:
		return ""
	}
}

// VerifiedClaim is the output of fact verification
type VerifiedClaim struct {
	Key       string      `json:"key"`
	Text      string      `json:"text"`
	Status    ClaimStatus `json:"status"`
	SourceURL string      `json:"source_url,omitempty"` // required when verified
	Rule      string      `json:"rule,omitempty"`       // disclosed rule when inferred
}
