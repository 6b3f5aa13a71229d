// Package relation defines the common types shared by the relationship detection engine.
package relation

// DetectedViaCompanyMatch is the provenance tag carried by every edge the engine writes.
// Edges with any other provenance (manual entries) are never touched by a run.
const DetectedViaCompanyMatch = "company_match"

// RelationshipType categorizes how a contact connects to an organization.
type RelationshipType string

// Relationship type constants. The set is closed.
const (
	WorksAt             RelationshipType = "works_at"
	FormerColleague     RelationshipType = "former_colleague"
	KnowsDecisionMaker  RelationshipType = "knows_decision_maker"
	IndustryOverlap     RelationshipType = "industry_overlap"
	GeographicProximity RelationshipType = "geographic_proximity"
)

// AllRelationshipTypes returns every relationship type in declaration order.
func AllRelationshipTypes() []RelationshipType {
	return []RelationshipType{WorksAt, FormerColleague, KnowsDecisionMaker, IndustryOverlap, GeographicProximity}
}

// Valid reports whether t is a member of the closed enumeration.
func (t RelationshipType) Valid() bool {
	switch t {
	case WorksAt, FormerColleague, KnowsDecisionMaker, IndustryOverlap, GeographicProximity:
		return true
	default:
		return false
	}
}

// Strength is the coarse display bucket derived from a numeric path strength.
type Strength string

// Strength labels.
const (
	Strong Strength = "strong"
	Medium Strength = "medium"
	Weak   Strength = "weak"
)

// Contact is an imported professional contact. Empty strings stand for missing values.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Contact struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name,omitempty"`
	Company     string `json:"company,omitempty"`      // Free-text employer name
	Position    string `json:"position,omitempty"`     // Current title, if known
	ConnectedOn string `json:"connected_on,omitempty"` // Calendar date, ISO preferred
	Owner       string `json:"owner,omitempty"`        // Team member who owns the connection
}

// Organization is a target firm.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Key identifies an edge. At most one engine-generated edge exists per key.
type Key struct {
	OrganizationID string
	ContactID      string
}

// Edge is a scored, typed link between one contact and one organization.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Edge struct {
	OrganizationID  string           `json:"organization_id"`
	ContactID       string           `json:"contact_id"`
	Type            RelationshipType `json:"relationship_type"`
	PathStrength    float64          `json:"path_strength"`
	PathDescription string           `json:"path_description"`
	DetectedVia     string           `json:"detected_via"`
}

// Key returns the (organization, contact) pair of the edge.
func (e Edge) Key() Key {
	return Key{OrganizationID: e.OrganizationID, ContactID: e.ContactID}
}
