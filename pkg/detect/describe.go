package detect

import (
	"fmt"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
	"github.com/codeGROOVE-dev/firmpath/pkg/score"
)

// Placeholders used when a contact field is missing.
const (
	UnknownName     = "Unknown contact"
	UnknownPosition = "Position unknown"
	UnknownCompany  = "Company unknown"
	UnknownOwner    = "unknown team member"
	UnknownDate     = "unknown date"
)

// Describe renders the human-readable path description for a contact.
func Describe(c relation.Contact) string {
	return fmt.Sprintf("%s (%s) at %s, connected via %s on %s",
		orDefault(c.FullName, UnknownName),
		orDefault(c.Position, UnknownPosition),
		orDefault(c.Company, UnknownCompany),
		orDefault(c.Owner, UnknownOwner),
		connectedDate(c.ConnectedOn))
}

func connectedDate(raw string) string {
	if d, ok := score.ParseDate(raw); ok {
		return d.Format(time.DateOnly)
	}
	return orDefault(raw, UnknownDate)
}

func orDefault(s, placeholder string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return placeholder
}
