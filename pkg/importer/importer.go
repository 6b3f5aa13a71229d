// Package importer reads contacts and organizations from export files and reads or
// writes edge sets as JSON.
package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
	"github.com/codeGROOVE-dev/firmpath/pkg/score"
)

// LinkedIn Connections.csv columns.
const (
	colFirstName   = "First Name"
	colLastName    = "Last Name"
	colURL         = "URL"
	colEmail       = "Email Address"
	colCompany     = "Company"
	colPosition    = "Position"
	colConnectedOn = "Connected On"
)

// contactNamespace seeds contact IDs derived from name and company.
var contactNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://firmpath.dev/contact"))

// ErrNoHeader is returned when a file has no recognizable header row.
var ErrNoHeader = errors.New("header row not found")

type config struct {
	logger *slog.Logger
}

// Option configures a reader.
type Option func(*config)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func newConfig(opts []Option) *config {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

// readHeader consumes records until one contains marker, and returns its column index.
func readHeader(cr *csv.Reader, marker string) (map[string]int, error) {
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if !slices.ContainsFunc(rec, func(s string) bool { return strings.EqualFold(clean(s), marker) }) {
			continue
		}
		idx := make(map[string]int, len(rec))
		for i, col := range rec {
			idx[strings.ToLower(clean(col))] = i
		}
		return idx, nil
	}
}

// clean trims whitespace and a UTF-8 byte order mark.
func clean(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}

func getCol(row []string, idx map[string]int, col string) string {
	i, ok := idx[strings.ToLower(col)]
	if !ok || i >= len(row) {
		return ""
	}
	return clean(row[i])
}

func requireCols(idx map[string]int, cols ...string) error {
	var missing []string
	for _, col := range cols {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns %q", missing)
	}
	return nil
}

// ReadContacts parses a LinkedIn Connections.csv export. Lines before the header (the
// "Notes:" preamble) are skipped. owner is recorded as the team member who holds each
// connection. The profile URL is the contact ID; contacts without one get a stable ID
// derived from name and company. Connection dates are converted to 2006-01-02 when
// they parse and kept verbatim otherwise. Rows with neither a name nor a URL are
// skipped, as are repeated IDs after the first.
func ReadContacts(r io.Reader, owner string, opts ...Option) ([]relation.Contact, error) {
	cfg := newConfig(opts)
	cr := newReader(r)

	idx, err := readHeader(cr, colFirstName)
	if err != nil {
		return nil, fmt.Errorf("contacts: %w", err)
	}
	if err := requireCols(idx, colFirstName, colLastName, colCompany); err != nil {
		return nil, fmt.Errorf("contacts: %w", err)
	}

	var out []relation.Contact
	seen := make(map[string]bool)
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("contacts: row %d: %w", line, err)
		}

		name := strings.TrimSpace(getCol(row, idx, colFirstName) + " " + getCol(row, idx, colLastName))
		url := getCol(row, idx, colURL)
		company := getCol(row, idx, colCompany)
		if name == "" && url == "" {
			cfg.logger.Debug("skipping contact row without name or url", "row", line)
			continue
		}

		id := url
		if id == "" {
			id = contactID(name, company, getCol(row, idx, colEmail))
		}
		if seen[id] {
			cfg.logger.Debug("skipping duplicate contact", "row", line, "contact_id", id)
			continue
		}
		seen[id] = true

		out = append(out, relation.Contact{
			ID:          id,
			FullName:    name,
			Company:     company,
			Position:    getCol(row, idx, colPosition),
			ConnectedOn: isoDate(getCol(row, idx, colConnectedOn)),
			Owner:       strings.TrimSpace(owner),
		})
	}
	cfg.logger.Debug("contacts read", "count", len(out), "owner", owner)
	return out, nil
}

func contactID(name, company, email string) string {
	key := strings.ToLower(name) + "\x00" + strings.ToLower(company) + "\x00" + strings.ToLower(email)
	return uuid.NewSHA1(contactNamespace, []byte(key)).String()
}

func isoDate(raw string) string {
	if t, ok := score.ParseDate(raw); ok {
		return t.Format(time.DateOnly)
	}
	return raw
}

// ReadOrganizations parses a CSV with "id" and "name" columns. Rows missing either
// are skipped; a repeated id keeps its first row.
func ReadOrganizations(r io.Reader, opts ...Option) ([]relation.Organization, error) {
	cfg := newConfig(opts)
	cr := newReader(r)

	idx, err := readHeader(cr, "id")
	if err != nil {
		return nil, fmt.Errorf("organizations: %w", err)
	}
	if err := requireCols(idx, "id", "name"); err != nil {
		return nil, fmt.Errorf("organizations: %w", err)
	}

	var out []relation.Organization
	seen := make(map[string]bool)
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("organizations: row %d: %w", line, err)
		}
		org := relation.Organization{ID: getCol(row, idx, "id"), Name: getCol(row, idx, "name")}
		if org.ID == "" || org.Name == "" {
			cfg.logger.Debug("skipping incomplete organization row", "row", line)
			continue
		}
		if seen[org.ID] {
			cfg.logger.Debug("skipping duplicate organization", "row", line, "organization_id", org.ID)
			continue
		}
		seen[org.ID] = true
		out = append(out, org)
	}
	return out, nil
}

// ReadEdgesJSON decodes a JSON array of edges and rejects unknown relationship types
// and strengths outside [0, 1].
func ReadEdgesJSON(r io.Reader) ([]relation.Edge, error) {
	var edges []relation.Edge
	if err := json.NewDecoder(r).Decode(&edges); err != nil {
		return nil, fmt.Errorf("decode edges: %w", err)
	}
	for i, e := range edges {
		if !e.Type.Valid() {
			return nil, fmt.Errorf("edge %d: unknown relationship type %q", i, e.Type)
		}
		if e.PathStrength < 0 || e.PathStrength > 1 {
			return nil, fmt.Errorf("edge %d: path strength %g outside [0, 1]", i, e.PathStrength)
		}
		if e.OrganizationID == "" || e.ContactID == "" {
			return nil, fmt.Errorf("edge %d: missing organization or contact id", i)
		}
	}
	return edges, nil
}

// WriteEdgesJSON encodes edges as an indented JSON array. A nil slice is written as [].
func WriteEdgesJSON(w io.Writer, edges []relation.Edge) error {
	if edges == nil {
		edges = []relation.Edge{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(edges); err != nil {
		return fmt.Errorf("encode edges: %w", err)
	}
	return nil
}
