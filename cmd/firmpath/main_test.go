package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/firmpath/pkg/importer"
	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	orgs := writeFile(t, dir, "orgs.csv", "id,name\no1,Sequoia Capital\no2,Benchmark\n")
	alice := writeFile(t, dir, "alice.csv", "Notes:\n\nFirst Name,Last Name,URL,Email Address,Company,Position,Connected On\n"+
		"Jane,Doe,https://www.linkedin.com/in/janedoe,,Sequoia Capital LLC,Partner,\n")
	bob := writeFile(t, dir, "bob.csv", "First Name,Last Name,URL,Email Address,Company,Position,Connected On\n"+
		"Sam,Roe,https://www.linkedin.com/in/samroe,,Benchmark,,\n"+
		"No,Company,https://www.linkedin.com/in/nocompany,,,,\n")
	manual := writeFile(t, dir, "manual.json",
		`[{"organization_id":"o2","contact_id":"https://www.linkedin.com/in/friend","relationship_type":"knows_decision_maker","path_strength":0.6}]`)
	out := filepath.Join(dir, "edges.json")

	var stdout, stderr bytes.Buffer
	args := []string{
		"-orgs", orgs,
		"-contacts", "alice=" + alice,
		"-contacts", bob,
		"-owner", "bob",
		"-store", "sqlite",
		"-dsn", filepath.Join(dir, "edges.db"),
		"-import-edges", manual,
		"-no-cache",
		"-out", out,
	}
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v\n%s", err, stderr.String())
	}
	if !strings.Contains(stderr.String(), "2 relationships detected, 0 storage errors") {
		t.Errorf("summary missing from stderr:\n%s", stderr.String())
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close() //nolint:errcheck // read-only
	edges, err := importer.ReadEdgesJSON(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 3 {
		t.Fatalf("wrote %d edges, want 3: %+v", len(edges), edges)
	}
	if edges[0].Type != relation.WorksAt || edges[0].PathDescription != "Jane Doe (Partner) at Sequoia Capital LLC, connected via alice on unknown date" {
		t.Errorf("strongest edge = %+v", edges[0])
	}
	if last := edges[2]; last.Type != relation.IndustryOverlap || last.PathDescription != "Sam Roe (Position unknown) at Benchmark, connected via bob on unknown date" {
		t.Errorf("weakest edge = %+v", last)
	}
	if edges[1].DetectedVia != "manual" {
		t.Errorf("manual edge provenance = %q, want manual", edges[1].DetectedVia)
	}
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-store", "memory"}, &stdout, &stderr)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("run() error = %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(stderr.String(), "Usage: firmpath") {
		t.Errorf("usage not printed:\n%s", stderr.String())
	}
}

func TestRunBadStore(t *testing.T) {
	dir := t.TempDir()
	orgs := writeFile(t, dir, "orgs.csv", "id,name\no1,Acme\n")
	contacts := writeFile(t, dir, "c.csv", "First Name,Last Name,Company\nA,B,Acme\n")
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-orgs", orgs, "-contacts", contacts, "-store", "sqlite", "-no-cache"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "store.dsn") {
		t.Errorf("run() error = %v, want store.dsn validation error", err)
	}
}

func TestRunManualEdgeOnPreviouslyDetectedPair(t *testing.T) {
	dir := t.TempDir()
	orgs := writeFile(t, dir, "orgs.csv", "id,name\no2,Benchmark\n")
	contacts := writeFile(t, dir, "bob.csv", "First Name,Last Name,URL,Email Address,Company,Position,Connected On\n"+
		"Sam,Roe,https://www.linkedin.com/in/samroe,,Benchmark,,\n")
	manual := writeFile(t, dir, "manual.json",
		`[{"organization_id":"o2","contact_id":"https://www.linkedin.com/in/samroe","relationship_type":"knows_decision_maker","path_strength":0.6}]`)
	dsn := filepath.Join(dir, "edges.db")
	out := filepath.Join(dir, "edges.json")
	base := []string{"-orgs", orgs, "-contacts", "bob=" + contacts, "-store", "sqlite", "-dsn", dsn, "-no-cache", "-out", out}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), base, &stdout, &stderr); err != nil {
		t.Fatalf("first run() error = %v\n%s", err, stderr.String())
	}
	if err := run(context.Background(), append(base, "-import-edges", manual), &stdout, &stderr); err != nil {
		t.Fatalf("second run() error = %v\n%s", err, stderr.String())
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close() //nolint:errcheck // read-only
	edges, err := importer.ReadEdgesJSON(f)
	if err != nil {
		t.Fatal(err)
	}
	want := []relation.Edge{{
		OrganizationID: "o2",
		ContactID:      "https://www.linkedin.com/in/samroe",
		Type:           relation.KnowsDecisionMaker,
		PathStrength:   0.6,
		DetectedVia:    "manual",
	}}
	if diff := cmp.Diff(want, edges); diff != "" {
		t.Errorf("stored edges after second run mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitSource(t *testing.T) {
	dir := t.TempDir()
	withEquals := writeFile(t, dir, "a=b.csv", "")
	tests := []struct {
		in        string
		wantOwner string
		wantPath  string
	}{
		{in: "alice=exports/alice.csv", wantOwner: "alice", wantPath: "exports/alice.csv"},
		{in: "exports/alice.csv", wantPath: "exports/alice.csv"},
		{in: withEquals, wantPath: withEquals},
		{in: "carol=" + withEquals, wantOwner: "carol", wantPath: withEquals},
	}
	for _, tt := range tests {
		owner, path := splitSource(tt.in)
		if owner != tt.wantOwner || path != tt.wantPath {
			t.Errorf("splitSource(%q) = %q, %q; want %q, %q", tt.in, owner, path, tt.wantOwner, tt.wantPath)
		}
	}
}
