package reconcile

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/openplanning/dupaudit/pkg/constants"
	"github.com/openplanning/dupaudit/pkg/errors"
)

// Column order is fixed so the artifact is stable across runs: match
// fields, side A, side B, then the audit fields. Optional groups are
// dropped whole when their enrichment never ran, never emitted as
// all-null padding.
var (
	sideAColumns = []string{
		"entity_a_name",
		"entity_a_organisation",
		"entity_a_organisation_name",
		"entity_a_entry_date",
		"entity_a_end_date",
		"entity_a_geometry",
	}
	sideBColumns = []string{
		"entity_b_name",
		"entity_b_organisation",
		"entity_b_organisation_name",
		"entity_b_entry_date",
		"entity_b_end_date",
		"entity_b_geometry",
	}
	lookupColumns = []string{
		"lookup_organisation_a",
		"lookup_organisation_b",
	}
)

// Columns returns the artifact's column set for this result, in output
// order.
func (r *Result) Columns() []string {
	columns := []string{"dataset", "operation", "message", "entity_a"}
	if r.CatalogEnriched {
		columns = append(columns, sideAColumns...)
	}
	columns = append(columns, "entity_b")
	if r.CatalogEnriched {
		columns = append(columns, sideBColumns...)
	}
	columns = append(columns, "organisation_entity_a", "organisation_entity_b")
	if r.LookupEnriched {
		columns = append(columns, lookupColumns...)
	}
	columns = append(columns, "same_organisation", "in_programme")
	return columns
}

// Write serializes the result as CSV. A result with no records writes
// nothing: the artifact exists but is empty, which callers treat as a
// valid "no duplicates" deliverable.
func (r *Result) Write(w io.Writer) error {
	if len(r.Records) == 0 {
		return nil
	}

	columns := r.Columns()

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return errors.WrapIO("write", "artifact header", err)
	}
	for i := range r.Records {
		if err := cw.Write(r.Records[i].cells(columns)); err != nil {
			return errors.WrapIO("write", "artifact row", err)
		}
	}
	cw.Flush()
	return errors.WrapIO("write", "artifact", cw.Error())
}

// WriteFile writes the artifact into outputDir, creating the directory
// if needed. The file is written via a temporary name and renamed, so a
// failed run never leaves a partial artifact behind.
func (r *Result) WriteFile(outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, constants.DirPermissions); err != nil {
		return "", errors.WrapIO("create", outputDir, err)
	}

	path := filepath.Join(outputDir, constants.OutputArtifact)
	tmp, err := os.CreateTemp(outputDir, constants.OutputArtifact+".*")
	if err != nil {
		return "", errors.WrapIO("create", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := r.Write(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", errors.WrapIO("close", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), constants.FilePermissions); err != nil {
		return "", errors.WrapIO("chmod", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.WrapIO("rename", path, err)
	}
	return path, nil
}

// cells renders the record for the given column set.
func (rec *Record) cells(columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = rec.cell(col)
	}
	return out
}

func (rec *Record) cell(column string) string {
	switch column {
	case "dataset":
		return rec.Dataset
	case "operation":
		return rec.Operation
	case "message":
		return rec.Message
	case "entity_a":
		return intCell(rec.A.Entity)
	case "entity_a_name":
		return strCell(rec.A.Name)
	case "entity_a_organisation":
		return intCell(rec.A.Organisation)
	case "entity_a_organisation_name":
		return strCell(rec.A.OrganisationName)
	case "entity_a_entry_date":
		return strCell(rec.A.EntryDate)
	case "entity_a_end_date":
		return strCell(rec.A.EndDate)
	case "entity_a_geometry":
		return strCell(rec.A.Geometry)
	case "entity_b":
		return intCell(rec.B.Entity)
	case "entity_b_name":
		return strCell(rec.B.Name)
	case "entity_b_organisation":
		return intCell(rec.B.Organisation)
	case "entity_b_organisation_name":
		return strCell(rec.B.OrganisationName)
	case "entity_b_entry_date":
		return strCell(rec.B.EntryDate)
	case "entity_b_end_date":
		return strCell(rec.B.EndDate)
	case "entity_b_geometry":
		return strCell(rec.B.Geometry)
	case "organisation_entity_a":
		return intCell(rec.OrgRefA)
	case "organisation_entity_b":
		return intCell(rec.OrgRefB)
	case "lookup_organisation_a":
		return strCell(rec.LookupOrgA)
	case "lookup_organisation_b":
		return strCell(rec.LookupOrgB)
	case "same_organisation":
		return strconv.FormatBool(rec.SameOrganisation)
	case "in_programme":
		return strconv.FormatBool(rec.InProgramme)
	default:
		return ""
	}
}

func intCell(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func strCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
