package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTablesSubtype(t *testing.T) {
	tables := DefaultTables()
	assert.True(t, tables.HasSubtype("POLE", "P286R", "endometrial"))
	assert.False(t, tables.HasSubtype("POLE", "P286R", "lung"))
}

func TestDefaultTablesInvestigationalOnly(t *testing.T) {
	tables := DefaultTables()
	assert.True(t, tables.IsInvestigationalOnly("KRAS", "pancreatic"))
	assert.False(t, tables.IsInvestigationalOnly("KRAS", "nsclc"))
}

func TestDefaultTablesPathwayDrugs(t *testing.T) {
	tables := DefaultTables()
	drugs, ok := tables.PathwayDrugs("PTEN")
	assert.True(t, ok)
	assert.NotEmpty(t, drugs)

	_, ok = tables.PathwayDrugs("NOTAGENE")
	assert.False(t, ok)
}

func TestLoadTablesMissingFileReturnsDefaults(t *testing.T) {
	tables, err := LoadTables("/nonexistent/path/gene_context.yaml")
	assert.NoError(t, err)
	assert.NotNil(t, tables)
	assert.True(t, tables.IsInvestigationalOnly("KRAS", "pancreatic"))
}
