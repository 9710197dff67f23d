package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// VariantClass is one named class of variants sharing a therapeutic
// profile within a gene, e.g. BRAF's "V600".
type VariantClass struct {
	Name             string   `yaml:"name"`
	Patterns         []string `yaml:"patterns"`
	Variants         []string `yaml:"variants"`
	ExcludeVariants  []string `yaml:"exclude_variants"`
}

// GeneClasses is the per-gene variant-class table entry.
type GeneClasses struct {
	RequireExplicit bool           `yaml:"require_explicit"`
	Classes         []VariantClass `yaml:"classes"`
}

// SubtypeEntry is one molecular-subtype-defining variant.
type SubtypeEntry struct {
	Gene      string `yaml:"gene"`
	Variant   string `yaml:"variant"`
	TumorType string `yaml:"tumor_type"`
}

// InvestigationalPair is a (gene, tumor) combination forced to Tier III
// regardless of trial evidence.
type InvestigationalPair struct {
	Gene      string `yaml:"gene"`
	TumorType string `yaml:"tumor_type"`
}

// PathwayActionableGene maps a pathway-actionable tumor suppressor to the
// drugs whose mechanism targets its pathway.
type PathwayActionableGene struct {
	Gene  string   `yaml:"gene"`
	Drugs []string `yaml:"drugs"`
}

// Tables is the complete set of static decision tables the tier engine
// and variant-class matcher consult. They are loaded once at startup and
// shared read-only for the process lifetime.
type Tables struct {
	VariantClasses       map[string]GeneClasses           `yaml:"variant_classes"`
	Subtypes              []SubtypeEntry                  `yaml:"subtypes"`
	InvestigationalOnly    []InvestigationalPair           `yaml:"investigational_only"`
	PathwayActionableTSGs map[string]PathwayActionableGene `yaml:"pathway_actionable_tsgs"`
}

// LoadTables reads a YAML file at path if present; a present file
// replaces DefaultTables entirely, with no merging of the two. An absent
// file is not an error: DefaultTables is returned instead.
func LoadTables(path string) (*Tables, error) {
	tables := DefaultTables()
	if path == "" {
		return tables, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tables, nil
		}
		return nil, err
	}
	var loaded Tables
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, err
	}
	return &loaded, nil
}

// DefaultTables returns the built-in gene-context tables covering the
// genes named explicitly in the tiering cascade's worked examples.
func DefaultTables() *Tables {
	return &Tables{
		VariantClasses: map[string]GeneClasses{
			"BRAF": {
				RequireExplicit: true,
				Classes: []VariantClass{
					{Name: "V600", Patterns: []string{"v600"}, Variants: []string{"V600E", "V600K", "V600D", "V600R"}},
				},
			},
			"KIT": {
				RequireExplicit: true,
				Classes: []VariantClass{
					{Name: "exon11", Patterns: []string{"w557", "v559", "l576"}, Variants: []string{"*"}},
					{Name: "exon9", Patterns: []string{"a502_y503dup"}, Variants: []string{"*"}},
				},
			},
			"KRAS": {
				RequireExplicit: true,
				Classes: []VariantClass{
					{Name: "G12C", Patterns: []string{"g12c"}, Variants: []string{"G12C"}},
					{Name: "generic", Patterns: []string{"g12", "g13", "q61"}, Variants: []string{"*"}},
				},
			},
			"EGFR": {
				RequireExplicit: true,
				Classes: []VariantClass{
					{Name: "classical_tki", Patterns: []string{"e746", "l858r", "exon19"}, Variants: []string{"*"},
						ExcludeVariants: []string{"T790M", "R108K"}},
					{Name: "t790m_resistance", Patterns: []string{"t790m"}, Variants: []string{"T790M"}},
				},
			},
		},
		Subtypes: []SubtypeEntry{
			{Gene: "POLE", Variant: "P286R", TumorType: "endometrial"},
			{Gene: "POLE", Variant: "V411L", TumorType: "endometrial"},
		},
		InvestigationalOnly: []InvestigationalPair{
			{Gene: "KRAS", TumorType: "pancreatic"},
		},
		PathwayActionableTSGs: map[string]PathwayActionableGene{
			"PTEN": {Gene: "PTEN", Drugs: []string{"capivasertib", "alpelisib"}},
			"VHL":  {Gene: "VHL", Drugs: []string{"belzutifan"}},
			"NF1":  {Gene: "NF1", Drugs: []string{"selumetinib"}},
			"TSC1": {Gene: "TSC1", Drugs: []string{"everolimus"}},
			"TSC2": {Gene: "TSC2", Drugs: []string{"everolimus"}},
		},
	}
}

// HasSubtype reports whether (gene, variant, tumor) matches a molecular
// subtype-defining entry.
func (t *Tables) HasSubtype(gene, variant, tumor string) bool {
	for _, s := range t.Subtypes {
		if strings.EqualFold(s.Gene, gene) && strings.EqualFold(s.Variant, variant) && strings.EqualFold(s.TumorType, tumor) {
			return true
		}
	}
	return false
}

// IsInvestigationalOnly reports whether (gene, tumor) has no approved
// targeted therapy per the investigational-only table.
func (t *Tables) IsInvestigationalOnly(gene, tumor string) bool {
	for _, p := range t.InvestigationalOnly {
		if strings.EqualFold(p.Gene, gene) && strings.EqualFold(p.TumorType, tumor) {
			return true
		}
	}
	return false
}

// PathwayDrugs returns the pathway-targeting drugs for a tumor-suppressor
// gene, and whether the gene is in the table at all.
func (t *Tables) PathwayDrugs(gene string) ([]string, bool) {
	g, ok := t.PathwayActionableTSGs[gene]
	if !ok {
		return nil, false
	}
	return g.Drugs, true
}
