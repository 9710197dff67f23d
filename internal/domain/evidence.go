package domain

// SourceName identifies one of the eight evidence sources.
type SourceName string

const (
	SourceMyVariant SourceName = "myvariant"
	SourceFDA       SourceName = "fda"
	SourceCGI       SourceName = "cgi"
	SourceVICC      SourceName = "vicc"
	SourceCIViC     SourceName = "civic"
	SourceLiterature SourceName = "literature"
	SourceTrials    SourceName = "trials"
	SourceOncoKB    SourceName = "oncokb"
)

// FetchState distinguishes "never asked / nothing there" from "asked but
// the underlying call failed", which the tier engine's confidence penalty
// and the §7 error-handling policy both depend on.
type FetchState string

const (
	FetchPresent  FetchState = "present"
	FetchAbsent   FetchState = "absent"
	FetchDegraded FetchState = "degraded"
)

// EvidenceLevel is the source-independent grade used across CGI, VICC and
// CIViC fragments: A (validated/FDA) > B (clinical) > C (case series) > D
// (preclinical).
type EvidenceLevel string

const (
	LevelA EvidenceLevel = "A"
	LevelB EvidenceLevel = "B"
	LevelC EvidenceLevel = "C"
	LevelD EvidenceLevel = "D"
)

// Rank orders levels for threshold comparisons (A=0 is best).
func (l EvidenceLevel) Rank() int {
	switch l {
	case LevelA:
		return 0
	case LevelB:
		return 1
	case LevelC:
		return 2
	case LevelD:
		return 3
	}
	return 99
}

// DrugResponse is the direction of a drug-variant relationship.
type DrugResponse string

const (
	ResponseSensitive DrugResponse = "sensitive"
	ResponseResistant DrugResponse = "resistant"
)

// MyVariantFragment carries MyVariant.info's database cross-references and
// functional scores for the queried variant.
type MyVariantFragment struct {
	State              FetchState
	COSMICID           string
	DbSNPID            string
	ClinVarID          string
	NCBIGeneID         string
	HGVS               string
	PolyPhen2          float64
	CADD               float64
	GnomADAF           float64
	AlphaMissense      float64
	ClinVarSignificance string
}

// FDALabelMatch is one drug label hit returned by the FDA client.
type FDALabelMatch struct {
	Drug               string
	Brand              string
	IndicationText     string
	ApprovalDate       string
	MarketingStatus    string
}

// FDAFragment carries openFDA label matches for the queried gene/variant.
type FDAFragment struct {
	State                   FetchState
	Matches                 []FDALabelMatch
	MentionsVariantInLabel  bool
}

// CGIBiomarker is one row of the CGI catalog matching the query.
type CGIBiomarker struct {
	Drugs          []string
	Response       DrugResponse
	EvidenceStatus string // fda | nccn | clinical | preclinical
	TumorTokens    []string
	VariantPattern string
}

// CGIFragment carries Cancer Genome Interpreter biomarker matches.
type CGIFragment struct {
	State      FetchState
	Biomarkers []CGIBiomarker
}

// VICCAssociation is one association entry from the VICC meta-knowledgebase.
type VICCAssociation struct {
	Drug          string
	Response      DrugResponse
	EvidenceLevel EvidenceLevel
	OncoKBLevel   string
	Source        string
	Tumor         string
}

// VICCFragment carries VICC associations with compound-mutation resistance
// entries already filtered out by the client.
type VICCFragment struct {
	State        FetchState
	Associations []VICCAssociation
}

// CIViCSignificance is the clinical-significance axis of a CIViC item.
type CIViCSignificance string

const (
	SignificancePredictive CIViCSignificance = "PREDICTIVE"
	SignificancePrognostic CIViCSignificance = "PROGNOSTIC"
	SignificanceDiagnostic CIViCSignificance = "DIAGNOSTIC"
	SignificanceOncogenic  CIViCSignificance = "ONCOGENIC"
)

// CIViCAssertion is a curated CIViC assertion carrying its own AMP tier
// and level, distinct from the raw evidence items that back it.
type CIViCAssertion struct {
	AMPTier             string // I | II | III | IV
	AMPLevel            EvidenceLevel
	Significance        CIViCSignificance
	Response            DrugResponse
	Therapies           []string
	Disease             string
	FDACompanionTest    bool
	NCCNGuideline       bool
}

// CIViCEvidenceItem is a single raw evidence item, one level below an
// assertion in curation maturity.
type CIViCEvidenceItem struct {
	Level        EvidenceLevel
	Significance CIViCSignificance
	Response     DrugResponse
	Therapies    []string
	Disease      string
}

// CIViCFragment carries CIViC evidence items and assertions.
type CIViCFragment struct {
	State       FetchState
	Items       []CIViCEvidenceItem
	Assertions  []CIViCAssertion
}

// LiteratureSignal is the direction a scored paper carries.
type LiteratureSignal string

const (
	SignalSensitivity LiteratureSignal = "sensitivity"
	SignalResistance  LiteratureSignal = "resistance"
	SignalPrognostic  LiteratureSignal = "prognostic"
	SignalMixed       LiteratureSignal = "mixed"
	SignalIrrelevant  LiteratureSignal = "irrelevant"
)

// LiteraturePaper is one scored paper surviving the relevance filter.
type LiteraturePaper struct {
	PaperID   string
	Title     string
	Year      int
	Citations int
	TLDR      string
	Abstract  string
	Score     float64
	Signal    LiteratureSignal
	Drugs     []string
}

// MutationRole distinguishes a queried variant acting as the primary
// oncogenic driver from one acting as a secondary resistance mutation.
type MutationRole string

const (
	MutationPrimary   MutationRole = "primary"
	MutationSecondary MutationRole = "secondary"
)

// LiteratureKnowledge is the consolidated structured block produced by the
// knowledge extractor over the kept papers. It is data the tier engine may
// consult; it never determines tier by itself outside the defined branch.
type LiteratureKnowledge struct {
	MutationType      MutationRole
	ResistantTo       []string
	SensitiveTo       []string
	EvidenceLevelTag  string // e.g. "FDA-approved", "Phase 3"
	Rationale         string
	Confidence        float64
}

// LiteratureFragment carries the raw papers and the consolidated knowledge
// block, if extraction succeeded.
type LiteratureFragment struct {
	State     FetchState
	Papers    []LiteraturePaper
	Knowledge *LiteratureKnowledge
}

// ClinicalTrial is one matching trial record.
type ClinicalTrial struct {
	NCTID                     string
	Phase                     string
	Status                    string
	VariantExplicitlyMentioned bool
	Drugs                     []string
	Sponsor                   string
}

// TrialsFragment carries ClinicalTrials.gov matches.
type TrialsFragment struct {
	State  FetchState
	Trials []ClinicalTrial
}

// DominantSignal classifies the net sensitivity/resistance balance of an
// Evidence dossier per the 80% threshold rule.
type DominantSignal string

const (
	DominantSensitivityOnly     DominantSignal = "sensitivity_only"
	DominantResistanceOnly     DominantSignal = "resistance_only"
	DominantSensitivityMajority DominantSignal = "sensitivity_dominant"
	DominantResistanceMajority DominantSignal = "resistance_dominant"
	DominantMixed              DominantSignal = "mixed"
)

// DrugNetSignal is the per-drug aggregated direction computed by the
// aggregator's 3:1 net-signal rule.
type DrugNetSignal string

const (
	DrugSensitive DrugNetSignal = "SENSITIVE"
	DrugResistant DrugNetSignal = "RESISTANT"
	DrugMixed     DrugNetSignal = "MIXED"
)

// AggregatedDrug is one drug's consolidated signal across all sources.
type AggregatedDrug struct {
	Name       string
	NetSignal  DrugNetSignal
	BestLevel  EvidenceLevel
}

// Evidence is the per-assessment dossier the tier engine consumes. Each
// fragment field is independently present/absent/degraded; a nil pointer
// means the source produced no fragment, and the aggregator then lists it
// in AbsentSources.
type Evidence struct {
	Variant NormalizedVariant

	MyVariant  *MyVariantFragment
	FDA        *FDAFragment
	CGI        *CGIFragment
	VICC       *VICCFragment
	CIViC      *CIViCFragment
	Literature *LiteratureFragment
	Trials     *TrialsFragment
	IsCancerGene bool

	SensitivityCountByLevel map[EvidenceLevel]int
	ResistanceCountByLevel  map[EvidenceLevel]int
	Conflicts               []string // drug names with both signals present
	DominantSignal          DominantSignal
	Drugs                   []AggregatedDrug

	DegradedSources []SourceName
	AbsentSources   []SourceName
}

// SensitivityCount totals sensitivity entries across all levels.
func (e Evidence) SensitivityCount() int {
	total := 0
	for _, n := range e.SensitivityCountByLevel {
		total += n
	}
	return total
}

// ResistanceCount totals resistance entries across all levels.
func (e Evidence) ResistanceCount() int {
	total := 0
	for _, n := range e.ResistanceCountByLevel {
		total += n
	}
	return total
}
