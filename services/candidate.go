package services

// Strategy tags an extraction candidate with its origin.
type Strategy string

const (
	StrategyStructured Strategy = "structured"
	StrategyHeuristic  Strategy = "heuristic"
)

// Fields is a partially-populated bibliographic field map shared by the
// structured extractor, the heuristic parser and the enrichment merge.
// Absent fields stay zero-valued; absence of data is not an error.
type Fields struct {
	Authors       string
	Year          int
	Title         string
	Keywords      string
	Abstract      string
	Journal       string
	Publisher     string
	Volume        string
	ISBNISSN      string
	ArticleNumber string
	Pages         string
	DOI           string
	Link          string
	Language      string
	DocType       string
	DocTypeOther  string
	PeerReviewed  string
	OpenAccess    string
}

// Empty reports whether no field is populated at all.
func (f Fields) Empty() bool {
	return f == Fields{}
}

// ExtractionCandidate is the transient, tagged outcome of one extraction
// strategy. It is produced and discarded within a single job run.
type ExtractionCandidate struct {
	Strategy   Strategy
	Fields     Fields
	References []Fields
	Score      float64
}
