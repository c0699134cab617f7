package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ref-mill/models"
)

func TestExtractDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "doi url",
			text: "Available at https://doi.org/10.1371/journal.pone.0212485",
			want: "10.1371/journal.pone.0212485",
		},
		{
			name: "dx prefix url",
			text: "See http://dx.doi.org/10.1016/j.biocon.2019.03.014 for details",
			want: "10.1016/j.biocon.2019.03.014",
		},
		{
			name: "labelled doi",
			text: "Marine Ecology 12, 33-41. doi: 10.1111/mec.12345",
			want: "10.1111/mec.12345",
		},
		{
			name: "bare doi with trailing period",
			text: "Biol. Conserv. 235, 102-110. 10.1016/j.biocon.2019.108234.",
			want: "10.1016/j.biocon.2019.108234",
		},
		{
			name: "truncated suffix rejected",
			text: "doi: 10.1371/journal",
			want: "",
		},
		{
			name: "longest complete candidate wins",
			text: "10.1371/journal.pone.0212485 or the shorter 10.1371/jp.001",
			want: "10.1371/journal.pone.0212485",
		},
		{
			name: "no doi",
			text: "Smith, J., 2019. A paper without an identifier. Ecology 4, 1-10.",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDOI(tt.text))
		})
	}
}

func TestIsCompleteDOI(t *testing.T) {
	assert.True(t, IsCompleteDOI("10.1371/journal.pone.0212485"))
	assert.True(t, IsCompleteDOI("10.1016/j.biocon.2019.03.014"))
	assert.True(t, IsCompleteDOI("10.5281/zenodo-44921"))
	assert.False(t, IsCompleteDOI("10.1371/journal"))
	assert.False(t, IsCompleteDOI("10.1371/abc"))
	assert.False(t, IsCompleteDOI("10.1371"))
	assert.False(t, IsCompleteDOI("not-a-doi"))
}

func TestExtractYear(t *testing.T) {
	assert.Equal(t, 2019, ExtractYear("Smith, J. (2019). Island restoration."))
	assert.Equal(t, 1998, ExtractYear("Jones, K., 1998. Older work. Oikos 81, 3-9."))
	assert.Equal(t, 0, ExtractYear("No year in this text at all"))
	assert.Equal(t, 0, ExtractYear("(2150) is out of range"))
	// Parenthesised form outranks a bare number elsewhere in the string.
	assert.Equal(t, 2005, ExtractYear("Report 1987 pages, Smith (2005)."))
}

func TestExtractISBNISSN(t *testing.T) {
	assert.Equal(t, "9780123456789", ExtractISBNISSN("ISBN 9780123456789"))
	assert.Equal(t, "12345678", ExtractISBNISSN("ISSN 1234-5678"))
	assert.Equal(t, "", ExtractISBNISSN("no identifier here"))
}

func TestParseJournalArticle(t *testing.T) {
	p := NewReferenceParser(zap.NewNop())

	ref := "Muñoz, A., García, B., 2019. Population trends of island seabirds under invasive predation. Biol. Conserv. 235, 102-110. https://doi.org/10.1016/j.biocon.2019.03.014"
	f := p.Parse(ref)

	assert.Equal(t, "Muñoz, A., García, B.", f.Authors)
	assert.Equal(t, 2019, f.Year)
	assert.Equal(t, "Population trends of island seabirds under invasive predation", f.Title)
	assert.Equal(t, "Biol. Conserv", f.Journal)
	assert.Equal(t, models.DocTypeJournalArticle, f.DocType)
	assert.Equal(t, "102-110", f.Pages)
	assert.Equal(t, "10.1016/j.biocon.2019.03.014", f.DOI)
	assert.Equal(t, "https://doi.org/10.1016/j.biocon.2019.03.014", f.Link)
}

func TestParseKeepsEveryListedAuthor(t *testing.T) {
	p := NewReferenceParser(zap.NewNop())

	// Every surname after the first must survive; a greedy initial match
	// used to cut the list at the second author's capital letter.
	f := p.Parse("Muñoz, A., García, B., Larsen, T., 2017. Multi-island predator control outcomes. Oikos 126, 210-221.")
	assert.Equal(t, "Muñoz, A., García, B., Larsen, T.", f.Authors)
}

func TestParseBookChapter(t *testing.T) {
	p := NewReferenceParser(zap.NewNop())

	ref := "Pérez, C., 2015. Nesting ecology of petrels. In: Smith, J., Jones, K. (Eds.), Seabird Biology of the Pacific. Academic Press, London, pp. 45-67."
	f := p.Parse(ref)

	assert.Equal(t, models.DocTypeBookChapter, f.DocType)
	assert.Equal(t, "Pérez, C.", f.Authors)
	assert.Equal(t, 2015, f.Year)
	assert.Equal(t, "Nesting ecology of petrels", f.Title)
	assert.Equal(t, "Seabird Biology of the Pacific", f.Journal)
	assert.Equal(t, "45-67", f.Pages)
}

func TestParseQuotedTitle(t *testing.T) {
	p := NewReferenceParser(zap.NewNop())

	f := p.Parse(`Smith, J., 2020. "Rodent eradication on temperate islands". Restoration Ecology 28, 11-19.`)
	assert.Equal(t, "Rodent eradication on temperate islands", f.Title)
}

func TestParseFieldsAreIndependent(t *testing.T) {
	p := NewReferenceParser(zap.NewNop())

	// A fragment with a year and a DOI but nothing else parseable still
	// yields those two fields.
	f := p.Parse("2021 10.3390/d13020073x")
	require.NotEmpty(t, f.DOI)
	assert.Equal(t, 2021, f.Year)
	assert.Empty(t, f.Authors)
	assert.Empty(t, f.Title)
}

func TestParseNeverFails(t *testing.T) {
	p := NewReferenceParser(zap.NewNop())
	assert.True(t, p.Parse("").Empty())
	assert.True(t, p.Parse("   \n\t  ").Empty())
}
