package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const refsPage = `Seabird conservation on islands
Frontiers in Ecology | www.frontiersin.org
12

REFERENCES

Muñoz, A., García, B., 2019. Population trends of island sea-
birds under invasive predation. Biol. Conserv. 235, 102-110.
Pérez, C., 2015. Nesting ecology of petrels. In: Smith, J., Jones, K.
(Eds.), Seabird Biology of the Pacific. Academic Press, London, pp. 45-67.
ACKNOWLEDGMENTS
This research was sponsored by the National Island Fund.
`

func TestSplitCarvesSectionAndJoinsWraps(t *testing.T) {
	s := NewReferenceSplitter(zap.NewNop())

	refs := s.Split(refsPage)
	require.Len(t, refs, 2)

	// The hyphenated line wrap is repaired before the entry is returned.
	assert.Contains(t, refs[0], "seabirds under invasive predation")
	assert.Contains(t, refs[0], "Muñoz, A., García, B., 2019")
	assert.Contains(t, refs[1], "Pérez, C., 2015")

	// Nothing after the back-matter heading leaks into the list.
	for _, r := range refs {
		assert.NotContains(t, r, "National Island Fund")
	}
}

func TestSplitWithoutHeadingScansWholeText(t *testing.T) {
	s := NewReferenceSplitter(zap.NewNop())

	text := "Smith, J., 2019. Rodent eradication outcomes on temperate islands. Restoration Ecology 28, 11-19.\n" +
		"Jones, K., 2020. Long-term seabird recovery after predator removal programs. Oikos 129, 4-12.\n"
	refs := s.Split(text)
	require.Len(t, refs, 2)
}

func TestSplitRejectsFragments(t *testing.T) {
	s := NewReferenceSplitter(zap.NewNop())

	t.Run("too short", func(t *testing.T) {
		assert.Empty(t, s.Split("Smith, J., 2019. Short."))
	})

	t.Run("no year", func(t *testing.T) {
		assert.Empty(t, s.Split("Smith, J. A title that is certainly long enough to pass the length check but has no date."))
	})

	t.Run("boilerplate", func(t *testing.T) {
		assert.Empty(t, s.Split("This research was sponsored by the agency in 2019 and further inquiries can be directed to the author."))
	})
}

func TestSplitSkipsPageFurniture(t *testing.T) {
	s := NewReferenceSplitter(zap.NewNop())

	text := "REFERENCES\n" +
		"Volume 12 | Article 433\n" +
		"Smith, J., 2019. Rodent eradication outcomes on temperate islands. Restoration Ecology 28, 11-19.\n" +
		"44\n"
	refs := s.Split(text)
	require.Len(t, refs, 1)
	assert.NotContains(t, refs[0], "Article 433")
}

func TestSplitNumberedStyle(t *testing.T) {
	s := NewReferenceSplitter(zap.NewNop())

	text := "[1] Smith, J., 2019. Rodent eradication outcomes on temperate islands. Restoration Ecology 28, 11-19.\n" +
		"[2] Jones, K., 2020. Long-term seabird recovery after predator removal. Oikos 129, 4-12.\n"
	refs := s.Split(text)
	require.Len(t, refs, 2)
}
