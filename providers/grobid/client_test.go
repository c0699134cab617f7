package grobid

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const headerTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xml:lang="en" xmlns="http://www.tei-c.org/ns/1.0">
 <teiHeader>
  <fileDesc>
   <titleStmt><title level="a" type="main">Population trends of island seabirds</title></titleStmt>
   <publicationStmt><publisher>Elsevier</publisher></publicationStmt>
   <sourceDesc>
    <biblStruct>
     <analytic>
      <title level="a" type="main">Population trends of island seabirds</title>
      <author><persName><forename type="first">Ana</forename><surname>Muñoz</surname></persName></author>
      <author><persName><forename type="first">Berta</forename><surname>García</surname></persName></author>
      <idno type="DOI">10.1016/j.biocon.2019.03.014</idno>
     </analytic>
     <monogr>
      <title level="j">Biological Conservation</title>
      <imprint>
       <biblScope unit="volume">235</biblScope>
       <biblScope unit="page" from="102" to="110"/>
       <date type="published" when="2019-03-14"/>
      </imprint>
     </monogr>
    </biblStruct>
   </sourceDesc>
  </fileDesc>
  <profileDesc>
   <abstract><div><p>Seabird populations decline under invasive predation.</p></div></abstract>
   <textClass><keywords><term>seabirds</term><term>islands</term></keywords></textClass>
  </profileDesc>
 </teiHeader>
</TEI>`

const referencesTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
 <text>
  <back>
   <div>
    <listBibl>
     <biblStruct>
      <analytic>
       <title level="a">Rodent eradication outcomes</title>
       <author><persName><forename type="first">John</forename><surname>Smith</surname></persName></author>
      </analytic>
      <monogr>
       <title level="j">Restoration Ecology</title>
       <imprint>
        <date when="2019"/>
        <biblScope unit="volume">28</biblScope>
        <biblScope unit="page" from="11" to="19"/>
       </imprint>
      </monogr>
     </biblStruct>
     <biblStruct>
      <monogr>
       <title level="m">Seabird Biology of the Pacific</title>
       <author><persName><forename type="first">Carla</forename><surname>Pérez</surname></persName></author>
       <imprint><date when="2015"/><publisher>Academic Press</publisher></imprint>
      </monogr>
     </biblStruct>
    </listBibl>
   </div>
  </back>
 </text>
</TEI>`

func TestIsAlive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/isalive", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	assert.True(t, c.IsAlive(context.Background()))

	srv.Close()
	assert.False(t, c.IsAlive(context.Background()))
}

func TestExtractHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/processHeaderDocument", r.URL.Path)

		file, _, err := r.FormFile("input")
		require.NoError(t, err)
		file.Close()

		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(headerTEI))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	f, err := c.ExtractHeader(context.Background(), []byte("%PDF-1.5 fake"))
	require.NoError(t, err)

	assert.Equal(t, "Population trends of island seabirds", f.Title)
	assert.Equal(t, "Muñoz, A., García, B.", f.Authors)
	assert.Equal(t, "10.1016/j.biocon.2019.03.014", f.DOI)
	assert.Equal(t, "Biological Conservation", f.Journal)
	assert.Equal(t, 2019, f.Year)
	assert.Equal(t, "235", f.Volume)
	assert.Equal(t, "102-110", f.Pages)
	assert.Equal(t, "Elsevier", f.Publisher)
	assert.Equal(t, "en", f.Language)
	assert.Equal(t, "seabirds, islands", f.Keywords)
	assert.Contains(t, f.Abstract, "invasive predation")
}

func TestExtractHeaderNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	f, err := c.ExtractHeader(context.Background(), []byte("pdf"))
	require.NoError(t, err)
	assert.True(t, f.Empty())
}

func TestExtractHeaderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	_, err := c.ExtractHeader(context.Background(), []byte("pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestExtractReferences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/processReferences", r.URL.Path)
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(referencesTEI))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	refs, err := c.ExtractReferences(context.Background(), []byte("pdf"))
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "Rodent eradication outcomes", refs[0].Title)
	assert.Equal(t, "Smith, J.", refs[0].Authors)
	assert.Equal(t, "Restoration Ecology", refs[0].Journal)
	assert.Equal(t, 2019, refs[0].Year)
	assert.Equal(t, "11-19", refs[0].Pages)

	assert.Equal(t, "Seabird Biology of the Pacific", refs[1].Title)
	assert.Equal(t, "Pérez, C.", refs[1].Authors)
	assert.Equal(t, "Academic Press", refs[1].Publisher)
	assert.Equal(t, 2015, refs[1].Year)
}
