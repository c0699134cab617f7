package grobid

import (
	"encoding/xml"
	"strconv"
	"strings"

	"ref-mill/services"
)

// TEI is the root of a GROBID response document
// (namespace http://www.tei-c.org/ns/1.0). Only the elements the pipeline
// reads are modelled.
type TEI struct {
	XMLName xml.Name  `xml:"TEI"`
	Lang    string    `xml:"lang,attr"`
	Header  teiHeader `xml:"teiHeader"`
	Text    teiText   `xml:"text"`
}

type teiHeader struct {
	FileDesc    fileDesc    `xml:"fileDesc"`
	ProfileDesc profileDesc `xml:"profileDesc"`
}

type fileDesc struct {
	TitleStmt       titleStmt       `xml:"titleStmt"`
	PublicationStmt publicationStmt `xml:"publicationStmt"`
	SourceDesc      sourceDesc      `xml:"sourceDesc"`
}

type titleStmt struct {
	Title string `xml:"title"`
}

type publicationStmt struct {
	Publisher string `xml:"publisher"`
}

type sourceDesc struct {
	BiblStruct BiblStruct `xml:"biblStruct"`
}

type profileDesc struct {
	Abstract abstract `xml:"abstract"`
	Keywords []string `xml:"textClass>keywords>term"`
}

type abstract struct {
	Paragraphs []string `xml:"div>p"`
	Direct     []string `xml:"p"`
}

type teiText struct {
	ListBibl []BiblStruct `xml:"back>div>listBibl>biblStruct"`
}

// BiblStruct is one structured bibliographic entry, either the document's
// own metadata or one parsed reference.
type BiblStruct struct {
	Analytic *analytic `xml:"analytic"`
	Monogr   *monogr   `xml:"monogr"`
}

type analytic struct {
	Titles  []teiTitle `xml:"title"`
	Authors []author   `xml:"author"`
	IDNos   []idno     `xml:"idno"`
}

type monogr struct {
	Titles  []teiTitle `xml:"title"`
	Authors []author   `xml:"author"`
	IDNos   []idno     `xml:"idno"`
	Imprint imprint    `xml:"imprint"`
}

type teiTitle struct {
	Level string `xml:"level,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type author struct {
	PersName *persName `xml:"persName"`
}

type persName struct {
	Forenames []forename `xml:"forename"`
	Surname   string     `xml:"surname"`
}

type forename struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type idno struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type imprint struct {
	Dates      []teiDate   `xml:"date"`
	BiblScopes []biblScope `xml:"biblScope"`
	Publisher  string      `xml:"publisher"`
	PubPlace   string      `xml:"pubPlace"`
}

type teiDate struct {
	Type string `xml:"type,attr"`
	When string `xml:"when,attr"`
}

type biblScope struct {
	Unit  string `xml:"unit,attr"`
	From  string `xml:"from,attr"`
	To    string `xml:"to,attr"`
	Value string `xml:",chardata"`
}

// headerFields flattens a full-document TEI header into field values.
func headerFields(doc *TEI) services.Fields {
	f := biblFields(doc.Header.FileDesc.SourceDesc.BiblStruct)

	if f.Title == "" {
		f.Title = strings.TrimSpace(doc.Header.FileDesc.TitleStmt.Title)
	}
	if f.Publisher == "" {
		f.Publisher = strings.TrimSpace(doc.Header.FileDesc.PublicationStmt.Publisher)
	}
	if f.Language == "" {
		f.Language = doc.Lang
	}

	paras := doc.Header.ProfileDesc.Abstract.Paragraphs
	if len(paras) == 0 {
		paras = doc.Header.ProfileDesc.Abstract.Direct
	}
	if len(paras) > 0 {
		f.Abstract = services.NormalizeText(strings.Join(paras, " "))
	}
	if len(doc.Header.ProfileDesc.Keywords) > 0 {
		terms := make([]string, 0, len(doc.Header.ProfileDesc.Keywords))
		for _, kw := range doc.Header.ProfileDesc.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				terms = append(terms, kw)
			}
		}
		f.Keywords = strings.Join(terms, ", ")
	}
	return f
}

// biblFields flattens one biblStruct into field values. Analytic data (the
// article) wins over monographic data (the venue).
func biblFields(b BiblStruct) services.Fields {
	var f services.Fields

	if b.Analytic != nil {
		f.Title = pickTitle(b.Analytic.Titles, "a")
		f.Authors = joinAuthors(b.Analytic.Authors)
		f.DOI = pickIDNo(b.Analytic.IDNos, "doi")
	}
	if b.Monogr != nil {
		venue := pickTitle(b.Monogr.Titles, "j")
		if venue == "" {
			venue = pickTitle(b.Monogr.Titles, "m")
		}
		if f.Title == "" {
			f.Title = venue
		} else {
			f.Journal = venue
		}
		if f.Authors == "" {
			f.Authors = joinAuthors(b.Monogr.Authors)
		}
		if f.DOI == "" {
			f.DOI = pickIDNo(b.Monogr.IDNos, "doi")
		}
		if issn := pickIDNo(b.Monogr.IDNos, "issn"); issn != "" {
			f.ISBNISSN = strings.ReplaceAll(issn, "-", "")
		}
		if f.Publisher == "" {
			f.Publisher = strings.TrimSpace(b.Monogr.Imprint.Publisher)
		}

		for _, d := range b.Monogr.Imprint.Dates {
			if d.Type != "" && d.Type != "published" {
				continue
			}
			if len(d.When) >= 4 {
				if y, err := strconv.Atoi(d.When[:4]); err == nil {
					f.Year = y
					break
				}
			}
		}
		for _, bs := range b.Monogr.Imprint.BiblScopes {
			switch bs.Unit {
			case "volume":
				f.Volume = strings.TrimSpace(bs.Value)
			case "page":
				if bs.From != "" && bs.To != "" {
					f.Pages = bs.From + "-" + bs.To
				} else if bs.From != "" {
					f.Pages = bs.From
				} else {
					f.Pages = strings.TrimSpace(bs.Value)
				}
			}
		}
	}

	f.Title = services.NormalizeText(f.Title)
	f.Journal = services.NormalizeText(f.Journal)
	return f
}

func pickTitle(titles []teiTitle, level string) string {
	for _, t := range titles {
		if t.Level == level {
			return strings.TrimSpace(t.Value)
		}
	}
	// An untyped single title is taken as is.
	if level == "a" && len(titles) == 1 && titles[0].Level == "" {
		return strings.TrimSpace(titles[0].Value)
	}
	return ""
}

func pickIDNo(ids []idno, typ string) string {
	for _, id := range ids {
		if strings.EqualFold(id.Type, typ) {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

// joinAuthors renders persName entries as "Surname, F., Surname, F.".
func joinAuthors(authors []author) string {
	var parts []string
	for _, a := range authors {
		if a.PersName == nil || a.PersName.Surname == "" {
			continue
		}
		name := a.PersName.Surname
		var initials []string
		for _, fn := range a.PersName.Forenames {
			v := strings.TrimSpace(fn.Value)
			if v == "" {
				continue
			}
			r := []rune(v)
			initials = append(initials, strings.ToUpper(string(r[0]))+".")
		}
		if len(initials) > 0 {
			name += ", " + strings.Join(initials, " ")
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}
