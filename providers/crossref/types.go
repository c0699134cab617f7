package crossref

import (
	"regexp"
	"strings"

	"ref-mill/models"
	"ref-mill/services"
)

type worksResponse struct {
	Status  string `json:"status"`
	Message work   `json:"message"`
}

type searchResponse struct {
	Status  string `json:"status"`
	Message struct {
		Items []work `json:"items"`
	} `json:"message"`
}

type work struct {
	DOI            string       `json:"DOI"`
	Type           string       `json:"type"`
	Title          []string     `json:"title"`
	ContainerTitle []string     `json:"container-title"`
	Publisher      string       `json:"publisher"`
	Volume         string       `json:"volume"`
	Page           string       `json:"page"`
	ArticleNumber  string       `json:"article-number"`
	Author         []workAuthor `json:"author"`
	Issued         dateParts    `json:"issued"`
	URL            string       `json:"URL"`
	Subject        []string     `json:"subject"`
	Abstract       string       `json:"abstract"`
	ISSN           []string     `json:"ISSN"`
	ISBN           []string     `json:"ISBN"`
	Language       string       `json:"language"`
	License        []license    `json:"license"`
	Score          float64      `json:"score"`
}

type workAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type dateParts struct {
	DateParts [][]int `json:"date-parts"`
}

type license struct {
	URL string `json:"URL"`
}

// typeLabels maps CrossRef work types onto the catalog vocabulary. Unmapped
// types land in "Otro" with the raw type preserved alongside.
var typeLabels = map[string]string{
	"journal-article":     models.DocTypeJournalArticle,
	"book-chapter":        models.DocTypeBookChapter,
	"book-section":        models.DocTypeBookChapter,
	"book":                models.DocTypeBook,
	"monograph":           models.DocTypeBook,
	"edited-book":         models.DocTypeBook,
	"proceedings-article": models.DocTypeConference,
	"dissertation":        models.DocTypeThesis,
	"report":              models.DocTypeReport,
}

var jatsTag = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// toFields flattens one CrossRef work into field values.
func toFields(w work) services.Fields {
	var f services.Fields

	f.DOI = w.DOI
	if len(w.Title) > 0 {
		f.Title = services.NormalizeText(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		f.Journal = services.NormalizeText(w.ContainerTitle[0])
	}
	f.Publisher = w.Publisher
	f.Volume = w.Volume
	f.Pages = w.Page
	f.ArticleNumber = w.ArticleNumber
	f.Link = w.URL
	f.Language = w.Language
	f.Authors = joinAuthors(w.Author)

	if len(w.Issued.DateParts) > 0 && len(w.Issued.DateParts[0]) > 0 {
		f.Year = w.Issued.DateParts[0][0]
	}
	if len(w.Subject) > 0 {
		f.Keywords = strings.Join(w.Subject, ", ")
	}
	if w.Abstract != "" {
		f.Abstract = services.NormalizeText(stripJATS(w.Abstract))
	}
	if len(w.ISSN) > 0 {
		f.ISBNISSN = strings.ReplaceAll(w.ISSN[0], "-", "")
	} else if len(w.ISBN) > 0 {
		f.ISBNISSN = strings.ReplaceAll(w.ISBN[0], "-", "")
	}

	if label, ok := typeLabels[w.Type]; ok {
		f.DocType = label
	} else if w.Type != "" {
		f.DocType = models.DocTypeOtherLabel
		f.DocTypeOther = w.Type
	}
	if w.Type == "journal-article" {
		f.PeerReviewed = models.AnswerYes
	}
	if len(w.License) > 0 {
		f.OpenAccess = models.AnswerYes
	}
	return f
}

// stripJATS removes the JATS markup CrossRef embeds in abstracts.
func stripJATS(s string) string {
	return strings.TrimSpace(jatsTag.ReplaceAllString(s, ""))
}

func joinAuthors(authors []workAuthor) string {
	var parts []string
	for _, a := range authors {
		if a.Family == "" {
			continue
		}
		name := a.Family
		if a.Given != "" {
			r := []rune(a.Given)
			name += ", " + strings.ToUpper(string(r[0])) + "."
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}
