package services

// Merge fills the empty fields of local with values from remote and reports
// whether anything was taken. Locally extracted values always win; remote
// data only ever fills gaps.
func Merge(local, remote Fields) (Fields, bool) {
	enriched := false

	fillStr := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			enriched = true
		}
	}

	fillStr(&local.Authors, remote.Authors)
	fillStr(&local.Title, remote.Title)
	fillStr(&local.Keywords, remote.Keywords)
	fillStr(&local.Abstract, remote.Abstract)
	fillStr(&local.Journal, remote.Journal)
	fillStr(&local.Publisher, remote.Publisher)
	fillStr(&local.Volume, remote.Volume)
	fillStr(&local.ISBNISSN, remote.ISBNISSN)
	fillStr(&local.ArticleNumber, remote.ArticleNumber)
	fillStr(&local.Pages, remote.Pages)
	fillStr(&local.DOI, remote.DOI)
	fillStr(&local.Link, remote.Link)
	fillStr(&local.Language, remote.Language)
	fillStr(&local.DocType, remote.DocType)
	fillStr(&local.DocTypeOther, remote.DocTypeOther)
	fillStr(&local.PeerReviewed, remote.PeerReviewed)
	fillStr(&local.OpenAccess, remote.OpenAccess)

	if local.Year == 0 && remote.Year != 0 {
		local.Year = remote.Year
		enriched = true
	}

	return local, enriched
}
