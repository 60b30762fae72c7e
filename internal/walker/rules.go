package walker

// LinkRule pairs a human-readable description with a CSS selector. The
// source site has rewritten its markup more than once; keeping the queries
// in an ordered table means a new layout is an added row, not a code edit.
type LinkRule struct {
	Description string
	Selector    string
}

// DefaultDetailRules locate entity links on an index page, tried in order;
// the first rule that yields anything wins.
var DefaultDetailRules = []LinkRule{
	{
		Description: "standalone card link to a detail page",
		Selector:    `a.ecl-link.ecl-link--standalone[href*="/F"][href$="_en"]`,
	},
	{
		Description: "any content-item anchor with the detail shape",
		Selector:    `article.ecl-content-item a[href*="/F"][href$="_en"]`,
	},
	{
		Description: "any anchor with the detail shape",
		Selector:    `a[href*="/F"][href$="_en"]`,
	},
}

// DefaultNextRules locate the pagination "next" control.
var DefaultNextRules = []LinkRule{
	{Description: "pagination rel=next", Selector: `nav.ecl-pagination a[rel="next"]`},
	{Description: "aria-labelled next", Selector: `a[aria-label="Next"]`},
	{Description: "go-to-next-page label", Selector: `a[aria-label="Go to next page"]`},
}

// paginationNavSelector is where the total-page-count hint is looked for.
const paginationNavSelector = "nav.ecl-pagination"
