package models

// Security represents a single row of the tab-separated security master.
//
// Header columns (matched by name, order free):
//   - ticker: exchange ticker symbol (e.g., "BHP").
//   - issuer: issuing company name.
//   - issue:  description of the issue (e.g., "FPO").
//   - isin:   International Securities Identification Number.
//
// Line is the 1-based data line the row was read from (the header is line 0).
// It keeps file order when rows are stored elsewhere, so the first match still wins.
type Security struct {
	Ticker string `json:"ticker" example:"BHP"`
	Issuer string `json:"issuer" example:"BHP GROUP LIMITED"`
	Issue  string `json:"issue" example:"FPO"`
	ISIN   string `json:"isin" example:"AU000000BHP4"`
	Line   int    `json:"-"`
}
