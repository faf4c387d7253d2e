package scraper

// BusinessRecord is one extracted business. Every field is empty when it
// could not be read.
type BusinessRecord struct {
	Name                string `json:"name"`
	Website             string `json:"website"`
	Rating              string `json:"rating"`
	ReviewCount         string `json:"reviewCount"`
	Address             string `json:"address"`
	PhoneFromListing    string `json:"phoneFromListing"`
	EmailsFromSite      string `json:"emailsFromSite"`
	ExtraPhonesFromSite string `json:"extraPhonesFromSite"`
	SourceURL           string `json:"sourceUrl"`
}

// Columns is the stable header of a ResultSet, in Row order.
var Columns = []string{
	"Business Name",
	"Website",
	"Rating",
	"Reviews Count",
	"Address",
	"Phone (Maps)",
	"Email (from site)",
	"Extra Phones (from site)",
	"Source (Maps URL)",
}

// Row returns the record's values in Columns order.
func (r BusinessRecord) Row() []string {
	return []string{
		r.Name,
		r.Website,
		r.Rating,
		r.ReviewCount,
		r.Address,
		r.PhoneFromListing,
		r.EmailsFromSite,
		r.ExtraPhonesFromSite,
		r.SourceURL,
	}
}

// ResultSet holds records in extraction order.
type ResultSet []BusinessRecord

// Rows returns every record as a Row.
func (rs ResultSet) Rows() [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, r.Row())
	}
	return rows
}

// WithPhone counts records that carry a listing phone or a mined phone.
func (rs ResultSet) WithPhone() int {
	n := 0
	for _, r := range rs {
		if r.PhoneFromListing != "" || r.ExtraPhonesFromSite != "" {
			n++
		}
	}
	return n
}

// WithEmail counts records with at least one mined email.
func (rs ResultSet) WithEmail() int {
	n := 0
	for _, r := range rs {
		if r.EmailsFromSite != "" {
			n++
		}
	}
	return n
}
