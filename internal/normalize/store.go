package normalize

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// knownStores maps registrable domains to display names
var knownStores = map[string]string{
	"amazon.com":       "Amazon",
	"bestbuy.com":      "Best Buy",
	"target.com":       "Target",
	"walmart.com":      "Walmart",
	"ebay.com":         "eBay",
	"costco.com":       "Costco",
	"homedepot.com":    "Home Depot",
	"lowes.com":        "Lowe's",
	"newegg.com":       "Newegg",
	"bhphotovideo.com": "B&H Photo",
	"macys.com":        "Macy's",
	"kohls.com":        "Kohl's",
	"jcpenney.com":     "JCPenney",
	"sears.com":        "Sears",
	"overstock.com":    "Overstock",
	"wayfair.com":      "Wayfair",
	"apple.com":        "Apple",
}

// storeFromURL derives a store name from the url host
func storeFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		domain = strings.TrimPrefix(host, "www.")
	}
	if name, ok := knownStores[domain]; ok {
		return name
	}

	label := domain
	if i := strings.Index(label, "."); i > 0 {
		label = label[:i]
	}
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
