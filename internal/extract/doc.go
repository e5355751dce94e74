// Package extract turns one catalog entry fragment into a model.RawRecord.
//
// The Extractor is a pure function of the entry's HTML sub-tree and the URL
// of the page it came from. Only the title and the detail URL are required;
// every other field is best effort and degrades to "no value" when its
// selector matches nothing.
//
// Selectors are data, not code: the Selectors table can be overridden from
// the configuration file when the catalog markup changes.
//
// # Usage
//
//	ex := extract.New()
//	doc.Find(ex.Selectors().Entry).Each(func(_ int, s *goquery.Selection) {
//		rec, err := ex.Extract(s, pageURL)
//		if errors.Is(err, extract.ErrUnusable) {
//			return
//		}
//		...
//	})
package extract
