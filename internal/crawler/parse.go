package crawler

import (
	"io"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/smpapa/mentalmap-cli/internal/model"
)

// decodeBody wraps the response body with a charset decoder when the
// Content-Type names a non-UTF-8 encoding. The directory site historically
// served EUC-KR pages.
func decodeBody(body io.Reader, contentType string) (io.Reader, error) {
	if contentType == "" {
		return body, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}
	name := strings.ToLower(params["charset"])
	if name == "" || name == "utf-8" || name == "utf8" {
		return body, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: unknown charset %q", name)
	}
	return enc.NewDecoder().Reader(body), nil
}

// parseCenters extracts center rows from one directory page. A malformed
// item is logged with enough identity to reconcile later and skipped; it
// never aborts the page. Returns the parsed rows and the skipped count.
func parseCenters(doc *goquery.Document, page int) ([]model.ScrapedCenter, int) {
	log := zap.L().With(zap.String("component", "crawler.parse"), zap.Int("page", page))

	var centers []model.ScrapedCenter
	failed := 0

	doc.Find("ul.branch_search_list li.item").Each(func(i int, item *goquery.Selection) {
		name := strings.TrimSpace(item.Find("p.tit").First().Text())
		if name == "" {
			log.Warn("item has no name, skipping", zap.Int("item", i))
			failed++
			return
		}

		// The address block carries extra lines (directions, floor info);
		// only the first line is the street address.
		address := item.Find("p.add").First().Text()
		if idx := strings.IndexByte(address, '\n'); idx >= 0 {
			address = address[:idx]
		}

		c := model.ScrapedCenter{
			Name:    name,
			Phone:   strings.TrimSpace(item.Find("p.tel").First().Text()),
			Address: strings.TrimSpace(address),
			IsOpen:  true,
		}
		if href, ok := item.Find("a.btn").First().Attr("href"); ok {
			c.Website = strings.TrimSpace(href)
		}

		centers = append(centers, c)
	})

	return centers, failed
}
