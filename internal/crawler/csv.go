package crawler

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/smpapa/mentalmap-cli/internal/model"
)

// csvHeader is the column order of the crawl export artifact.
var csvHeader = []string{"name", "phone", "address", "detail_link", "lat", "lng", "is_open", "region"}

// WriteCSV writes scraped rows as the tabular export artifact, for
// inspection before loading.
func WriteCSV(w io.Writer, rows []model.ScrapedCenter) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return eris.Wrap(err, "crawler: write csv header")
	}

	for _, c := range rows {
		var lat, lng string
		if c.HasCoords() {
			lat = strconv.FormatFloat(*c.Lat, 'f', -1, 64)
			lng = strconv.FormatFloat(*c.Lng, 'f', -1, 64)
		}
		record := []string{
			c.Name, c.Phone, c.Address, c.Website,
			lat, lng,
			strconv.FormatBool(c.IsOpen),
			c.Region,
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrapf(err, "crawler: write csv row %q", c.Name)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "crawler: flush csv")
}

// ReadCSV parses an export artifact back into scraped rows. A malformed row
// is logged with its line number and skipped; the skipped count is returned
// so the ingest report can account for it.
func ReadCSV(r io.Reader) ([]model.ScrapedCenter, int, error) {
	log := zap.L().With(zap.String("component", "crawler.csv"))

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, eris.Wrap(err, "crawler: read csv header")
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"name"} {
		if _, ok := col[required]; !ok {
			return nil, 0, eris.Errorf("crawler: csv missing %q column", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var rows []model.ScrapedCenter
	failed := 0
	line := 1

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Warn("malformed csv row, skipping", zap.Int("line", line), zap.Error(err))
			failed++
			continue
		}

		c := model.ScrapedCenter{
			Name:    field(record, "name"),
			Phone:   field(record, "phone"),
			Address: field(record, "address"),
			Website: field(record, "detail_link"),
			Region:  field(record, "region"),
			IsOpen:  true,
		}
		if c.Name == "" {
			log.Warn("csv row has no name, skipping", zap.Int("line", line))
			failed++
			continue
		}

		if v := field(record, "is_open"); v != "" {
			open, err := strconv.ParseBool(v)
			if err != nil {
				log.Warn("bad is_open value, skipping row", zap.Int("line", line), zap.String("value", v))
				failed++
				continue
			}
			c.IsOpen = open
		}

		latStr, lngStr := field(record, "lat"), field(record, "lng")
		if latStr != "" && lngStr != "" {
			lat, latErr := strconv.ParseFloat(latStr, 64)
			lng, lngErr := strconv.ParseFloat(lngStr, 64)
			if latErr != nil || lngErr != nil {
				log.Warn("bad coordinates, skipping row",
					zap.Int("line", line),
					zap.String("lat", latStr),
					zap.String("lng", lngStr),
				)
				failed++
				continue
			}
			c.Lat = &lat
			c.Lng = &lng
		}

		rows = append(rows, c)
	}

	return rows, failed, nil
}
