package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shipment-insights/backend/internal/models"
)

// headerAliases maps source export column names to canonical field keys.
// The left-hand names are the headers the original POLIMI export uses;
// snake_case variants are accepted for re-exported data.
var headerAliases = map[string]string{
	"bill of lading":       "bol",
	"bill_of_lading":       "bol",
	"bol":                  "bol",
	"carrier name":         "carrier",
	"carrier_name":         "carrier",
	"carrier":              "carrier",
	"pol locode":           "origin",
	"pol_code":             "origin",
	"origin":               "origin",
	"pod locode":           "destination",
	"pod_code":             "destination",
	"destination":          "destination",
	"arrival delay (days)": "delay",
	"arrival_delay":        "delay",
	"delay":                "delay",
	"transit (days)":       "transit",
	"transit_days":         "transit",
	"transit":              "transit",
	"load count - pol":     "load",
	"roll count - pol":     "load",
	"load_count":           "load",
	"roll_count":           "load",
	"departure pol date":   "departure",
	"departure_date":       "departure",
	"departure":            "departure",
}

// requiredColumns must all be present for a header line to be accepted.
var requiredColumns = []string{"bol", "carrier", "origin", "destination"}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"01-02-2006",
	"2-Jan-2006",
}

// ShipmentCSVParser reads delimiter-separated shipment exports with a header
// row. One instance per delimiter so the registry can sniff both comma and
// tab variants.
type ShipmentCSVParser struct {
	delimiter rune
}

func NewShipmentCSVParser(delimiter rune) *ShipmentCSVParser {
	return &ShipmentCSVParser{delimiter: delimiter}
}

func (p *ShipmentCSVParser) Name() string {
	if p.delimiter == '\t' {
		return "shipment_tsv"
	}
	return "shipment_csv"
}

// CanParse checks whether the first line is a recognizable header for this
// delimiter: all required columns must map through headerAliases.
func (p *ShipmentCSVParser) CanParse(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = p.delimiter
	r.LazyQuotes = true
	header, err := r.Read()
	if err != nil {
		return false, nil
	}

	cols := mapHeader(header)
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// Parse parses the entire file.
func (p *ShipmentCSVParser) Parse(filePath string) (*ParsedDataset, []*models.RowError, error) {
	return p.ParseWithProgress(filePath, nil)
}

// ParseWithProgress parses the file, reporting progress every 10K rows.
func (p *ShipmentCSVParser) ParseWithProgress(filePath string, onProgress ProgressCallback) (*ParsedDataset, []*models.RowError, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	var totalBytes int64
	if info, err := file.Stat(); err == nil {
		totalBytes = info.Size()
	}

	r := csv.NewReader(file)
	r.Comma = p.delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	cols := mapHeader(header)
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", req)
		}
	}

	ds := &ParsedDataset{
		Records:  make([]models.ShipmentRecord, 0, 1024),
		Carriers: make(map[string]struct{}),
		Routes:   make(map[string]struct{}),
	}
	rowErrors := make([]*models.RowError, 0)

	lineNum := 1 // header consumed
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			rowErrors = append(rowErrors, &models.RowError{
				Line:   lineNum,
				Reason: fmt.Sprintf("malformed row: %v", err),
			})
			continue
		}

		rec, rerr := p.parseRow(fields, cols)
		if rerr != nil {
			rerr.Line = lineNum
			rerr.Content = strings.Join(fields, string(p.delimiter))
			rowErrors = append(rowErrors, rerr)
			continue
		}

		ds.Records = append(ds.Records, rec)
		if rec.Carrier != "" {
			ds.Carriers[rec.Carrier] = struct{}{}
		}
		if rec.Route != "" {
			ds.Routes[rec.Route] = struct{}{}
		}

		if onProgress != nil && len(ds.Records)%10000 == 0 {
			onProgress(len(ds.Records), r.InputOffset(), totalBytes)
		}
	}

	if onProgress != nil {
		onProgress(len(ds.Records), totalBytes, totalBytes)
	}
	return ds, rowErrors, nil
}

// parseRow builds a ShipmentRecord from one data row. Only the identifying
// fields are mandatory here; missing numerics become nil and are judged by
// the normalizer.
func (p *ShipmentCSVParser) parseRow(fields []string, cols map[string]int) (models.ShipmentRecord, *models.RowError) {
	get := func(key string) string {
		idx, ok := cols[key]
		if !ok || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	bol := get("bol")
	if bol == "" {
		return models.ShipmentRecord{}, &models.RowError{Reason: "empty bill of lading"}
	}

	rec := models.ShipmentRecord{
		BillOfLading: bol,
		Carrier:      get("carrier"),
		Origin:       strings.ToUpper(get("origin")),
		Destination:  strings.ToUpper(get("destination")),
	}
	rec.Route = RouteLabel(rec.Origin, rec.Destination)

	if s := get("delay"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.ShipmentRecord{}, &models.RowError{Reason: fmt.Sprintf("invalid arrival delay %q", s)}
		}
		rec.ArrivalDelay = &v
	}
	if s := get("transit"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.ShipmentRecord{}, &models.RowError{Reason: fmt.Sprintf("invalid transit days %q", s)}
		}
		rec.TransitDays = &v
	}
	if s := get("load"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			// Some exports write load counts as floats
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return models.ShipmentRecord{}, &models.RowError{Reason: fmt.Sprintf("invalid load count %q", s)}
			}
			v = int(f)
		}
		rec.LoadCount = &v
	}
	if s := get("departure"); s != "" {
		if ts, ok := parseDate(s); ok {
			rec.DepartureAt = &ts
		} else {
			return models.ShipmentRecord{}, &models.RowError{Reason: fmt.Sprintf("invalid departure date %q", s)}
		}
	}

	return rec, nil
}

func mapHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := headerAliases[key]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	return cols
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
