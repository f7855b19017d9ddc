package weather

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// forecastSeries is the parsed content of one MOSMIX KML file: the
// shared time axis plus one value slice per forecast element.
type forecastSeries struct {
	Times  []time.Time
	Values map[string][]float64
}

// extractKML pulls the single KML document out of a KMZ archive.
func extractKML(kmz []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(kmz), int64(len(kmz)))
	if err != nil {
		return nil, fmt.Errorf("not a valid kmz archive: %w", err)
	}
	for _, file := range reader.File {
		if !strings.HasSuffix(file.Name, ".kml") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("archive contains no kml file")
}

// parseKML decodes the DWD point-forecast KML format. The file has one
// ForecastTimeSteps block with the time axis and, per station
// Placemark, one Forecast element per parameter whose value child holds
// whitespace separated numbers. Only the first Placemark is read and
// only the wanted elements are kept. Missing values ("-") become 0.
func parseKML(kml []byte, wanted []string) (*forecastSeries, error) {
	want := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		want[name] = true
	}

	series := &forecastSeries{Values: make(map[string][]float64)}
	decoder := xml.NewDecoder(bytes.NewReader(kml))

	inTimeSteps := false
	placemarksSeen := 0
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed kml: %w", err)
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "ForecastTimeSteps":
				inTimeSteps = true
			case "TimeStep":
				if !inTimeSteps {
					continue
				}
				var raw string
				if err := decoder.DecodeElement(&raw, &elem); err != nil {
					return nil, fmt.Errorf("malformed time step: %w", err)
				}
				t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
				if err != nil {
					return nil, fmt.Errorf("invalid forecast timestamp %q: %w", raw, err)
				}
				series.Times = append(series.Times, t.UTC())
			case "Placemark":
				placemarksSeen++
			case "Forecast":
				if placemarksSeen != 1 {
					decoder.Skip()
					continue
				}
				name := ""
				for _, attr := range elem.Attr {
					if attr.Name.Local == "elementName" {
						name = attr.Value
					}
				}
				if !want[name] {
					decoder.Skip()
					continue
				}
				values, err := decodeForecastValues(decoder)
				if err != nil {
					return nil, fmt.Errorf("element %s: %w", name, err)
				}
				series.Values[name] = values
			}
		case xml.EndElement:
			if elem.Name.Local == "ForecastTimeSteps" {
				inTimeSteps = false
			}
		}
	}

	if len(series.Times) == 0 {
		return nil, fmt.Errorf("kml contains no forecast time steps")
	}
	for name, values := range series.Values {
		if len(values) != len(series.Times) {
			return nil, fmt.Errorf("element %s has %d values for %d time steps",
				name, len(values), len(series.Times))
		}
	}
	return series, nil
}

// decodeForecastValues reads the value child of a Forecast element. DWD
// packs the series as one whitespace separated string.
func decodeForecastValues(decoder *xml.Decoder) ([]float64, error) {
	var raw string
	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch elem := token.(type) {
		case xml.StartElement:
			if elem.Name.Local == "value" {
				if err := decoder.DecodeElement(&raw, &elem); err != nil {
					return nil, err
				}
			} else if err := decoder.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			return parseValueString(raw)
		}
	}
}

func parseValueString(raw string) ([]float64, error) {
	parts := strings.Fields(raw)
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		if part == "-" {
			values = append(values, 0)
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric forecast value %q", part)
		}
		values = append(values, v)
	}
	return values, nil
}
