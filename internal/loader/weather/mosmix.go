package weather

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/runid"
	"github.com/smart-resource-management-trier/phorecast/internal/timealign"
	"github.com/smart-resource-management-trier/phorecast/internal/timeseries"
)

const defaultMosmixBaseURL = "https://opendata.dwd.de/weather/local_forecasts/mos/MOSMIX_L/single_stations"

// kmzFilePattern matches the per-run forecast archives in the DWD
// directory listing, e.g. MOSMIX_L_2024060109_10708.kmz.
var kmzFilePattern = regexp.MustCompile(`<a href="(MOSMIX_L_\d{10}_\w*\.kmz)"`)

func init() {
	component.Register("dwd_mosmix_loader", core.CategoryWeatherLoader, newMosmixLoader)
}

// mosmixLoader fetches DWD MOSMIX_L point forecasts for one station.
// MOSMIX is station based rather than gridded, so the loader carries a
// single cell whose coordinates locate the station.
type mosmixLoader struct {
	spec   core.ComponentSpec
	series persistence.SeriesStore

	stationID string
	baseURL   string
	client    *resty.Client
}

func newMosmixLoader(spec core.ComponentSpec, deps component.Deps) (component.Component, error) {
	station := spec.Param("station_id", "")
	if station == "" {
		return nil, component.NewError(component.KindConfiguration, nil,
			"mosmix loader %q is missing the station_id parameter", spec.Name)
	}
	if len(spec.Fields) == 0 {
		return nil, component.NewError(component.KindConfiguration, nil,
			"mosmix loader %q has no forecast element configured", spec.Name)
	}
	if len(spec.Cells) != 1 {
		return nil, component.NewError(component.KindConfiguration, nil,
			"mosmix loader %q needs exactly one cell, got %d", spec.Name, len(spec.Cells))
	}

	client := resty.New().
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		SetTimeout(60 * time.Second)

	return &mosmixLoader{
		spec:      spec,
		series:    deps.Series,
		stationID: station,
		baseURL:   spec.Param("base_url", defaultMosmixBaseURL),
		client:    client,
	}, nil
}

func (l *mosmixLoader) listingURL() string {
	return fmt.Sprintf("%s/%s/kml/", l.baseURL, l.stationID)
}

func (l *mosmixLoader) PreExecute(ctx context.Context) error {
	if err := l.series.Ping(ctx); err != nil {
		return component.NewError(component.KindConnectivity, err, "time-series store unreachable")
	}

	resp, err := l.client.R().SetContext(ctx).Head(l.listingURL())
	if err != nil {
		return component.NewError(component.KindConnectivity, err,
			"DWD open-data server is not reachable")
	}
	if resp.StatusCode() != 200 {
		return component.NewError(component.KindConnectivity, nil,
			"station %s is not a valid MOSMIX station (HTTP %d)", l.stationID, resp.StatusCode())
	}
	return nil
}

func (l *mosmixLoader) Execute(ctx context.Context) error {
	resp, err := l.client.R().SetContext(ctx).Get(l.listingURL())
	if err != nil || resp.StatusCode() != 200 {
		return component.NewError(component.KindConnectivity, err,
			"could not retrieve the file list from the DWD server")
	}

	var files []string
	for _, match := range kmzFilePattern.FindAllStringSubmatch(string(resp.Body()), -1) {
		files = append(files, match[1])
	}
	if len(files) == 0 {
		return component.NewError(component.KindDataIntegrity, nil,
			"the DWD listing for station %s contains no forecast files", l.stationID)
	}

	existing, err := l.series.Runs(ctx, persistence.MeasurementWeatherForecast,
		map[string]string{persistence.TagLoaderID: l.spec.ID})
	if err != nil {
		return component.NewError(component.KindConnectivity, err,
			"failed to list existing forecast runs")
	}
	known := make(map[runid.RunID]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	var newFiles []string
	for _, file := range files {
		id, err := runid.FromFilename(file)
		if err != nil {
			continue
		}
		if !known[id] {
			newFiles = append(newFiles, file)
		}
	}
	if len(newFiles) == 0 {
		logger.Info(ctx, "No new forecasts found, nothing to do", "component", l.spec.Name)
		return nil
	}
	logger.Debug(ctx, "Found new forecast runs", "component", l.spec.Name, "count", len(newFiles))

	for _, file := range newFiles {
		if err := l.ingestFile(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

func (l *mosmixLoader) ingestFile(ctx context.Context, file string) error {
	run, err := runid.FromFilename(file)
	if err != nil {
		return component.NewError(component.KindDataIntegrity, err,
			"forecast file %s carries no run id", file)
	}

	resp, err := l.client.R().SetContext(ctx).Get(l.listingURL() + file)
	if err != nil || resp.StatusCode() != 200 {
		return component.NewError(component.KindConnectivity, err,
			"download of %s failed", file)
	}

	kml, err := extractKML(resp.Body())
	if err != nil {
		return component.NewError(component.KindDataIntegrity, err,
			"failed to extract kml from %s", file)
	}

	elements := make([]string, len(l.spec.Fields))
	byElement := make(map[string]string, len(l.spec.Fields))
	for i, field := range l.spec.Fields {
		external := field.ExternalField
		if external == "" {
			external = field.InfluxField
		}
		elements[i] = external
		byElement[external] = field.InfluxField
	}

	series, err := parseKML(kml, elements)
	if err != nil {
		return component.NewError(component.KindDataIntegrity, err,
			"failed to parse forecast %s", file)
	}

	frame := timeseries.NewFrame()
	for element, values := range series.Values {
		col := byElement[element]
		for i, t := range series.Times {
			frame.Set(timealign.Align(t, timealign.Instant), col, values[i])
		}
	}
	if frame.Len() == 0 {
		return component.NewError(component.KindDataIntegrity, nil,
			"forecast %s contains none of the configured elements", file)
	}

	tags := map[string]string{
		persistence.TagLoaderID: l.spec.ID,
		persistence.TagCellID:   l.spec.Cells[0].ID,
		persistence.TagModel:    "mosmix",
		persistence.TagRun:      run.String(),
	}
	if err := l.series.Write(ctx, persistence.MeasurementWeatherForecast, tags, frame); err != nil {
		return component.NewError(component.KindDataIntegrity, err,
			"data validation failed on writing run %s", run)
	}

	logger.Info(ctx, "Forecast run extracted, parsed and written",
		"component", l.spec.Name, "run", run, "rows", frame.Len())
	return nil
}

func (l *mosmixLoader) PostExecute(_ context.Context) error {
	return nil
}
