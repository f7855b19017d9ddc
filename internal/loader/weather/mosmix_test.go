package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence/memstore"
	"github.com/smart-resource-management-trier/phorecast/internal/runid"
)

func mosmixSpec(baseURL string) core.ComponentSpec {
	return core.ComponentSpec{
		ID:   "wl1",
		Name: "trier mosmix",
		Type: "dwd_mosmix_loader",
		Params: map[string]string{
			"station_id": "10708",
			"base_url":   baseURL,
		},
		Fields: []core.Field{
			{InfluxField: "temperature", ExternalField: "TTT"},
			{InfluxField: "radiation", ExternalField: "Rad1h"},
		},
		Cells: []core.Cell{{ID: "c1", Member: 0, Lat1: 49.75, Lon1: 6.66}},
	}
}

func newMosmixServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/10708/kml/", func(w http.ResponseWriter, r *http.Request) {
		listing := "<html><body>"
		for name := range files {
			listing += fmt.Sprintf(`<a href="%s">%s</a>`, name, name)
		}
		listing += "</body></html>"
		_, _ = w.Write([]byte(listing))
	})
	for name, content := range files {
		body := content
		mux.HandleFunc("/10708/kml/"+name, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(body)
		})
	}
	return httptest.NewServer(mux)
}

func TestMosmixLoaderIngestsNewRuns(t *testing.T) {
	kmz := buildKMZ(t, sampleKML)
	server := newMosmixServer(t, map[string][]byte{
		"MOSMIX_L_2024060109_10708.kmz": kmz,
	})
	defer server.Close()

	series := memstore.New()
	comp, _, err := component.Build(mosmixSpec(server.URL), component.Deps{Series: series})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, comp.PreExecute(ctx))
	require.NoError(t, comp.Execute(ctx))
	require.NoError(t, comp.PostExecute(ctx))

	runs, err := series.Runs(ctx, persistence.MeasurementWeatherForecast,
		map[string]string{persistence.TagLoaderID: "wl1"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "2024060109", runs[0].String())

	points, err := series.ReadRange(ctx, persistence.MeasurementWeatherForecast, "temperature",
		map[string]string{persistence.TagLoaderID: "wl1", persistence.TagCellID: "c1"},
		runs[0].Time(), runs[0].Time().Add(12*time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 289.15, points[0].Value, 1e-9)
}

func TestMosmixLoaderSkipsKnownRuns(t *testing.T) {
	kmz := buildKMZ(t, sampleKML)
	server := newMosmixServer(t, map[string][]byte{
		"MOSMIX_L_2024060109_10708.kmz": kmz,
	})
	defer server.Close()

	series := memstore.New()
	comp, _, err := component.Build(mosmixSpec(server.URL), component.Deps{Series: series})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, comp.PreExecute(ctx))
	require.NoError(t, comp.Execute(ctx))
	before := series.PointCount()

	// The second cycle sees the same listing and must not rewrite.
	require.NoError(t, comp.Execute(ctx))
	assert.Equal(t, before, series.PointCount())
}

func TestMosmixLoaderUnknownStation(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	comp, _, err := component.Build(mosmixSpec(server.URL), component.Deps{Series: memstore.New()})
	require.NoError(t, err)

	err = comp.PreExecute(context.Background())
	require.Error(t, err)
	var cerr *component.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, component.KindConnectivity, cerr.Kind)
}

func TestMosmixLoaderMissingStationParam(t *testing.T) {
	spec := mosmixSpec("http://unused")
	delete(spec.Params, "station_id")
	_, _, err := component.Build(spec, component.Deps{Series: memstore.New()})
	require.Error(t, err)
}

func TestRunIDFromListingFilename(t *testing.T) {
	id, err := runid.FromFilename("MOSMIX_L_2024060109_10708.kmz")
	require.NoError(t, err)
	assert.Equal(t, "2024060109", id.String())
}
