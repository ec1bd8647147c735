package main

import (
	"flag"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo"

	"github.com/ZygmuntJakub/gfs-stats-go/internal/catalogue"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/derived"
	"github.com/ZygmuntJakub/gfs-stats-go/internal/store"
)

// ForecastOutput is one time step's values at a queried point, assembled
// from whichever base variables the domain actually stores.
type ForecastOutput struct {
	Time             string   `json:"time"`
	TemperatureC     *float64 `json:"temperature_c,omitempty"`
	WindSpeed        *float64 `json:"wind_speed,omitempty"`
	WindDirection    *float64 `json:"wind_direction,omitempty"`
	WindGust         *float64 `json:"wind_gust,omitempty"`
	RelativeHumidity *float64 `json:"relative_humidity,omitempty"`
	Precipitation    *float64 `json:"precipitation,omitempty"`
}

// DailyOutput is one calendar day's aggregation at a queried point.
type DailyOutput struct {
	Date                 string  `json:"date"`
	TemperatureMaxC      float64 `json:"temperature_max_c"`
	TemperatureMinC      float64 `json:"temperature_min_c"`
	PrecipitationSum     float64 `json:"precipitation_sum"`
	PrecipitationHours   float64 `json:"precipitation_hours"`
	ShortwaveRadiationMJ float64 `json:"shortwave_radiation_sum_mj"`
}

func main() {
	domainName := flag.String("domain", "gfs025", "catalogue domain to serve")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	d, ok := catalogue.Lookup(*domainName)
	if !ok {
		log.Fatalf("ingest: unknown domain %q", *domainName)
	}
	cs := store.New(d.ColumnStoreRoot)

	e := echo.New()

	e.GET("/forecast", func(c echo.Context) error {
		lat, lon, err := parseLatLon(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, err.Error())
		}

		out, err := forecastAt(cs, d, lat, lon)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, out)
	})

	e.GET("/forecast/daily", func(c echo.Context) error {
		lat, lon, err := parseLatLon(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, err.Error())
		}

		out, err := dailyForecastAt(cs, d, lat, lon)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, out)
	})

	e.Logger.Fatal(e.Start(*addr))
}

func parseLatLon(c echo.Context) (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err = strconv.ParseFloat(c.QueryParam("lon"), 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// forecastAt reads each variable this domain stores at the queried
// location and assembles one ForecastOutput per time step, deriving wind
// speed/direction and, where the domain has no direct humidity field, a
// cloud-cover-based relative-humidity fallback (spec.md §4.9).
func forecastAt(cs *store.ColumnStore, d *catalogue.Domain, lat, lon float64) ([]ForecastOutput, error) {
	loc := d.NearestLocation(lat, lon)
	locationsPerChunk := d.LocationsPerChunk()

	temp, _ := cs.Read(catalogue.Surf("temperature_2m"), locationsPerChunk, loc)
	windU, _ := cs.Read(catalogue.Surf("wind_u_10m"), locationsPerChunk, loc)
	windV, _ := cs.Read(catalogue.Surf("wind_v_10m"), locationsPerChunk, loc)
	gust, _ := cs.Read(catalogue.Surf("wind_gust_10m"), locationsPerChunk, loc)
	humidity, _ := cs.Read(catalogue.Surf("relative_humidity_2m"), locationsPerChunk, loc)
	cloud, _ := cs.Read(catalogue.Surf("cloud_cover"), locationsPerChunk, loc)
	precip, _ := cs.Read(catalogue.Surf("precipitation"), locationsPerChunk, loc)

	base := temp
	if base == nil {
		base = windU
	}
	if base == nil {
		return nil, nil
	}

	out := make([]ForecastOutput, base.NTimes)
	for t := 0; t < base.NTimes; t++ {
		validTime := time.Unix(base.StartUnix, 0).UTC().Add(time.Duration(t*base.DTSeconds) * time.Second)
		out[t].Time = validTime.Format(time.RFC3339)

		if temp != nil {
			c := temp.Values[t] - 273.15
			out[t].TemperatureC = &c
		}
		if windU != nil && windV != nil {
			u, v := windU.Values[t], windV.Values[t]
			speed := derived.WindSpeed10m(u, v)
			dir := derived.WindDirection10m(u, v)
			out[t].WindSpeed, out[t].WindDirection = &speed, &dir
		}
		if gust != nil {
			g := gust.Values[t]
			out[t].WindGust = &g
		}
		switch {
		case humidity != nil:
			h := humidity.Values[t]
			out[t].RelativeHumidity = &h
		case cloud != nil:
			h := derived.RelativeHumidityFromCloudCover(cloud.Values[t])
			out[t].RelativeHumidity = &h
		}
		if precip != nil {
			p := precip.Values[t]
			out[t].Precipitation = &p
		}
	}

	return out, nil
}

// dailyForecastAt groups the hourly/sub-hourly series into calendar days
// and aggregates each with internal/derived, per spec.md §4.9.
func dailyForecastAt(cs *store.ColumnStore, d *catalogue.Domain, lat, lon float64) ([]DailyOutput, error) {
	loc := d.NearestLocation(lat, lon)
	locationsPerChunk := d.LocationsPerChunk()

	temp, err := cs.Read(catalogue.Surf("temperature_2m"), locationsPerChunk, loc)
	if err != nil {
		return nil, err
	}
	precip, _ := cs.Read(catalogue.Surf("precipitation"), locationsPerChunk, loc)
	shortwave, _ := cs.Read(catalogue.Surf("shortwave_radiation"), locationsPerChunk, loc)

	byDay := make(map[string][]float64)
	precipByDay := make(map[string][]float64)
	shortwaveByDay := make(map[string][]float64)
	var order []string

	for t := 0; t < temp.NTimes; t++ {
		validTime := time.Unix(temp.StartUnix, 0).UTC().Add(time.Duration(t*temp.DTSeconds) * time.Second)
		day := validTime.Format("2006-01-02")
		if _, ok := byDay[day]; !ok {
			order = append(order, day)
		}
		byDay[day] = append(byDay[day], temp.Values[t])
		if precip != nil && t < precip.NTimes {
			precipByDay[day] = append(precipByDay[day], precip.Values[t])
		}
		if shortwave != nil && t < shortwave.NTimes {
			shortwaveByDay[day] = append(shortwaveByDay[day], shortwave.Values[t])
		}
	}

	out := make([]DailyOutput, 0, len(order))
	for _, day := range order {
		tempAgg := derived.AggregateDaily(byDay[day], false, false)
		precipAgg := derived.AggregateDaily(precipByDay[day], true, false)
		shortwaveAgg := derived.AggregateDaily(shortwaveByDay[day], false, true)

		out = append(out, DailyOutput{
			Date:                 day,
			TemperatureMaxC:      tempAgg.Max - 273.15,
			TemperatureMinC:      tempAgg.Min - 273.15,
			PrecipitationSum:     precipAgg.Sum,
			PrecipitationHours:   precipAgg.PrecipitationHours,
			ShortwaveRadiationMJ: shortwaveAgg.ShortwaveRadiationMJ,
		})
	}

	return out, nil
}
