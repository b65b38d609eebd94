package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// EPW layout: eight header records, then one record per hour. Field 3 is the
// hour ending (1-24), field 6 dry-bulb °C, field 8 relative humidity %.
const (
	epwHeaderLines = 8
	epwHourField   = 3
	epwDryBulb     = 6
	epwHumidity    = 8
)

// Weather is the first day of a weather file, indexed by hour of day.
type Weather struct {
	DryBulb  [24]float64
	Humidity [24]float64
}

// LoadWeather reads the first day of an EPW file.
func LoadWeather(path string) (Weather, error) {
	f, err := os.Open(path)
	if err != nil {
		return Weather{}, fmt.Errorf("opening weather file: %w", err)
	}
	defer f.Close()
	return ParseWeather(f)
}

// ParseWeather reads the first 24 data records of an EPW stream.
func ParseWeather(r io.Reader) (Weather, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var w Weather
	var seen [24]bool
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Weather{}, fmt.Errorf("weather line %d: %w", line+1, err)
		}
		if line < epwHeaderLines {
			continue
		}
		row := line - epwHeaderLines
		if row >= 24 {
			break
		}
		if len(rec) <= epwHumidity {
			return Weather{}, fmt.Errorf("weather line %d: %d fields, want at least %d", line+1, len(rec), epwHumidity+1)
		}

		// Hour-ending h covers [h-1, h).
		slot := row
		if h, err := strconv.Atoi(rec[epwHourField]); err == nil && h >= 1 && h <= 24 {
			slot = h - 1
		}
		if w.DryBulb[slot], err = strconv.ParseFloat(rec[epwDryBulb], 64); err != nil {
			return Weather{}, fmt.Errorf("weather line %d: dry bulb: %w", line+1, err)
		}
		if w.Humidity[slot], err = strconv.ParseFloat(rec[epwHumidity], 64); err != nil {
			return Weather{}, fmt.Errorf("weather line %d: humidity: %w", line+1, err)
		}
		seen[slot] = true
	}

	for h, ok := range seen {
		if !ok {
			return Weather{}, fmt.Errorf("weather file has no record for hour %d", h+1)
		}
	}
	return w, nil
}

// At interpolates the conditions at a fractional hour of day.
func (w Weather) At(hour float64) (dryBulb, humidity float64) {
	hour = math.Mod(hour, 24)
	if hour < 0 {
		hour += 24
	}
	i := int(hour)
	j := (i + 1) % 24
	f := hour - float64(i)
	return w.DryBulb[i] + f*(w.DryBulb[j]-w.DryBulb[i]),
		w.Humidity[i] + f*(w.Humidity[j]-w.Humidity[i])
}
