// Package export writes a simulated day's hourly log as an Arrow IPC file
// for offline cost/comfort analysis.
package export

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/adubusi/AI-Family/internal/comfort"
	"github.com/adubusi/AI-Family/internal/household"
)

// Column order of the hourly schema.
const (
	colDayID = iota
	colDay
	colHour
	colCost
	colAvgPMV
	colBill
	colWhatIfTemp
	colWhatIfPMV
	colSaved
)

// HourSchema is the Arrow schema of an exported day. Day-level totals ride
// along as schema metadata.
func HourSchema(md *arrow.Metadata) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "day_id", Type: arrow.BinaryTypes.String},
		{Name: "day", Type: arrow.PrimitiveTypes.Int32},
		{Name: "hour", Type: arrow.PrimitiveTypes.Int32},
		{Name: "cost", Type: arrow.PrimitiveTypes.Float64},
		{Name: "avg_pmv", Type: arrow.PrimitiveTypes.Float64},
		{Name: "bill", Type: arrow.PrimitiveTypes.Float64},
		{Name: "whatif_temperature", Type: arrow.PrimitiveTypes.Float64},
		{Name: "whatif_pmv", Type: arrow.PrimitiveTypes.Float64},
		{Name: "saved", Type: arrow.PrimitiveTypes.Float64},
	}, md)
}

func dayMetadata(d household.DaySummary) arrow.Metadata {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return arrow.NewMetadata(
		[]string{"day_id", "day", "bill", "budget", "avg_discomfort", "end_reason"},
		[]string{d.DayID, strconv.Itoa(d.Day), f(d.Bill), f(d.Budget), f(d.AvgDiscomfort), d.EndReason},
	)
}

// WriteDay writes d's hourly records to w as a single-batch Arrow IPC file.
// The file format ends with a footer of block offsets, so w must seek.
func WriteDay(w io.WriteSeeker, d household.DaySummary) error {
	mem := memory.NewGoAllocator()
	md := dayMetadata(d)
	schema := HourSchema(&md)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, h := range d.Hours {
		b.Field(colDayID).(*array.StringBuilder).Append(d.DayID)
		b.Field(colDay).(*array.Int32Builder).Append(int32(d.Day))
		b.Field(colHour).(*array.Int32Builder).Append(int32(h.Hour))
		b.Field(colCost).(*array.Float64Builder).Append(h.Cost)
		b.Field(colAvgPMV).(*array.Float64Builder).Append(h.AvgPMV)
		b.Field(colBill).(*array.Float64Builder).Append(h.Bill)
		b.Field(colWhatIfTemp).(*array.Float64Builder).Append(h.WhatIf.Temperature)
		b.Field(colWhatIfPMV).(*array.Float64Builder).Append(h.WhatIf.PMV)
		b.Field(colSaved).(*array.Float64Builder).Append(h.WhatIf.Saved)
	}
	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

// WriteDayFile writes d to path, replacing any existing file.
func WriteDayFile(path string, d household.DaySummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteDay(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadHours reads the hourly records back from an exported file.
func ReadHours(r ipc.ReadAtSeeker) ([]household.HourRecord, error) {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("opening arrow file: %w", err)
	}
	defer fr.Close()

	var out []household.HourRecord
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("reading record %d: %w", i, err)
		}
		ids := rec.Column(colDayID).(*array.String)
		days := rec.Column(colDay).(*array.Int32)
		hours := rec.Column(colHour).(*array.Int32)
		cost := rec.Column(colCost).(*array.Float64)
		pmv := rec.Column(colAvgPMV).(*array.Float64)
		bill := rec.Column(colBill).(*array.Float64)
		wt := rec.Column(colWhatIfTemp).(*array.Float64)
		wp := rec.Column(colWhatIfPMV).(*array.Float64)
		saved := rec.Column(colSaved).(*array.Float64)

		for j := 0; j < int(rec.NumRows()); j++ {
			out = append(out, household.HourRecord{
				DayID:  ids.Value(j),
				Day:    int(days.Value(j)),
				Hour:   int(hours.Value(j)),
				Cost:   cost.Value(j),
				AvgPMV: pmv.Value(j),
				Bill:   bill.Value(j),
				WhatIf: comfort.WhatIf{Temperature: wt.Value(j), PMV: wp.Value(j), Saved: saved.Value(j)},
			})
		}
	}
	return out, nil
}
