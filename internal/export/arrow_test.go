package export

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/adubusi/AI-Family/internal/comfort"
	"github.com/adubusi/AI-Family/internal/household"
)

func sampleDay() household.DaySummary {
	d := household.DaySummary{
		DayID: "0b7c", Day: 2, Bill: 3.3, Budget: 20, AvgDiscomfort: 0.2,
		EndReason: household.EndDayComplete,
	}
	for h := 0; h < 3; h++ {
		cost := 0.3 * float64(h+1)
		d.Hours = append(d.Hours, household.HourRecord{
			DayID: d.DayID, Day: d.Day, Hour: h, Cost: cost, AvgPMV: -0.2 * float64(h),
			Bill:   cost * 2,
			WhatIf: comfort.EstimateWhatIf(22, -4, cost),
		})
	}
	return d
}

func TestWriteDayFile_RoundTrip(t *testing.T) {
	d := sampleDay()
	path := filepath.Join(t.TempDir(), "day.arrow")
	if err := WriteDayFile(path, d); err != nil {
		t.Fatalf("WriteDayFile() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, err := ReadHours(f)
	if err != nil {
		t.Fatalf("ReadHours() error = %v", err)
	}
	if !reflect.DeepEqual(got, d.Hours) {
		t.Errorf("ReadHours() =\n%+v\nwant\n%+v", got, d.Hours)
	}
}

func TestWriteDay_SeekableWriter(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "day-*.arrow")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	d := sampleDay()
	if err := WriteDay(f, d); err != nil {
		t.Fatalf("WriteDay() error = %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	got, err := ReadHours(f)
	if err != nil {
		t.Fatalf("ReadHours() error = %v", err)
	}
	if len(got) != len(d.Hours) {
		t.Errorf("ReadHours() returned %d rows, want %d", len(got), len(d.Hours))
	}
}

func TestWriteDay_SchemaMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "day.arrow")
	if err := WriteDayFile(path, sampleDay()); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	fr, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		t.Fatal(err)
	}
	defer fr.Close()

	md := fr.Schema().Metadata()
	want := map[string]string{"day_id": "0b7c", "day": "2", "bill": "3.3", "end_reason": household.EndDayComplete}
	for k, v := range want {
		i := md.FindKey(k)
		if i < 0 || md.Values()[i] != v {
			t.Errorf("metadata %s = %v, want %q", k, md, v)
		}
	}
	if n := fr.Schema().NumFields(); n != 9 {
		t.Errorf("schema has %d fields", n)
	}
}

func TestWriteDay_EmptyDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.arrow")
	if err := WriteDayFile(path, household.DaySummary{DayID: "x", Day: 1}); err != nil {
		t.Fatalf("WriteDayFile() error = %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := ReadHours(f)
	if err != nil || len(got) != 0 {
		t.Errorf("ReadHours() = %v, %v; want no rows", got, err)
	}
}

func TestWriteDayFile_BadPath(t *testing.T) {
	if err := WriteDayFile(filepath.Join(t.TempDir(), "missing", "x.arrow"), sampleDay()); err == nil {
		t.Error("WriteDayFile() into a missing directory should fail")
	}
}
