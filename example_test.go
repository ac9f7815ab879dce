package jaxray_test

import (
	"context"
	"fmt"
	"log"

	jaxray "github.com/dClimate/jaxray-go"
	"github.com/dClimate/jaxray-go/coordindex"
)

// Example_lazySelection demonstrates narrowing a lazy array by
// coordinate and materializing only the selected window.
func Example_lazySelection() {
	// The loader stands in for a remote chunked dataset. It is only
	// called once, by Compute, with the fully composed window.
	loader := func(_ context.Context, sel map[string]jaxray.Span) (jaxray.Values, error) {
		start, stop := sel["time"].Bounds()
		data := make([]float64, stop-start)
		for i := range data {
			data[i] = float64(start + i)
		}
		return jaxray.Values{Shape: []int{len(data)}, Data: data}, nil
	}

	block, err := jaxray.NewLazyBlock([]string{"time"}, []int{365}, loader)
	if err != nil {
		log.Fatal(err)
	}

	coords := map[string]*coordindex.Axis{
		"time": coordindex.NewAxis("time", daysOfYear(365),
			map[string]any{"units": "days since 2021-01-01"}),
	}
	arr, err := jaxray.NewDataArray("temperature", []string{"time"}, coords, block)
	if err != nil {
		log.Fatal(err)
	}

	// Chained selections compose without loading anything.
	week, err := arr.Sel(map[string]jaxray.Selection{
		"time": jaxray.Between("2021-03-01", "2021-03-07"),
	})
	if err != nil {
		log.Fatal(err)
	}

	out, err := week.Compute(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	vals, err := out.Values()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(len(vals.Data), "days, first index", vals.Data[0])
	// Output: 7 days, first index 59
}

func daysOfYear(n int) []any {
	days := make([]any, n)
	for i := range days {
		days[i] = float64(i)
	}
	return days
}
