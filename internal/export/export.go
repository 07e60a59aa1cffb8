// Package export renders batch results to files: one CSV sheet per
// configuration with the raw iterations and a statistics block, plus a
// JSON summary across configurations. The core hands results over and
// does not depend on the formats chosen here.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"mqttlat/internal/batch"
	"mqttlat/internal/stats"
	"mqttlat/internal/trial"
)

// ConfigSummary reduces one configuration's trials.
type ConfigSummary struct {
	Successful int           `json:"successful_runs"`
	Failed     int           `json:"failed_runs"`
	Handshake  stats.Summary `json:"handshake_ms"`
	PubAck     stats.Summary `json:"puback_ms"`
	Total      stats.Summary `json:"total_ms"`
}

// Sink persists a finished batch.
type Sink interface {
	Flush(res batch.Result) error
}

// FileSink writes <prefix>_<config>.csv per configuration and a single
// <prefix>_summary.json.
type FileSink struct {
	Prefix string
}

func (f FileSink) Flush(res batch.Result) error {
	summaries := make(map[string]ConfigSummary, len(res.Order))
	for _, name := range res.Order {
		results := res.PerConfig[name]
		if len(results) == 0 {
			continue
		}
		summary := Summarize(results)
		summaries[name] = summary

		path := fmt.Sprintf("%s_%s.csv", f.Prefix, name)
		if err := writeConfigCSV(path, results, summary); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
	}

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding summary")
	}
	path := f.Prefix + "_summary.json"
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// Summarize reduces one configuration's ordered trial results.
func Summarize(results []trial.Result) ConfigSummary {
	handshake := make([]*float64, len(results))
	puback := make([]*float64, len(results))
	total := make([]*float64, len(results))
	failed := 0
	for i, r := range results {
		handshake[i] = ms(r.Handshake)
		puback[i] = ms(r.PubAck)
		total[i] = ms(r.Total)
		if !r.Success() {
			failed++
		}
	}
	return ConfigSummary{
		Successful: len(results) - failed,
		Failed:     failed,
		Handshake:  stats.Summarize(handshake),
		PubAck:     stats.Summarize(puback),
		Total:      stats.Summarize(total),
	}
}

func writeConfigCSV(path string, results []trial.Result, summary ConfigSummary) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	w := csv.NewWriter(fh)
	defer w.Flush()

	if err := w.Write([]string{"iteration", "handshake_ms", "puback_ms", "total_ms", "error"}); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			strconv.Itoa(r.Iteration),
			msField(r.Handshake),
			msField(r.PubAck),
			msField(r.Total),
			r.Err,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	// Statistics block below the raw data, one sheet per configuration
	// like the reports this replaces.
	if err := w.Write(nil); err != nil {
		return err
	}
	if err := w.Write([]string{"metric", "value"}); err != nil {
		return err
	}
	rows := [][2]string{
		{"successful_runs", strconv.Itoa(summary.Successful)},
		{"failed_runs", strconv.Itoa(summary.Failed)},
	}
	rows = append(rows, statRows("handshake", summary.Handshake)...)
	rows = append(rows, statRows("puback", summary.PubAck)...)
	rows = append(rows, statRows("total", summary.Total)...)
	for _, row := range rows {
		if err := w.Write(row[:]); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func statRows(series string, s stats.Summary) [][2]string {
	return [][2]string{
		{series + "_mean_ms", statField(s.Mean)},
		{series + "_median_ms", statField(s.Median)},
		{series + "_stddev_ms", statField(s.StdDev)},
		{series + "_min_ms", statField(s.Min)},
		{series + "_max_ms", statField(s.Max)},
		{series + "_p95_ms", statField(s.P95)},
	}
}

func ms(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	v := float64(*d) / float64(time.Millisecond)
	return &v
}

func msField(d *time.Duration) string {
	v := ms(d)
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

func statField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}
