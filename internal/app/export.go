package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/storage"
)

// Export renders historical observations as CSV and/or PNG, overlaying the
// configured moving average and RSI.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Feed.UpdateInterval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	observations, err := store.ListObservationsBetween(ctx, a.Config.Feed.Description, from, to)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		a.Logger.Info().Msg("no observations found for export window")
		return nil
	}

	downsampled := downsampleObservations(observations, opts.MaxPoints)
	a.Logger.Info().Int("total", len(observations)).Int("exported", len(downsampled)).Msg("exporting observations")

	averages := rollingAverage(downsampled, a.Config.Analytics.MovingAverageWindow)
	oscillator := rollingRSI(downsampled, a.Config.Analytics.RSIPeriod)

	if opts.CSVPath != "" {
		if err := writeObservationsCSV(opts.CSVPath, downsampled, averages, oscillator); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeObservationsPNG(opts.PNGPath, downsampled, averages, oscillator, a.Config.Analytics.MovingAverageWindow, a.Config.Analytics.RSIPeriod); err != nil {
			return err
		}
	}

	return nil
}

func downsampleObservations(observations []storage.Observation, max int) []storage.Observation {
	if max <= 0 || len(observations) <= max {
		return observations
	}

	result := make([]storage.Observation, 0, max)
	step := float64(len(observations)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(observations) {
			idx = len(observations) - 1
		}
		result = append(result, observations[idx])
	}
	return result
}

// rollingAverage computes the simple moving average per index; entries
// before the warmup are NaN.
func rollingAverage(observations []storage.Observation, window int) []float64 {
	out := make([]float64, len(observations))
	sum := 0.0
	for i, obs := range observations {
		sum += obs.Price.InexactFloat64()
		if i >= window {
			sum -= observations[i-window].Price.InexactFloat64()
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// rollingRSI computes the RSI per index over the trailing period; entries
// before the warmup are NaN.
func rollingRSI(observations []storage.Observation, period int) []float64 {
	out := make([]float64, len(observations))
	for i := range observations {
		if i < period {
			out[i] = math.NaN()
			continue
		}
		gain, loss := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			diff := observations[j].Price.InexactFloat64() - observations[j-1].Price.InexactFloat64()
			if diff > 0 {
				gain += diff
			} else {
				loss -= diff
			}
		}
		if gain == 0 {
			out[i] = 0
			continue
		}
		if loss == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 * gain / (gain + loss)
	}
	return out
}

func writeObservationsCSV(path string, observations []storage.Observation, averages, oscillator []float64) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"slot_ts", "price", "moving_average", "rsi"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, obs := range observations {
		record := []string{
			obs.SlotTS.Format(time.RFC3339),
			obs.Price.String(),
			formatFloat(averages[i]),
			formatFloat(oscillator[i]),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeObservationsPNG(path string, observations []storage.Observation, averages, oscillator []float64, window, period int) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(observations))
	prices := make([]float64, len(observations))
	for i, obs := range observations {
		x[i] = obs.SlotTS
		prices[i] = obs.Price.InexactFloat64()
	}

	maX, maY := dropNaN(x, averages)
	rsiX, rsiY := dropNaN(x, oscillator)

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "RSI",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: prices,
			},
			chart.TimeSeries{
				Name:    "Moving average",
				XValues: maX,
				YValues: maY,
			},
			chart.TimeSeries{
				Name:    "RSI",
				XValues: rsiX,
				YValues: rsiY,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func dropNaN(x []time.Time, y []float64) ([]time.Time, []float64) {
	outX := make([]time.Time, 0, len(x))
	outY := make([]float64, 0, len(y))
	for i, v := range y {
		if math.IsNaN(v) {
			continue
		}
		outX = append(outX, x[i])
		outY = append(outY, v)
	}
	return outX, outY
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return chart.FloatValueFormatterWithFormat(v, "%.6f")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
