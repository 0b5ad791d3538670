// Package report aggregates transfer runs into a YAML document and a
// terminal table.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"firestige.xyz/ferry/internal/core"
)

// Run is one completed transfer.
type Run struct {
	Index         int     `yaml:"index"`
	Segments      int     `yaml:"segments"`
	Sent          int     `yaml:"sent"`
	Acknowledged  int     `yaml:"acknowledged"`
	Rejected      int     `yaml:"rejected"`
	Dropped       int     `yaml:"dropped"`
	Duplicates    int     `yaml:"duplicates"`
	DurationMs    float64 `yaml:"duration_ms"`
	DeliveryRatio float64 `yaml:"delivery_ratio"`
	Verified      bool    `yaml:"verified"`
}

// Report holds every run and their averages.
type Report struct {
	Input                string    `yaml:"input"`
	Generated            time.Time `yaml:"generated"`
	Runs                 []Run     `yaml:"runs"`
	AverageDurationMs    float64   `yaml:"average_duration_ms"`
	AverageDeliveryRatio float64   `yaml:"average_delivery_ratio"`
}

func New(input string) *Report {
	return &Report{Input: input, Generated: time.Now().UTC().Truncate(time.Second)}
}

// Add records one run and refreshes the averages.
func (r *Report) Add(summary core.Summary, result core.ReceiveResult, verified bool) Run {
	run := Run{
		Index:         len(r.Runs) + 1,
		Segments:      summary.Segments,
		Sent:          summary.Sent,
		Acknowledged:  summary.Acknowledged,
		Rejected:      result.Rejected,
		Dropped:       result.Dropped,
		Duplicates:    result.Duplicates,
		DurationMs:    float64(summary.Duration().Microseconds()) / 1000,
		DeliveryRatio: summary.DeliveryRatio(),
		Verified:      verified,
	}
	r.Runs = append(r.Runs, run)

	var dur, ratio float64
	for _, x := range r.Runs {
		dur += x.DurationMs
		ratio += x.DeliveryRatio
	}
	r.AverageDurationMs = dur / float64(len(r.Runs))
	r.AverageDeliveryRatio = ratio / float64(len(r.Runs))
	return run
}

// AllVerified reports whether every run reproduced its input.
func (r *Report) AllVerified() bool {
	for _, x := range r.Runs {
		if !x.Verified {
			return false
		}
	}
	return true
}

func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// Save writes the YAML report to path.
func (r *Report) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a report written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// Table renders the runs and an average row.
func (r *Report) Table() (string, error) {
	data := pterm.TableData{
		{"Run", "Segments", "Sent", "Acked", "Rejected", "Dropped", "Duration (ms)", "Delivery %", "Verified"},
	}
	for _, x := range r.Runs {
		data = append(data, []string{
			strconv.Itoa(x.Index),
			strconv.Itoa(x.Segments),
			strconv.Itoa(x.Sent),
			strconv.Itoa(x.Acknowledged),
			strconv.Itoa(x.Rejected),
			strconv.Itoa(x.Dropped),
			formatFloat(x.DurationMs),
			formatFloat(x.DeliveryRatio),
			strconv.FormatBool(x.Verified),
		})
	}
	if len(r.Runs) > 1 {
		data = append(data, []string{
			"avg", "", "", "", "", "",
			formatFloat(r.AverageDurationMs),
			formatFloat(r.AverageDeliveryRatio),
			strconv.FormatBool(r.AllVerified()),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// Summary renders the sender's completion summary.
func Summary(s core.Summary) string {
	return fmt.Sprintf("Sent packages: %d\nReceived packages: %d\nPercentage packets delivered: %s %%\n",
		s.Sent, s.Acknowledged, formatFloat(s.DeliveryRatio()))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
