package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"vrp-search-service/internal/config"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/search"
)

// WriteSolution writes plan in the CVRPLIB .sol layout: one "Route #i:"
// line per route with 1-based route numbers, then the cost and the time.
func WriteSolution(w io.Writer, plan domain.RoutePlan, seconds float64) error {
	var b strings.Builder
	for i, r := range plan.Routes {
		fmt.Fprintf(&b, "Route #%d:", i+1)
		for _, id := range r {
			fmt.Fprintf(&b, " %d", id)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Cost %s\n", formatCost(plan.Cost))
	fmt.Fprintf(&b, "Time %.3f\n", seconds)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write solution: %w", err)
	}
	return nil
}

// Integral costs print without decimals, as rounded instances produce them.
func formatCost(c float64) string {
	if c == float64(int64(c)) {
		return fmt.Sprintf("%d", int64(c))
	}
	return fmt.Sprintf("%.2f", c)
}

// SolutionFile writes the final best plan to Path when the run finishes.
type SolutionFile struct {
	Path string
	err  error
}

func (f *SolutionFile) OnStart(*domain.Instance, config.Config)     {}
func (f *SolutionFile) OnImprovement(domain.Sample, domain.RoutePlan) {}

func (f *SolutionFile) OnFinish(res search.Result) {
	file, err := os.Create(f.Path)
	if err != nil {
		f.err = fmt.Errorf("solution file: %w", err)
		return
	}
	if err := WriteSolution(file, res.Best, res.TimeOfBest); err != nil {
		file.Close()
		f.err = fmt.Errorf("solution file %q: %w", f.Path, err)
		return
	}
	if err := file.Close(); err != nil {
		f.err = fmt.Errorf("solution file %q: %w", f.Path, err)
	}
}

// Err reports the failure of the last write, if any.
func (f *SolutionFile) Err() error { return f.err }
