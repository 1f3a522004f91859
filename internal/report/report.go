// Package report renders the outcome of a planning run: a styled terminal
// summary comparing the two planners (static Bellman recursion and PO-MCTS)
// against the Monte-Carlo evaluator summaries, plus whitespace-separated
// ASCII artifact writers for the search convergence trace and the
// evaluator's result histogram.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/dlindgren/provopt/internal/evaluate"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Width(22)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(1, 2)
)

// Summary collects everything PrintSummary needs; callers assemble it from
// mcts.Result, planner.BestStaticAction, and evaluate.Summarize outputs.
type Summary struct {
	StaticAction int
	StaticValue  float64

	SearchAction int
	SearchValue  float64

	TreeGreedy   evaluate.Stats
	DynamicBayes evaluate.Stats
}

func row(label string, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

// PrintSummary writes a styled comparison table to w.
func PrintSummary(w io.Writer, s Summary) {
	var body string
	body += row("static best action", fmt.Sprintf("%d", s.StaticAction)) + "\n"
	body += row("static value", fmt.Sprintf("%.4f", s.StaticValue)) + "\n"
	body += row("search best action", fmt.Sprintf("%d", s.SearchAction)) + "\n"
	body += row("search value", fmt.Sprintf("%.4f", s.SearchValue)) + "\n"
	body += "\n"
	body += row("tree-greedy mean", fmt.Sprintf("%.4f", s.TreeGreedy.Mean)) + "\n"
	body += row("tree-greedy variance", fmt.Sprintf("%.4f", s.TreeGreedy.Variance)) + "\n"
	body += row("dynamic-bayes mean", fmt.Sprintf("%.4f", s.DynamicBayes.Mean)) + "\n"
	body += row("dynamic-bayes variance", fmt.Sprintf("%.4f", s.DynamicBayes.Variance))

	fmt.Fprintln(w, headerStyle.Render("provopt planning summary"))
	fmt.Fprintln(w, boxStyle.Render(body))
}

// WriteTrace writes the PO-MCTS root-value convergence trace as one
// iteration per line: iteration index, then value, whitespace-separated.
func WriteTrace(w io.Writer, trace []float64) error {
	for i, v := range trace {
		if _, err := fmt.Fprintf(w, "%d %.6f\n", i, v); err != nil {
			return err
		}
	}
	return nil
}

// WriteHistogram writes an evaluator's result histogram as sorted
// bucket/count pairs, one per line, whitespace-separated.
func WriteHistogram(w io.Writer, hist map[int]int) error {
	buckets := make([]int, 0, len(hist))
	for b := range hist {
		buckets = append(buckets, b)
	}
	sort.Ints(buckets)
	for _, b := range buckets {
		if _, err := fmt.Fprintf(w, "%d %d\n", b, hist[b]); err != nil {
			return err
		}
	}
	return nil
}
