package app

import (
	"flag"
	"fmt"
	"io"
	"sort"

	"sagashark/internal/organize"
)

type organizeResult struct {
	DryRun  bool            `json:"dry_run"`
	Moves   []organize.Move `json:"moves"`
	Removed int             `json:"removed_dirs"`
	Stats   *organize.Stats `json:"stats,omitempty"`
}

func runOrganize(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("organize", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dryRun := fs.Bool("dry-run", false, "Show planned moves without touching files")
	cleanup := fs.Bool("cleanup", false, "Remove empty directories afterwards")
	statsOnly := fs.Bool("stats", false, "Only print organization statistics")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	org := e.organizer()

	if *statsOnly {
		stats, err := org.Stats()
		if err != nil {
			fmt.Fprintf(errOut, "organize error: %v\n", err)
			return 1
		}
		if *jsonOut {
			return writeJSON(out, errOut, stats)
		}
		writeStats(out, stats)
		return 0
	}

	// A drifted hierarchy always gets its empty directories pruned.
	drifted, err := org.ShouldReorganize()
	if err != nil {
		fmt.Fprintf(errOut, "organize error: %v\n", err)
		return 1
	}
	moves, err := org.OrganizeAll(*dryRun)
	if err != nil {
		fmt.Fprintf(errOut, "organize error: %v\n", err)
		return 1
	}
	res := organizeResult{DryRun: *dryRun, Moves: moves}
	if res.Moves == nil {
		res.Moves = []organize.Move{}
	}
	if (*cleanup || drifted) && !*dryRun {
		if res.Removed, err = org.CleanupEmptyDirs(); err != nil {
			fmt.Fprintf(errOut, "organize error: %v\n", err)
			return 1
		}
	}
	if *jsonOut {
		return writeJSON(out, errOut, res)
	}

	if len(moves) == 0 {
		fmt.Fprintln(out, "All sagas are already organized")
	}
	verb := "Moved"
	if *dryRun {
		verb = "Would move"
	}
	for _, m := range moves {
		fmt.Fprintf(out, "%s %s -> %s\n", verb, e.rel(m.From), e.rel(m.To))
	}
	if len(moves) > 0 {
		fmt.Fprintf(out, "\n📁 %s %d sagas\n", verb, len(moves))
	}
	if res.Removed > 0 {
		fmt.Fprintf(out, "🧹 Removed %d empty directories\n", res.Removed)
	}
	return 0
}

func writeStats(out io.Writer, stats organize.Stats) {
	fmt.Fprintf(out, "Total sagas: %d\n", stats.Total)
	fmt.Fprintf(out, "Organized: %d\n", stats.Organized)
	fmt.Fprintf(out, "Unorganized: %d\n", stats.Unorganized)
	fmt.Fprintf(out, "Last 7 days: %d\n", stats.RecentWeek)
	if len(stats.ByMonth) == 0 {
		return
	}
	fmt.Fprintln(out, "By month:")
	months := make([]string, 0, len(stats.ByMonth))
	for m := range stats.ByMonth {
		months = append(months, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	for _, m := range months {
		fmt.Fprintf(out, "  %s: %d\n", m, stats.ByMonth[m])
	}
}
