package app

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"sagashark/internal/health"
)

func runDoctor(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(errOut)
	jsonOut := fs.Bool("json", false, "Output machine-readable JSON")
	repair := fs.Bool("repair", false, "Attempt repairs (FTS rebuild, reindex, unreadable session file)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	opts := health.Options{DataDir: g.DataDir}
	var report health.Report
	var err error
	if *repair {
		report, err = health.Repair(context.Background(), opts)
	} else {
		report, err = health.Check(context.Background(), opts)
	}

	if *jsonOut {
		if code := writeJSON(out, errOut, report); code != 0 {
			return code
		}
		if err != nil {
			fmt.Fprintln(errOut, err.Error())
			return 1
		}
		return 0
	}

	writeDoctorReport(out, report, g.Verbose)
	if err != nil {
		fmt.Fprintln(errOut, err.Error())
		return 1
	}
	return 0
}

func writeDoctorReport(out io.Writer, report health.Report, verbose bool) {
	if report.OK {
		fmt.Fprintln(out, "saga doctor: ok")
	} else if report.Error != "" {
		fmt.Fprintf(out, "saga doctor: error: %s\n", report.Error)
	} else {
		fmt.Fprintln(out, "saga doctor: error")
	}

	if report.Repo.ID != "" {
		fmt.Fprintf(out, "repo: %s\n", report.Repo.ID)
	}
	if verbose {
		if report.Repo.GitRoot != "" {
			fmt.Fprintf(out, "git_root: %s\n", report.Repo.GitRoot)
		}
		if report.Config.Path != "" {
			fmt.Fprintf(out, "config: %s (%s)\n", report.Config.Path, presence(report.Config.Exists))
		}
		if report.Config.RepoPath != "" {
			fmt.Fprintf(out, "repo_config: %s (%s)\n", report.Config.RepoPath, presence(report.Config.RepoExists))
		}
	}

	if report.Sagas.Dir != "" {
		if report.Sagas.Exists {
			fmt.Fprintf(out, "sagas: %d parsed of %d files\n", report.Sagas.Parsed, report.Sagas.Files)
		} else {
			fmt.Fprintln(out, "sagas: directory missing")
		}
		if verbose {
			for _, path := range report.Sagas.Unparseable {
				fmt.Fprintf(out, "  unparseable: %s\n", path)
			}
		}
	}

	if report.DB.Path != "" {
		if report.DB.Exists {
			fmt.Fprintf(out, "index: %d sagas, %s", report.DB.Indexed, humanize.Bytes(uint64(report.DB.SizeBytes)))
			switch {
			case report.DB.Reindexed:
				fmt.Fprint(out, " (reindexed)")
			case report.DB.Stale:
				fmt.Fprint(out, " (stale)")
			}
			fmt.Fprintln(out)
		} else {
			fmt.Fprintln(out, "index: not built")
		}
		if verbose {
			fmt.Fprintf(out, "index_path: %s\n", report.DB.Path)
		}
	}

	if report.Schema.CurrentVersion > 0 {
		fmt.Fprintf(out, "schema: v%d (current v%d)\n", report.Schema.UserVersion, report.Schema.CurrentVersion)
		if verbose && report.Schema.LastMigrationAt != "" {
			fmt.Fprintf(out, "last_migration_at: %s\n", report.Schema.LastMigrationAt)
		}
	}
	if report.FTS.Rebuilt {
		fmt.Fprintln(out, "fts: rebuilt")
	} else if report.FTS.OK {
		fmt.Fprintln(out, "fts: ok")
	}

	switch {
	case report.Session.Removed:
		fmt.Fprintln(out, "session: removed unreadable context file")
	case report.Session.Exists && report.Session.Valid:
		fmt.Fprintln(out, "session: active")
	case report.Session.Exists:
		fmt.Fprintln(out, "session: unreadable")
	}

	for _, w := range report.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if report.Suggestion != "" {
		fmt.Fprintf(out, "suggestion: %s\n", report.Suggestion)
	}
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}
