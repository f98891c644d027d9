package app

import (
	"io"
	"os"
)

func writeUsage(w io.Writer) {
	useColor := shouldColorize(w)
	title := colorize(useColor, "sagashark - development sagas from your git history")
	usage := colorize(useColor, "Usage:")
	commands := colorize(useColor, "Commands:")

	io.WriteString(w, title+"\n\n")
	io.WriteString(w, usage+"\n")
	io.WriteString(w, "  saga [--data-dir <path>] [--verbose] <command> [options]\n\n")
	io.WriteString(w, colorize(useColor, "Global options:")+"\n")
	io.WriteString(w, "  --data-dir <path>  Override data dir (SAGA_DATA_DIR)\n")
	io.WriteString(w, "  --verbose          Debug logging on stderr (SAGA_VERBOSE)\n\n")
	io.WriteString(w, "Version:\n")
	io.WriteString(w, "  saga version | saga --version | saga -v\n\n")
	io.WriteString(w, commands+"\n")
	io.WriteString(w, "  init            saga init\n")
	io.WriteString(w, "  capture         saga capture [ref] [--force] [--no-interactive] [--ai]\n")
	io.WriteString(w, "  score           saga score [ref] [--json]\n")
	io.WriteString(w, "  monitor         saga monitor [--since HEAD~10] [--dry-run]\n")
	io.WriteString(w, "  commit          saga commit <title> [--type <type>] [--tags tag1,tag2] [--content <text>|--file <path>]\n")
	io.WriteString(w, "  search          saga search \"<query>\" [--type <type>] [--branch <name>] [--tag <tag>] [--file <glob>] [--limit <n>] [--index] [--json]\n")
	io.WriteString(w, "  similar         saga similar <saga-id|\"text\"> [--limit <n>] [--reindex] [--json]\n")
	io.WriteString(w, "  reindex         saga reindex [--json]\n")
	io.WriteString(w, "  log             saga log [--limit <n>] [--type <type>] [--branch <name>] [--tag <tag>] [--file <glob>] [--since <when>] [--json]\n")
	io.WriteString(w, "  show            saga show <id|path> [--json]\n")
	io.WriteString(w, "  status          saga status [--json]\n")
	io.WriteString(w, "  organize        saga organize [--dry-run] [--cleanup] [--stats] [--json]\n")
	io.WriteString(w, "  template        saga template [debugging|feature|incident]\n")
	io.WriteString(w, "  validate        saga validate <id|path> [--json]\n")
	io.WriteString(w, "  ai              saga ai [status] [--json]\n")
	io.WriteString(w, "  enhance         saga enhance <id|path> [--write]\n")
	io.WriteString(w, "  session         saga session start [--tool <name>] [--summary <text>]\n")
	io.WriteString(w, "                  saga session end [--summary <text>] [--command <cmd>]... [--error <msg>]... [--file <path>]...\n")
	io.WriteString(w, "                  saga session show\n")
	io.WriteString(w, "  install-hooks   saga install-hooks [--force]\n")
	io.WriteString(w, "  hook            saga hook post-commit\n")
	io.WriteString(w, "  watch           saga watch [--debounce 500ms]\n")
	io.WriteString(w, "  mcp             saga mcp [--name <name>]\n")
	io.WriteString(w, "  doctor          saga doctor [--repair] [--json]\n")
}

func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func colorize(enabled bool, text string) string {
	if !enabled {
		return text
	}
	const purple = "\x1b[35m"
	const bold = "\x1b[1m"
	const reset = "\x1b[0m"
	return bold + purple + text + reset
}
