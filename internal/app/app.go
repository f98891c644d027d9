package app

import (
	"fmt"
	"io"
	"strings"
)

func Run(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		writeUsage(out)
		return 2
	}

	parsedArgs, globals, err := splitGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(errOut, err.Error())
		writeUsage(errOut)
		return 2
	}
	args = parsedArgs
	if len(args) == 0 {
		writeUsage(out)
		return 2
	}

	if isVersionCommand(args[0]) {
		fmt.Fprintln(out, VersionString())
		return 0
	}

	cmd := strings.ToLower(args[0])
	rest := args[1:]
	switch cmd {
	case "init":
		return runInit(rest, globals, out, errOut)
	case "capture":
		return runCapture(rest, globals, out, errOut)
	case "score":
		return runScore(rest, globals, out, errOut)
	case "monitor":
		return runMonitor(rest, globals, out, errOut)
	case "commit":
		return runCommit(rest, globals, out, errOut)
	case "search":
		return runSearch(rest, globals, out, errOut)
	case "similar":
		return runSimilar(rest, globals, out, errOut)
	case "reindex":
		return runReindex(rest, globals, out, errOut)
	case "log":
		return runLog(rest, globals, out, errOut)
	case "show":
		return runShow(rest, globals, out, errOut)
	case "status":
		return runStatus(rest, globals, out, errOut)
	case "organize":
		return runOrganize(rest, globals, out, errOut)
	case "template":
		return runTemplate(rest, out, errOut)
	case "validate":
		return runValidate(rest, globals, out, errOut)
	case "ai":
		return runAI(rest, globals, out, errOut)
	case "enhance":
		return runEnhance(rest, globals, out, errOut)
	case "session":
		return runSession(rest, globals, out, errOut)
	case "install-hooks":
		return runInstallHooks(rest, globals, out, errOut)
	case "hook":
		return runHook(rest, globals, out, errOut)
	case "watch":
		return runWatch(rest, globals, out, errOut)
	case "mcp":
		return runMCP(rest, globals, out, errOut)
	case "doctor":
		return runDoctor(rest, globals, out, errOut)
	case "help", "-h", "--help":
		writeUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n", cmd)
		writeUsage(errOut)
		return 2
	}
}

func isVersionCommand(arg string) bool {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "version", "--version", "-v":
		return true
	default:
		return false
	}
}
