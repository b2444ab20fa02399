package ui

import (
	"strings"
)

type commandKind int

const (
	cmdSend commandKind = iota
	cmdUpload
	cmdHistory
	cmdExport
	cmdCopy
	cmdHelp
	cmdQuit
	cmdUnknown
)

type command struct {
	kind commandKind
	name string
	arg  string
}

const helpText = "/upload <path>  load a spreadsheet (.csv, .xlsx, .xls)\n" +
	"/history        reload the conversation from the server\n" +
	"/export [dir]   write gallery charts as PNG files\n" +
	"/copy           copy the last reply to the clipboard\n" +
	"/quit           leave\n" +
	"ctrl+g toggles the chart gallery, ctrl+n/ctrl+p browse it"

// parseCommand interprets one line of input. Anything not starting with a
// slash is a question for the assistant.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSend, arg: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	c := command{name: name, arg: arg}
	switch name {
	case "upload", "u":
		c.kind = cmdUpload
		c.arg = unquote(arg)
	case "history":
		c.kind = cmdHistory
	case "export":
		c.kind = cmdExport
		c.arg = unquote(arg)
	case "copy":
		c.kind = cmdCopy
	case "help", "?":
		c.kind = cmdHelp
	case "quit", "exit", "q":
		c.kind = cmdQuit
	default:
		c.kind = cmdUnknown
	}
	return c
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
