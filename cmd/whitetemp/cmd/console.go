package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/jmcleod/whitetemp/command"
)

const stopCommand = "stop"

// consoleLine executes one line typed at the server console. stop reports
// whether the operator asked the server to shut down.
func consoleLine(surface *command.Surface, input string) (reply string, stop bool) {
	input = strings.TrimSpace(input)
	switch input {
	case "":
		return "", false
	case stopCommand:
		return "Stopping the server...", true
	case "help":
		var b strings.Builder
		for _, name := range command.Names() {
			b.WriteString("  ")
			b.WriteString(command.Usage(name))
			b.WriteByte('\n')
		}
		b.WriteString("  " + stopCommand)
		return b.String(), false
	}

	reply, err := surface.Execute(command.Console{}, input)
	if err != nil {
		return "Error: " + err.Error(), false
	}
	return reply, false
}

func completeConsole(line string) []string {
	var out []string
	for _, name := range append(command.Names(), "help", stopCommand) {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}
	return out
}

// runConsole reads operator commands from the terminal until stdin closes or
// the operator types "stop". It returns true when the server should stop.
func runConsole(surface *command.Surface, out io.Writer) (bool, error) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completeConsole)

	for {
		input, err := line.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			return true, nil
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("console: %w", err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		reply, stop := consoleLine(surface, input)
		if reply != "" {
			fmt.Fprintln(out, reply)
		}
		if stop {
			return true, nil
		}
	}
}
