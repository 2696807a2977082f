package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mohamedbenhasan1/VRUGuard/internal/dispatcher"
)

// runConsole reads one command per line ("<:COMMAND:> arg..."), dispatches
// it and prints the result. It returns on EOF, "quit", or ctx cancellation.
func runConsole(ctx context.Context, r io.Reader, w io.Writer, d *dispatcher.Dispatcher) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "quit", "exit":
			return
		case "help":
			fmt.Fprintln(w, strings.Join(d.Commands(), " "))
			continue
		}

		result, err := d.Dispatch(dispatcher.Event{
			Command: strings.ToUpper(fields[0]),
			Args:    fields[1:],
		})
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		printResult(w, result)
	}
}

func printResult(w io.Writer, result any) {
	switch v := result.(type) {
	case nil:
		fmt.Fprintln(w, "ok")
	case string:
		fmt.Fprintln(w, v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			fmt.Fprintf(w, "%v\n", v)
			return
		}
		fmt.Fprintln(w, string(data))
	}
}
