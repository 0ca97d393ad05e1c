package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ippc/coloransi"
	"ippc/process"
	"ippc/remote_call"
)

func main() {
	nameFlag := flag.String("name", "ippp_example", "Name of the target process")
	pidFlag := flag.Int("pid", 0, "Process ID to attach to (overrides -name)")
	moduleFlag := flag.String("module", "", "Module exporting the functions (default: main executable)")
	timeoutFlag := flag.Duration("timeout", 60*time.Second, "How long to wait for each remote call")
	abandonFlag := flag.Bool("abandon", false, "Leave timed out threads running instead of terminating them")
	flag.Parse()

	proc, module, err := attach(*nameFlag, process.ProcessID(*pidFlag), *moduleFlag)
	if err != nil {
		fmt.Printf("Error attaching: %v\n", err)
		os.Exit(1)
	}
	defer proc.Close()

	fmt.Printf("Attached to process %d, %s at %s\n", proc.GetPID(), module.Name, module.Base.ToString())

	policy := remote_call.TerminateOnTimeout
	if *abandonFlag {
		policy = remote_call.AbandonOnTimeout
	}
	caller := remote_call.NewCaller(proc, module.Base, *timeoutFlag, remote_call.WithTimeoutPolicy(policy))

	repl(caller, os.Stdin, os.Stdout)
	fmt.Println("Exited! Thanks for using.")
}

// resolvePID picks the target process. An explicit pid wins, otherwise the
// lowest pid matching name is used.
func resolvePID(f process.ProcessFinder, name string, pid process.ProcessID) (process.ProcessID, error) {
	if pid != 0 {
		return pid, nil
	}
	procs, err := f.FindProcessByName(name)
	if err != nil {
		return 0, err
	}
	if len(procs) == 0 {
		return 0, fmt.Errorf("%w: %q, please start it first", process.ErrProcessNotFound, name)
	}
	if len(procs) > 1 {
		fmt.Printf("%d processes named %q, using pid %d\n", len(procs), name, procs[0].PID)
	}
	return procs[0].PID, nil
}

// repl runs the send / get / exit loop until exit or end of input. Failed
// operations are reported and the loop carries on.
func repl(c *remote_call.Caller, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	prompt := coloransi.Style(coloransi.Bold, ">")

	readLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimRight(scanner.Text(), "\r"), true
	}

	for {
		fmt.Fprintln(out, "Usage:\n - send\n - get\n - exit")
		fmt.Fprint(out, prompt, " ")

		command, ok := readLine()
		if !ok {
			return
		}

		switch strings.TrimSpace(command) {
		case "exit":
			return
		case "send":
			fmt.Fprint(out, "String to send: ")
			msg, ok := readLine()
			if !ok {
				return
			}
			result, err := sendInfo(c, msg)
			switch {
			case err != nil:
				report(out, err)
			case !result.OK:
				fmt.Fprintln(out, "Failed to call remote procedure!")
			default:
				fmt.Fprintln(out, "Operation done!")
			}
		case "get":
			info, text, err := getInformation(c, out)
			if info != nil {
				fmt.Fprintln(out, "Target says:", text)
				fmt.Fprintln(out, "Target gave us a number:", info.Rand)
			}
			if err != nil {
				report(out, err)
			}
		case "":
		default:
			fmt.Fprintf(out, "Unknown command %q\n", command)
		}
	}
}

func report(out io.Writer, err error) {
	fmt.Fprintln(out, coloransi.Foreground(coloransi.Red, "Error:"), err)

	var te *remote_call.TimeoutError
	if errors.As(err, &te) && te.Thread != nil {
		// nothing else will wait on it
		te.Thread.Close()
		for _, a := range te.Retained {
			fmt.Fprintln(out, "  still allocated:", a.String())
		}
	}
}
