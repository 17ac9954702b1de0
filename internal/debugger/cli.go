package debugger

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/explain"
	"github.com/funvibe/loopviz/internal/render"
)

// Prompt is printed before every command.
const Prompt = "(loopviz) "

// CLI is the line-oriented front end of a Debugger.
type CLI struct {
	debugger *Debugger
	printer  *render.Printer
	catalog  *explain.Catalog
	scanner  *bufio.Scanner
	output   io.Writer

	last engine.State
}

// NewCLI creates a CLI reading commands from in and writing to out.
func NewCLI(d *Debugger, in io.Reader, out io.Writer, printer *render.Printer) *CLI {
	return &CLI{
		debugger: d,
		printer:  printer,
		catalog:  explain.Default(),
		scanner:  bufio.NewScanner(in),
		output:   out,
		last:     d.Controller().State(),
	}
}

// Run reads commands until quit or end of input.
func (cli *CLI) Run() error {
	sc := cli.debugger.Controller().Scenario()
	fmt.Fprintf(cli.output, "Debugging %s (%s). Type 'help' for commands.\n", sc.ID, sc.Name)
	cli.printLocation()

	for {
		fmt.Fprint(cli.output, Prompt)
		if !cli.scanner.Scan() {
			if err := cli.scanner.Err(); err != nil {
				return fmt.Errorf("reading debugger input: %w", err)
			}
			fmt.Fprintf(cli.output, "\n")
			return nil
		}

		parts := strings.Fields(cli.scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if quit := cli.execute(parts[0], parts[1:]); quit {
			return nil
		}
	}
}

func (cli *CLI) execute(cmd string, args []string) (quit bool) {
	d := cli.debugger
	switch cmd {
	case "help", "h":
		printHelp(cli.output)
	case "step", "s":
		cli.resumed(d.Step())
	case "next", "n":
		cli.resumed(d.StepOver())
	case "out", "finish":
		cli.resumed(d.StepOut())
	case "continue", "c":
		cli.resumed(d.Continue())
	case "break", "b":
		cli.handleBreakpoint(args)
	case "delete", "d":
		cli.handleDeleteBreakpoint(args)
	case "list", "l":
		cli.handleList()
	case "stack", "bt", "backtrace":
		cli.printer.CallStack(cli.last)
	case "vars", "locals":
		cli.printer.Locals(cli.last)
	case "queues", "qs":
		cli.printer.Queues(cli.last)
	case "trace", "t":
		cli.printer.Trace(cli.last.Trace)
	case "explain", "e":
		cli.handleExplain(args)
	case "reset", "r":
		cli.last = d.Reset()
		fmt.Fprintf(cli.output, "Reset to the beginning.\n")
		cli.printLocation()
	case "quit", "q", "exit":
		return true
	default:
		fmt.Fprintf(cli.output, "Unknown command: %s. Type 'help' for help.\n", cmd)
	}
	return false
}

func (cli *CLI) resumed(st engine.State) {
	cli.printer.NewEntries(cli.last, st)
	cli.last = st
	if !st.HasNext {
		fmt.Fprintf(cli.output, "Program finished after %d steps.\n", st.StepsExecuted)
		return
	}
	cli.printLocation()
}

func (cli *CLI) printLocation() {
	line := cli.debugger.Location()
	instr, ok := cli.debugger.Controller().NextInstruction()
	if !ok {
		return
	}
	lines := cli.debugger.Controller().Scenario().Lines()
	if line > 0 && line <= len(lines) {
		fmt.Fprintf(cli.output, "=> %d: %s  [%s]\n", line, strings.TrimSpace(lines[line-1]), instr.Kind)
		return
	}
	fmt.Fprintf(cli.output, "=> [%s]\n", instr.Kind)
}

// printHelp prints help information
func printHelp(output io.Writer) {
	help := `Debugger commands:
  help, h              - Show this help
  step, s              - Execute one instruction
  next, n              - Step over a function call
  out, finish          - Run until the current function returns
  continue, c          - Run until a breakpoint or the end
  break, b <line>      - Set breakpoint at a source line
  delete, d <line>     - Delete breakpoint at a source line
  list, l              - Show the source and breakpoints
  stack, bt            - Show the call stack
  vars, locals         - Show bindings of the active context
  queues, qs           - Show microtasks, macrotasks and Web APIs
  trace, t             - Show the execution log
  explain, e [concept] - Explain the last instruction or a concept
  reset, r             - Start over
  quit, q, exit        - Leave the debugger
`
	fmt.Fprint(output, help)
}

func (cli *CLI) lineArg(cmd string, args []string) (int, bool) {
	if len(args) == 0 {
		fmt.Fprintf(cli.output, "Usage: %s <line>\n", cmd)
		return 0, false
	}
	line, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(cli.output, "Invalid line number: %s\n", args[0])
		return 0, false
	}
	return line, true
}

func (cli *CLI) handleBreakpoint(args []string) {
	line, ok := cli.lineArg("break", args)
	if !ok {
		return
	}
	if n := len(cli.debugger.Controller().Scenario().Lines()); line < 1 || line > n {
		fmt.Fprintf(cli.output, "Line %d is outside the source (1-%d)\n", line, n)
		return
	}
	bp := cli.debugger.SetBreakpoint(line)
	fmt.Fprintf(cli.output, "Breakpoint set at line %d\n", bp.Line)
}

func (cli *CLI) handleDeleteBreakpoint(args []string) {
	line, ok := cli.lineArg("delete", args)
	if !ok {
		return
	}
	if !cli.debugger.RemoveBreakpoint(line) {
		fmt.Fprintf(cli.output, "No breakpoint at line %d\n", line)
		return
	}
	fmt.Fprintf(cli.output, "Breakpoint removed at line %d\n", line)
}

func (cli *CLI) handleList() {
	cli.printer.Code(cli.debugger.Controller().Scenario(), cli.debugger.Location())
	bps := cli.debugger.Breakpoints()
	if len(bps) == 0 {
		fmt.Fprintf(cli.output, "No breakpoints set.\n")
		return
	}
	fmt.Fprintf(cli.output, "Breakpoints:\n")
	for i, bp := range bps {
		fmt.Fprintf(cli.output, "  %d. line %d (hit %d times)\n", i+1, bp.Line, bp.Hits)
	}
}

func (cli *CLI) handleExplain(args []string) {
	if len(args) > 0 {
		concept, ok := cli.catalog.Concept(args[0])
		if !ok {
			fmt.Fprintf(cli.output, "Unknown concept %q. Known: %s\n", args[0], strings.Join(cli.catalog.ConceptNames(), ", "))
			return
		}
		cli.printer.Concept(concept)
		return
	}
	if cli.last.Explanation == nil {
		fmt.Fprintf(cli.output, "Nothing executed yet.\n")
		return
	}
	cli.printer.Explanation(cli.last)
}
