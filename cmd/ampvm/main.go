// Ampvm CLI - load integer programs, run them, and drive amplifier searches
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/ampvm/amp"
	"github.com/chazu/ampvm/manifest"
	"github.com/chazu/ampvm/store"
	"github.com/chazu/ampvm/vm"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	manifestDir := flag.String("manifest", "", "Directory containing an ampvm.toml manifest")
	source := flag.String("source", "", "Inline program source (comma-separated integers)")
	inputs := flag.String("inputs", "", "Comma-separated input values for -run")
	noun := flag.Int("noun", -1, "Noun configuration (cell 1), 0-99")
	verb := flag.Int("verb", -1, "Verb configuration (cell 2), 0-99")
	disasm := flag.Bool("disasm", false, "Print a disassembly of the program and exit")
	amplify := flag.Bool("amplify", false, "Search phase permutations for the maximum signal")
	phases := flag.String("phases", "0,1,2,3,4", "Comma-separated phase set for -amplify")
	feedback := flag.Bool("feedback", false, "Use feedback topology for -amplify")
	searchTarget := flag.Int64("search-target", -1, "Search noun/verb space for this cell-0 result")
	ledger := flag.String("ledger", "", "Record amplifier results to this SQLite ledger")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ampvm [options] [program.txt]\n\n")
		fmt.Fprintf(os.Stderr, "Runs integer-array programs and amplifier pipeline searches.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ampvm -inputs 1 prog.txt              # Run, feeding input value 1\n")
		fmt.Fprintf(os.Stderr, "  ampvm -noun 12 -verb 2 prog.txt       # Run with configuration cells set\n")
		fmt.Fprintf(os.Stderr, "  ampvm -search-target 19690720 prog.txt # Find the matching noun/verb\n")
		fmt.Fprintf(os.Stderr, "  ampvm -amplify prog.txt               # Linear amplifier search\n")
		fmt.Fprintf(os.Stderr, "  ampvm -amplify -feedback -phases 5,6,7,8,9 prog.txt\n")
		fmt.Fprintf(os.Stderr, "  ampvm -manifest . -amplify            # Settings from ampvm.toml\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
	log := commonlog.GetLogger("ampvm")

	var man *manifest.Manifest
	if *manifestDir != "" {
		var err error
		man, err = manifest.Load(*manifestDir)
		if err != nil {
			fatal("%v", err)
		}
		if !flagSet("phases") && len(man.Amplify.Phases) > 0 {
			*phases = joinInts(man.Amplify.Phases)
		}
		if !flagSet("feedback") {
			*feedback = man.Amplify.Feedback
		}
		if !flagSet("search-target") && man.Search.Target != nil {
			*searchTarget = *man.Search.Target
		}
		if !flagSet("ledger") {
			*ledger = man.LedgerPath()
		}
	}

	text, err := programText(man, *source, flag.Args())
	if err != nil {
		fatal("%v", err)
	}
	program, err := vm.Parse(text)
	if err != nil {
		fatal("%v", err)
	}
	log.Infof("loaded program with %d cells", program.Size())

	ctx := context.Background()

	switch {
	case *disasm:
		fmt.Print(vm.Disassemble(&program))

	case *amplify:
		phaseSet, err := parseValues(*phases)
		if err != nil {
			fatal("invalid phase set: %v", err)
		}
		result, err := amp.MaxSignal(ctx, program, phaseSet, *feedback)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Phase configuration %v yields max signal of %d\n", result.Phases, result.Signal)
		if *ledger != "" {
			recordRun(*ledger, text, result, *feedback)
		}

	case *searchTarget >= 0:
		n, v, err := amp.SearchNounVerb(ctx, program, vm.Value(*searchTarget))
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Noun %d verb %d produce result %d\n", n, v, *searchTarget)

	default:
		m := vm.New(program)
		if *noun >= 0 {
			if err := m.SetNoun(vm.Value(*noun)); err != nil {
				fatal("%v", err)
			}
		}
		if *verb >= 0 {
			if err := m.SetVerb(vm.Value(*verb)); err != nil {
				fatal("%v", err)
			}
		}
		if *inputs != "" {
			values, err := parseValues(*inputs)
			if err != nil {
				fatal("invalid inputs: %v", err)
			}
			m.QueueInput(values...)
		}
		out, err := m.RunCollect(ctx)
		if err != nil {
			fatal("%v", err)
		}
		if len(out) > 0 {
			fmt.Printf("Output: %v\n", out)
		}
		result, err := m.Result()
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Result: %d\n", result)
	}
}

// programText resolves the program source: inline flag, manifest, or a
// program file named on the command line.
func programText(man *manifest.Manifest, source string, args []string) (string, error) {
	if source != "" {
		return source, nil
	}
	if len(args) > 1 {
		return "", fmt.Errorf("unexpected arguments after %s: %s (flags go before the program file)", args[0], strings.Join(args[1:], " "))
	}
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("cannot read program %s: %w", args[0], err)
		}
		return string(data), nil
	}
	if man != nil {
		return man.ProgramText()
	}
	return "", fmt.Errorf("no program given: pass a file, -source, or -manifest")
}

func recordRun(path, text string, result amp.Result, feedback bool) {
	s, err := store.Open(path)
	if err != nil {
		fatal("%v", err)
	}
	defer s.Close()

	phases := make([]int64, len(result.Phases))
	for i, p := range result.Phases {
		phases[i] = int64(p)
	}
	id, err := s.Save(&store.Record{
		Program:  text,
		Phases:   phases,
		Feedback: feedback,
		Signal:   int64(result.Signal),
	})
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Recorded run %d in %s\n", id, path)
}

func parseValues(csv string) ([]vm.Value, error) {
	var values []vm.Value
	for _, field := range strings.Split(csv, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q is not an integer", field)
		}
		values = append(values, vm.Value(n))
	}
	return values, nil
}

func joinInts(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
