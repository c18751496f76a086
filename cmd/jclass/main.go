package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "parse":
		err = cmdParse(os.Args[2:])
	case "scan":
		err = cmdScan(os.Args[2:])
	case "cfg":
		err = cmdCFG(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "runs":
		err = cmdRuns(os.Args[2:])
	case "failures":
		err = cmdFailures(os.Args[2:])
	case "find":
		err = cmdFind(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `jclass: JVM class file decoder

Usage:
  jclass parse    [flags] <path>...              Decode class files and print them
  jclass scan     [flags] <path>...              Parse a tree of classes and archives concurrently
  jclass cfg      --out <dir> <path>...          Per-method control flow graphs and call graph (DOT)
  jclass graph    --out <dir> <path>...          Class graph and reachable methods (DOT)
  jclass runs     --catalog <file>               List scan runs recorded in a catalog
  jclass failures --catalog <file> --run <id>    List the failures of one scan run
  jclass find     --catalog <file> --class <name> Where a class was found in a scan run

A <path> is a .class file, a .jar/.zip/.war/.ear/.jmod archive, or a
directory searched for both.

Flags:
  --config <file>    Config file (default ./jclass.toml when present)
  --format <fmt>     Output format: json or cbor
  --out <dir>        Output directory
  --catalog <file>   SQLite catalog for scan runs
  --workers <n>      Parse workers (default one per CPU)
  --permit-instance-constants
                     Accept ConstantValue on instance fields
  -v <n>             Log verbosity
`)
}
