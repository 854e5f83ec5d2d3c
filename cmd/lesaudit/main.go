/*
main.go - Offline statement audit

PURPOSE:
  Audits one statement from a file without a server or database. The
  statement uses the same JSON shape as POST /api/audits; the result is
  printed as the same JSON the API returns.

USAGE:
  lesaudit [-bundle tables.yaml] [-strict] statement.json
  lesaudit < statement.json

FLAGS:
  -bundle   Rate-table bundle file, JSON or YAML by extension.
            Defaults to the embedded sample bundle.
  -strict   Exit 2 when the audit raises a red flag.

EXIT CODES:
  0  audit completed
  1  bad input or bundle
  2  red flags present (with -strict)
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/api"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/audit"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/factory"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

const exitRed = 2

func main() {
	log.SetFlags(0)
	log.SetPrefix("[lesaudit] ")

	code, err := run(os.Args[1:], os.Stdin, os.Stdout)
	if err != nil {
		log.Print(err)
	}
	os.Exit(code)
}

func run(args []string, stdin io.Reader, stdout io.Writer) (int, error) {
	fs := flag.NewFlagSet("lesaudit", flag.ContinueOnError)
	bundlePath := fs.String("bundle", "", "rate-table bundle file (JSON or YAML)")
	strict := fs.Bool("strict", false, "exit 2 when a red flag is raised")
	if err := fs.Parse(args); err != nil {
		return 1, err
	}

	bundle, err := loadBundle(*bundlePath)
	if err != nil {
		return 1, err
	}

	var in io.Reader = stdin
	if path := fs.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return 1, err
		}
		defer f.Close()
		in = f
	}

	var req api.AuditRequest
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return 1, fmt.Errorf("failed to parse statement: %w", err)
	}
	if req.BundleVersion != "" && req.BundleVersion != bundle.Version {
		log.Printf("statement asks for bundle %s, auditing against %s", req.BundleVersion, bundle.Version)
	}

	resp, err := api.Evaluate(audit.NewEngine(), req, bundle)
	if err != nil {
		return 1, err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return 1, err
	}

	if *strict && resp.Counts[string(audit.SeverityRed)] > 0 {
		return exitRed, nil
	}
	return 0, nil
}

func loadBundle(path string) (*ratetable.Bundle, error) {
	f := factory.NewBundleFactory()
	if path == "" {
		return f.LoadSample()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Parse(data, factory.DetectFormat(path))
}
