package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Brownie44l1/smartseva-api/internal/app"
	"github.com/Brownie44l1/smartseva-api/internal/config"
	"github.com/Brownie44l1/smartseva-api/internal/logger"
	"github.com/Brownie44l1/smartseva-api/internal/triage"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (overrides CONFIG_PATH)")
	asJSON := flag.Bool("json", false, "print results as JSON")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [-json] image...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *configPath != "" {
		os.Setenv("CONFIG_PATH", *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays parseable.
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, "text")
	slog.SetDefault(log)

	application, err := app.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	failed := false
	for _, path := range flag.Args() {
		result, err := application.Pipeline().ClassifyFile(context.Background(), path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
			continue
		}
		if *asJSON {
			printJSON(os.Stdout, path, result)
		} else {
			printResult(os.Stdout, path, result)
		}
	}

	if failed {
		application.Close()
		os.Exit(1)
	}
}

func printJSON(w io.Writer, path string, r *triage.Result) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(struct {
		Image string `json:"image"`
		*triage.Result
	}{path, r})
}

func printResult(w io.Writer, path string, r *triage.Result) {
	fmt.Fprintf(w, "📊 Prediction Result (%s)\n", path)
	fmt.Fprintf(w, "Main Category: %s\n", r.IssueType)
	fmt.Fprintf(w, "Sub Class: %s\n", r.PredictedClass)
	fmt.Fprintf(w, "Confidence: %s\n", r.ConfidenceText())
	fmt.Fprintf(w, "Emergency Level: %s\n", r.EmergencyLevel.Display())
	fmt.Fprintf(w, "Department: %s\n", r.Department)
	if r.Mismatch {
		fmt.Fprintf(w, "Note: main head predicted %s\n", r.MainCategory)
	}
	fmt.Fprintf(w, "\n💬 Feedback\n%s\n\n", r.Feedback)
}
