package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"lightspeed/internal/ml"
	"lightspeed/internal/service"
)

// accuracyColor grades a model's accuracy
func accuracyColor(acc float64) color.Attribute {
	switch {
	case acc >= 0.9:
		return color.FgGreen
	case acc >= 0.7:
		return color.FgYellow
	}
	return color.FgRed
}

func printReport(w io.Writer, title string, r *ml.Report) {
	color.New(color.Bold).Fprintf(w, "--- %s ---\n", title)
	fmt.Fprint(w, r.String())
	color.New(accuracyColor(r.Accuracy)).Fprintf(w, "accuracy: %.4f\n\n", r.Accuracy)
}

func printNoise(w io.Writer, res *service.GenerateResult) {
	var inv, ipam int
	for _, a := range res.Labeled {
		if a.MissingInInventory {
			inv++
		}
		if a.MissingInIPAM {
			ipam++
		}
	}
	fmt.Fprintf(w, "generated %d assets\n", len(res.Labeled))
	color.New(color.FgYellow).Fprintf(w, "  missing in inventory: %d\n  missing in ipam:      %d\n", inv, ipam)
	for _, s := range res.Noise.Inventory {
		if s.UsedDefault {
			color.New(color.FgCyan).Fprintf(w, "  model %s used the default failure rate %.2f\n", s.Key, s.Rate)
		}
		if s.Unknown {
			color.New(color.FgRed).Fprintf(w, "  model %s is not in the catalog and was never flagged\n", s.Key)
		}
	}
	fmt.Fprintf(w, "  %s\n  %s\n", res.BasePath, res.LabeledPath)
}

func printRun(w io.Writer, res *service.RunResult) {
	color.New(color.Bold).Fprintf(w, "run %s\n", res.RunID)
	for _, s := range res.Stages {
		fmt.Fprintf(w, "  %-16s %s\n", s.Name, s.Duration.Round(time.Millisecond))
	}
	if res.ManifestPath != "" {
		fmt.Fprintf(w, "  manifest: %s\n", res.ManifestPath)
	}
	color.New(color.FgGreen).Fprintf(w, "completed in %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
}

func printHistoryRow(w io.Writer, id, started string, took time.Duration, assets int, seed int64, status, errMsg string) {
	c := color.New(color.FgGreen)
	if status != service.RunSucceeded {
		c = color.New(color.FgRed)
	}
	fmt.Fprintf(w, "%s  %s  %10s  assets=%-6d seed=%-6d ", id, started, took.Round(time.Millisecond), assets, seed)
	c.Fprintf(w, "%s", status)
	if errMsg != "" {
		fmt.Fprintf(w, "  %s", errMsg)
	}
	fmt.Fprintln(w)
}

// logEvents logs stage transitions until the channel closes
func logEvents(log logrus.FieldLogger, events <-chan service.Event) {
	for ev := range events {
		p, ok := ev.Payload.(service.StagePayload)
		if !ok {
			continue
		}
		entry := log.WithField("stage", p.Stage)
		switch ev.Type {
		case service.EventStageStarted:
			entry.Info("Stage started")
		case service.EventStageCompleted:
			entry.WithField("duration", p.Duration.Round(time.Millisecond)).Info("Stage completed")
		case service.EventStageFailed:
			entry.WithField("duration", p.Duration.Round(time.Millisecond)).Error("Stage failed: " + p.Error)
		case service.EventRunCompleted:
			log.WithFields(logrus.Fields{"run_id": p.RunID, "status": p.Stage}).Debug("Run finished")
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
