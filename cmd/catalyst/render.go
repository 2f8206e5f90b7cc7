package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/starford/catalyst/internal"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/notify"
	"github.com/starford/catalyst/internal/syncer"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// printer renders command results on stdout, as text or as JSON.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(cmd *cli.Command) *printer {
	return &printer{w: os.Stdout, json: cmd.Bool("json")}
}

func (p *printer) encode(v any) {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func outcomeLabel(s models.OutcomeStatus) string {
	switch s {
	case models.OutcomeWritten:
		return green("written")
	case models.OutcomeSkipped:
		return faint("unchanged")
	}
	return red("failed")
}

func failedCount(reports models.TargetReports) int {
	n := 0
	for _, r := range reports {
		_, _, failed := r.Counts()
		n += failed
	}
	return n
}

func (p *printer) reports(reports models.TargetReports) {
	if p.json {
		p.encode(reports)
		return
	}
	if len(reports) == 0 {
		fmt.Fprintln(p.w, yellow("no enabled targets"))
		return
	}
	for _, name := range sortedKeys(reports) {
		r := reports[name]
		written, skipped, failed := r.Counts()
		fmt.Fprintf(p.w, "%s  %s %d  %s %d  %s %d\n", bold(name),
			green("written"), written, faint("unchanged"), skipped, red("failed"), failed)
		for _, path := range sortedKeys(r) {
			oc := r[path]
			switch oc.Status {
			case models.OutcomeWritten:
				fmt.Fprintf(p.w, "  %s %s -> %s\n", outcomeLabel(oc.Status), path, oc.Destination)
			case models.OutcomeFailed:
				fmt.Fprintf(p.w, "  %s %s: %s\n", outcomeLabel(oc.Status), path, oc.Reason)
			}
		}
	}
}

func (p *printer) plans(plans map[string]map[string]syncer.Plan, diff bool) {
	if p.json {
		p.encode(plans)
		return
	}
	for _, path := range sortedKeys(plans) {
		for _, target := range sortedKeys(plans[path]) {
			plan := plans[path][target]
			oc := plan.Outcome
			label := outcomeLabel(oc.Status)
			if oc.Status == models.OutcomeWritten {
				label = yellow("would write")
			}
			fmt.Fprintf(p.w, "%s [%s] %s", label, target, path)
			if oc.Reason != "" {
				fmt.Fprintf(p.w, ": %s", oc.Reason)
			}
			fmt.Fprintln(p.w)
			if diff && plan.Diff != "" {
				p.diff(plan.Diff)
			}
		}
	}
}

func (p *printer) diff(d string) {
	for _, line := range strings.Split(strings.TrimSuffix(d, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(p.w, "    "+green(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(p.w, "    "+red(line))
		default:
			fmt.Fprintln(p.w, "    "+faint(line))
		}
	}
}

func (p *printer) classify(r *internal.ClassifyReport) {
	if p.json {
		p.encode(r)
		return
	}
	fmt.Fprintf(p.w, "%s %s: %d notes, %d with metadata, %d need classification\n",
		bold("classify"), r.Dir, r.Scanned, len(r.WithMetadata), len(r.Previews))
	for _, pv := range r.Previews {
		c := pv.Classification
		category := string(c.Category)
		if c.Subcategory != "" {
			category += "/" + c.Subcategory
		}
		fmt.Fprintf(p.w, "  %s  %s  %s  %s\n", pv.Path, green(category),
			faint(c.Complexity+", "+c.Quality), strings.Join(c.Tags, " "))
	}
	for _, path := range r.Applied {
		fmt.Fprintf(p.w, "  %s %s\n", green("header written"), path)
	}
	for _, path := range sortedKeys(r.Failures) {
		fmt.Fprintf(p.w, "  %s %s: %s\n", red("failed"), path, r.Failures[path])
	}
}

func (p *printer) analysis(path string, a *internal.Analysis) {
	if p.json {
		p.encode(a)
		return
	}
	m := a.Metadata
	fmt.Fprintf(p.w, "%s\n", bold(path))
	fmt.Fprintf(p.w, "  title       %s\n", m.Title)
	fmt.Fprintf(p.w, "  category    %s", m.Category)
	if m.Subcategory != "" {
		fmt.Fprintf(p.w, "/%s", m.Subcategory)
	}
	if a.Classification != nil {
		fmt.Fprintf(p.w, " %s", yellow("(classified, confidence "+m.Confidence+")"))
	}
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "  tags        %s\n", strings.Join(m.Tags, ", "))
	fmt.Fprintf(p.w, "  complexity  %s\n", m.Complexity)
	fmt.Fprintf(p.w, "  quality     %s\n", m.Quality)
	fmt.Fprintf(p.w, "  status      %s\n", m.Status)
	if len(a.SuggestedTags) > 0 {
		fmt.Fprintf(p.w, "  suggested   %s\n", strings.Join(a.SuggestedTags, ", "))
	}
	for _, name := range sortedKeys(a.Destinations) {
		fmt.Fprintf(p.w, "  -> [%s] %s\n", name, a.Destinations[name])
	}
}

func existsLabel(ok bool) string {
	if ok {
		return green("ok")
	}
	return yellow("missing")
}

func (p *printer) status(st internal.StatusReport) {
	if p.json {
		p.encode(st)
		return
	}
	if st.Project != "" {
		fmt.Fprintf(p.w, "%s %s\n", bold("project"), st.Project)
	}
	fmt.Fprintf(p.w, "%s %s %s\n", bold("root"), st.Root.Path, existsLabel(st.Root.Exists))
	autoSync := green("on")
	if !st.AutoSync {
		autoSync = yellow("off")
	}
	fmt.Fprintf(p.w, "%s %s\n", bold("auto-sync"), autoSync)
	fmt.Fprintln(p.w, bold("watch paths"))
	for _, w := range st.WatchPaths {
		fmt.Fprintf(p.w, "  %s %s\n", w.Path, existsLabel(w.Exists))
	}
	fmt.Fprintln(p.w, bold("targets"))
	for _, t := range st.Targets {
		state := faint("disabled")
		if t.Enabled {
			state = green("enabled")
		}
		fmt.Fprintf(p.w, "  %s (%s) %s %s %s\n", t.Name, t.Kind, t.Path, state, existsLabel(t.Exists))
	}
}

func (p *printer) notification(n notify.Notification) {
	if p.json {
		p.encode(n)
		return
	}
	ts := faint(n.Time.Format("15:04:05"))
	switch n.Kind {
	case notify.SyncWritten:
		fmt.Fprintf(p.w, "%s %s [%s] %s\n", ts, green("synced"), n.Target, n.Path)
	case notify.SyncFailed:
		fmt.Fprintf(p.w, "%s %s [%s] %s: %s\n", ts, red("failed"), n.Target, n.Path, n.Detail)
	case notify.SyncCompleted:
		fmt.Fprintf(p.w, "%s %s [%s] %s\n", ts, bold("batch"), n.Target, n.Detail)
	case notify.WatcherStarted, notify.WatcherStopped:
		fmt.Fprintf(p.w, "%s %s %s\n", ts, bold(string(n.Kind)), n.Detail)
	}
}
