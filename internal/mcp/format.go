package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/fusionsearch/internal/search"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
)

// FormatSearchResponse formats a search response as markdown.
func FormatSearchResponse(query string, resp *search.SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		msg := fmt.Sprintf("No results found for \"%s\"", query)
		if resp != nil && resp.Degraded {
			msg += "\n\n" + degradedNote(resp)
		}
		return msg
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", resp.TotalResults)
	if resp.TotalResults != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (mode: %s", resp.SearchMode)
	if resp.Cached {
		sb.WriteString(", cached")
	}
	sb.WriteString(")\n\n")

	if resp.Degraded {
		sb.WriteString(degradedNote(resp))
		sb.WriteString("\n\n")
	}

	for i, r := range resp.Results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

// degradedNote names the sources that did not answer.
func degradedNote(resp *search.SearchResponse) string {
	var missing []string
	for _, rep := range resp.Sources {
		switch {
		case rep.TimedOut:
			missing = append(missing, string(rep.Source)+" (timed out)")
		case rep.Failed:
			missing = append(missing, string(rep.Source)+" (failed)")
		}
	}
	if len(missing) == 0 {
		return "> Results are partial: some sources did not answer."
	}
	return "> Results are partial: " + strings.Join(missing, ", ") + "."
}

// formatResult formats a single fused result.
func formatResult(sb *strings.Builder, num int, r search.FusedResult) {
	title := r.EntityID
	if r.Payload != nil && r.Payload.Title != "" {
		title = r.Payload.Title
	}
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n", num, title, r.BlendedScore)

	if p := r.Payload; p != nil {
		meta := []string{"`" + r.EntityID + "`"}
		if p.Type != "" {
			meta = append(meta, p.Type)
		}
		if p.Framework != "" {
			meta = append(meta, p.Framework)
		}
		if p.Category != "" {
			meta = append(meta, p.Category)
		}
		if p.IsPremium {
			meta = append(meta, "premium")
		} else if p.IsFree {
			meta = append(meta, "free")
		}
		sb.WriteString(strings.Join(meta, " · "))
		sb.WriteString("\n\n")

		if r.Highlight != "" {
			sb.WriteString(r.Highlight)
			sb.WriteString("\n\n")
		} else if p.Description != "" {
			sb.WriteString(p.Description)
			sb.WriteString("\n\n")
		}
		if len(p.Tags) > 0 {
			fmt.Fprintf(sb, "**Tags:** %s\n\n", strings.Join(p.Tags, ", "))
		}
	} else {
		sb.WriteString("\n")
	}

	fmt.Fprintf(sb, "_%s_\n\n", MatchReason(r))
}

// MatchReason explains which sources found a result.
func MatchReason(r search.FusedResult) string {
	if len(r.Sources) == 0 {
		return "matched"
	}
	names := make([]string, len(r.Sources))
	for i, s := range r.Sources {
		names[i] = string(s)
	}
	if len(names) == 1 {
		return "found by " + names[0] + " search"
	}
	return "found by " + strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1] + " search"
}

// FormatSuggestions formats typeahead suggestions as a markdown list.
func FormatSuggestions(query string, resp *search.SuggestResponse) string {
	if resp == nil || len(resp.Suggestions) == 0 {
		return fmt.Sprintf("No suggestions for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Suggestions for \"%s\"\n\n", query)
	for _, s := range resp.Suggestions {
		if s.Type != "" {
			fmt.Fprintf(&sb, "- %s (%s, `%s`)\n", s.Text, s.Type, s.EntityID)
		} else {
			fmt.Fprintf(&sb, "- %s (`%s`)\n", s.Text, s.EntityID)
		}
	}
	if resp.Degraded {
		sb.WriteString("\n> Suggestions are unavailable right now.\n")
	}
	return sb.String()
}

// latencyBuckets lists histogram buckets in display order.
var latencyBuckets = []telemetry.LatencyBucket{
	telemetry.BucketP10,
	telemetry.BucketP50,
	telemetry.BucketP100,
	telemetry.BucketP500,
	telemetry.BucketP1000,
}

// FormatStats formats query statistics as markdown.
func FormatStats(snap *telemetry.QueryStatsSnapshot) string {
	if snap == nil || snap.TotalQueries == 0 {
		return "No queries recorded yet."
	}

	var sb strings.Builder
	sb.WriteString("## Query Statistics\n\n")
	fmt.Fprintf(&sb, "**Queries:** %d since %s\n", snap.TotalQueries, snap.Since.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Cache hit rate:** %.1f%%\n", snap.CacheHitRate()*100)
	fmt.Fprintf(&sb, "**Degraded:** %.1f%%\n", snap.DegradedRate()*100)
	fmt.Fprintf(&sb, "**Zero results:** %d\n\n", snap.ZeroResultCount)

	if len(snap.ModeCounts) > 0 {
		modes := make([]string, 0, len(snap.ModeCounts))
		for m := range snap.ModeCounts {
			modes = append(modes, m)
		}
		sort.Strings(modes)
		sb.WriteString("### Modes\n\n")
		for _, m := range modes {
			fmt.Fprintf(&sb, "- %s: %d\n", m, snap.ModeCounts[m])
		}
		sb.WriteString("\n")
	}

	sb.WriteString("### Latency\n\n")
	for _, b := range latencyBuckets {
		fmt.Fprintf(&sb, "- %s: %d\n", b, snap.LatencyDistribution[b])
	}

	if len(snap.TopTerms) > 0 {
		sb.WriteString("\n### Top Terms\n\n")
		for _, tc := range snap.TopTerms {
			fmt.Fprintf(&sb, "- %s (%d)\n", tc.Term, tc.Count)
		}
	}

	if len(snap.ZeroResultQueries) > 0 {
		sb.WriteString("\n### Queries Without Results\n\n")
		for _, q := range snap.ZeroResultQueries {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}
	return sb.String()
}
