package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"slidenotes/internal/alignment"
	"slidenotes/internal/jobs"
)

const previewRunes = 72

func buildJobRows(list []*jobs.Job) [][]string {
	if len(list) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		title := strings.TrimSpace(job.Title)
		if title == "" {
			title = "-"
		}
		rows = append(rows, []string{
			job.ID,
			title,
			formatStatusLabel(job.Status),
			formatProgress(job),
			strconv.Itoa(job.SegmentCount),
			strconv.Itoa(job.SlideCount),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func buildSlideRows(result *alignment.Result) [][]string {
	numbers := result.SlideNumbers()
	rows := make([][]string, 0, len(numbers))
	for _, n := range numbers {
		entry, _ := result.Slide(n)
		label := strconv.Itoa(n)
		if n == 0 {
			label = "0 (unmapped)"
		}
		rows = append(rows, []string{
			label,
			strconv.Itoa(len(entry.Segments)),
			preview(entry.Text(), previewRunes),
		})
	}
	return rows
}

func formatStatusLabel(status jobs.Status) string {
	value := strings.TrimSpace(string(status))
	if value == "" {
		return "Unknown"
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func formatProgress(job *jobs.Job) string {
	switch job.Status {
	case jobs.StatusFailed:
		if job.FailedBatch > 0 {
			return fmt.Sprintf("batch %d/%d failed", job.FailedBatch, job.BatchCount)
		}
		return "failed"
	case jobs.StatusCreated:
		return "queued"
	}
	return fmt.Sprintf("%.0f%%", job.ProgressPercent)
}

func formatDisplayTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

// preview collapses whitespace and truncates text to limit runes.
func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}
