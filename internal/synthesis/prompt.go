// Package synthesis turns video metadata and a transcript into a multi-day
// course draft. Two hosted model providers are tried in order; when both
// fail, a deterministic outline generator produces the plan locally.
package synthesis

import (
	"strconv"
	"strings"

	"courseforge/internal/metadata"
	"courseforge/internal/transcript"
)

// DayCount is the length of every generated study plan.
const DayCount = 7

// Transcripts are truncated before prompting to stay inside model context.
const maxPromptTranscriptChars = 24000

const systemPrompt = `You are an expert curriculum designer. Given a video's metadata and transcript, design a ` +
	`structured multi-day self-study course. Respond with JSON only, no prose, using exactly this schema: ` +
	`{"title": string, "description": string, "days": [{"day": number, "title": string, "description": string, "topics": [string]}]}. ` +
	`Produce exactly the requested number of days. Every day needs at least two concrete topics drawn from the content.`

func buildUserPrompt(video metadata.Video, tr transcript.Transcript) string {
	var b strings.Builder
	b.WriteString("Design a ")
	b.WriteString(strconv.Itoa(DayCount))
	b.WriteString("-day course from this video.\n\n")
	b.WriteString("Title: ")
	b.WriteString(video.Title)
	b.WriteString("\n")
	if video.ChannelTitle != "" {
		b.WriteString("Channel: ")
		b.WriteString(video.ChannelTitle)
		b.WriteString("\n")
	}
	if video.Description != "" {
		b.WriteString("Description: ")
		b.WriteString(truncate(video.Description, 2000))
		b.WriteString("\n")
	}
	b.WriteString("\nTranscript:\n")
	b.WriteString(truncate(tr.Text, maxPromptTranscriptChars))
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
