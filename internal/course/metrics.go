package course

import "courseforge/internal/transcript"

// Quality grades, best to worst.
const (
	GradeAPlus = "A+"
	GradeA     = "A"
	GradeB     = "B"
	GradeC     = "C"
)

func computeMetrics(in Inputs, days []Day) Metrics {
	m := Metrics{
		MetadataFromAPI: in.MetadataProvider == "youtube-data-api",
		TranscriptReal:  !in.Transcript.FromDescription,
		SynthesisFromAI: !in.SynthesisFallback,
		MediaArchived:   in.MediaURL != "",
		TranscriptChars: len(in.Transcript.Text),
		DayCount:        len(days),
	}
	if in.TranscriptProvider == transcript.FallbackName {
		m.TranscriptReal = false
	}
	for _, used := range []bool{!m.MetadataFromAPI, !m.TranscriptReal, !m.SynthesisFromAI} {
		if used {
			m.FallbacksUsed++
		}
	}
	if in.Elapsed > 0 {
		m.GenerationElapsedMS = in.Elapsed.Milliseconds()
	}
	m.QualityGrade = grade(m)
	return m
}

// grade mirrors how each data source degrades the result: the AI plan with a
// real transcript and API metadata is the best outcome, the deterministic
// outline the worst.
func grade(m Metrics) string {
	switch {
	case !m.SynthesisFromAI:
		return GradeC
	case !m.TranscriptReal:
		return GradeB
	case !m.MetadataFromAPI:
		return GradeA
	default:
		return GradeAPlus
	}
}
