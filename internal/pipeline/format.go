package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"vodpipe/internal/backend"
)

// lines collects "Label: value" rows, skipping absent fields.
type lines []string

func (l *lines) add(label, value string) {
	if value != "" {
		*l = append(*l, label+": "+value)
	}
}

func (l *lines) addBool(label string, value *bool) {
	if value != nil {
		*l = append(*l, label+": "+strconv.FormatBool(*value))
	}
}

func (l *lines) addInt(label string, value *int) {
	if value != nil {
		*l = append(*l, label+": "+strconv.Itoa(*value))
	}
}

func (l lines) or(fallback string) string {
	if len(l) == 0 {
		return fallback
	}
	return strings.Join(l, "\n")
}

func formatIngest(resp backend.IngestResponse) string {
	var out lines
	out.addBool("Success", resp.Success)
	out.add("VOD ID", resp.VODID)
	out.addInt("Segments", resp.Segments)
	out.add("Output Dir", resp.OutputDir)
	out.add("Manifest", resp.Manifest)
	out.add("Error", resp.Error)
	return out.or("FFmpeg started/completed.")
}

func formatTranscribe(resp backend.TranscribeResponse) string {
	var out lines
	out.add("Message", resp.Message)
	out.add("Transcript", resp.TranscriptPath)
	out.addBool("Success", resp.Success)
	return out.or("Transcription started/completed.")
}

func formatExtract(resp backend.ExtractFramesResponse) string {
	var out lines
	out.addBool("Success", resp.Success)
	out.add("VOD ID", resp.VODID)
	out.add("Frames Dir", resp.FramesDir)
	out.add("Scores CSV", resp.CSVPath)
	out.add("Top Frames JSON", resp.TopFramesJSON)
	out.add("Error", resp.Error)
	return out.or("Frame extraction started/completed.")
}

func formatScore(resp backend.ScoreResponse) string {
	var out lines
	out.addBool("Success", resp.Success)
	out.add("VOD ID", resp.VODID)
	out.addInt("Segments Found", resp.SegmentsFound)
	out.addInt("Rows Ingested", resp.Ingested)
	out.add("Error", resp.Error)
	return out.or("Scoring done.")
}

func formatWrite(resp backend.WriteResultsResponse) string {
	var out lines
	out.addBool("Success", resp.Success)
	out.add("VOD ID", resp.VODID)
	out.add("DB Row ID", resp.RowID)
	out.add("Error", resp.Error)
	return out.or("Wrote results.")
}

func formatFilter(vodID, shadowMode string, resp backend.FilterResponse) string {
	accept, flagged, rejected := resp.Tally()
	return strings.Join([]string{
		"VOD ID: " + vodID,
		"Shadow Mode: " + shadowMode,
		"Scored: " + strconv.Itoa(resp.Count),
		"Accept: " + strconv.Itoa(accept),
		"Flag review: " + strconv.Itoa(flagged),
		"Reject: " + strconv.Itoa(rejected),
	}, "\n")
}

func formatPush(resp backend.PushResponse) string {
	return fmt.Sprintf("Selected: %d", resp.Selected)
}

func formatPolish(resp backend.PolishResponse) string {
	var out lines
	out.add("Status", resp.Status)
	out.add("Segment ID", resp.SegmentID)
	out.addBool("Ensured EDL", resp.EnsuredEDL)
	out.add("Output", resp.Output)
	out.addBool("Used Overlay", resp.UsedOverlay)
	out.add("Error", resp.Error)
	return out.or("Silence + Polish completed.")
}

func formatUpload(resp backend.UploadResponse) string {
	var out lines
	out.add("Public ID", resp.PublicID)
	out.add("URL", resp.URL)
	out.add("Expires", resp.ExpiresAt)
	out.add("Error", resp.Error)
	return out.or("Uploaded.")
}
