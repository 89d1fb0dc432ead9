package retrieval

import (
	"sort"
	"strings"

	"github.com/logtriage/logtriage-ai/internal/models"
)

// AssembleEntries groups pre-parsed knowledge chunks by entry id and folds
// each section into one KnowledgeEntry. Chunk text carries an
// "Error: X\n\nSection: Y\n\n" header from the upstream chunker; it is
// stripped here so section text is clean prose.
//
// Entries come back sorted by id so index builds are deterministic.
func AssembleEntries(chunks []models.KnowledgeChunk) []models.KnowledgeEntry {
	byID := make(map[string]*models.KnowledgeEntry)
	var order []string

	for _, chunk := range chunks {
		if chunk.EntryID == "" || chunk.Section == "" {
			continue
		}

		entry, ok := byID[chunk.EntryID]
		if !ok {
			entry = &models.KnowledgeEntry{
				ID:         chunk.EntryID,
				Title:      chunk.EntryTitle,
				SourceFile: chunk.SourceFile,
				Page:       chunk.Page,
			}
			byID[chunk.EntryID] = entry
			order = append(order, chunk.EntryID)
		}

		text := stripChunkHeader(chunk.Text)
		switch chunk.Section {
		case "description":
			entry.Description = text
		case "symptoms":
			entry.Symptoms = text
		case "resolution":
			entry.Resolution = text
		case "code":
			entry.Code = text
		case "benefits":
			entry.Benefits = text
		}
	}

	sort.Strings(order)
	entries := make([]models.KnowledgeEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *byID[id])
	}
	return entries
}

// stripChunkHeader removes the two-paragraph "Error: X" / "Section: Y"
// header the chunker prepends. Text without the header passes through.
func stripChunkHeader(text string) string {
	parts := strings.SplitN(text, "\n\n", 3)
	if len(parts) >= 3 {
		return parts[2]
	}
	return parts[len(parts)-1]
}

// CompositeText builds the text an entry is embedded from. Only the
// problem-describing sections participate; resolutions and code describe
// fixes, and log summaries describe problems.
func CompositeText(e *models.KnowledgeEntry) string {
	var parts []string
	if d := strings.TrimSpace(e.Description); d != "" {
		parts = append(parts, d)
	}
	if s := strings.TrimSpace(e.Symptoms); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}
