package textutil

import (
	"path/filepath"
	"strings"
)

// SplitIntoChunks splits text into windows of size runes overlapping by overlap runes.
// Whitespace is collapsed first; empty text yields no chunks.
func SplitIntoChunks(text string, size, overlap int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// CleanTitle turns a source file name into a display title
func CleanTitle(source string) string {
	if source == "" {
		return "Unknown Document"
	}
	title := filepath.Base(source)
	if ext := filepath.Ext(title); isExtension(ext) {
		title = strings.TrimSuffix(title, ext)
	}
	title = strings.NewReplacer("_", " ", "-", " ").Replace(title)
	return strings.TrimSpace(title)
}

// isExtension rejects dotted fragments such as "v1.2_final" that are not extensions
func isExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 9 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
