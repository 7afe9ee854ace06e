package qdrant

import (
	"fmt"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

func chunkPayload(chunk domain.Chunk) map[string]any {
	payload := map[string]any{
		"document_id":    chunk.DocumentID,
		"document_title": chunk.Metadata.DocumentTitle,
		"chunk_index":    chunk.Index,
		"text":           chunk.Text,
	}
	if chunk.Metadata.Author != "" {
		payload["author"] = chunk.Metadata.Author
	}
	if chunk.Metadata.Subject != "" {
		payload["subject"] = chunk.Metadata.Subject
	}
	if len(chunk.Metadata.Tags) > 0 {
		payload["tags"] = chunk.Metadata.Tags
	}
	if chunk.Metadata.ChapterLabel != "" {
		payload["chapter_label"] = chunk.Metadata.ChapterLabel
	}
	if chunk.Metadata.PageNumber > 0 {
		payload["page_number"] = chunk.Metadata.PageNumber
	}
	for k, v := range chunk.Metadata.Extra {
		payload["extra_"+k] = v
	}
	return payload
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	chunk := domain.Chunk{
		DocumentID: payloadString(payload, "document_id"),
		Index:      payloadInt(payload, "chunk_index"),
		Text:       payloadString(payload, "text"),
		Metadata: domain.ChunkMetadata{
			DocumentTitle: payloadString(payload, "document_title"),
			Author:        payloadString(payload, "author"),
			Subject:       payloadString(payload, "subject"),
			Tags:          payloadStrings(payload, "tags"),
			ChapterLabel:  payloadString(payload, "chapter_label"),
			PageNumber:    payloadInt(payload, "page_number"),
		},
	}
	for k, v := range payload {
		if len(k) > 6 && k[:6] == "extra_" {
			if chunk.Metadata.Extra == nil {
				chunk.Metadata.Extra = make(map[string]string)
			}
			chunk.Metadata.Extra[k[6:]] = fmt.Sprintf("%v", v)
		}
	}
	return chunk
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func payloadStrings(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
