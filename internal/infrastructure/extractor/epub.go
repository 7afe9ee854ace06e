package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"html"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

var (
	htmlTagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRunPattern  = regexp.MustCompile(`\s+`)
	contentFileExtensions = map[string]bool{".xhtml": true, ".html": true, ".htm": true}
)

// An EPUB is a ZIP archive of XHTML content files plus an OPF manifest with
// Dublin Core metadata. Each content file becomes one chapter hint.
func extractEPUB(raw []byte) (domain.Extraction, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "parse epub", err)
	}

	metadata := map[string]string{}
	var contentFiles []*zip.File
	for _, f := range reader.File {
		ext := strings.ToLower(path.Ext(f.Name))
		if contentFileExtensions[ext] {
			contentFiles = append(contentFiles, f)
			continue
		}
		if ext == ".opf" {
			if content, err := readZipFile(f); err == nil {
				mergeEpubMetadata(metadata, content)
			}
		}
	}

	if len(contentFiles) == 0 {
		return domain.Extraction{}, domain.WrapError(
			domain.ErrInvalidInput,
			"parse epub",
			errors.New("archive has no content documents"),
		)
	}

	// Archive order is not guaranteed to match reading order; sorting by
	// name keeps extraction deterministic for the common numbered layouts.
	sort.Slice(contentFiles, func(i, j int) bool { return contentFiles[i].Name < contentFiles[j].Name })

	var sb strings.Builder
	var chapters []domain.Chapter
	offset := 0
	for _, f := range contentFiles {
		content, err := readZipFile(f)
		if err != nil {
			return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "parse epub", err)
		}
		text := stripHTML(string(content))
		if text == "" {
			continue
		}
		label := strings.TrimSuffix(path.Base(f.Name), path.Ext(f.Name))
		runeLen := len([]rune(text))
		chapters = append(chapters, domain.Chapter{
			Label:       label,
			StartOffset: offset,
			EndOffset:   offset + runeLen + 1,
		})
		sb.WriteString(text)
		sb.WriteString("\n")
		offset += runeLen + 1
	}

	return domain.Extraction{
		Text:     strings.TrimRight(sb.String(), "\n"),
		Chapters: chapters,
		Metadata: metadata,
	}, nil
}

func stripHTML(content string) string {
	text := htmlTagPattern.ReplaceAllString(content, " ")
	text = html.UnescapeString(text)
	text = whitespaceRunPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func mergeEpubMetadata(dst map[string]string, content []byte) {
	var pkg struct {
		Metadata struct {
			Title    string `xml:"title"`
			Creator  string `xml:"creator"`
			Language string `xml:"language"`
		} `xml:"metadata"`
	}
	if err := xml.Unmarshal(content, &pkg); err != nil {
		return
	}
	if pkg.Metadata.Title != "" {
		dst["title"] = pkg.Metadata.Title
	}
	if pkg.Metadata.Creator != "" {
		dst["author"] = pkg.Metadata.Creator
	}
	if pkg.Metadata.Language != "" {
		dst["language"] = pkg.Metadata.Language
	}
}
