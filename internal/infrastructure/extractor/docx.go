package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

// A DOCX is a ZIP archive; body text lives in word/document.xml and core
// metadata in docProps/core.xml.
func extractDOCX(raw []byte) (domain.Extraction, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "parse docx", err)
	}

	var text string
	var found bool
	metadata := map[string]string{}

	for _, f := range reader.File {
		switch f.Name {
		case "word/document.xml":
			content, err := readZipFile(f)
			if err != nil {
				return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "parse docx", err)
			}
			text, err = docxBodyText(content)
			if err != nil {
				return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "parse docx", err)
			}
			found = true
		case "docProps/core.xml":
			if content, err := readZipFile(f); err == nil {
				mergeDocxCoreProperties(metadata, content)
			}
		}
	}

	if !found {
		return domain.Extraction{}, domain.WrapError(
			domain.ErrInvalidInput,
			"parse docx",
			errors.New("archive has no word/document.xml"),
		)
	}

	text = strings.TrimSpace(text)
	return domain.Extraction{
		Text:     text,
		Chapters: DetectChapters(text),
		Metadata: metadata,
	}, nil
}

// docxBodyText streams the document XML, emitting text runs and a newline
// per paragraph.
func docxBodyText(content []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	var sb strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func mergeDocxCoreProperties(dst map[string]string, content []byte) {
	var props struct {
		Title   string `xml:"title"`
		Creator string `xml:"creator"`
		Subject string `xml:"subject"`
	}
	if err := xml.Unmarshal(content, &props); err != nil {
		return
	}
	if props.Title != "" {
		dst["title"] = props.Title
	}
	if props.Creator != "" {
		dst["author"] = props.Creator
	}
	if props.Subject != "" {
		dst["subject"] = props.Subject
	}
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
