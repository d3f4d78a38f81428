package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/ledongthuc/pdf"

	"studybuddy-backend/internal/models"
)

const (
	MaxUploadBytes = 100 << 20

	chunkSize     = 2000
	chunkOverlap  = 200
	chunkLookback = 100

	maxHeadings  = 10
	maxListItems = 20
)

// SupportedUploadExtensions are the file types the ingestion pipeline reads.
var SupportedUploadExtensions = map[string]bool{".pdf": true, ".docx": true, ".txt": true}

// CheckUploadExtension rejects files the pipeline cannot read.
func CheckUploadExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".doc":
		return &ValidationError{Fields: map[string]string{
			"file": "Legacy .doc files are not supported. Please save the document as .docx or PDF and upload it again.",
		}}
	case !SupportedUploadExtensions[ext]:
		return &ValidationError{Fields: map[string]string{
			"file": fmt.Sprintf("Unsupported file type %q. Supported types: .pdf, .docx, .txt", ext),
		}}
	}
	return nil
}

type FileExtractService struct {
	now func() time.Time
}

func NewFileExtractService() *FileExtractService {
	return &FileExtractService{now: time.Now}
}

// ExtractDocument reads the file at path and returns its text with
// statistics, structure hints and analysis chunks.
func (s *FileExtractService) ExtractDocument(path, filename string) (*models.ExtractedDocument, error) {
	if err := CheckUploadExtension(filename); err != nil {
		return nil, err
	}
	text, err := s.ExtractTextFromPath(path)
	if err != nil {
		return nil, err
	}

	chunks := ChunkText(text)
	return &models.ExtractedDocument{
		Filename:      filename,
		FileExtension: strings.ToLower(filepath.Ext(filename)),
		Text:          text,
		Stats:         DocumentStatistics(text),
		Structure:     AnalyzeStructure(text),
		Chunks:        chunks,
		ChunkCount:    len(chunks),
		ProcessedAt:   s.now().UTC(),
	}, nil
}

func (s *FileExtractService) ExtractTextFromPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt":
		return s.extractTXT(path)
	case ".pdf":
		return s.extractPDF(path)
	case ".docx":
		return s.extractDOCX(path)
	default:
		return "", fmt.Errorf("unsupported file type for text extraction: %s", ext)
	}
}

func (s *FileExtractService) extractTXT(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	text := normalizeExtractedText(string(b))
	if text == "" {
		return "", fmt.Errorf("text file is empty")
	}

	return text, nil
}

func (s *FileExtractService) extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := normalizeExtractedText(b.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text found in pdf")
	}

	return text, nil
}

func (s *FileExtractService) extractDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var documentXML []byte
	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		documentXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		break
	}

	if len(documentXML) == 0 {
		return "", fmt.Errorf("docx document.xml not found")
	}

	text := normalizeExtractedText(stripDOCXML(documentXML))
	if text == "" {
		return "", fmt.Errorf("no extractable text found in docx")
	}

	return text, nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func stripDOCXML(src []byte) string {
	s := string(src)

	// Paragraphs, breaks and tabs
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", "\t")

	s = xmlTagPattern.ReplaceAllString(s, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	return replacer.Replace(s)
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	buf := bytes.Buffer{}
	emptyCount := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}

func DocumentStatistics(text string) models.DocumentStats {
	lines := strings.Split(text, "\n")
	words := len(strings.Fields(text))
	return models.DocumentStats{
		TotalCharacters:     len([]rune(text)),
		TotalWords:          words,
		TotalLines:          len(lines),
		AverageWordsPerLine: float64(words) / float64(len(lines)),
	}
}

var (
	headingPrefixes = []string{"Chapter", "Section", "Part", "1.", "2.", "3."}
	listPrefixes    = []string{"•", "-", "*", "1.", "2.", "3.", "a)", "b)", "c)"}
)

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// isUpperLine reports whether s has at least one letter and no lowercase ones.
func isUpperLine(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// AnalyzeStructure finds likely headings and list items (1-based line
// numbers) and flags tables and code.
func AnalyzeStructure(text string) models.DocumentStructure {
	st := models.DocumentStructure{
		PotentialHeadings: []models.DocumentLine{},
		ListItems:         []models.DocumentLine{},
		HasTables:         strings.Contains(text, "|") || strings.Contains(text, "---"),
		HasCode:           strings.Contains(text, "```") || strings.Contains(text, "def ") || strings.Contains(text, "function "),
	}

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if len(st.PotentialHeadings) < maxHeadings && len([]rune(line)) < 100 &&
			(isUpperLine(line) || hasAnyPrefix(line, headingPrefixes) || strings.HasSuffix(line, ":")) {
			st.PotentialHeadings = append(st.PotentialHeadings, models.DocumentLine{LineNumber: i + 1, Text: line})
		}
		if len(st.ListItems) < maxListItems && hasAnyPrefix(line, listPrefixes) {
			st.ListItems = append(st.ListItems, models.DocumentLine{LineNumber: i + 1, Text: line})
		}
	}
	return st
}

// ChunkText splits text into windows of up to 2000 characters overlapping by
// 200. A window ends early at the first sentence break found in its last 100
// characters. Positions count runes.
func ChunkText(text string) []models.TextChunk {
	runes := []rune(text)
	n := len(runes)
	if n <= chunkSize {
		return []models.TextChunk{{
			ChunkID:   1,
			Content:   text,
			StartPos:  0,
			EndPos:    n,
			WordCount: len(strings.Fields(text)),
		}}
	}

	var chunks []models.TextChunk
	start := 0
	for start < n {
		end := start + chunkSize
		if end > n {
			end = n
		}
		if end < n {
			for i := end - chunkLookback; i < end; i++ {
				if i > start && strings.ContainsRune(".!?\n", runes[i]) {
					end = i + 1
					break
				}
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, models.TextChunk{
				ChunkID:   len(chunks) + 1,
				Content:   content,
				StartPos:  start,
				EndPos:    end,
				WordCount: len(strings.Fields(content)),
			})
		}

		if end >= n {
			break
		}
		next := end - chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
