package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Material struct {
	ID           uuid.UUID       `json:"id"`
	CourseID     uuid.UUID       `json:"course_id"`
	UserID       uuid.UUID       `json:"user_id"`
	Title        string          `json:"title"`
	ContentType  string          `json:"content_type"`
	ContentText  string          `json:"content_text"`
	FilePath     *string         `json:"file_path"`
	WeekNumber   *int            `json:"week_number"`
	Topics       []string        `json:"topics"`
	UploadedAt   time.Time       `json:"uploaded_at"`
	MetadataJSON json.RawMessage `json:"metadata"`
}

type AddMaterialRequest struct {
	Title       string          `json:"title" validate:"required,max=300"`
	ContentType string          `json:"content_type" validate:"required,max=64"`
	ContentText string          `json:"content_text"`
	FilePath    *string         `json:"file_path"`
	WeekNumber  *int            `json:"week_number" validate:"omitempty,min=1,max=104"`
	Topics      []string        `json:"topics" validate:"omitempty,dive,required"`
	Metadata    json.RawMessage `json:"metadata"`
}

// DocumentStats describes the shape of extracted text.
type DocumentStats struct {
	TotalCharacters     int     `json:"total_characters"`
	TotalWords          int     `json:"total_words"`
	TotalLines          int     `json:"total_lines"`
	AverageWordsPerLine float64 `json:"average_words_per_line"`
}

type DocumentLine struct {
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

type DocumentStructure struct {
	PotentialHeadings []DocumentLine `json:"potential_headings"`
	ListItems         []DocumentLine `json:"list_items"`
	HasTables         bool           `json:"has_tables"`
	HasCode           bool           `json:"has_code"`
}

// TextChunk is a window of extracted text sized for agent consumption.
type TextChunk struct {
	ChunkID   int    `json:"chunk_id"`
	Content   string `json:"content"`
	StartPos  int    `json:"start_pos"`
	EndPos    int    `json:"end_pos"`
	WordCount int    `json:"word_count"`
}

// ExtractedDocument is the output of the file ingestion pipeline.
type ExtractedDocument struct {
	Filename      string            `json:"filename"`
	FileExtension string            `json:"file_extension"`
	Text          string            `json:"-"`
	Stats         DocumentStats     `json:"statistics"`
	Structure     DocumentStructure `json:"structure"`
	Chunks        []TextChunk       `json:"-"`
	ChunkCount    int               `json:"chunk_count"`
	ProcessedAt   time.Time         `json:"processed_at"`
}
