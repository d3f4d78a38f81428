package services

import (
	"fmt"
	"strings"

	"studybuddy-backend/internal/models"
)

var (
	topicKeywords        = []string{"chapter", "unit", "topic", "lesson", "week"}
	objectiveKeywords    = []string{"objective", "goal", "aim", "learn", "understand"}
	conceptKeywords      = []string{"concept", "principle", "theory", "definition"}
	prerequisiteKeywords = []string{"prerequisite", "required", "background", "prior"}
	difficultyLevels     = []string{"advanced", "complex", "intermediate", "basic", "introduction"}
)

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func firstN(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// countSections counts non-blank lines that are not indented.
func countSections(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" && !strings.HasPrefix(l, " ") {
			n++
		}
	}
	return n
}

// AnalyzeCourseContent classifies each line of content and outline by the
// first keyword group it matches and estimates difficulty and study hours.
func AnalyzeCourseContent(content, outline string) models.CourseAnalysis {
	contentLines := splitLines(content)
	outlineLines := splitLines(outline)

	var topics, objectives, concepts, prereqs []string
	for _, raw := range append(append([]string{}, contentLines...), outlineLines...) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case containsAny(lower, topicKeywords):
			topics = append(topics, line)
		case containsAny(lower, objectiveKeywords):
			objectives = append(objectives, line)
		case containsAny(lower, conceptKeywords):
			concepts = append(concepts, line)
		case containsAny(lower, prerequisiteKeywords):
			prereqs = append(prereqs, line)
		}
	}

	all := strings.ToLower(content + "\n" + outline)
	difficulty := "intermediate"
	for _, level := range difficultyLevels {
		if strings.Contains(all, level) {
			difficulty = level
			break
		}
	}

	words := len(strings.Fields(content)) + len(strings.Fields(outline))
	hours := words / 500
	if hours < 2 {
		hours = 2
	}
	if hours > 8 {
		hours = 8
	}

	return models.CourseAnalysis{
		TopicsIdentified:   nonNil(firstN(topics, 10)),
		LearningObjectives: nonNil(firstN(objectives, 8)),
		KeyConcepts:        nonNil(firstN(concepts, 15)),
		Prerequisites:      nonNil(firstN(prereqs, 5)),
		DifficultyLevel:    difficulty,
		EstimatedHours:     hours,
		TotalLines:         len(contentLines) + len(outlineLines),
		ContentSections:    countSections(contentLines),
		OutlineSections:    countSections(outlineLines),
		StudyRecommendations: []string{
			fmt.Sprintf("Allocate approximately %d hours for this material", hours),
			fmt.Sprintf("Difficulty level: %s", strings.ToUpper(difficulty[:1])+difficulty[1:]),
			"Break content into multiple study sessions",
			"Create summary notes for key concepts",
		},
		Summary: fmt.Sprintf(
			"Identified %d topics, %d learning objectives, and %d key concepts. Estimated %d hours of study time at %s difficulty level.",
			len(topics), len(objectives), len(concepts), hours, difficulty,
		),
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
