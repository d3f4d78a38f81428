package services

import (
	"fmt"

	"studybuddy-backend/internal/models"
)

// buildStudyGuide returns the four-phase session template. Only the focus
// title and the overall duration vary between sessions.
func buildStudyGuide(title string, durationMinutes int) models.StudyGuide {
	return models.StudyGuide{
		Overview: models.GuideOverview{
			DurationMinutes: durationMinutes,
			FocusAreas:      []string{"Content Review", "Practice & Application", "Summary & Reflection"},
			DifficultyLevel: "Moderate",
			PreparationTime: "15 minutes",
		},
		PreSessionPrep: []string{
			"Review previous session notes and key concepts",
			"Gather all required materials and resources",
			"Set up a distraction-free study environment",
			"Have note-taking materials ready",
		},
		DetailedActivities: []models.GuideActivity{
			{
				Phase:           "Warm-up & Review",
				DurationMinutes: 15,
				Activities: []string{
					"Quick review of previous session's key points",
					"Connect new material to prior knowledge",
					"Set learning objectives for this session",
				},
			},
			{
				Phase:           "Content Study",
				DurationMinutes: 45,
				Activities: []string{
					"Read through new course material carefully",
					"Take detailed notes using preferred method",
					"Identify key concepts and terminology",
					"Create visual aids or diagrams if helpful",
				},
			},
			{
				Phase:           "Practice & Application",
				DurationMinutes: 20,
				Activities: []string{
					"Work through practice problems or exercises",
					"Apply concepts to real-world examples",
					"Test understanding with self-quiz",
					"Identify areas needing more review",
				},
			},
			{
				Phase:           "Summary & Planning",
				DurationMinutes: 10,
				Activities: []string{
					"Summarize key learning points",
					"Update study notes and flashcards",
					"Plan review schedule for this material",
					"Prepare for next session",
				},
			},
		},
		LearningObjectives: []string{
			fmt.Sprintf("Master key concepts from %s", title),
			"Apply learned concepts to practice problems",
			"Connect new knowledge to existing understanding",
			"Identify areas for further study or clarification",
		},
		SuccessCriteria: []string{
			"Can explain main concepts in own words",
			"Successfully completed practice exercises",
			"Created comprehensive study notes",
			"Identified next steps for learning",
		},
		ResourcesNeeded: []string{
			"Course materials and textbook",
			"Note-taking supplies or digital tools",
			"Practice problems or exercises",
			"Quiet study environment",
		},
		HomeworkAssignments: []string{
			"Review and organize session notes",
			"Complete any assigned practice problems",
			"Prepare questions for next session",
			"Create flashcards for new terminology",
		},
	}
}
