package repository

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

func TestSessionDocsRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   models.StudySession
	}{
		{
			name: "uploaded session with guide",
			in: models.StudySession{
				Topics: []string{"B-trees", "hash indexes"},
				ContentRequirements: models.ContentRequirements{
					RequiredMaterials:    []uuid.UUID{uuid.New(), uuid.New()},
					ContentStatus:        models.ContentStatusUploaded,
					WeekNumber:           3,
					MaterialTitle:        "Indexes",
					EstimatedReadingTime: "30-45 minutes",
				},
				StudyGuide: models.StudyGuide{
					Overview: models.GuideOverview{
						DurationMinutes: 90,
						FocusAreas:      []string{"Indexes"},
						DifficultyLevel: "intermediate",
						PreparationTime: "15 minutes",
					},
					PreSessionPrep: []string{"Skim the slides"},
					DetailedActivities: []models.GuideActivity{
						{Phase: "Warm-up", DurationMinutes: 10, Activities: []string{"Recall last week"}},
					},
					LearningObjectives:  []string{"Pick an index type"},
					SuccessCriteria:     []string{"Explain a B-tree split"},
					ResourcesNeeded:     []string{"Course notes"},
					HomeworkAssignments: []string{"Index a sample table"},
				},
			},
		},
		{
			name: "pending placeholder",
			in: models.StudySession{
				Topics: []string{"Week 5 topics (to be updated when content is uploaded)"},
				ContentRequirements: models.ContentRequirements{
					RequiredMaterials: []uuid.UUID{},
					ContentStatus:     models.ContentStatusPending,
					WeekNumber:        5,
					ExpectedContent:   "Week 5 course materials",
				},
			},
		},
		{
			name: "nil slices become empty",
			in:   models.StudySession{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			topics, reqs, guide, err := encodeSessionDocs(&in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			var out models.StudySession
			if err := decodeSessionDocs(&out, topics, reqs, guide); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Topics == nil || out.ContentRequirements.RequiredMaterials == nil {
				t.Fatal("decoded lists must not be nil")
			}
			if !reflect.DeepEqual(out.Topics, in.Topics) {
				t.Fatalf("topics = %v, want %v", out.Topics, in.Topics)
			}
			if !reflect.DeepEqual(out.ContentRequirements, in.ContentRequirements) {
				t.Fatalf("content requirements = %+v, want %+v", out.ContentRequirements, in.ContentRequirements)
			}
			if !reflect.DeepEqual(out.StudyGuide, in.StudyGuide) {
				t.Fatalf("study guide = %+v, want %+v", out.StudyGuide, in.StudyGuide)
			}
		})
	}
}

func TestDecodeSessionDocs_NullColumns(t *testing.T) {
	var s models.StudySession
	if err := decodeSessionDocs(&s, nil, nil, nil); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Topics == nil || len(s.Topics) != 0 || s.ContentRequirements.RequiredMaterials == nil {
		t.Fatalf("expected empty lists, got %+v", s)
	}
}

func TestDecodeSessionDocs_Malformed(t *testing.T) {
	tests := []struct {
		name                string
		topics, reqs, guide string
	}{
		{"topics", `{"not":"a list"}`, `{}`, `{}`},
		{"requirements", `[]`, `[1,2]`, `{}`},
		{"guide", `[]`, `{}`, `"text"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var s models.StudySession
			if err := decodeSessionDocs(&s, []byte(tc.topics), []byte(tc.reqs), []byte(tc.guide)); err == nil {
				t.Fatal("expected a decode error")
			}
		})
	}
}
