package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

const (
	ToolCreateCourse             = "create_course"
	ToolAddMaterial              = "add_material"
	ToolGenerateStudyPlan        = "generate_study_plan"
	ToolUpdatePlanWithNewContent = "update_plan_with_new_content"
	ToolCompleteSession          = "complete_session"
	ToolGetUserProgress          = "get_user_progress"
	ToolGetCourseProgress        = "get_course_progress"
)

// ToolSpec describes a tool to the agent.
type ToolSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Required    []string `json:"required"`
	Optional    []string `json:"optional,omitempty"`
}

var toolRegistry = map[string]ToolSpec{
	ToolCreateCourse: {
		Name:        ToolCreateCourse,
		Description: "Create a course for the current user.",
		Required:    []string{"title"},
		Optional:    []string{"description", "outline"},
	},
	ToolAddMaterial: {
		Name:        ToolAddMaterial,
		Description: "Add text material to a course. A week-tagged material is applied to that week's pending sessions right away.",
		Required:    []string{"course_id", "title"},
		Optional:    []string{"content_type", "text", "week_number", "topics"},
	},
	ToolGenerateStudyPlan: {
		Name:        ToolGenerateStudyPlan,
		Description: "Generate a study plan for a course from its materials.",
		Required:    []string{"course_id"},
		Optional:    []string{"duration_weeks", "sessions_per_week", "session_duration_minutes", "preferred_times", "content_schedule", "start_date"},
	},
	ToolUpdatePlanWithNewContent: {
		Name:        ToolUpdatePlanWithNewContent,
		Description: "Attach a newly uploaded material to the pending sessions of its week.",
		Required:    []string{"course_id", "material_id", "week_number"},
	},
	ToolCompleteSession: {
		Name:        ToolCompleteSession,
		Description: "Mark a study session completed with an optional score and notes.",
		Required:    []string{"session_id"},
		Optional:    []string{"validation_score", "notes"},
	},
	ToolGetUserProgress: {
		Name:        ToolGetUserProgress,
		Description: "Summarize the current user's study progress.",
	},
	ToolGetCourseProgress: {
		Name:        ToolGetCourseProgress,
		Description: "Report completion for one course's active plan.",
		Required:    []string{"course_id"},
	},
}

// Tools lists the available tools sorted by name.
func Tools() []ToolSpec {
	out := make([]ToolSpec, 0, len(toolRegistry))
	for _, spec := range toolRegistry {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// callArgs is the union of all tool arguments.
type callArgs struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Outline     string `json:"outline"`

	CourseID   string `json:"course_id"`
	MaterialID string `json:"material_id"`
	SessionID  string `json:"session_id"`

	ContentType string   `json:"content_type"`
	Text        string   `json:"text"`
	WeekNumber  *int     `json:"week_number"`
	Topics      []string `json:"topics"`

	DurationWeeks          int      `json:"duration_weeks"`
	SessionsPerWeek        int      `json:"sessions_per_week"`
	SessionDurationMinutes int      `json:"session_duration_minutes"`
	PreferredTimes         []string `json:"preferred_times"`
	ContentSchedule        string   `json:"content_schedule"`
	StartDate              string   `json:"start_date"`

	ValidationScore *float64 `json:"validation_score"`
	Notes           *string  `json:"notes"`
}

func (a callArgs) present(name string) bool {
	switch name {
	case "title":
		return strings.TrimSpace(a.Title) != ""
	case "course_id":
		return a.CourseID != ""
	case "material_id":
		return a.MaterialID != ""
	case "session_id":
		return a.SessionID != ""
	case "week_number":
		return a.WeekNumber != nil
	default:
		return true
	}
}

func malformed(field, msg string) Result {
	return failure(&services.ValidationError{Fields: map[string]string{field: msg}})
}

func parseID(field, raw string) (uuid.UUID, *Result) {
	id, err := uuid.Parse(raw)
	if err != nil {
		res := malformed(field, "Must be a valid UUID")
		return uuid.Nil, &res
	}
	return id, nil
}

// Call runs the named tool with JSON arguments.
func (t *Toolkit) Call(ctx context.Context, name string, rawArgs json.RawMessage) Result {
	name = strings.ToLower(strings.TrimSpace(name))
	spec, ok := toolRegistry[name]
	if !ok {
		return Result{Status: StatusError, Code: services.CodeMalformedInput, Message: fmt.Sprintf("Unknown tool %q", name)}
	}

	var args callArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return malformed("arguments", "Arguments must be a JSON object with the documented field types")
		}
	}

	var missing []string
	for _, field := range spec.Required {
		if !args.present(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return Result{
			Status:  StatusError,
			Code:    services.CodeMalformedInput,
			Message: "Missing required arguments: " + strings.Join(missing, ", "),
			Data:    map[string]interface{}{"missing_args": missing},
		}
	}

	return t.dispatch(ctx, name, args)
}

func (t *Toolkit) dispatch(ctx context.Context, name string, args callArgs) Result {
	switch name {
	case ToolCreateCourse:
		return t.CreateCourse(ctx, args.Title, args.Description, args.Outline)

	case ToolAddMaterial:
		courseID, bad := parseID("course_id", args.CourseID)
		if bad != nil {
			return *bad
		}
		return t.AddMaterial(ctx, courseID, MaterialInput{
			Title:       args.Title,
			ContentType: args.ContentType,
			Text:        args.Text,
			WeekNumber:  args.WeekNumber,
			Topics:      args.Topics,
		})

	case ToolGenerateStudyPlan:
		courseID, bad := parseID("course_id", args.CourseID)
		if bad != nil {
			return *bad
		}
		prefs := models.PlanPreferences{
			DurationWeeks:          args.DurationWeeks,
			SessionsPerWeek:        args.SessionsPerWeek,
			SessionDurationMinutes: args.SessionDurationMinutes,
			PreferredTimes:         args.PreferredTimes,
			ContentSchedule:        args.ContentSchedule,
		}
		if args.StartDate != "" {
			start, err := parseStartDate(args.StartDate)
			if err != nil {
				return malformed("start_date", "Use YYYY-MM-DD or RFC3339")
			}
			prefs.StartDate = &start
		}
		return t.GenerateStudyPlan(ctx, courseID, prefs)

	case ToolUpdatePlanWithNewContent:
		courseID, bad := parseID("course_id", args.CourseID)
		if bad != nil {
			return *bad
		}
		materialID, bad := parseID("material_id", args.MaterialID)
		if bad != nil {
			return *bad
		}
		return t.UpdatePlanWithNewContent(ctx, courseID, materialID, *args.WeekNumber)

	case ToolCompleteSession:
		sessionID, bad := parseID("session_id", args.SessionID)
		if bad != nil {
			res := *bad
			res.Data = map[string]interface{}{"success": false}
			return res
		}
		return t.CompleteSession(ctx, sessionID, args.ValidationScore, args.Notes)

	case ToolGetUserProgress:
		return t.GetUserProgress(ctx)

	case ToolGetCourseProgress:
		courseID, bad := parseID("course_id", args.CourseID)
		if bad != nil {
			return *bad
		}
		return t.GetCourseProgress(ctx, courseID)
	}
	return Result{Status: StatusError, Code: services.CodeMalformedInput, Message: fmt.Sprintf("Unknown tool %q", name)}
}

func parseStartDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
