// Package assistant exposes the study-plan engine as named tool calls for a
// conversational agent. Every call returns a Result; errors and panics never
// escape.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/google/uuid"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the tagged envelope returned to the agent.
type Result struct {
	Status  string      `json:"status"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

func success(message string, data interface{}) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

func failure(err error) Result {
	code := services.ErrorCode(err)
	msg := err.Error()
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve.Fields))
		for field := range ve.Fields {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		msg = "Invalid input"
		if len(fields) > 0 {
			msg = fmt.Sprintf("Invalid input: %s: %s", fields[0], ve.Fields[fields[0]])
		}
	}
	if code == services.CodeInternal {
		msg = "Something went wrong. Please try again."
	}
	return Result{Status: StatusError, Code: code, Message: msg}
}

// Services are the engine components a Toolkit drives.
type Services struct {
	Courses  *services.CourseService
	Plans    *services.PlanService
	Content  *services.ContentUpdateService
	Sessions *services.SessionService
	Progress *services.ProgressService
}

// Toolkit binds the tools to one user. Create one per conversation rather
// than sharing state between users.
type Toolkit struct {
	svc    Services
	userID uuid.UUID
	log    *logger.Logger
}

func New(svc Services, userID uuid.UUID, log *logger.Logger) *Toolkit {
	return &Toolkit{
		svc:    svc,
		userID: userID,
		log:    log.With("component", "assistant", "user_id", userID),
	}
}

// guard converts a panic in fn into an internal error result.
func (t *Toolkit) guard(tool string, fn func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("tool panicked", "tool", tool, "panic", r, "stack", string(debug.Stack()))
			res = Result{Status: StatusError, Code: services.CodeInternal, Message: "Something went wrong. Please try again."}
		}
	}()
	res = fn()
	if !res.OK() && res.Code == services.CodeInternal {
		t.log.Warn("tool failed", "tool", tool)
	}
	return res
}

func (t *Toolkit) CreateCourse(ctx context.Context, title, description, outline string) Result {
	return t.guard(ToolCreateCourse, func() Result {
		course, err := t.svc.Courses.CreateCourse(ctx, t.userID, models.CreateCourseRequest{
			Title:       title,
			Description: description,
			Outline:     outline,
		})
		if err != nil {
			return failure(err)
		}
		return success(fmt.Sprintf("Created course %q.", course.Title), map[string]interface{}{
			"course_id": course.ID,
			"course":    course,
		})
	})
}

// MaterialInput describes text content added through the assistant.
type MaterialInput struct {
	Title       string   `json:"title"`
	ContentType string   `json:"content_type"`
	Text        string   `json:"text"`
	WeekNumber  *int     `json:"week_number"`
	Topics      []string `json:"topics"`
}

// AddMaterial saves the material and applies it to the active plan when it
// carries a week. A failed plan update still leaves the material saved and
// its id in Data.
func (t *Toolkit) AddMaterial(ctx context.Context, courseID uuid.UUID, in MaterialInput) Result {
	return t.guard(ToolAddMaterial, func() Result {
		contentType := in.ContentType
		if contentType == "" {
			contentType = "text"
		}
		m, err := t.svc.Courses.AddMaterial(ctx, t.userID, courseID, models.AddMaterialRequest{
			Title:       in.Title,
			ContentType: contentType,
			ContentText: in.Text,
			WeekNumber:  in.WeekNumber,
			Topics:      in.Topics,
		})
		if err != nil {
			return failure(err)
		}

		n, err := t.svc.Content.OnMaterialAdded(ctx, m)
		if err != nil {
			res := failure(err)
			res.Message = fmt.Sprintf("Added material %q but the study plan was not updated: %s", m.Title, res.Message)
			res.Data = map[string]interface{}{"material_id": m.ID}
			return res
		}
		return success(fmt.Sprintf("Added material %q and updated %d sessions.", m.Title, n), map[string]interface{}{
			"material_id":      m.ID,
			"updated_sessions": n,
		})
	})
}

func (t *Toolkit) GenerateStudyPlan(ctx context.Context, courseID uuid.UUID, prefs models.PlanPreferences) Result {
	return t.guard(ToolGenerateStudyPlan, func() Result {
		gen, err := t.svc.Plans.GenerateStudyPlan(ctx, t.userID, courseID, prefs)
		if err != nil {
			return failure(err)
		}
		return success(
			fmt.Sprintf("Created a %d-week plan with %d sessions.", gen.Summary.TotalWeeks, gen.Summary.TotalSessions),
			map[string]interface{}{
				"plan_id":      gen.Plan.ID,
				"plan_summary": gen.Summary,
				"sessions":     gen.Sessions,
			},
		)
	})
}

func (t *Toolkit) UpdatePlanWithNewContent(ctx context.Context, courseID, materialID uuid.UUID, week int) Result {
	return t.guard(ToolUpdatePlanWithNewContent, func() Result {
		n, err := t.svc.Content.UpdatePlanWithNewContent(ctx, t.userID, courseID, materialID, week)
		if err != nil {
			return failure(err)
		}
		return success(fmt.Sprintf("Updated %d sessions for week %d.", n, week), map[string]interface{}{
			"updated_sessions": n,
		})
	})
}

// CompleteSession reports success as a boolean in Data so callers that only
// need the flag can ignore the message.
func (t *Toolkit) CompleteSession(ctx context.Context, sessionID uuid.UUID, score *float64, notes *string) Result {
	return t.guard(ToolCompleteSession, func() Result {
		s, err := t.svc.Sessions.CompleteSession(ctx, t.userID, sessionID, models.CompleteSessionRequest{
			ValidationScore: score,
			Notes:           notes,
		})
		if err != nil {
			res := failure(err)
			res.Data = map[string]interface{}{"success": false}
			return res
		}
		return success(fmt.Sprintf("Marked %q as completed.", s.Title), map[string]interface{}{
			"success": true,
			"session": s,
		})
	})
}

func (t *Toolkit) GetUserProgress(ctx context.Context) Result {
	return t.guard(ToolGetUserProgress, func() Result {
		p, err := t.svc.Progress.GetUserProgress(ctx, t.userID)
		if err != nil {
			return failure(err)
		}
		return success(fmt.Sprintf("%d of %d sessions completed.", p.CompletedSessions, p.TotalSessions), p)
	})
}

func (t *Toolkit) GetCourseProgress(ctx context.Context, courseID uuid.UUID) Result {
	return t.guard(ToolGetCourseProgress, func() Result {
		p, err := t.svc.Progress.GetCourseProgress(ctx, t.userID, courseID)
		if err != nil {
			return failure(err)
		}
		return success(fmt.Sprintf("Course is %.1f%% complete.", p.ProgressPercentage), p)
	})
}
