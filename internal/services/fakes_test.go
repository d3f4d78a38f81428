package services

import (
	"time"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/services/servicetest"
)

func testLogger() *logger.Logger { return logger.Nop() }

// testEnv wires every service over one in-memory store.
type testEnv struct {
	*servicetest.Store

	courseSvc  *CourseService
	planSvc    *PlanService
	contentSvc *ContentUpdateService
	progSvc    *ProgressService
	sessionSvc *SessionService
}

var testNow = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC) // a Monday

func newTestEnv() *testEnv {
	env := &testEnv{Store: servicetest.New()}
	log := testLogger()
	env.courseSvc = NewCourseService(env.Courses, env.Materials, log)
	env.planSvc = NewPlanService(env.Courses, env.Materials, env.Plans, env.Sessions, nil, env.Publisher, 0, log)
	env.planSvc.now = func() time.Time { return testNow }
	env.contentSvc = NewContentUpdateService(env.Courses, env.Materials, env.Plans, env.Sessions, nil, env.Publisher, 0, log)
	env.progSvc = NewProgressService(env.Courses, env.Plans, env.Sessions, env.Logs, log)
	env.progSvc.now = func() time.Time { return testNow }
	env.sessionSvc = NewSessionService(env.Plans, env.Sessions, env.Publisher, log)
	env.sessionSvc.now = func() time.Time { return testNow }
	return env
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }
