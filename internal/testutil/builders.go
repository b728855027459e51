package testutil

import (
	"fmt"

	"dday-scheduler/internal/schedule"
)

// MeetupIssue is the issue used across end-to-end tests
func MeetupIssue() schedule.Issue {
	return schedule.Issue{
		Title:  "[11th Meetup] 2026-02-24",
		Body:   "date: 2026-02-24\nlocation: Seoul\n",
		Labels: []string{"event"},
	}
}

// IssueFor builds an issue anchored at date
func IssueFor(title, date string) schedule.Issue {
	return schedule.Issue{
		Title: title,
		Body:  fmt.Sprintf("date: %s\n", date),
	}
}

// MeetupTable is the two offset table from the meetup scenario
func MeetupTable() schedule.Table {
	return schedule.Table{
		{Offset: -7, Targets: []schedule.TaskName{schedule.TaskNotify, schedule.TaskSurvey, schedule.TaskMeeting}},
		{Offset: 7, Targets: []schedule.TaskName{schedule.TaskNotify, schedule.TaskSurvey, schedule.TaskYoutube}},
	}
}

// TestResolver resolves the four known tasks to fake Lambda ARNs
func TestResolver() schedule.StaticResolver {
	return schedule.NewLambdaARNResolver("ap-northeast-2", "123456789012", "workflow-lang",
		[]schedule.TaskName{schedule.TaskNotify, schedule.TaskSurvey, schedule.TaskMeeting, schedule.TaskYoutube}, nil)
}
