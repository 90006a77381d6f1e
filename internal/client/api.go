package client

import (
	"context"
	"fmt"
	"net/http"

	"educbt.org/internal/auth"
	"educbt.org/internal/course"
)

func coursePath(id int64) string { return fmt.Sprintf("/course/%d", id) }

func (c *Client) SignIn(ctx context.Context, email, password string) (auth.User, error) {
	u, err := Mutate[auth.User](ctx, c, http.MethodPost, "/user/sign-in",
		map[string]string{"email": email, "password": password})
	if err == nil {
		c.Invalidate()
	}
	return u, err
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := Mutate[struct{}](ctx, c, http.MethodPost, "/user/logout", nil)
	c.Invalidate()
	return err
}

func (c *Client) Me(ctx context.Context) (auth.Profile, error) {
	return Query[auth.Profile](ctx, c, "/user/me")
}

// Courses lists the signed-in user's courses with their attempt status.
func (c *Client) Courses(ctx context.Context) ([]course.Enrollment, error) {
	return Query[[]course.Enrollment](ctx, c, "/course")
}

func (c *Client) StartTest(ctx context.Context, courseID int64) (course.TestState, error) {
	return Mutate[course.TestState](ctx, c, http.MethodPost, coursePath(courseID)+"/start", nil,
		"/course")
}

// Test loads the attempt state. It is never served from cache.
func (c *Client) Test(ctx context.Context, courseID int64) (course.TestState, error) {
	return Mutate[course.TestState](ctx, c, http.MethodGet, coursePath(courseID)+"/test", nil)
}

func (c *Client) SaveAnswer(ctx context.Context, courseID, questionID, answerID int64) error {
	_, err := Mutate[struct{}](ctx, c, http.MethodPost, coursePath(courseID)+"/answer",
		map[string]int64{"questionId": questionID, "answerId": answerID})
	return err
}

func (c *Client) Finish(ctx context.Context, courseID int64) error {
	_, err := Mutate[course.Attempt](ctx, c, http.MethodPost, coursePath(courseID)+"/finish", nil,
		"/course")
	return err
}

func (c *Client) Report(ctx context.Context, courseID int64) (course.Report, error) {
	return Query[course.Report](ctx, c, coursePath(courseID)+"/report")
}
