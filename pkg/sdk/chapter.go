package sdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/draftforge/draftforge/pkg/api"
)

// ChapterClient scopes cockpit calls to one chapter
type ChapterClient struct {
	client  *Client
	chapter api.ChapterID
}

// Chapter returns a client scoped to the given chapter
func (c *Client) Chapter(chapter api.ChapterID) *ChapterClient {
	return &ChapterClient{
		client:  c,
		chapter: chapter,
	}
}

// Wizard fetches the chapter's drafting progress record
func (ch *ChapterClient) Wizard(
	ctx context.Context,
) (*api.WizardState, error) {
	var res api.WizardState
	err := ch.client.get(ctx, ch.route("/wizard"), ErrGetWizard, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveWizard performs an explicit save of the chapter's descriptive
// fields, returning the updated record
func (ch *ChapterClient) SaveWizard(
	ctx context.Context, req *api.UpdateWizardRequest,
) (*api.WizardState, error) {
	var res api.WizardState
	err := ch.client.send(ctx, http.MethodPut, ch.route("/wizard"),
		req, ErrSaveWizard, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// StepContent fetches a step's generated output. Missing content is an
// empty string, not an error
func (ch *ChapterClient) StepContent(
	ctx context.Context, step api.StepID,
) (string, error) {
	var res api.StepContentResponse
	err := ch.client.get(ctx, ch.stepRoute(step, "/content"),
		ErrGetContent, &res)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Generate launches a remote execution for the step
func (ch *ChapterClient) Generate(
	ctx context.Context, step api.StepID,
) (*api.ExecutionHandle, error) {
	var res api.GenerateStartedResponse
	err := ch.client.send(ctx, http.MethodPost,
		ch.stepRoute(step, "/generate"), nil, ErrGenerate, &res)
	if err != nil {
		return nil, err
	}
	return res.Handle, nil
}

// Approve records human approval of the step's output
func (ch *ChapterClient) Approve(
	ctx context.Context, step api.StepID, notes string,
) (*api.WizardState, error) {
	var res api.WizardState
	err := ch.client.send(ctx, http.MethodPost,
		ch.stepRoute(step, "/approve"),
		api.ApproveRequest{Notes: notes}, ErrApprove, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (ch *ChapterClient) route(suffix string) string {
	return fmt.Sprintf("%s/%d%s", routeChapters, ch.chapter, suffix)
}

func (ch *ChapterClient) stepRoute(step api.StepID, suffix string) string {
	return ch.route(fmt.Sprintf("/steps/%s%s", step, suffix))
}
