// Package taskqueue wraps Cloud Tasks: deterministic-named enqueue with an
// OIDC-signed HTTP target, grounded on original_source's
// transcribe_service/src/routers/events.py (_enqueue_task).
package taskqueue

import (
	"context"
	"fmt"

	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/gcpauth"
	"github.com/clinicore/scribeflow/internal/logger"
)

type Client struct {
	log          *logger.Logger
	client       *cloudtasks.Client
	projectID    string
	location     string
	queueName    string
	callerSA     string
	audience     string
}

type Config struct {
	ProjectID string
	Location  string
	QueueName string
	// CallerSA, if set, secures the task's HTTP target with an OIDC token
	// minted for this service account (SPEC_FULL.md's SUPPLEMENTED FEATURES #3).
	CallerSA string
	Audience string
}

func New(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	c, err := cloudtasks.NewClient(ctx, gcpauth.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: new cloud tasks client: %w", err)
	}
	return &Client{
		log:       log.With("component", "taskqueue"),
		client:    c,
		projectID: cfg.ProjectID,
		location:  cfg.Location,
		queueName: cfg.QueueName,
		callerSA:  cfg.CallerSA,
		audience:  cfg.Audience,
	}, nil
}

// Enqueue creates a task named deterministically `<stage>-<run_id>` that
// POSTs body to targetURL. AlreadyExists is swallowed: redelivered push
// notifications must not fan out duplicate task executions.
func (c *Client) Enqueue(ctx context.Context, stage domain.Stage, runID, targetURL string, body []byte) error {
	parent := fmt.Sprintf("projects/%s/locations/%s/queues/%s", c.projectID, c.location, c.queueName)
	name := fmt.Sprintf("%s/tasks/%s", parent, domain.TaskName(stage, runID))

	httpRequest := &taskspb.HttpRequest{
		Url:        targetURL,
		HttpMethod: taskspb.HttpMethod_POST,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
	if c.callerSA != "" {
		oidc := &taskspb.OidcToken{ServiceAccountEmail: c.callerSA}
		if c.audience != "" {
			oidc.Audience = c.audience
		}
		httpRequest.AuthorizationHeader = &taskspb.HttpRequest_OidcToken{OidcToken: oidc}
	}

	req := &taskspb.CreateTaskRequest{
		Parent: parent,
		Task: &taskspb.Task{
			Name:            name,
			MessageType:     &taskspb.Task_HttpRequest{HttpRequest: httpRequest},
		},
	}

	_, err := c.client.CreateTask(ctx, req)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			c.log.Debug("task already enqueued, treating as success", "run_id", runID, "stage", string(stage))
			return nil
		}
		return fmt.Errorf("taskqueue: create task %s: %w", name, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
