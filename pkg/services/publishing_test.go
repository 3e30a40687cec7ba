package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/nodered"
	"github.com/flowdeck/flowdeck/pkg/persistence/file"
)

type fakeFlowWriter struct {
	deploys  int
	lastDoc  *nodered.FlowDocument
	revision string
	err      error
}

func (f *fakeFlowWriter) Deploy(_ context.Context, doc *nodered.FlowDocument) (string, error) {
	f.deploys++
	f.lastDoc = doc

	if f.err != nil {
		return "", f.err
	}

	return f.revision, nil
}

func newPublishingFixture(t *testing.T) (*Workflow, *Publishing, *fakeFlowWriter) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	flows := &fakeFlowWriter{revision: "rev-1"}

	workflows := NewWorkflow(persistence, nil, slog.Default())
	publishing := NewPublishing(persistence, flows, nil, slog.Default())

	return workflows, publishing, flows
}

func TestPublish_Success(t *testing.T) {
	workflows, publishing, flows := newPublishingFixture(t)
	ctx := context.Background()

	saved, err := workflows.Save(ctx, validGraph())
	require.NoError(t, err)

	result, err := publishing.Publish(ctx, saved.WorkflowID)
	require.NoError(t, err)

	assert.Equal(t, "published", result.Status)
	assert.Equal(t, saved.WorkflowID, result.WorkflowID)
	assert.Equal(t, saved.Version, result.Version)
	assert.Equal(t, "rev-1", result.Revision)
	assert.NotEmpty(t, result.DeploymentID)
	assert.Empty(t, result.Warnings)

	require.Equal(t, 1, flows.deploys)
	// tab plus the two graph nodes, in one document
	assert.Len(t, flows.lastDoc.Flows, 3)
}

func TestPublish_UnknownWorkflowNeverContactsRuntime(t *testing.T) {
	_, publishing, flows := newPublishingFixture(t)

	_, err := publishing.Publish(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, flows.deploys)
}

func TestPublish_TranslationFailureNeverContactsRuntime(t *testing.T) {
	workflows, publishing, flows := newPublishingFixture(t)
	ctx := context.Background()

	wf := validGraph()
	wf.Nodes = append(wf.Nodes, &models.WorkflowNode{ID: "odd", Type: "hologram"})

	saved, err := workflows.Save(ctx, wf)
	require.NoError(t, err)

	_, err = publishing.Publish(ctx, saved.WorkflowID)
	require.Error(t, err)
	assert.True(t, IsTranslationError(err))
	assert.False(t, IsValidationError(err))
	assert.Equal(t, 0, flows.deploys)
}

func TestPublish_RuntimeFailureSurfaced(t *testing.T) {
	workflows, publishing, flows := newPublishingFixture(t)
	ctx := context.Background()

	flows.err = nodered.ErrRuntimeUnavailable

	saved, err := workflows.Save(ctx, validGraph())
	require.NoError(t, err)

	_, err = publishing.Publish(ctx, saved.WorkflowID)
	require.Error(t, err)
	assert.True(t, IsRuntimeUnavailable(err))
	// exactly one attempt, no retries
	assert.Equal(t, 1, flows.deploys)
}

func TestPublish_SurfacesTranslatorWarnings(t *testing.T) {
	workflows, publishing, _ := newPublishingFixture(t)
	ctx := context.Background()

	wf := validGraph()
	wf.Edges[0].TargetHandle = "left"

	saved, err := workflows.Save(ctx, wf)
	require.NoError(t, err)

	result, err := publishing.Publish(ctx, saved.WorkflowID)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "left")
}
