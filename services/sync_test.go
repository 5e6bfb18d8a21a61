package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ahatojira/models"
)

func threeIdeaSource(t *testing.T) *fakeSource {
	return &fakeSource{
		ideas: []models.IdeaSummary{
			{ID: "1", ReferenceNum: "APP-I-1", Name: "One"},
			{ID: "2", ReferenceNum: "APP-I-2", Name: "Two"},
			{ID: "3", ReferenceNum: "APP-I-3", Name: "Three"},
		},
		details: map[string]models.Value{
			"1": mustIdea(t, `{"id":"1","reference_num":"APP-I-1","name":"One","url":"https://acme.aha.io/ideas/APP-I-1","workflow_status":{"name":"Under review"}}`),
			"2": mustIdea(t, `{"id":"2","reference_num":"APP-I-2","name":"Two","url":"https://acme.aha.io/ideas/APP-I-2"}`),
			"3": mustIdea(t, `{"id":"3","reference_num":"APP-I-3","name":"Three"}`),
		},
		comments: map[string][]models.Comment{
			"1": {{Body: "hello", CreatedBy: models.CommentAuthor{Name: "Ann"}}},
		},
	}
}

func TestSyncService_WriteFailureIsIsolated(t *testing.T) {
	source := threeIdeaSource(t)
	target := newFakeTarget()
	target.createErr = map[string]error{"Two": errBoom}

	svc := NewSyncService(testConfig(), source, target)
	result, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Idea 2")
	assert.Contains(t, result.Errors[0], "boom")

	require.Len(t, result.Records, 3)
	assert.Equal(t, models.OutcomeSuccess, result.Records[0].Outcome)
	assert.Equal(t, models.OutcomeFailure, result.Records[1].Outcome)
	assert.Equal(t, models.OutcomeSuccess, result.Records[2].Outcome)
	assert.Equal(t, models.IssueMapping{"APP-I-1": "PROJ-1", "APP-I-3": "PROJ-2"}, result.Mapping())

	assert.Len(t, target.created, 2)
	assert.NotContains(t, target.links, "PROJ-3")
}

func TestSyncService_DetailFailureIsIsolated(t *testing.T) {
	source := threeIdeaSource(t)
	source.detailErr = map[string]error{"1": errBoom}
	target := newFakeTarget()

	svc := NewSyncService(testConfig(), source, target)
	result, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "APP-I-1", result.Records[0].Reference)
	assert.Len(t, target.created, 2)
}

func TestSyncService_SecondaryWrites(t *testing.T) {
	source := threeIdeaSource(t)
	target := newFakeTarget()

	svc := NewSyncService(testConfig(), source, target)
	result, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1", Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, source.limits)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "In Progress", target.statuses["PROJ-1"])
	assert.Equal(t, []string{"https://acme.aha.io/ideas/APP-I-1", "Aha! Idea: One"}, target.links["PROJ-1"])
	require.Len(t, target.comments["PROJ-1"], 1)
	assert.Contains(t, target.comments["PROJ-1"][0], "*Comments from Aha!:*")
	assert.Contains(t, target.comments["PROJ-1"][0], "hello")
}

func TestSyncService_SecondaryFailuresDoNotFlipSuccess(t *testing.T) {
	source := threeIdeaSource(t)
	source.attachments = map[string][]models.Attachment{
		"1": {{Filename: "a.png", DownloadURL: "https://files/a"}},
	}
	source.downloads = map[string][]byte{"https://files/a": []byte("PNG")}
	target := newFakeTarget()
	target.statusErr = errBoom
	target.linkErr = errBoom
	target.commentErr = errBoom
	target.uploadErr = errBoom

	cfg := testConfig()
	cfg.Sync.SyncAttachments = true
	svc := NewSyncService(cfg, source, target)
	result, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Errors)
}

func TestSyncService_DegradedSubResources(t *testing.T) {
	source := threeIdeaSource(t)
	source.commentErr = errBoom
	source.attachmentErr = errBoom
	target := newFakeTarget()

	cfg := testConfig()
	cfg.Sync.SyncAttachments = true
	svc := NewSyncService(cfg, source, target)
	result, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Succeeded)
	assert.Empty(t, target.comments)
	assert.Empty(t, target.uploads)
}

func TestSyncService_CopiesAttachments(t *testing.T) {
	source := threeIdeaSource(t)
	source.attachments = map[string][]models.Attachment{
		"1": {
			{Filename: "a.png", DownloadURL: "https://files/a"},
			{ID: models.Number(9), DownloadURL: "https://files/b"},
			{Filename: "broken.bin", DownloadURL: "https://files/c"},
			{Filename: "nourl.txt"},
		},
	}
	source.downloads = map[string][]byte{
		"https://files/a": []byte("PNG"),
		"https://files/b": []byte("DATA"),
	}
	source.downloadErr = map[string]error{"https://files/c": errBoom}
	target := newFakeTarget()

	cfg := testConfig()
	cfg.Sync.SyncAttachments = true
	svc := NewSyncService(cfg, source, target)
	_, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1", Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.png", "aha_attachment_9"}, target.uploads["PROJ-1"])
}

func TestSyncService_SkipsDisabledSubResources(t *testing.T) {
	source := threeIdeaSource(t)
	target := newFakeTarget()

	cfg := testConfig()
	cfg.Sync.SyncComments = false
	cfg.Sync.AddRemoteLink = false
	svc := NewSyncService(cfg, source, target)
	_, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1"})
	require.NoError(t, err)

	assert.Empty(t, target.comments)
	assert.Empty(t, target.links)
}

func TestSyncService_DryRunSuppressesWrites(t *testing.T) {
	source := threeIdeaSource(t)
	target := newFakeTarget()

	svc := NewSyncService(testConfig(), source, target)
	result, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1", DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Succeeded)
	for _, rec := range result.Records {
		assert.Equal(t, models.OutcomeDryRun, rec.Outcome)
	}
	assert.Empty(t, target.created)
	assert.Empty(t, target.statuses)
	assert.Empty(t, target.comments)
	assert.Empty(t, target.links)
	assert.Empty(t, result.Mapping())
}

func TestSyncService_InvalidPayloadIsNotWritten(t *testing.T) {
	cfg := testConfig()
	cfg.Jira.ProjectKey = ""
	cfg.Jira.IssueType = ""
	target := newFakeTarget()

	svc := NewSyncService(cfg, threeIdeaSource(t), target)
	result, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "project, issuetype")
	assert.Empty(t, target.created)
}

func TestSyncService_ListFailure(t *testing.T) {
	source := &fakeSource{listErr: errBoom}

	svc := NewSyncService(testConfig(), source, newFakeTarget())
	result, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1"})
	require.ErrorIs(t, err, errBoom)

	assert.Zero(t, result.Total)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Fatal error")
	assert.False(t, result.FinishedAt.IsZero())
}

func TestSyncService_RunID(t *testing.T) {
	svc := NewSyncService(testConfig(), threeIdeaSource(t), newFakeTarget())

	first, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1", DryRun: true})
	require.NoError(t, err)
	second, err := svc.SyncIdeas(context.Background(), SyncOptions{ProductID: "PRJ1", DryRun: true})
	require.NoError(t, err)

	_, err = uuid.Parse(first.RunID)
	assert.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestSyncService_InspectFields(t *testing.T) {
	source := &fakeSource{
		ideas: []models.IdeaSummary{{ID: "1"}, {ID: "2"}, {ID: "3"}},
		details: map[string]models.Value{
			"1": mustIdea(t, `{"id":"1","name":"One","custom_fields":[{"name":"Segment","value":"x"},{"name":"Tier","value":2}]}`),
			"3": mustIdea(t, `{"id":"3","score":5,"custom_fields":[{"name":"Region","value":null}]}`),
		},
		detailErr: map[string]error{"2": errBoom},
	}

	svc := NewSyncService(testConfig(), source, newFakeTarget())
	inv, err := svc.InspectFields(context.Background(), "PRJ1", 0)
	require.NoError(t, err)

	assert.Equal(t, []int{5}, source.limits)
	assert.Equal(t, 2, inv.Sampled)
	assert.Equal(t, []string{"custom_fields", "id", "name", "score"}, inv.StandardFields)
	assert.Equal(t, []string{"Region", "Segment", "Tier"}, inv.CustomFields)
	assert.Equal(t, "One", inv.Sample["name"])
}

func TestSyncService_InspectFields_NoIdeas(t *testing.T) {
	svc := NewSyncService(testConfig(), &fakeSource{}, newFakeTarget())
	_, err := svc.InspectFields(context.Background(), "PRJ1", 3)
	assert.Error(t, err)
}
