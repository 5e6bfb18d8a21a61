package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"ahatojira/config"
	"ahatojira/models"
)

var errBoom = errors.New("boom")

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Aha.BaseURL = "https://acme.aha.io"
	cfg.Aha.APIToken = "aha-token"
	cfg.Aha.ProductID = "PRJ1"
	cfg.Jira.BaseURL = "https://acme.atlassian.net"
	cfg.Jira.Username = "bot@example.com"
	cfg.Jira.APIToken = "jira-token"
	cfg.Jira.ProjectKey = "PROJ"
	cfg.Jira.AhaReference = "customfield_12345"
	cfg.FieldMappings.StatusMappings = map[string]string{
		"Under review": "In Progress",
		"Shipped":      "Done",
	}
	return cfg
}

func mustIdea(t *testing.T, raw string) models.Value {
	t.Helper()
	v, err := models.ParseJSON([]byte(raw))
	require.NoError(t, err)
	return v
}

type fakeSource struct {
	ideas   []models.IdeaSummary
	listErr error
	limits  []int

	details   map[string]models.Value
	detailErr map[string]error

	comments   map[string][]models.Comment
	commentErr error

	attachments   map[string][]models.Attachment
	attachmentErr error

	downloads   map[string][]byte
	downloadErr map[string]error
}

func (f *fakeSource) ListIdeas(_ context.Context, _ string, limit int) ([]models.IdeaSummary, error) {
	f.limits = append(f.limits, limit)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > 0 && limit < len(f.ideas) {
		return f.ideas[:limit], nil
	}
	return f.ideas, nil
}

func (f *fakeSource) GetIdea(_ context.Context, ideaID string) (models.Value, error) {
	if err := f.detailErr[ideaID]; err != nil {
		return models.Value{}, err
	}
	idea, ok := f.details[ideaID]
	if !ok {
		return models.Value{}, fmt.Errorf("idea %s not found", ideaID)
	}
	return idea, nil
}

func (f *fakeSource) GetIdeaComments(_ context.Context, ideaID string) ([]models.Comment, error) {
	if f.commentErr != nil {
		return nil, f.commentErr
	}
	return f.comments[ideaID], nil
}

func (f *fakeSource) GetIdeaAttachments(_ context.Context, ideaID string) ([]models.Attachment, error) {
	if f.attachmentErr != nil {
		return nil, f.attachmentErr
	}
	return f.attachments[ideaID], nil
}

func (f *fakeSource) DownloadAttachment(_ context.Context, url string) ([]byte, error) {
	if err := f.downloadErr[url]; err != nil {
		return nil, err
	}
	return f.downloads[url], nil
}

type fakeTarget struct {
	users   map[string]string
	userErr error
	lookups []string

	created   []map[string]interface{}
	createErr map[string]error
	nextKey   int

	statuses  map[string]string
	statusErr error

	comments   map[string][]string
	commentErr error

	links   map[string][]string
	linkErr error

	uploads   map[string][]string
	uploadErr error

	issues    []models.JiraIssue
	searchErr error
	jql       string
	fields    []string

	updates   map[string]map[string]interface{}
	updateErr map[string]error
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		users:    map[string]string{},
		statuses: map[string]string{},
		comments: map[string][]string{},
		links:    map[string][]string{},
		uploads:  map[string][]string{},
		updates:  map[string]map[string]interface{}{},
	}
}

func (f *fakeTarget) FindUserByEmail(_ context.Context, email string) (string, error) {
	f.lookups = append(f.lookups, email)
	if f.userErr != nil {
		return "", f.userErr
	}
	return f.users[email], nil
}

func (f *fakeTarget) CreateIssue(_ context.Context, fields map[string]interface{}) (string, error) {
	summary, _ := fields["summary"].(string)
	if err := f.createErr[summary]; err != nil {
		return "", err
	}
	f.created = append(f.created, fields)
	f.nextKey++
	return fmt.Sprintf("PROJ-%d", f.nextKey), nil
}

func (f *fakeTarget) UpdateStatus(_ context.Context, key, status string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statuses[key] = status
	return nil
}

func (f *fakeTarget) AddComment(_ context.Context, key, text string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments[key] = append(f.comments[key], text)
	return nil
}

func (f *fakeTarget) AddRemoteLink(_ context.Context, key, url, title string) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.links[key] = append(f.links[key], url, title)
	return nil
}

func (f *fakeTarget) UploadAttachment(_ context.Context, key, filename string, _ []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads[key] = append(f.uploads[key], filename)
	return nil
}

func (f *fakeTarget) SearchIssues(_ context.Context, jql string, fields []string, limit int) ([]models.JiraIssue, error) {
	f.jql = jql
	f.fields = fields
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit > 0 && limit < len(f.issues) {
		return f.issues[:limit], nil
	}
	return f.issues, nil
}

func (f *fakeTarget) UpdateIssue(_ context.Context, key string, fields map[string]interface{}) error {
	if err := f.updateErr[key]; err != nil {
		return err
	}
	f.updates[key] = fields
	return nil
}

type fakeAuth struct {
	err   error
	calls int
}

func (f *fakeAuth) CheckAuth(context.Context) error {
	f.calls++
	return f.err
}
