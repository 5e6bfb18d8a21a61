package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"ahatojira/config"
	"ahatojira/models"
	"ahatojira/utils"
)

// ErrIssueKeyMissing はイシュー作成レスポンスにキーが含まれていないことを示します
var ErrIssueKeyMissing = errors.New("イシューキーが見つかりません")

// jiraSearchPageSize は検索APIの1ページあたりの件数です
const jiraSearchPageSize = 50

// JiraClient はJIRA APIとのやり取りを処理します
type JiraClient struct {
	config *config.Config
	req    *requester
}

// NewJiraClient は新しいJIRAクライアントを作成します
func NewJiraClient(cfg *config.Config, throttle *Throttle) *JiraClient {
	return &JiraClient{
		config: cfg,
		req: &requester{
			service:  "JIRA",
			baseURL:  cfg.Jira.BaseURL,
			client:   &http.Client{},
			throttle: throttle,
			auth: func(r *http.Request) {
				r.SetBasicAuth(cfg.Jira.Username, cfg.Jira.APIToken)
			},
		},
	}
}

// CheckAuth はJIRA認証をチェックします
func (j *JiraClient) CheckAuth(ctx context.Context) error {
	var me map[string]interface{}
	if err := j.req.getJSON(ctx, "/rest/api/3/myself", nil, &me); err != nil {
		return fmt.Errorf("認証失敗: %w", err)
	}
	return nil
}

// FindUserByEmail はメールアドレスでJIRAユーザーを検索しアカウントIDを返します。
// 見つからない場合は空文字列を返します。
func (j *JiraClient) FindUserByEmail(ctx context.Context, email string) (string, error) {
	query := url.Values{}
	query.Set("query", email)

	var users []struct {
		AccountID string `json:"accountId"`
	}
	if err := j.req.getJSON(ctx, "/rest/api/3/user/search", query, &users); err != nil {
		return "", fmt.Errorf("ユーザー検索失敗 %s: %w", email, err)
	}

	for _, u := range users {
		if u.AccountID != "" {
			return u.AccountID, nil
		}
	}
	return "", nil
}

// CreateIssue はJIRAイシューを作成しイシューキーを返します
func (j *JiraClient) CreateIssue(ctx context.Context, fields map[string]interface{}) (string, error) {
	payload := map[string]interface{}{
		"fields": fields,
	}

	var result struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := j.req.sendJSON(ctx, http.MethodPost, "/rest/api/3/issue", payload, &result, http.StatusCreated); err != nil {
		return "", fmt.Errorf("イシュー作成失敗: %w", err)
	}

	if result.Key == "" {
		return "", ErrIssueKeyMissing
	}
	return result.Key, nil
}

// UpdateIssue はJIRAイシューのフィールドを更新します
func (j *JiraClient) UpdateIssue(ctx context.Context, issueKey string, fields map[string]interface{}) error {
	payload := map[string]interface{}{
		"fields": fields,
	}
	path := fmt.Sprintf("/rest/api/3/issue/%s", url.PathEscape(issueKey))
	if err := j.req.sendJSON(ctx, http.MethodPut, path, payload, nil, http.StatusNoContent, http.StatusOK); err != nil {
		return fmt.Errorf("イシュー %s 更新失敗: %w", issueKey, err)
	}
	return nil
}

// GetTransitions はイシューの利用可能なトランジションを取得します。
// キーは遷移先ステータス名の小文字です。
func (j *JiraClient) GetTransitions(ctx context.Context, issueKey string) (map[string]string, error) {
	var result struct {
		Transitions []struct {
			ID string `json:"id"`
			To struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	path := fmt.Sprintf("/rest/api/3/issue/%s/transitions", url.PathEscape(issueKey))
	if err := j.req.getJSON(ctx, path, nil, &result); err != nil {
		return nil, fmt.Errorf("トランジション取得失敗: %w", err)
	}

	transitionMap := make(map[string]string)
	for _, t := range result.Transitions {
		if t.ID == "" || t.To.Name == "" {
			continue
		}
		transitionMap[strings.ToLower(t.To.Name)] = t.ID
	}
	return transitionMap, nil
}

// UpdateStatus はJIRAイシューのステータスをトランジションで更新します。
// 初期ステータスと同じ場合は何もしません。
func (j *JiraClient) UpdateStatus(ctx context.Context, issueKey, targetStatus string) error {
	if targetStatus == "" || strings.EqualFold(targetStatus, j.config.Jira.InitialStatus) {
		utils.LogDebug("イシュー %s: '%s' は初期ステータスのためスキップします", issueKey, targetStatus)
		return nil
	}

	transitions, err := j.GetTransitions(ctx, issueKey)
	if err != nil {
		return err
	}

	transitionID, ok := transitions[strings.ToLower(targetStatus)]
	if !ok {
		return fmt.Errorf("ステータス '%s' への遷移が見つかりません", targetStatus)
	}

	payload := map[string]interface{}{
		"transition": map[string]string{
			"id": transitionID,
		},
	}
	path := fmt.Sprintf("/rest/api/3/issue/%s/transitions", url.PathEscape(issueKey))
	if err := j.req.sendJSON(ctx, http.MethodPost, path, payload, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("ステータス更新失敗: %w", err)
	}
	return nil
}

// AddComment はJIRAイシューにコメントを追加します。空のコメントは送信しません。
func (j *JiraClient) AddComment(ctx context.Context, issueKey, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	payload := map[string]interface{}{
		"body": models.ADFDocument(text),
	}
	path := fmt.Sprintf("/rest/api/3/issue/%s/comment", url.PathEscape(issueKey))
	if err := j.req.sendJSON(ctx, http.MethodPost, path, payload, nil, http.StatusCreated); err != nil {
		return fmt.Errorf("コメント追加失敗: %w", err)
	}
	return nil
}

// AddRemoteLink はJIRAイシューにWebリンクを追加します
func (j *JiraClient) AddRemoteLink(ctx context.Context, issueKey, linkURL, title string) error {
	if linkURL == "" {
		return nil
	}

	payload := map[string]interface{}{
		"object": map[string]string{
			"url":   linkURL,
			"title": title,
		},
	}
	path := fmt.Sprintf("/rest/api/3/issue/%s/remotelink", url.PathEscape(issueKey))
	if err := j.req.sendJSON(ctx, http.MethodPost, path, payload, nil, http.StatusCreated, http.StatusOK); err != nil {
		return fmt.Errorf("リモートリンク追加失敗: %w", err)
	}
	return nil
}

// UploadAttachment はJIRAイシューに添付ファイルをアップロードします
func (j *JiraClient) UploadAttachment(ctx context.Context, issueKey, filename string, content []byte) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("multipartフォーム作成エラー: %w", err)
	}

	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("ファイルコピーエラー: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("writerクローズエラー: %w", err)
	}

	path := fmt.Sprintf("/rest/api/3/issue/%s/attachments", url.PathEscape(issueKey))
	req, err := j.req.newRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	if _, err := j.req.send(req, http.StatusOK); err != nil {
		return fmt.Errorf("添付ファイルアップロード失敗: %w", err)
	}
	return nil
}

type jiraSearchRequest struct {
	JQL           string   `json:"jql"`
	MaxResults    int      `json:"maxResults"`
	Fields        []string `json:"fields"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

type jiraSearchResponse struct {
	Issues        []models.JiraIssue `json:"issues"`
	NextPageToken string             `json:"nextPageToken"`
}

// SearchIssues はJQLでイシューを検索します。limit が0より大きければその件数で打ち切ります。
func (j *JiraClient) SearchIssues(ctx context.Context, jql string, fields []string, limit int) ([]models.JiraIssue, error) {
	var all []models.JiraIssue
	nextPageToken := ""

	for {
		pageSize := jiraSearchPageSize
		if limit > 0 && limit-len(all) < pageSize {
			pageSize = limit - len(all)
		}

		reqBody := jiraSearchRequest{
			JQL:           jql,
			MaxResults:    pageSize,
			Fields:        fields,
			NextPageToken: nextPageToken,
		}

		var resp jiraSearchResponse
		if err := j.req.sendJSON(ctx, http.MethodPost, "/rest/api/3/search/jql", reqBody, &resp, http.StatusOK); err != nil {
			return nil, fmt.Errorf("イシュー検索失敗: %w", err)
		}

		all = append(all, resp.Issues...)
		utils.LogDebug("JIRA検索: %d 件取得済み", len(all))

		if limit > 0 && len(all) >= limit {
			all = all[:limit]
			break
		}
		if resp.NextPageToken == "" || len(resp.Issues) == 0 {
			break
		}
		nextPageToken = resp.NextPageToken
	}

	return all, nil
}

// ReferenceJQL はAha!参照フィールドを持つイシューを探すJQLを組み立てます
func ReferenceJQL(projectKey, referenceField string) string {
	field := fmt.Sprintf("%q", referenceField)
	if id, ok := strings.CutPrefix(referenceField, "customfield_"); ok && id != "" {
		field = fmt.Sprintf("cf[%s]", id)
	}
	return fmt.Sprintf(`project = %q AND %s is not EMPTY ORDER BY created ASC`, projectKey, field)
}
