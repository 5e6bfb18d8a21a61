package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"ahatojira/config"
	"ahatojira/models"
	"ahatojira/utils"
)

// AhaClient はAha! APIとのやり取りを処理します
type AhaClient struct {
	req     *requester
	perPage int
}

// NewAhaClient は新しいAha!クライアントを作成します。
// APIトークンはBearerトークンとして全リクエストに付与されます。
func NewAhaClient(ctx context.Context, cfg *config.Config, throttle *Throttle) *AhaClient {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Aha.APIToken,
		TokenType:   "Bearer",
	})

	perPage := cfg.Aha.PerPage
	if perPage <= 0 {
		perPage = 100
	}

	return &AhaClient{
		req: &requester{
			service:  "Aha!",
			baseURL:  cfg.Aha.BaseURL,
			client:   oauth2.NewClient(ctx, src),
			throttle: throttle,
		},
		perPage: perPage,
	}
}

// CheckAuth はAha!認証をチェックします
func (a *AhaClient) CheckAuth(ctx context.Context) error {
	var me map[string]interface{}
	if err := a.req.getJSON(ctx, "/api/v1/me", nil, &me); err != nil {
		return fmt.Errorf("認証失敗: %w", err)
	}
	return nil
}

type ideasPage struct {
	Ideas      []models.IdeaSummary `json:"ideas"`
	Pagination struct {
		TotalPages  int `json:"total_pages"`
		CurrentPage int `json:"current_page"`
	} `json:"pagination"`
}

// ListIdeas はプロダクトのアイデア一覧をページングしながら取得します。
// limit が0より大きければその件数で打ち切ります。
func (a *AhaClient) ListIdeas(ctx context.Context, productID string, limit int) ([]models.IdeaSummary, error) {
	path := fmt.Sprintf("/api/v1/products/%s/ideas", url.PathEscape(productID))

	var all []models.IdeaSummary
	for page := 1; ; page++ {
		utils.LogInfo("アイデア一覧 %d ページ目を取得しています", page)

		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(a.perPage))

		var resp ideasPage
		if err := a.req.getJSON(ctx, path, query, &resp); err != nil {
			return nil, fmt.Errorf("アイデア一覧取得失敗: %w", err)
		}

		if len(resp.Ideas) == 0 {
			break
		}
		all = append(all, resp.Ideas...)

		if limit > 0 && len(all) >= limit {
			all = all[:limit]
			break
		}
		if len(resp.Ideas) < a.perPage {
			break
		}
		if resp.Pagination.TotalPages > 0 && page >= resp.Pagination.TotalPages {
			break
		}
	}

	utils.LogInfo("Aha!から %d 件のアイデアを取得しました", len(all))
	return all, nil
}

// GetIdea はアイデアの詳細を取得します
func (a *AhaClient) GetIdea(ctx context.Context, ideaID string) (models.Value, error) {
	var resp struct {
		Idea models.Value `json:"idea"`
	}
	path := fmt.Sprintf("/api/v1/ideas/%s", url.PathEscape(ideaID))
	if err := a.req.getJSON(ctx, path, nil, &resp); err != nil {
		return models.Value{}, fmt.Errorf("アイデア %s 取得失敗: %w", ideaID, err)
	}
	if resp.Idea.Kind() != models.KindMap {
		return models.Value{}, fmt.Errorf("アイデア %s のレスポンスに idea がありません", ideaID)
	}
	return resp.Idea, nil
}

// GetIdeaComments はアイデアのコメントを取得します
func (a *AhaClient) GetIdeaComments(ctx context.Context, ideaID string) ([]models.Comment, error) {
	var resp struct {
		Comments []models.Comment `json:"comments"`
	}
	path := fmt.Sprintf("/api/v1/ideas/%s/comments", url.PathEscape(ideaID))
	if err := a.req.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("アイデア %s のコメント取得失敗: %w", ideaID, err)
	}
	return resp.Comments, nil
}

// GetIdeaAttachments はアイデアの添付ファイル一覧を取得します
func (a *AhaClient) GetIdeaAttachments(ctx context.Context, ideaID string) ([]models.Attachment, error) {
	var resp struct {
		Attachments []models.Attachment `json:"attachments"`
	}
	path := fmt.Sprintf("/api/v1/ideas/%s/attachments", url.PathEscape(ideaID))
	if err := a.req.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("アイデア %s の添付ファイル取得失敗: %w", ideaID, err)
	}
	utils.LogDebug("アイデア %s の添付ファイル: %d 件", ideaID, len(resp.Attachments))
	return resp.Attachments, nil
}

// DownloadAttachment は添付ファイルの中身をダウンロードします
func (a *AhaClient) DownloadAttachment(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := a.req.newRequest(ctx, http.MethodGet, downloadURL, nil, nil)
	if err != nil {
		return nil, err
	}
	body, err := a.req.send(req, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("添付ファイルダウンロード失敗 %s: %w", downloadURL, err)
	}
	return body, nil
}
