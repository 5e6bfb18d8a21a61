package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// APIError は外部APIが想定外のステータスを返したことを表します
type APIError struct {
	Service    string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 500 {
		body = body[:500] + "..."
	}
	return fmt.Sprintf("%s API %s %s がステータス %d を返しました: %s", e.Service, e.Method, e.Path, e.StatusCode, body)
}

// requester は1つのサービスに対するHTTP呼び出しを共通化します。
// すべてのリクエストの前にスロットルを通します。
type requester struct {
	service  string
	baseURL  string
	client   *http.Client
	throttle *Throttle
	auth     func(*http.Request)
}

func (r *requester) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = r.baseURL + path
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}
	if r.auth != nil {
		r.auth(req)
	}
	return req, nil
}

// send はリクエストを送信し、期待したステータスならレスポンス本文を返します
func (r *requester) send(req *http.Request, expected ...int) ([]byte, error) {
	r.throttle.Wait()

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み込みエラー: %w", err)
	}

	for _, code := range expected {
		if resp.StatusCode == code {
			return body, nil
		}
	}

	return nil, &APIError{
		Service:    r.service,
		Method:     req.Method,
		Path:       req.URL.Path,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// getJSON はGETリクエストを送りJSONレスポンスを out にデコードします
func (r *requester) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	req, err := r.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	body, err := r.send(req, http.StatusOK)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return nil
}

// sendJSON は payload をJSONで送信し、out が nil でなければレスポンスをデコードします
func (r *requester) sendJSON(ctx context.Context, method, path string, payload, out interface{}, expected ...int) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	req, err := r.newRequest(ctx, method, path, nil, bytes.NewReader(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := r.send(req, expected...)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return nil
}
