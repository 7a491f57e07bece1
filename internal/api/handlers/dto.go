// dto.go — JSON-типы запросов и ответов API.
package handlers

import (
	"time"

	"github.com/bigkaa/filevault/internal/domain/model"
	"github.com/bigkaa/filevault/internal/service"
)

// fileRequest — тело POST /api/v1/files.
type fileRequest struct {
	ID            string `json:"id"`
	AccessHash    string `json:"access_hash"`
	FileReference []byte `json:"file_reference"`
	MimeType      string `json:"mime_type"`
	Caption       string `json:"caption"`
	Keywords      string `json:"keywords"`
	FileName      string `json:"file_name"`
}

func (f fileRequest) toInput() service.FileInput {
	return service.FileInput{
		ID:            f.ID,
		AccessHash:    f.AccessHash,
		FileReference: f.FileReference,
		MimeType:      f.MimeType,
		Caption:       f.Caption,
		Keywords:      f.Keywords,
		FileName:      f.FileName,
	}
}

// batchRequest — тело POST /api/v1/files/batch.
type batchRequest struct {
	Files []fileRequest `json:"files"`
}

// batchResponse — итог пакетной регистрации.
type batchResponse struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// searchRequest — тело POST /api/v1/search.
type searchRequest struct {
	Query      string `json:"query"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	MimePrefix string `json:"mime_prefix"`
}

func (s searchRequest) toQuery() service.Query {
	return service.Query{
		Phrase:     s.Query,
		Page:       s.Page,
		PageSize:   s.PageSize,
		MimePrefix: s.MimePrefix,
	}
}

// searchItem — элемент выдачи поиска.
type searchItem struct {
	File model.FileRecord `json:"file"`
	Rank float64          `json:"rank"`
}

// searchResponse — ответ POST /api/v1/search.
type searchResponse struct {
	Query      string       `json:"query"`
	Keywords   []string     `json:"keywords"`
	Items      []searchItem `json:"items"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
	Offset     int          `json:"offset"`
	HasMore    bool         `json:"has_more"`
}

func toSearchResponse(res *service.Result) searchResponse {
	items := make([]searchItem, 0, len(res.Items))
	for _, hit := range res.Items {
		items = append(items, searchItem{File: hit.File, Rank: hit.Rank})
	}
	keywords := res.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return searchResponse{
		Query:      res.Phrase,
		Keywords:   keywords,
		Items:      items,
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
		Offset:     res.Offset,
		HasMore:    res.HasMore,
	}
}

// resultsRequest — тело POST /api/v1/results.
type resultsRequest struct {
	UserID int64 `json:"user_id"`
	searchRequest
}

// resultEntry — элемент страницы результатов пользователя.
type resultEntry struct {
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	Token       string `json:"token"`
	Link        string `json:"link,omitempty"`
}

// resultsResponse — ответ POST /api/v1/results.
type resultsResponse struct {
	Query      string        `json:"query"`
	Premium    bool          `json:"premium"`
	Entries    []resultEntry `json:"entries"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
	Total      int           `json:"total"`
	HasMore    bool          `json:"has_more"`
}

func toResultsResponse(p *service.ResultPage) resultsResponse {
	entries := make([]resultEntry, 0, len(p.Entries))
	for _, e := range p.Entries {
		entries = append(entries, resultEntry{
			DisplayName: e.DisplayName,
			Kind:        e.Kind,
			Token:       e.Token,
			Link:        e.Link,
		})
	}
	return resultsResponse{
		Query:      p.Phrase,
		Premium:    p.Premium,
		Entries:    entries,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		Total:      p.Total,
		HasMore:    p.HasMore,
	}
}

// tokenRequest — тело POST /api/v1/tokens.
type tokenRequest struct {
	FileID string `json:"file_id"`
}

// tokenResponse — выданный токен.
type tokenResponse struct {
	Token  string `json:"token"`
	FileID string `json:"file_id"`
}

// premiumRequest — тело PUT /api/v1/premium/{user_id}.
type premiumRequest struct {
	Days int `json:"days"`
}

// premiumResponse — состояние премиум-доступа.
type premiumResponse struct {
	UserID     int64      `json:"user_id"`
	Active     bool       `json:"active"`
	ExpiryDate *time.Time `json:"expiry_date"`
	DaysLeft   int        `json:"days_left"`
}
