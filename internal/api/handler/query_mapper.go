package handler

import (
	"github.com/querynotes/querynotes-api/internal/core/domain"
	"github.com/querynotes/querynotes-api/internal/core/ports"
)

// --- Request → Service input ---

func toQueryInput(req queryRequest) ports.QueryInput {
	return ports.QueryInput{
		Title: req.Title,
		Text:  req.Text,
		Tags:  req.Tags,
	}
}

// --- Service result → HTTP response ---

func toQueryResponse(q *domain.Query) queryResponse {
	resp := queryResponse{
		ID:        q.ID,
		Title:     q.Title,
		Text:      q.Text,
		Tags:      q.Tags,
		IsPublic:  q.IsPublic,
		CreatedAt: q.CreatedAt.UTC(),
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if q.IsPublic && q.ShareToken != "" {
		token := q.ShareToken
		resp.ShareID = &token
	}
	return resp
}

func toQueryResponses(qs []*domain.Query) []queryResponse {
	out := make([]queryResponse, 0, len(qs))
	for _, q := range qs {
		out = append(out, toQueryResponse(q))
	}
	return out
}
