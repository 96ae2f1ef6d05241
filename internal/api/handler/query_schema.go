package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
// It mirrors the type rendered by api.NewHTTPErrorHandler and exists here only
// so the swag annotations can reference it.
type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Auth ---

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// loginRequest carries no required tags: missing credentials are rejected by
// the auth service with the same 401 as wrong ones.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userSummary struct {
	Username string `json:"username"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

// --- Queries ---

// queryRequest is accepted by create and update. Fields such as owner,
// share state or creation time are not part of it and are ignored if sent.
type queryRequest struct {
	Title string   `json:"title" validate:"required"`
	Text  string   `json:"text"  validate:"required"`
	Tags  []string `json:"tags"`
}

type queryResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	IsPublic  bool      `json:"isPublic"`
	ShareID   *string   `json:"shareId"`
	CreatedAt time.Time `json:"createdAt"`
}

type shareResponse struct {
	ShareID string `json:"shareId"`
}
