package model

type SubmitRequestBody struct {
	Path string `json:"path"`
}

type SubmitResponse struct {
	ID string `json:"id"`
}

type ErrorResponse struct {
	Error string `json:"detail"`
}
