package dto

import "writeup-rag-be/pkg/rag/contextbuilder"

type AskRequest struct {
	Question string `json:"question" validate:"required,min=3"`
}

type AskResponse struct {
	Answer    string                    `json:"answer"`
	Grounded  bool                      `json:"grounded"`
	Citations []contextbuilder.Citation `json:"citations"`
	Cached    bool                      `json:"cached"`
}
