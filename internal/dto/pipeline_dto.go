package dto

// IndexWriteupMessage is the payload published to the index job topic when a
// write-up reaches the stored stage or a reindex is requested.
type IndexWriteupMessage struct {
	WriteupId string `json:"writeup_id"`
	Mode      string `json:"mode"` // "append" or "overwrite"
}

type ReindexRequest struct {
	Mode string `json:"mode" validate:"omitempty,oneof=append overwrite"`
}

type ReindexResponse struct {
	Mode     string `json:"mode"`
	Writeups int    `json:"writeups"`
}

type RunStatusResponse struct {
	RunId  string         `json:"run_id"`
	Stages map[string]int `json:"stages"`
	Total  int            `json:"total"`
}
