package model

type VideoTimestamp struct {
	Label   string `json:"label"`
	Seconds int    `json:"seconds"`
	URL     string `json:"url"`
}
