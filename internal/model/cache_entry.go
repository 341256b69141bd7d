package model

type CacheEntry struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Context   []string  `json:"context"`
	Embedding []float32 `json:"-"`
	Distance  float64   `json:"distance"`
	Ctime     int64     `json:"ctime"`
}
