package model

// Comment is the raw input tuple supplied by the comment store. The core
// does not dictate how comments are stored or fetched, only this shape.
type Comment struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	BillID   string `json:"bill_id"`
	AuthorID string `json:"author_id"`
}
