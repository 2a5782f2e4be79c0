package model

type ChatSession struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Archived bool   `json:"archived"`
	Ctime    int64  `json:"ctime"`
	Mtime    int64  `json:"mtime"`
}
