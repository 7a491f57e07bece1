package model

import "time"

// Token — непрозрачный токен доступа к файлу. Один токен на файл, без срока действия.
type Token struct {
	Token     string    `json:"token"`
	FileID    string    `json:"file_id"`
	CreatedAt time.Time `json:"created_at"`
}
