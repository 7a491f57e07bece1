// Пакет model — доменные модели filevault.
// FileRecord — маппинг таблицы files.
package model

import "time"

// FileRecord — запись каталога медиафайлов.
// Текстовые поля никогда не NULL: отсутствующие значения хранятся как "".
type FileRecord struct {
	// ID — внешний идентификатор файла (первичный ключ)
	ID string `json:"id"`
	// AccessHash — непрозрачный ключ доступа внешнего слоя доставки
	AccessHash string `json:"access_hash"`
	// FileReference — непрозрачная ссылка внешнего слоя доставки
	FileReference []byte `json:"file_reference,omitempty"`
	// MimeType — MIME-тип файла
	MimeType string `json:"mime_type"`
	// Caption — подпись (очищенная от служебных фрагментов)
	Caption string `json:"caption"`
	// Keywords — дополнительные ключевые слова
	Keywords string `json:"keywords"`
	// FileName — нормализованное имя файла
	FileName string `json:"file_name"`
	// CreatedAt — время первой записи
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchHit — файл, найденный поиском, с его рангом.
type SearchHit struct {
	File FileRecord `json:"file"`
	// Rank — оценка релевантности (больше — выше в выдаче)
	Rank float64 `json:"rank"`
}
