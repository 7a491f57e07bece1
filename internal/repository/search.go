// search.go — построение SQL ранжированного поиска по каталогу.
// Поиск и подсчёт используют одно и то же CTE ranked, поэтому
// общее количество всегда совпадает с выдачей без LIMIT.
package repository

import (
	"fmt"
	"strings"
)

// Ранги уровней совпадения. Полнотекстовый уровень даёт значения в (0, 10].
const (
	RankExactName       = 100
	RankExactCaption    = 95
	RankPhraseName      = 90
	RankPhraseCaption   = 85
	RankAllWordsName    = 80
	RankAllWordsCaption = 75
	RankFullTextMax     = 10
)

// SearchParams — параметры ранжированного поиска.
type SearchParams struct {
	// Phrase — нормализованная фраза (ключевые слова через один пробел)
	Phrase string
	// Keywords — ключевые слова фразы в исходном порядке
	Keywords []string
	// MimePrefix — фильтр по префиксу MIME-типа (пусто — без фильтра)
	MimePrefix string
	// Limit — размер страницы
	Limit int
	// Offset — смещение
	Offset int
}

// buildRankedCTE строит CTE ranked и аргументы запроса.
// Уровни проверяются сверху вниз, строка получает ранг первого сработавшего.
// WHERE отбирает кандидатов: любое совпадение уровней a-c содержит первое
// ключевое слово как подстроку, уровень d требует совпадения tsquery.
func buildRankedCTE(params SearchParams) (cte string, args []any) {
	args = []any{
		params.Phrase,
		params.Keywords,
		tsQueryOr(params.Keywords),
		"%" + firstKeyword(params.Keywords) + "%",
	}

	conditions := []string{
		`(fv_document(f.file_name, f.caption, f.keywords) @@ q.tsq
			OR fv_normalize(f.file_name) LIKE $4
			OR fv_normalize(f.caption) LIKE $4)`,
	}
	if params.MimePrefix != "" {
		args = append(args, params.MimePrefix)
		conditions = append(conditions, fmt.Sprintf("starts_with(f.mime_type, $%d)", len(args)))
	}

	cte = fmt.Sprintf(`
	WITH q AS (
		SELECT to_tsquery('simple', $3) AS tsq
	),
	ranked AS (
		SELECT f.id, f.access_hash, f.file_reference, f.mime_type, f.caption,
			f.keywords, f.file_name, f.created_at, f.updated_at,
			CASE
				WHEN fv_normalize(f.file_name) = $1 THEN %d::float8
				WHEN fv_normalize(f.caption) = $1 THEN %d::float8
				WHEN strpos(fv_normalize(f.file_name), $1) > 0 THEN %d::float8
				WHEN strpos(fv_normalize(f.caption), $1) > 0 THEN %d::float8
				WHEN NOT EXISTS (
					SELECT 1 FROM unnest($2::text[]) AS w(word)
					WHERE strpos(fv_normalize(f.file_name), w.word) = 0
				) THEN %d::float8
				WHEN NOT EXISTS (
					SELECT 1 FROM unnest($2::text[]) AS w(word)
					WHERE strpos(fv_normalize(f.caption), w.word) = 0
				) THEN %d::float8
				WHEN fv_document(f.file_name, f.caption, f.keywords) @@ q.tsq THEN
					GREATEST(LEAST(ts_rank(fv_document(f.file_name, f.caption, f.keywords), q.tsq)::float8, 1.0) * %d, 0.001)
				ELSE 0::float8
			END AS rank
		FROM files f, q
		WHERE %s
	)`,
		RankExactName, RankExactCaption, RankPhraseName, RankPhraseCaption,
		RankAllWordsName, RankAllWordsCaption, RankFullTextMax,
		strings.Join(conditions, " AND "),
	)
	return cte, args
}

// buildSearchQuery строит запрос страницы выдачи.
// Сортировка: ранг по убыванию, затем имя файла и id по возрастанию.
func buildSearchQuery(params SearchParams) (query string, args []any) {
	cte, args := buildRankedCTE(params)
	args = append(args, params.Limit, params.Offset)
	query = fmt.Sprintf(`%s
	SELECT id, access_hash, file_reference, mime_type, caption,
		keywords, file_name, created_at, updated_at, rank
	FROM ranked
	WHERE rank > 0
	ORDER BY rank DESC, file_name ASC, id ASC
	LIMIT $%d OFFSET $%d`, cte, len(args)-1, len(args))
	return query, args
}

// buildCountQuery строит запрос общего числа совпадений.
func buildCountQuery(params SearchParams) (query string, args []any) {
	cte, args := buildRankedCTE(params)
	query = cte + `
	SELECT COUNT(*) FROM ranked WHERE rank > 0`
	return query, args
}

// tsQueryOr строит текст tsquery "k1 | k2 | ...".
// Ключевые слова уже нормализованы до [a-z0-9], экранирование не требуется.
func tsQueryOr(keywords []string) string {
	return strings.Join(keywords, " | ")
}

func firstKeyword(keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	return keywords[0]
}
