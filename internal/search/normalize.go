// Пакет search — нормализация поисковых фраз и метаданных файлов.
// Правила нормализации совпадают с SQL-функцией fv_normalize из миграций:
// строка, нормализованная здесь, сравнима с нормализованными столбцами.
package search

import (
	"regexp"
	"strings"
)

// Normalize приводит произвольный текст к канонической фразе:
// всё, кроме ASCII-букв, цифр и пробелов, заменяется пробелом,
// буквы переводятся в нижний регистр, пробелы схлопываются, края обрезаются.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Keywords возвращает список ключевых слов нормализованной фразы.
// Порядок и повторы сохраняются. Пустая фраза даёт nil.
func Keywords(raw string) []string {
	return strings.Fields(Normalize(raw))
}

var (
	bracketGroupRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]|\{[^}]*\}`)
	nonNameCharRe  = regexp.MustCompile(`[^a-zA-Z0-9.]`)
	dotRunRe       = regexp.MustCompile(`\.+`)

	sizeGroupRe  = regexp.MustCompile(`\((.*?GB)\)`)
	imdbRatingRe = regexp.MustCompile(`IMDB\.Rating\.[0-9.]+`)
	genreRe      = regexp.MustCompile(`Genre\.[a-zA-Z.]+`)
)

// NormalizeFileName приводит имя файла к виду "Title.Part.Ext":
// группы в скобках удаляются, остальные спецсимволы становятся точкой,
// повторные точки схлопываются, крайние точки обрезаются.
func NormalizeFileName(name string) string {
	clean := bracketGroupRe.ReplaceAllString(name, "")
	clean = nonNameCharRe.ReplaceAllString(clean, ".")
	clean = dotRunRe.ReplaceAllString(clean, ".")
	return strings.Trim(clean, ".")
}

// CleanCaption убирает из подписи служебные фрагменты релизов:
// размер "(… GB)", рейтинг IMDB и список жанров.
func CleanCaption(caption string) string {
	clean := strings.TrimSpace(sizeGroupRe.ReplaceAllString(caption, ""))
	clean = imdbRatingRe.ReplaceAllString(clean, "")
	clean = genreRe.ReplaceAllString(clean, "")
	clean = dotRunRe.ReplaceAllString(clean, ".")
	return strings.TrimSpace(strings.Trim(clean, "."))
}
