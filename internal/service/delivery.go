// delivery.go — страница результатов для пользователя и погашение выбора.
// Премиум-пользователь получает файл напрямую, остальные — ссылку с токеном.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/bigkaa/filevault/internal/domain/model"
)

// Способ доставки элемента страницы.
const (
	DeliveryDirect = "direct"
	DeliveryLink   = "link"
)

// unknownDisplayName — подпись элемента без имени и подписи файла.
const unknownDisplayName = "Unknown File"

// Entry — элемент страницы результатов.
type Entry struct {
	// DisplayName — подпись кнопки
	DisplayName string
	// Kind — direct или link
	Kind string
	// Token — токен файла
	Token string
	// Link — ссылка просмотра (только для link)
	Link string
}

// ResultPage — страница результатов для пользователя.
type ResultPage struct {
	Phrase     string
	Premium    bool
	Entries    []Entry
	Page       int
	PageSize   int
	TotalPages int
	Total      int
	HasMore    bool
}

// DeliveryService — сборка страницы результатов и выдача файла по токену.
type DeliveryService struct {
	search    *SearchService
	vault     *VaultService
	premium   *PremiumService
	catalogue *CatalogueService
	linkBase  string
	logger    *slog.Logger
}

// NewDeliveryService создаёт сервис доставки.
// linkBase — адрес страницы просмотра, к нему добавляются token и videoName.
func NewDeliveryService(
	search *SearchService,
	vault *VaultService,
	premium *PremiumService,
	catalogue *CatalogueService,
	linkBase string,
	logger *slog.Logger,
) *DeliveryService {
	return &DeliveryService{
		search:    search,
		vault:     vault,
		premium:   premium,
		catalogue: catalogue,
		linkBase:  linkBase,
		logger:    logger.With(slog.String("component", "delivery_service")),
	}
}

// ResultPage выполняет поиск и выдаёт токен каждому найденному файлу.
// Ошибка выдачи токена для одного файла пропускает только этот файл.
func (s *DeliveryService) ResultPage(ctx context.Context, userID int64, q Query) (*ResultPage, error) {
	premium, err := s.premium.IsActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	res, err := s.search.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	page := &ResultPage{
		Phrase:     res.Phrase,
		Premium:    premium,
		Entries:    make([]Entry, 0, len(res.Items)),
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
		Total:      res.Total,
		HasMore:    res.HasMore,
	}

	for _, hit := range res.Items {
		token, err := s.vault.Issue(ctx, hit.File.ID)
		if err != nil {
			s.logger.Warn("Не удалось выдать токен, файл пропущен",
				slog.String("file_id", hit.File.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		entry := Entry{
			DisplayName: displayName(&hit.File),
			Token:       token,
			Kind:        DeliveryLink,
		}
		if premium {
			entry.Kind = DeliveryDirect
		} else {
			entry.Link = s.link(token, hit.File.FileName)
		}
		page.Entries = append(page.Entries, entry)
	}

	return page, nil
}

// Redeem возвращает файл по токену.
// ErrInvalidToken — токен неизвестен, ErrNotFound — файл исчез из каталога.
func (s *DeliveryService) Redeem(ctx context.Context, token string) (*model.FileRecord, error) {
	fileID, err := s.vault.Redeem(ctx, token)
	if err != nil {
		return nil, err
	}
	record, err := s.catalogue.GetByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("файл токена: %w", err)
	}
	return record, nil
}

func (s *DeliveryService) link(token, fileName string) string {
	v := url.Values{}
	v.Set("token", token)
	v.Set("videoName", fileName)
	return s.linkBase + "?" + v.Encode()
}

func displayName(f *model.FileRecord) string {
	switch {
	case f.FileName != "":
		return f.FileName
	case f.Caption != "":
		return f.Caption
	default:
		return unknownDisplayName
	}
}
