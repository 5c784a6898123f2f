package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/storage"
)

const downloadURLExpiry = 15 * time.Minute

// DocumentService 文档库；文件本体存放在对象存储
type DocumentService struct {
	*RegisterService[entity.Document]
	repos *repository.Repositories
	store storage.ObjectStore
}

func NewDocumentService(repos *repository.Repositories, store storage.ObjectStore) *DocumentService {
	return &DocumentService{
		RegisterService: newRegisterService(repos.Documents, "Document", registerMeta[entity.Document]{
			id:      func(v *entity.Document) *uint { return &v.ID },
			created: func(v *entity.Document) *time.Time { return &v.CreatedAt },
			required: func(v *entity.Document) []string {
				return missing("title", v.Title, "category", v.Category)
			},
		}),
		repos: repos,
		store: store,
	}
}

// Upload 上传文件并记录对象键，覆盖之前的文件引用
func (s *DocumentService) Upload(ctx context.Context, id uint, fileName string, r io.Reader, size int64, contentType string) (*entity.Document, error) {
	if s.store == nil {
		return nil, storage.ErrNotConfigured
	}
	doc, err := s.repos.Documents.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("Document", err)
	}

	key := storage.ObjectKey(doc.ID, fileName)
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("store document file: %w", err)
	}
	doc.ObjectKey = &key
	doc.FileName = &fileName
	if err := s.repos.Documents.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DownloadURL 返回限时下载链接
func (s *DocumentService) DownloadURL(ctx context.Context, id uint) (string, error) {
	if s.store == nil {
		return "", storage.ErrNotConfigured
	}
	doc, err := s.repos.Documents.FindByID(ctx, id)
	if err != nil {
		return "", notFound("Document", err)
	}
	if doc.ObjectKey == nil || *doc.ObjectKey == "" {
		return "", &NotFoundError{Message: "Document file not found"}
	}
	name := ""
	if doc.FileName != nil {
		name = *doc.FileName
	}
	return s.store.PresignedURL(ctx, *doc.ObjectKey, name, downloadURLExpiry)
}

// IsStorageUnavailable 对象存储未配置
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, storage.ErrNotConfigured)
}
