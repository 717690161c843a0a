package services

import (
	"errors"
	"fmt"

	"github.com/alphabatem/common/context"
	"gorm.io/gorm"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/services/repositories"
	"github.com/current-see/solar_api/shared"
)

// ContentService owns the gated-content catalog. It is the only place the
// engine resolves Solar cost and timer duration from: clients may send both
// for display, but neither is trusted.
type ContentService struct {
	context.DefaultService

	sqlSvc      SqlStore
	contentRepo *repositories.ContentRepository
}

const CONTENT_SVC = "content_svc"

const (
	DefaultSolarCost     = 50.0
	DefaultTimerDuration = 300 // seconds
)

func (svc ContentService) Id() string {
	return CONTENT_SVC
}

func (svc *ContentService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *ContentService) Start() error {
	svc.sqlSvc = svc.Service(StoreID()).(SqlStore)
	svc.contentRepo = repositories.NewContentRepository(svc.sqlSvc.Db())
	return nil
}

// Resolve returns the authoritative catalog row for a content reference.
func (svc *ContentService) Resolve(contentType, contentID string) (*model.GatedContent, error) {
	if contentType == "" || contentID == "" {
		return nil, shared.NewBadRequestError(errors.New("empty content reference"), "Invalid content reference")
	}

	content, err := svc.contentRepo.GetContent(contentType, contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewBadRequestError(
				fmt.Errorf("unknown content %s:%s", contentType, contentID), "Invalid content reference")
		}
		return nil, shared.NewServiceUnavailableError(err, "Content catalog unavailable")
	}
	return content, nil
}

func (svc *ContentService) ListContent() ([]model.GatedContent, error) {
	contents, err := svc.contentRepo.ListContent()
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Content catalog unavailable")
	}
	return contents, nil
}

func (svc *ContentService) CreateContent(req dto.CreateContentRequest) (*model.GatedContent, error) {
	content := &model.GatedContent{
		ContentType:   req.ContentType,
		ContentID:     req.ContentID,
		Title:         req.Title,
		Description:   req.Description,
		SolarCost:     req.SolarCost,
		TimerDuration: req.TimerDuration,
		IsActive:      true,
	}
	if content.SolarCost == 0 {
		content.SolarCost = DefaultSolarCost
	}
	if content.TimerDuration == 0 {
		content.TimerDuration = DefaultTimerDuration
	}

	created, err := svc.contentRepo.CreateContent(content)
	if err != nil {
		return nil, shared.NewConflictError(err, "Content already exists")
	}
	return created, nil
}
