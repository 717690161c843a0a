package dto

import "github.com/current-see/solar_api/model"

type CreateSessionRequest struct {
	DeviceID string `json:"device_id" validate:"required,min=1,max=100"`
}

func (c CreateSessionRequest) Validate() error {
	return GetValidator().Struct(c)
}

type CreateSessionResponse struct {
	Session *model.VisitorSession `json:"session"`
}
