package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/current-see/solar_api/model"
)

type UserRepository struct {
	BaseRepository
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (ds *UserRepository) CreateUser(user *model.User) (*model.User, error) {
	if user.ID == "" {
		id, _ := uuid.NewV7()
		user.ID = id.String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	if err := ds.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (ds *UserRepository) GetUser(id string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (ds *UserRepository) GetUserByEmail(email string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (ds *UserRepository) UpdateUser(user *model.User) error {
	user.UpdatedAt = time.Now()
	return ds.db.Save(user).Error
}

func (ds *UserRepository) GetSession(id string) (*model.VisitorSession, error) {
	var session model.VisitorSession
	if err := ds.db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (ds *UserRepository) GetSessionByDeviceID(deviceID string) (*model.VisitorSession, error) {
	var session model.VisitorSession
	err := ds.db.Where("device_id = ? AND is_active = ?", deviceID, true).
		Order("created_at DESC").First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (ds *UserRepository) CreateSession(session *model.VisitorSession) (*model.VisitorSession, error) {
	if session.ID == "" {
		id, _ := uuid.NewV7()
		session.ID = id.String()
	}
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()

	if err := ds.db.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (ds *UserRepository) UpdateSession(session *model.VisitorSession) error {
	session.UpdatedAt = time.Now()
	return ds.db.Save(session).Error
}
