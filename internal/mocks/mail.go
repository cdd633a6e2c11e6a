package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
)

type MailClient struct {
	mock.Mock
}

func (m *MailClient) Connect(ctx context.Context) (interfaces.MailSession, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(interfaces.MailSession)
	return session, args.Error(1)
}

type MailSession struct {
	mock.Mock
}

func (m *MailSession) UIDs(ctx context.Context) ([]uint32, error) {
	args := m.Called(ctx)
	uids, _ := args.Get(0).([]uint32)
	return uids, args.Error(1)
}

func (m *MailSession) Fetch(ctx context.Context, uid uint32) (*dto.RawEmail, error) {
	args := m.Called(ctx, uid)
	email, _ := args.Get(0).(*dto.RawEmail)
	return email, args.Error(1)
}

func (m *MailSession) Delete(ctx context.Context, uid uint32) error {
	return m.Called(ctx, uid).Error(0)
}

func (m *MailSession) Move(ctx context.Context, uid uint32, folder string) error {
	return m.Called(ctx, uid, folder).Error(0)
}

func (m *MailSession) Size(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MailSession) Close() error {
	return m.Called().Error(0)
}

type Mailer struct {
	mock.Mock
}

func (m *Mailer) Send(ctx context.Context, email *dto.OutboundEmail) error {
	return m.Called(ctx, email).Error(0)
}

type NotificationRelay struct {
	mock.Mock
}

func (m *NotificationRelay) Relay(ctx context.Context, notification []byte) error {
	return m.Called(ctx, notification).Error(0)
}

type StorageService struct {
	mock.Mock
}

func (m *StorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

func (m *StorageService) Download(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *StorageService) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
